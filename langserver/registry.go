package langserver

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"go.uber.org/zap"

	"github.com/teranos/langgate/am"
	"github.com/teranos/langgate/errors"
	"github.com/teranos/langgate/logger"
)

// supportedLanguages have a real adapter implementation.
var supportedLanguages = []string{"rust"}

// recognizedLanguages are understood for routing and root detection even
// without a running adapter.
var recognizedLanguages = []string{"rust", "python", "javascript", "typescript"}

// extensionLanguages maps file extensions to inferred language identifiers.
var extensionLanguages = map[string]string{
	".rs": "rust",
	".py": "python",
	".js": "javascript",
	".ts": "typescript",
}

// adapterFactory builds one language's adapter. Swappable for tests.
type adapterFactory func(language string, config *ServerConfig, publish DiagnosticsFunc, log *zap.SugaredLogger) (LanguageServer, error)

// Registry enforces the singleton-per-language invariant: it creates at most
// one running adapter per language, marks the language active before launch
// so concurrent starts cannot both spawn, and releases the mark on launch
// failure so a retry can succeed.
type Registry struct {
	store ActiveStore
	cfg   *am.Config
	log   *zap.SugaredLogger

	mu       sync.RWMutex
	adapters map[string]LanguageServer

	subMu       sync.RWMutex
	subscribers map[string]DiagnosticsFunc

	newAdapter adapterFactory
}

// NewRegistry creates a registry backed by the given active-server store.
func NewRegistry(store ActiveStore, cfg *am.Config, log *zap.SugaredLogger) *Registry {
	if log == nil {
		log = logger.Logger
	}
	return &Registry{
		store:       store,
		cfg:         cfg,
		log:         log.Named("langserver.registry"),
		adapters:    make(map[string]LanguageServer),
		subscribers: make(map[string]DiagnosticsFunc),
		newAdapter:  defaultAdapterFactory,
	}
}

// defaultAdapterFactory wires the real per-language adapters.
func defaultAdapterFactory(language string, config *ServerConfig, publish DiagnosticsFunc, log *zap.SugaredLogger) (LanguageServer, error) {
	switch language {
	case "rust":
		return NewRustServer(config, publish, log), nil
	default:
		return nil, errors.Wrapf(errors.ErrUnsupportedLanguage, "no adapter for %s", language)
	}
}

// SupportedLanguages lists languages with a working adapter.
func (r *Registry) SupportedLanguages() []string {
	out := make([]string, len(supportedLanguages))
	copy(out, supportedLanguages)
	return out
}

// RecognizedLanguages lists languages understood for routing purposes.
func (r *Registry) RecognizedLanguages() []string {
	out := make([]string, len(recognizedLanguages))
	copy(out, recognizedLanguages)
	return out
}

// IsSupported reports whether language has an adapter implementation.
func (r *Registry) IsSupported(language string) bool {
	for _, l := range supportedLanguages {
		if l == language {
			return true
		}
	}
	return false
}

// IsRecognized reports whether language is understood for routing.
func (r *Registry) IsRecognized(language string) bool {
	for _, l := range recognizedLanguages {
		if l == language {
			return true
		}
	}
	return false
}

// NormalizeLanguage lowercases the identifier and infers it from the file
// extension when empty or "unknown".
func NormalizeLanguage(language, filePath string) string {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" || language == "unknown" {
		ext := strings.ToLower(filepath.Ext(filePath))
		if inferred, ok := extensionLanguages[ext]; ok {
			return inferred
		}
	}
	return language
}

// StartServer validates the request, enforces the singleton invariant, and
// launches the language's adapter in the background. The returned status
// string is an optimistic acknowledgment: spawn failures after this point are
// logged and reflected in later state queries, not in this call's result.
func (r *Registry) StartServer(ctx context.Context, language, filePath string) (string, error) {
	if _, err := os.Stat(filePath); err != nil {
		return "", errors.Wrapf(errors.ErrPathNotFound, "%s", filePath)
	}

	language = NormalizeLanguage(language, filePath)

	if !r.IsSupported(language) {
		return "", errors.Wrapf(errors.ErrUnsupportedLanguage,
			"%s (supported: %s)", language, strings.Join(supportedLanguages, ", "))
	}

	active, err := r.store.IsActive(language)
	if err != nil {
		return "", errors.Wrapf(err, "failed to check active state for %s", language)
	}
	if active {
		r.log.Infow("Analyzer already running",
			"language", language)
		return fmt.Sprintf("%s language server already running", language), nil
	}

	rootPath, err := r.FindProjectRoot(filePath, language)
	if err != nil {
		rootPath = filepath.Dir(filePath)
	}

	langCfg := r.languageConfig(language)
	config, err := FromLanguageConfig(rootPath, langCfg)
	if err != nil {
		return "", err
	}

	if langCfg.MinVersion != "" {
		r.checkAnalyzerVersion(ctx, language, config, langCfg.MinVersion)
	}

	// Mark active before launching so two concurrent starts cannot both
	// spawn; exactly one wins the acquire.
	acquired, err := r.store.Acquire(language)
	if err != nil {
		return "", errors.Wrapf(err, "failed to acquire %s", language)
	}
	if !acquired {
		return fmt.Sprintf("%s language server already running", language), nil
	}

	adapter, err := r.newAdapter(language, config, r.publishDiagnostics, r.log)
	if err != nil {
		r.store.Release(language)
		return "", err
	}

	r.mu.Lock()
	r.adapters[language] = adapter
	r.mu.Unlock()

	// Launch in the background: the caller is not blocked on the full LSP
	// serve loop. A failed launch releases the language for retry.
	go func() {
		if err := adapter.Initialize(context.Background()); err != nil {
			r.log.Errorw("Analyzer launch failed",
				"language", language,
				"error", err)
			r.mu.Lock()
			delete(r.adapters, language)
			r.mu.Unlock()
			if relErr := r.store.Release(language); relErr != nil {
				r.log.Warnw("Failed to release language after launch failure",
					"language", language,
					"error", relErr)
			}
			return
		}

		if pider, ok := adapter.(interface{ Pid() int }); ok {
			if err := r.store.UpdatePID(language, pider.Pid()); err != nil {
				r.log.Warnw("Failed to record analyzer pid",
					"language", language,
					"error", err)
			}
		}
	}()

	r.log.Infow("Analyzer launch scheduled",
		"language", language,
		"root", rootPath)

	return fmt.Sprintf("Started %s language server for %s", language, filePath), nil
}

// StopServer shuts down the language's adapter and releases its active mark.
// No-op success when nothing is running.
func (r *Registry) StopServer(language string) error {
	language = strings.ToLower(strings.TrimSpace(language))

	r.mu.Lock()
	adapter, ok := r.adapters[language]
	delete(r.adapters, language)
	r.mu.Unlock()

	if ok {
		if err := adapter.Shutdown(); err != nil {
			r.log.Warnw("Adapter shutdown error",
				"language", language,
				"error", err)
		}
	}

	return r.store.Release(language)
}

// StopAll shuts down every running adapter. Best-effort, used at teardown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	languages := make([]string, 0, len(r.adapters))
	for language := range r.adapters {
		languages = append(languages, language)
	}
	r.mu.Unlock()

	for _, language := range languages {
		if err := r.StopServer(language); err != nil {
			r.log.Warnw("Failed to stop analyzer during teardown",
				"language", language,
				"error", err)
		}
	}
}

// ActiveServers lists the store's view of running analyzers.
func (r *Registry) ActiveServers() ([]ActiveServer, error) {
	return r.store.Active()
}

// Adapter returns the running adapter for language.
func (r *Registry) Adapter(language string) (LanguageServer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[language]
	return adapter, ok
}

// AdapterForURI routes a document URI to the adapter serving its language,
// inferred from the file extension.
func (r *Registry) AdapterForURI(uri string) (LanguageServer, bool) {
	path := strings.TrimPrefix(uri, "file://")
	ext := strings.ToLower(filepath.Ext(path))
	language, ok := extensionLanguages[ext]
	if !ok {
		return nil, false
	}
	return r.Adapter(language)
}

// Subscribe registers a diagnostics relay under id, replacing any previous
// relay with the same id.
func (r *Registry) Subscribe(id string, fn DiagnosticsFunc) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	r.subscribers[id] = fn
}

// Unsubscribe removes the relay registered under id.
func (r *Registry) Unsubscribe(id string) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	delete(r.subscribers, id)
}

// publishDiagnostics fans analyzer diagnostics out to every subscriber.
func (r *Registry) publishDiagnostics(language string, params *protocol.PublishDiagnosticsParams) {
	r.subMu.RLock()
	subscribers := make([]DiagnosticsFunc, 0, len(r.subscribers))
	for _, fn := range r.subscribers {
		subscribers = append(subscribers, fn)
	}
	r.subMu.RUnlock()

	for _, fn := range subscribers {
		fn(language, params)
	}
}

// languageConfig returns the am config section for language, zero-valued
// when no config was loaded.
func (r *Registry) languageConfig(language string) am.LanguageConfig {
	if r.cfg == nil {
		return am.LanguageConfig{}
	}
	return r.cfg.GetLanguage(language)
}

// checkAnalyzerVersion runs `<executable> --version` and warns when the
// reported version is below the configured minimum. Best-effort only: an
// analyzer that cannot report its version still launches.
func (r *Registry) checkAnalyzerVersion(ctx context.Context, language string, config *ServerConfig, minVersion string) {
	minimum, err := semver.NewVersion(minVersion)
	if err != nil {
		r.log.Warnw("Configured min_version is not valid semver, skipping version gate",
			"language", language,
			"min_version", minVersion,
			"error", err)
		return
	}

	executable := config.ExecutablePath
	if executable == "" {
		return
	}

	out, err := exec.CommandContext(ctx, executable, "--version").Output()
	if err != nil {
		r.log.Warnw("Could not query analyzer version",
			"language", language,
			"binary", executable,
			"error", err)
		return
	}

	actual := parseVersionOutput(string(out))
	if actual == nil {
		r.log.Warnw("Could not parse analyzer version output",
			"language", language,
			"output", strings.TrimSpace(string(out)))
		return
	}

	if actual.LessThan(minimum) {
		r.log.Warnw("Analyzer version below configured minimum",
			"language", language,
			"version", actual.String(),
			"min_version", minimum.String())
	}
}

// parseVersionOutput finds the first semver-parseable token in a
// `--version` banner like "rust-analyzer 1.80.1 (abc123 2025-01-01)".
func parseVersionOutput(out string) *semver.Version {
	for _, field := range strings.Fields(out) {
		if v, err := semver.NewVersion(strings.TrimPrefix(field, "v")); err == nil {
			return v
		}
	}
	return nil
}

package langserver

import (
	"os"

	"github.com/kballard/go-shellquote"

	"github.com/teranos/langgate/am"
	"github.com/teranos/langgate/errors"
)

// ServerConfig describes how to launch one language's analyzer. Immutable
// once handed to an adapter; the builder methods return the receiver for
// chaining during construction only.
type ServerConfig struct {
	RootPath       string
	ExecutablePath string
	Args           []string
	Env            map[string]string
}

// NewServerConfig creates a launch configuration rooted at the given
// workspace directory.
func NewServerConfig(rootPath string) *ServerConfig {
	return &ServerConfig{
		RootPath: rootPath,
		Env:      make(map[string]string),
	}
}

// WithExecutable sets the analyzer binary path.
func (c *ServerConfig) WithExecutable(path string) *ServerConfig {
	c.ExecutablePath = path
	return c
}

// WithArgs appends extra launch arguments.
func (c *ServerConfig) WithArgs(args ...string) *ServerConfig {
	c.Args = append(c.Args, args...)
	return c
}

// WithEnv sets one environment variable for the child process.
func (c *ServerConfig) WithEnv(name, value string) *ServerConfig {
	if c.Env == nil {
		c.Env = make(map[string]string)
	}
	c.Env[name] = value
	return c
}

// Environ returns the child process environment: the parent's environment
// plus the config's overrides.
func (c *ServerConfig) Environ() []string {
	env := os.Environ()
	for name, value := range c.Env {
		env = append(env, name+"="+value)
	}
	return env
}

// FromLanguageConfig builds a ServerConfig from the am config section for a
// language. The args string is shell-quoted in the config file.
func FromLanguageConfig(rootPath string, lang am.LanguageConfig) (*ServerConfig, error) {
	cfg := NewServerConfig(rootPath)

	if lang.Executable != "" {
		cfg.WithExecutable(lang.Executable)
	}

	if lang.Args != "" {
		args, err := shellquote.Split(lang.Args)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse analyzer args %q", lang.Args)
		}
		cfg.WithArgs(args...)
	}

	for name, value := range lang.Env {
		cfg.WithEnv(name, value)
	}

	return cfg, nil
}

package logger

// Output controls what categories of information are shown at each verbosity level.
//
// Unlike log levels (which filter by severity), output categories control
// WHAT types of information are displayed regardless of severity.
//
// Verbosity Levels:
//
//	0 (default) - User-facing output only: results, errors with hints, final status
//	1 (-v)      - + Progress, startup info, analyzer status, operation summaries
//	2 (-vv)     - + LSP method traffic, timing, config loaded
//	3 (-vvv)    - + Analyzer stderr, websocket frames, SQL queries, internal flow
//	4 (-vvvv)   - + Full request/response bodies, data structure dumps

// OutputCategory defines a category of output that can be enabled/disabled
type OutputCategory int

const (
	// Level 0 (default) - Always shown
	OutputResults    OutputCategory = iota // Command output
	OutputErrors                           // Errors with hints and resolution steps
	OutputUserStatus                       // Final success/failure status

	// Level 1 (-v) - Informational
	OutputProgress       // Progress indicators
	OutputStartup        // Startup banners, config summary
	OutputAnalyzerStatus // Analyzer launched/stopped/health status
	OutputOperationInfo  // High-level operation summaries

	// Level 2 (-vv) - Detailed
	OutputLSPTraffic // LSP method names forwarded to/from analyzers
	OutputTiming     // Operation timing (e.g., "hover took 42ms")
	OutputConfig     // Config values loaded/applied

	// Level 3 (-vvv) - Debug
	OutputAnalyzerLogs // Analyzer stderr forwarding
	OutputWSFrames     // WebSocket frame summaries
	OutputSQLQueries   // Individual SQL queries executed
	OutputInternalOp   // Internal operation flow

	// Level 4 (-vvvv) - Full dump
	OutputRequestBody  // Full JSON-RPC request bodies
	OutputResponseBody // Full JSON-RPC response bodies
	OutputDataDump     // Full data structure contents
)

// categoryLevels maps each output category to its minimum verbosity level
var categoryLevels = map[OutputCategory]int{
	OutputResults:    VerbosityUser,
	OutputErrors:     VerbosityUser,
	OutputUserStatus: VerbosityUser,

	OutputProgress:       VerbosityInfo,
	OutputStartup:        VerbosityInfo,
	OutputAnalyzerStatus: VerbosityInfo,
	OutputOperationInfo:  VerbosityInfo,

	OutputLSPTraffic: VerbosityDebug,
	OutputTiming:     VerbosityDebug,
	OutputConfig:     VerbosityDebug,

	OutputAnalyzerLogs: VerbosityTrace,
	OutputWSFrames:     VerbosityTrace,
	OutputSQLQueries:   VerbosityTrace,
	OutputInternalOp:   VerbosityTrace,

	OutputRequestBody:  VerbosityAll,
	OutputResponseBody: VerbosityAll,
	OutputDataDump:     VerbosityAll,
}

// ShouldOutput returns true if the given category should be shown at the given verbosity
func ShouldOutput(verbosity int, category OutputCategory) bool {
	minLevel, ok := categoryLevels[category]
	if !ok {
		// Unknown category, default to highest verbosity required
		return verbosity >= VerbosityAll
	}
	return verbosity >= minLevel
}

// categoryNames provides human-readable names for output categories
var categoryNames = map[OutputCategory]string{
	OutputResults:        "results",
	OutputErrors:         "errors",
	OutputUserStatus:     "status",
	OutputProgress:       "progress",
	OutputStartup:        "startup",
	OutputAnalyzerStatus: "analyzer-status",
	OutputOperationInfo:  "operation-info",
	OutputLSPTraffic:     "lsp-traffic",
	OutputTiming:         "timing",
	OutputConfig:         "config",
	OutputAnalyzerLogs:   "analyzer-logs",
	OutputWSFrames:       "ws-frames",
	OutputSQLQueries:     "sql",
	OutputInternalOp:     "internal",
	OutputRequestBody:    "request-body",
	OutputResponseBody:   "response-body",
	OutputDataDump:       "data-dump",
}

// CategoryName returns the human-readable name for an output category
func CategoryName(category OutputCategory) string {
	if name, ok := categoryNames[category]; ok {
		return name
	}
	return "unknown"
}

// EnabledCategories returns all output categories enabled at the given verbosity
func EnabledCategories(verbosity int) []OutputCategory {
	var enabled []OutputCategory
	for cat, minLevel := range categoryLevels {
		if verbosity >= minLevel {
			enabled = append(enabled, cat)
		}
	}
	return enabled
}

// VerbosityDescription returns a description of what's shown at each level
func VerbosityDescription(verbosity int) string {
	switch verbosity {
	case VerbosityUser:
		return "results and errors only"
	case VerbosityInfo:
		return "results, errors, progress, and status"
	case VerbosityDebug:
		return "above + LSP traffic, timing, config details"
	case VerbosityTrace:
		return "above + analyzer stderr, websocket frames, SQL"
	case VerbosityAll:
		return "full output including request/response bodies"
	default:
		if verbosity > VerbosityAll {
			return "maximum verbosity"
		}
		return "unknown verbosity level"
	}
}

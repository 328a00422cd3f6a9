package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// Protocol errors (T001-T099)

	"T001": {
		Category:   CategoryProtocol,
		Message:    "Malformed frame",
		Detail:     "The connection sent bytes that do not decode as a protocol frame.",
		Suggestion: "Check that the client library matches the server's protocol version.",
	},
	"T002": {
		Category:   CategoryProtocol,
		Message:    "Protocol version mismatch",
		Detail:     "The client announced a protocol version this server does not speak.",
		Suggestion: "Upgrade the client or server so both sides use the same protocol version.",
	},
	"T003": {
		Category: CategoryProtocol,
		Message:  "Frame too large",
		Detail:   "A frame exceeded the maximum payload size and was rejected.",
	},
	"T004": {
		Category:   CategoryProtocol,
		Message:    "Client desynchronized",
		Detail:     "A diff referenced a component the client's cache does not hold. The client state no longer matches the server baseline.",
		Suggestion: "The client should request a resync to receive the full committed state.",
	},

	// Render errors (T100-T199)

	"T100": {
		Category: CategoryRender,
		Message:  "Template render failed",
		Detail:   "The template function returned an error. The previous committed tree was kept and nothing was sent.",
	},
	"T101": {
		Category: CategoryRender,
		Message:  "Malformed rendered tree",
		Detail:   "The template produced a tree whose statics and dynamics do not interleave, or a comprehension with ragged rows.",
	},

	// Registry errors (T200-T299)

	"T200": {
		Category:   CategoryRegistry,
		Message:    "Component registry inconsistent",
		Detail:     "A diff pass aborted and the component registry can no longer be trusted. The connection must be discarded.",
		Suggestion: "Reconnect; the session will remount from scratch or resume from its last snapshot.",
	},
	"T201": {
		Category: CategoryRegistry,
		Message:  "Duplicate component key",
		Detail:   "Two components in the same tree resolved to the same logical position key.",
	},

	// Session errors (T300-T399)

	"T300": {
		Category: CategorySession,
		Message:  "Session limit reached",
		Detail:   "The server refused a new connection because the configured session limit was hit.",
	},
	"T301": {
		Category: CategorySession,
		Message:  "Snapshot unavailable",
		Detail:   "The session's snapshot was missing or expired, so the session could not be resumed.",
	},

	// Config errors (T400-T499)

	"T400": {
		Category:   CategoryConfig,
		Message:    "Invalid configuration",
		Detail:     "The configuration file could not be parsed or contains invalid values.",
		Suggestion: "Check treeline.json against the documented schema.",
	},
	"T401": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "No treeline.json was found in the working directory or any parent.",
	},
}

// Register adds a custom error template to the registry. Intended for
// embedding applications that want their own codes formatted the same
// way.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}

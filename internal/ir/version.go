package ir

// Version constants for the descriptor format and the runtime.
const (
	// SchemaFormatVersion is the schema descriptor format version.
	SchemaFormatVersion = "1"

	// RuntimeVersion is the tessera runtime version.
	RuntimeVersion = "0.1.0"
)

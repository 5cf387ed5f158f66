package runerr

// Code is a machine-readable failure category for an analysis run.
type Code string

const (
	// CodeInput covers missing or unreadable paths, unknown extractor
	// selectors, and invalid run ids. Not recoverable by the orchestrator.
	CodeInput Code = "INPUT"

	// CodeExtraction is a per-object failure reported by the extractor.
	CodeExtraction Code = "EXTRACTION"

	// CodeParse is a per-file parse failure (recovered or abandoned).
	CodeParse Code = "PARSE"

	// CodePersistence is an invariant violation at the persistence layer.
	// Fatal for the run.
	CodePersistence Code = "PERSISTENCE"

	// CodeCanceled means the run was canceled before persistence completed.
	CodeCanceled Code = "CANCELED"

	// CodeInternal is a bug surfaced with context.
	CodeInternal Code = "INTERNAL"
)

// Exit codes of the process-level contract: success, user/environment or
// fatal error, partial analysis failure.
const (
	ExitOK      = 0
	ExitFatal   = 1
	ExitPartial = 2
)

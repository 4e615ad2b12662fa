package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidConfig = errors.New("invalid configuration")

	// Page-level conditions. None of these stop a run.
	ErrBoundaryIncomplete  = errors.New("incomplete page record at end of dump")
	ErrTitleMissing        = errors.New("page title missing")
	ErrBodyMissing         = errors.New("page body missing")
	ErrLinkEscapeAmbiguous = errors.New("link target has unresolved escape")
	ErrSink                = errors.New("sink write failed")

	// ErrDumpIO is fatal to the whole run.
	ErrDumpIO = errors.New("dump read failed")
)

// Kind classifies a page-level issue for the end-of-run summary.
type Kind string

const (
	KindBoundaryIncomplete  Kind = "boundary_incomplete"
	KindTitleMissing        Kind = "title_missing"
	KindBodyMissing         Kind = "body_missing"
	KindLinkEscapeAmbiguous Kind = "link_escape_ambiguous"
	KindSink                Kind = "sink_error"
	KindDumpIO              Kind = "dump_io_error"
	KindUnknown             Kind = "unknown"
)

// Kinds lists every kind in summary order.
var Kinds = []Kind{
	KindBoundaryIncomplete,
	KindTitleMissing,
	KindBodyMissing,
	KindLinkEscapeAmbiguous,
	KindSink,
	KindDumpIO,
}

// KindOf maps an error to its Kind.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBoundaryIncomplete):
		return KindBoundaryIncomplete
	case errors.Is(err, ErrTitleMissing):
		return KindTitleMissing
	case errors.Is(err, ErrBodyMissing):
		return KindBodyMissing
	case errors.Is(err, ErrLinkEscapeAmbiguous):
		return KindLinkEscapeAmbiguous
	case errors.Is(err, ErrSink):
		return KindSink
	case errors.Is(err, ErrDumpIO):
		return KindDumpIO
	default:
		return KindUnknown
	}
}

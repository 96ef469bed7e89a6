package lcb

import "errors"

var (
	// ErrMalformedID is returned for folder names or table rows whose room ID
	// does not follow the ID grammar.
	ErrMalformedID = errors.New("malformed room id")

	// ErrUnknownFormat is returned when no signature matches a file's content.
	ErrUnknownFormat = errors.New("unknown file format")
)

// DiagnosticKind classifies a skipped or unresolved entry.
type DiagnosticKind string

const (
	// DiagUndecidable: neither the name nor the content determines the format.
	DiagUndecidable DiagnosticKind = "undecidable"
	// DiagConflict: a rename or copy target already exists.
	DiagConflict DiagnosticKind = "conflict"
	// DiagMalformedID: a folder name or mapping row carries no valid room ID.
	DiagMalformedID DiagnosticKind = "malformed_id"
	// DiagIO: an entry could not be read or written.
	DiagIO DiagnosticKind = "io"
	// DiagSkipped: an entry was deliberately left alone (e.g. no name on record).
	DiagSkipped DiagnosticKind = "skipped"
)

// Diagnostic reports one entry the service left as-is.
type Diagnostic struct {
	Kind   DiagnosticKind `json:"kind" yaml:"kind"`
	Room   string         `json:"room,omitempty" yaml:"room,omitempty"`
	Path   string         `json:"path,omitempty" yaml:"path,omitempty"`
	Detail string         `json:"detail" yaml:"detail"`
}

// note appends d to ds and logs it.
func (s *LCBService) note(ds *[]Diagnostic, d Diagnostic) {
	*ds = append(*ds, d)
	s.logger.Warn(d.Detail, "kind", string(d.Kind), "room", d.Room, "path", d.Path)
}

package lcb

// ActionKind names a filesystem change made by the service.
type ActionKind string

const (
	ActionMove   ActionKind = "move"
	ActionRename ActionKind = "rename"
	ActionCopy   ActionKind = "copy"
	ActionMkdir  ActionKind = "mkdir"
	ActionWrite  ActionKind = "write"
)

// Action is one change recorded in the journal.
type Action struct {
	Kind        ActionKind `json:"kind" yaml:"kind"`
	Room        string     `json:"room,omitempty" yaml:"room,omitempty"`
	Source      string     `json:"source,omitempty" yaml:"source,omitempty"`
	Destination string     `json:"destination,omitempty" yaml:"destination,omitempty"`
}

// Journal records the changes made during an operation so a run can be audited later.
type Journal interface {
	RecordAction(action *Action) error
}

// NopJournal discards all actions. Use in tests and read-only commands.
type NopJournal struct{}

func (NopJournal) RecordAction(*Action) error { return nil }

// record writes a to the journal. A journal failure never aborts the
// filesystem work that already happened; it is logged instead.
func (s *LCBService) record(a *Action) {
	if err := s.journal.RecordAction(a); err != nil {
		s.logger.Error("recording action", "kind", string(a.Kind), "src", a.Source, "dst", a.Destination, "err", err)
	}
}

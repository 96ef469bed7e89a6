package lcb

import "time"

// Operation is one journaled CLI run that changed the chats tree or the mapping table.
type Operation struct {
	ID         int64      `json:"id" yaml:"id"`
	Operation  string     `json:"operation" yaml:"operation"`
	Parameters string     `json:"parameters" yaml:"parameters"`
	StartedAt  time.Time  `json:"started_at" yaml:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Status     string     `json:"status" yaml:"status"`
}

// ActionRecord is a journaled Action.
type ActionRecord struct {
	ID          int64     `json:"id" yaml:"id"`
	OperationID int64     `json:"operation_id" yaml:"operation_id"`
	Action      `yaml:",inline"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// Database provides the run journal: operations and the actions each one performed.
type Database interface {
	// CreateOperation starts a new operation and assigns its ID.
	CreateOperation(operation string, parameters string) (*Operation, error)

	// FinishOperation stamps the finish time and final status of an operation.
	FinishOperation(id int64, status string) error

	// FindOperation returns an operation by ID, or nil if there is none.
	FindOperation(id int64) (*Operation, error)

	// ListOperations returns the most recent operations, newest first.
	ListOperations(limit int) ([]*Operation, error)

	// MaxOperationID returns the highest operation ID, or 0 for an empty journal.
	MaxOperationID() (int64, error)

	// CreateAction records an action under an operation.
	CreateAction(operationID int64, action *Action) (*ActionRecord, error)

	// ListActions returns the actions of an operation in the order they happened.
	ListActions(operationID int64) ([]*ActionRecord, error)

	// CheckMigrations verifies the journal schema is current.
	CheckMigrations() error

	// BackupTo writes a consistent copy of the journal to destPath.
	BackupTo(destPath string) error

	Close() error
}

// OperationJournal binds a Database to one operation so the service can
// record actions without knowing the operation ID.
type OperationJournal struct {
	db          Database
	operationID int64
}

func NewOperationJournal(db Database, operationID int64) *OperationJournal {
	return &OperationJournal{db: db, operationID: operationID}
}

func (j *OperationJournal) RecordAction(action *Action) error {
	_, err := j.db.CreateAction(j.operationID, action)
	return err
}

var _ Journal = (*OperationJournal)(nil)

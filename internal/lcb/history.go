package lcb

import "fmt"

// OperationDetail is an operation together with its journaled actions.
type OperationDetail struct {
	Operation *Operation      `json:"operation" yaml:"operation"`
	Actions   []*ActionRecord `json:"actions" yaml:"actions"`
}

// GetHistory returns the most recent operations, ordered newest first.
func (s *LCBService) GetHistory(limit int) ([]*Operation, error) {
	if s.database == nil {
		return nil, fmt.Errorf("no journal database configured")
	}
	ops, err := s.database.ListOperations(limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

// GetOperation returns one operation and its actions.
func (s *LCBService) GetOperation(id int64) (*OperationDetail, error) {
	if s.database == nil {
		return nil, fmt.Errorf("no journal database configured")
	}
	op, err := s.database.FindOperation(id)
	if err != nil {
		return nil, fmt.Errorf("finding operation: %w", err)
	}
	if op == nil {
		return nil, fmt.Errorf("operation not found: %d", id)
	}
	actions, err := s.database.ListActions(id)
	if err != nil {
		return nil, fmt.Errorf("listing actions: %w", err)
	}
	return &OperationDetail{Operation: op, Actions: actions}, nil
}

package lcb

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MappingRecord is one row of the ID→name table.
type MappingRecord struct {
	ID     string
	Name   string
	Status RoomStatus
}

// ParseStatus parses the numeric status column of the mapping table.
func ParseStatus(s string) (RoomStatus, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid status %q: %w", s, err)
	}
	switch RoomStatus(n) {
	case StatusJoined, StatusExited:
		return RoomStatus(n), nil
	default:
		return 0, fmt.Errorf("invalid status %q", s)
	}
}

// MappingTable is the in-memory ID→name table. It is loaded once, mutated
// by the matcher and written back wholesale. Rows whose ID or status could
// not be parsed are kept verbatim so that saving never loses user data.
type MappingTable struct {
	records map[string]*MappingRecord
	invalid [][]string
}

func NewMappingTable() *MappingTable {
	return &MappingTable{records: make(map[string]*MappingRecord)}
}

// Get returns the record for id, or nil if there is none.
func (t *MappingTable) Get(id string) *MappingRecord {
	rec, ok := t.records[id]
	if !ok {
		return nil
	}
	cp := *rec
	return &cp
}

// Put stores rec, replacing any record with the same ID.
func (t *MappingTable) Put(rec MappingRecord) {
	t.records[rec.ID] = &rec
}

// Upsert merges rec, as parsed from a room folder name, into the table and
// reports what happened. A stored non-empty name is never replaced by an
// empty one. A bare folder says nothing about membership, so it keeps the
// stored status; any folder carrying a name or the exited marker sets it.
func (t *MappingTable) Upsert(rec MappingRecord) UpsertResult {
	existing, ok := t.records[rec.ID]
	if !ok {
		t.Put(rec)
		return UpsertAdded
	}
	merged := *existing
	if rec.Name != "" {
		merged.Name = rec.Name
	}
	if rec.Name != "" || rec.Status == StatusExited {
		merged.Status = rec.Status
	}
	if merged == *existing {
		return UpsertUnchanged
	}
	*existing = merged
	return UpsertUpdated
}

// UpsertResult tells the caller whether an upsert changed the table.
type UpsertResult int

const (
	UpsertUnchanged UpsertResult = iota
	UpsertAdded
	UpsertUpdated
)

// Records returns all valid records sorted by ID.
func (t *MappingTable) Records() []MappingRecord {
	out := make([]MappingRecord, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of valid records.
func (t *MappingTable) Len() int {
	return len(t.records)
}

// AddInvalid keeps a row that could not be parsed.
func (t *MappingTable) AddInvalid(row []string) {
	t.invalid = append(t.invalid, append([]string(nil), row...))
}

// Invalid returns the unparseable rows in the order they were read.
func (t *MappingTable) Invalid() [][]string {
	return t.invalid
}

// MappingStore loads and saves a mapping table.
type MappingStore interface {
	Load() (*MappingTable, error)
	Save(table *MappingTable) error
}

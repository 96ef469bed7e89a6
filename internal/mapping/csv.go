// Package mapping persists the room ID→name table as CSV.
package mapping

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"lcb-go/internal/lcb"
)

var header = []string{"ID", "Name", "Status"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode reads a mapping table. A header row and a leading UTF-8 BOM are
// optional. Rows with a malformed ID or status, with the wrong number of
// columns, or repeating an earlier ID are kept as invalid rows.
func Decode(r io.Reader) (*lcb.MappingTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading mapping: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	table := lcb.NewMappingTable()
	first := true
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing mapping: %w", err)
		}
		if first {
			first = false
			if isHeader(row) {
				continue
			}
		}

		rec, ok := parseRow(row)
		if !ok || table.Get(rec.ID) != nil {
			table.AddInvalid(row)
			continue
		}
		table.Put(rec)
	}
	return table, nil
}

func isHeader(row []string) bool {
	if len(row) != len(header) {
		return false
	}
	for i, h := range header {
		if !strings.EqualFold(strings.TrimSpace(row[i]), h) {
			return false
		}
	}
	return true
}

func parseRow(row []string) (lcb.MappingRecord, bool) {
	if len(row) != 3 {
		return lcb.MappingRecord{}, false
	}
	id := strings.TrimSpace(row[0])
	if !lcb.IsRoomID(id) {
		return lcb.MappingRecord{}, false
	}
	status, err := lcb.ParseStatus(row[2])
	if err != nil {
		return lcb.MappingRecord{}, false
	}
	return lcb.MappingRecord{ID: id, Name: strings.TrimSpace(row[1]), Status: status}, true
}

// Encode writes the header, the valid records sorted by ID and then the
// invalid rows in their original order.
func Encode(w io.Writer, table *lcb.MappingTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, rec := range table.Records() {
		if err := cw.Write([]string{rec.ID, rec.Name, strconv.Itoa(int(rec.Status))}); err != nil {
			return fmt.Errorf("writing record %s: %w", rec.ID, err)
		}
	}
	for _, row := range table.Invalid() {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing invalid row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVStore keeps a mapping table in a CSV file.
type CSVStore struct {
	path string
}

var _ lcb.MappingStore = (*CSVStore)(nil)

func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Path returns the CSV file path.
func (s *CSVStore) Path() string {
	return s.path
}

// Load reads the table. A missing file is an empty table.
func (s *CSVStore) Load() (*lcb.MappingTable, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return lcb.NewMappingTable(), nil
		}
		return nil, fmt.Errorf("opening mapping file: %w", err)
	}
	defer f.Close()

	table, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", s.path, err)
	}
	return table, nil
}

// Save replaces the file with table. The new content is written to a
// temporary file in the same directory and renamed into place.
func (s *CSVStore) Save(table *lcb.MappingTable) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating mapping directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".mapping-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := Encode(tmp, table); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing mapping: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

package lcb

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"
)

// ExtractReport is the outcome of merging folder names into the mapping table.
type ExtractReport struct {
	Added       []string     `json:"added" yaml:"added"`
	Updated     []string     `json:"updated" yaml:"updated"`
	Unchanged   int          `json:"unchanged" yaml:"unchanged"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// RoomRename is one folder rename performed by PrefixRooms.
type RoomRename struct {
	ID   string `json:"id" yaml:"id"`
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// PrefixReport is the outcome of naming bare room folders.
type PrefixReport struct {
	Renamed     []RoomRename `json:"renamed" yaml:"renamed"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// RoomRef identifies a room folder.
type RoomRef struct {
	ID      string `json:"id" yaml:"id"`
	DirName string `json:"dir_name" yaml:"dir_name"`
}

// CompareReport lists the rooms of the current snapshot that the old one lacks.
type CompareReport struct {
	NewRooms    []RoomRef    `json:"new_rooms" yaml:"new_rooms"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// ExtractMapping records the ID, name and status of every room folder in
// chatsDir into table. Records for rooms no longer on disk are kept.
func (s *LCBService) ExtractMapping(chatsDir *Path, table *MappingTable) (*ExtractReport, error) {
	if !chatsDir.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", chatsDir.String())
	}

	rooms, diags, err := s.ScanRooms(chatsDir.String())
	if err != nil {
		return nil, err
	}

	report := &ExtractReport{Added: []string{}, Updated: []string{}, Diagnostics: diags}
	for _, room := range rooms {
		switch table.Upsert(MappingRecord{ID: room.ID, Name: room.Name, Status: room.Status}) {
		case UpsertAdded:
			report.Added = append(report.Added, room.ID)
		case UpsertUpdated:
			report.Updated = append(report.Updated, room.ID)
		default:
			report.Unchanged++
		}
	}

	s.logger.Info("mapping extracted", "added", len(report.Added), "updated", len(report.Updated), "unchanged", report.Unchanged)
	return report, nil
}

// PrefixRooms renames every bare-ID room folder whose ID has a name on
// record to its display form. Folders that already carry a name, and
// folders with no name on record, are left alone.
func (s *LCBService) PrefixRooms(chatsDir *Path, table *MappingTable) (*PrefixReport, error) {
	if !chatsDir.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", chatsDir.String())
	}

	rooms, diags, err := s.ScanRooms(chatsDir.String())
	if err != nil {
		return nil, err
	}

	report := &PrefixReport{Renamed: []RoomRename{}, Diagnostics: diags}
	for _, room := range rooms {
		if !room.IsBare() {
			continue
		}
		rec := table.Get(room.ID)
		if rec == nil || rec.Name == "" {
			s.logger.Debug("no name on record", "room", room.ID)
			continue
		}

		from := filepath.Join(chatsDir.String(), room.DirName)
		toName := RoomDirName(room.ID, rec.Name, rec.Status)
		to := filepath.Join(chatsDir.String(), toName)
		if err := s.fsmgr.Rename(from, to); err != nil {
			kind := DiagIO
			if errors.Is(err, fs.ErrExist) {
				kind = DiagConflict
			}
			s.note(&report.Diagnostics, Diagnostic{Kind: kind, Room: room.ID, Path: from, Detail: err.Error()})
			continue
		}

		s.record(&Action{Kind: ActionRename, Room: room.ID, Source: from, Destination: to})
		s.logger.Info("room prefixed", "room", room.ID, "dir", toName)
		report.Renamed = append(report.Renamed, RoomRename{ID: room.ID, From: room.DirName, To: toName})
	}
	return report, nil
}

// CompareRooms returns the rooms present in current and absent from old,
// matched by ID. The two directories are scanned concurrently.
func (s *LCBService) CompareRooms(current, old *Path) (*CompareReport, error) {
	for _, p := range []*Path{current, old} {
		if !p.IsDir() {
			return nil, fmt.Errorf("path is not a directory: %s", p.String())
		}
	}

	var (
		g                  errgroup.Group
		curRooms, oldRooms []*ChatRoom
		curDiags, oldDiags []Diagnostic
	)
	g.Go(func() error {
		var err error
		curRooms, curDiags, err = s.ScanRooms(current.String())
		return err
	})
	g.Go(func() error {
		var err error
		oldRooms, oldDiags, err = s.ScanRooms(old.String())
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	oldIDs := make(map[string]bool, len(oldRooms))
	for _, r := range oldRooms {
		oldIDs[r.ID] = true
	}

	report := &CompareReport{NewRooms: []RoomRef{}}
	report.Diagnostics = append(report.Diagnostics, curDiags...)
	report.Diagnostics = append(report.Diagnostics, oldDiags...)

	seen := make(map[string]bool)
	for _, r := range curRooms {
		if oldIDs[r.ID] || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		report.NewRooms = append(report.NewRooms, RoomRef{ID: r.ID, DirName: r.DirName})
	}
	sort.Slice(report.NewRooms, func(i, j int) bool { return report.NewRooms[i].ID < report.NewRooms[j].ID })

	s.logger.Info("snapshots compared", "current", len(curRooms), "old", len(oldRooms), "new", len(report.NewRooms))
	return report, nil
}

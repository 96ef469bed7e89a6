package lcb

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Layout of a chats directory.
const (
	MessagesDirName       = "messages"
	ImagesDirName         = "images"
	ThumbnailsDirName     = "thumbnails"
	OriginalImagesDirName = "original_images"

	// MessageIDsDirName is created next to (not inside) the chats directory.
	MessageIDsDirName = "_MessageIDs"

	// ExitedMarker prefixes the folder name of a room the user has left.
	ExitedMarker = "被退出"
)

// BucketDirNames are the classification folders inside a room's messages folder.
var BucketDirNames = []string{ImagesDirName, ThumbnailsDirName, OriginalImagesDirName}

// RoomStatus is the membership state persisted in the mapping table.
type RoomStatus int

const (
	StatusJoined RoomStatus = 1
	StatusExited RoomStatus = 2
)

func (s RoomStatus) String() string {
	switch s {
	case StatusJoined:
		return "joined"
	case StatusExited:
		return "exited"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// roomIDPattern is the platform ID grammar: u, c or r followed by 32 hex digits.
var roomIDPattern = regexp.MustCompile(`^[ucr][0-9a-f]{32}$`)

// roomIDLen is the length of a room ID.
const roomIDLen = 33

// IsRoomID reports whether id follows the room ID grammar.
func IsRoomID(id string) bool {
	return roomIDPattern.MatchString(id)
}

// ChatRoom is a room directory discovered in a chats directory.
type ChatRoom struct {
	ID      string
	Name    string
	Status  RoomStatus
	DirName string
}

// IsBare reports whether the room's directory is named by its ID alone.
func (r *ChatRoom) IsBare() bool {
	return r.DirName == r.ID
}

// ParseRoomDirName extracts the room ID, display name and status from a
// directory name of the form <ID>, <Name>-<ID> or <ExitedMarker>-<Name>-<ID>.
// The name is everything before the last '-' preceding the ID; a leading
// ExitedMarker component sets StatusExited and is stripped from the name.
func ParseRoomDirName(dirName string) (*ChatRoom, error) {
	if IsRoomID(dirName) {
		return &ChatRoom{ID: dirName, Status: StatusJoined, DirName: dirName}, nil
	}

	if len(dirName) < roomIDLen+2 {
		return nil, fmt.Errorf("%w: %q", ErrMalformedID, dirName)
	}
	sep := len(dirName) - roomIDLen - 1
	id := dirName[sep+1:]
	if dirName[sep] != '-' || !IsRoomID(id) {
		return nil, fmt.Errorf("%w: %q", ErrMalformedID, dirName)
	}

	room := &ChatRoom{ID: id, Status: StatusJoined, DirName: dirName}
	prefix := dirName[:sep]
	switch {
	case prefix == ExitedMarker:
		room.Status = StatusExited
	case strings.HasPrefix(prefix, ExitedMarker+"-"):
		room.Status = StatusExited
		room.Name = strings.TrimPrefix(prefix, ExitedMarker+"-")
	default:
		room.Name = prefix
	}
	return room, nil
}

// RoomDirName builds the directory name for a named room.
// An empty name yields the bare ID.
func RoomDirName(id, name string, status RoomStatus) string {
	if name == "" {
		return id
	}
	if status == StatusExited {
		return ExitedMarker + "-" + name + "-" + id
	}
	return name + "-" + id
}

// MessagesDir returns the messages folder of a room directory.
func MessagesDir(chatsDir, roomDirName string) string {
	return filepath.Join(chatsDir, roomDirName, MessagesDirName)
}

// MessageIDsRoot returns the _MessageIDs directory beside chatsDir.
func MessageIDsRoot(chatsDir string) string {
	return filepath.Join(filepath.Dir(filepath.Clean(chatsDir)), MessageIDsDirName)
}

// ScanRooms lists the room directories directly under chatsDir.
// Directories whose names carry no valid room ID are returned as diagnostics.
func (s *LCBService) ScanRooms(chatsDir string) ([]*ChatRoom, []Diagnostic, error) {
	entries, err := s.fsmgr.ReadDir(chatsDir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading chats directory: %w", err)
	}

	var rooms []*ChatRoom
	var diags []Diagnostic
	for _, e := range entries {
		if !e.IsDir {
			continue
		}
		room, err := ParseRoomDirName(e.Name)
		if err != nil {
			s.note(&diags, Diagnostic{
				Kind:   DiagMalformedID,
				Path:   filepath.Join(chatsDir, e.Name),
				Detail: "directory name carries no room id",
			})
			continue
		}
		rooms = append(rooms, room)
	}
	return rooms, diags, nil
}

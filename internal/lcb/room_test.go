package lcb_test

import (
	"errors"
	"reflect"
	"testing"

	"lcb-go/internal/lcb"
	"lcb-go/internal/testutil"
)

func TestParseRoomDirName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dir     string
		want    *lcb.ChatRoom
		wantErr bool
	}{
		{
			dir:  roomA,
			want: &lcb.ChatRoom{ID: roomA, Status: lcb.StatusJoined, DirName: roomA},
		},
		{
			dir:  "Stella-" + roomB,
			want: &lcb.ChatRoom{ID: roomB, Name: "Stella", Status: lcb.StatusJoined, DirName: "Stella-" + roomB},
		},
		{
			dir:  "被退出-旅行團-" + roomA,
			want: &lcb.ChatRoom{ID: roomA, Name: "旅行團", Status: lcb.StatusExited, DirName: "被退出-旅行團-" + roomA},
		},
		{
			dir:  "被退出-" + roomA,
			want: &lcb.ChatRoom{ID: roomA, Status: lcb.StatusExited, DirName: "被退出-" + roomA},
		},
		{
			dir:  "a-b-c-" + roomC,
			want: &lcb.ChatRoom{ID: roomC, Name: "a-b-c", Status: lcb.StatusJoined, DirName: "a-b-c-" + roomC},
		},
		{dir: "random folder", wantErr: true},
		{dir: "x" + roomA, wantErr: true},
		{dir: "Name_" + roomA, wantErr: true},
		{dir: "Name-" + roomA[:32], wantErr: true},
		{dir: "Name-C7ACF23B06AD3E4C029DC5EF6D6E88444", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			got, err := lcb.ParseRoomDirName(tt.dir)
			if tt.wantErr {
				if !errors.Is(err, lcb.ErrMalformedID) {
					t.Errorf("ParseRoomDirName() error = %v, want ErrMalformedID", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRoomDirName() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseRoomDirName() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRoomDirName_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status lcb.RoomStatus
		want   string
	}{
		{"", lcb.StatusJoined, roomA},
		{"Stella", lcb.StatusJoined, "Stella-" + roomA},
		{"旅行團", lcb.StatusExited, "被退出-旅行團-" + roomA},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := lcb.RoomDirName(roomA, tt.name, tt.status)
			if got != tt.want {
				t.Fatalf("RoomDirName() = %q, want %q", got, tt.want)
			}
			room, err := lcb.ParseRoomDirName(got)
			if err != nil {
				t.Fatalf("ParseRoomDirName(%q) error = %v", got, err)
			}
			if room.ID != roomA || room.Name != tt.name {
				t.Errorf("round trip = %+v", room)
			}
			if tt.name != "" && room.Status != tt.status {
				t.Errorf("Status = %v, want %v", room.Status, tt.status)
			}
		})
	}
}

func TestMessageIDsRoot(t *testing.T) {
	t.Parallel()

	for _, chats := range []string{"/backup/chats", "/backup/chats/"} {
		if got := lcb.MessageIDsRoot(chats); got != "/backup/_MessageIDs" {
			t.Errorf("MessageIDsRoot(%q) = %q", chats, got)
		}
	}
}

func TestLCBService_ScanRooms(t *testing.T) {
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddDirectory("/chats/" + roomA)
	fsmgr.AddDirectory("/chats/Stella-" + roomB)
	fsmgr.AddDirectory("/chats/misc")
	fsmgr.AddFile("/chats/"+roomC, nil)
	svc := newTestService(t, fsmgr)

	rooms, diags, err := svc.ScanRooms("/chats")
	if err != nil {
		t.Fatalf("ScanRooms() error = %v", err)
	}

	var ids []string
	for _, r := range rooms {
		ids = append(ids, r.ID)
	}
	if want := []string{roomB, roomA}; !reflect.DeepEqual(ids, want) {
		t.Errorf("rooms = %v, want %v", ids, want)
	}
	if len(diags) != 1 || diags[0].Kind != lcb.DiagMalformedID || diags[0].Path != "/chats/misc" {
		t.Errorf("diagnostics = %+v", diags)
	}
}

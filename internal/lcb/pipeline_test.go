package lcb_test

import (
	"testing"

	"lcb-go/internal/lcb"
	"lcb-go/internal/testutil"
)

func TestLCBService_Run(t *testing.T) {
	t.Run("runs every requested step in order", func(t *testing.T) {
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddDirectory("/backup/chats/" + roomB + "/messages")
		fsmgr.AddFile("/backup/old/"+roomA+"/messages/1", jpegHead)
		fsmgr.AddFile("/src/"+roomB+"/messages/8552", jpegHead)
		fsmgr.AddFile("/src/"+roomB+"/messages/8552.thumb", jpegHead)
		fsmgr.AddFile("/src/"+roomB+"/messages/8553.thumb", jpegHead)
		table := lcb.NewMappingTable()
		table.Put(lcb.MappingRecord{ID: roomB, Name: "Stella", Status: lcb.StatusJoined})
		svc := newTestService(t, fsmgr)

		report, err := svc.Run(mustResolve(t, fsmgr, "/backup/chats"), lcb.PipelineOptions{
			Mapping:    table,
			Source:     mustResolve(t, fsmgr, "/src"),
			Old:        mustResolve(t, fsmgr, "/backup/old"),
			MessageIDs: true,
		})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		msgDir := "/backup/chats/Stella-" + roomB + "/messages"
		for _, p := range []string{
			msgDir + "/images/8552.jpg",
			msgDir + "/thumbnails/8552.thumb.jpg",
			msgDir + "/thumbnails/8553.thumb.jpg",
			"/backup/_MessageIDs/Stella-" + roomB + "/8553.thumb.jpg",
		} {
			if fsmgr.File(p) == nil {
				t.Errorf("expected %s to exist", p)
			}
		}
		if len(report.Prefix.Renamed) != 1 {
			t.Errorf("prefix renamed %d rooms, want 1", len(report.Prefix.Renamed))
		}
		if len(report.Compare.NewRooms) != 1 || report.Compare.NewRooms[0].ID != roomB {
			t.Errorf("compare = %+v", report.Compare.NewRooms)
		}
		if report.Sync.Rooms[0].Copied != 3 {
			t.Errorf("sync copied %d, want 3", report.Sync.Rooms[0].Copied)
		}
	})

	t.Run("classification alone", func(t *testing.T) {
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddFile("/chats/"+roomA+"/messages/1", pngHead)
		svc := newTestService(t, fsmgr)

		report, err := svc.Run(mustResolve(t, fsmgr, "/chats"), lcb.PipelineOptions{})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if report.Prefix != nil || report.Sync != nil || report.Compare != nil || report.MessageIDs != nil {
			t.Errorf("unrequested steps ran: %+v", report)
		}
		if report.Classify.Rooms[0].Moved != 1 {
			t.Errorf("Moved = %d, want 1", report.Classify.Rooms[0].Moved)
		}
	})
}

package call

import (
	"testing"

	"github.com/BioHazard786/Wavecall/internal/rtc"
	"github.com/BioHazard786/Wavecall/internal/signaling"
)

func TestRosterKeepsJoinOrder(t *testing.T) {
	r := NewRoster(nil)
	r.AddLocal("alice", nil, true, true)
	r.Ensure("carol")
	r.Ensure("bob")

	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot size = %d", len(snap))
	}
	names := []string{snap[0].Name, snap[1].Name, snap[2].Name}
	want := []string{"alice", "carol", "bob"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("order = %v, want %v", names, want)
		}
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	r := NewRoster(nil)
	if !r.Ensure("bob") {
		t.Error("first Ensure should create")
	}
	if r.Ensure("bob") {
		t.Error("second Ensure should not create")
	}
	if r.Len() != 1 {
		t.Errorf("len = %d", r.Len())
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	r := NewRoster(nil)
	r.Ensure("bob")

	snap := r.Snapshot()
	snap[0].AudioEnabled = false

	p, _ := r.Get("bob")
	if !p.AudioEnabled {
		t.Error("mutating a snapshot leaked into the roster")
	}
}

func TestOnChangeFiresPerMutation(t *testing.T) {
	var calls int
	r := NewRoster(func([]Participant) { calls++ })

	r.Ensure("bob")
	r.SetMediaState("bob", signaling.MediaAudio, false)
	r.Remove("bob")

	if calls != 3 {
		t.Errorf("onChange fired %d times, want 3", calls)
	}
}

func TestAddTrackGroupsByStream(t *testing.T) {
	r := NewRoster(nil)
	r.Ensure("bob")

	audio := &fakeTrack{id: "a", kind: rtc.TrackAudio}
	video := &fakeTrack{id: "v", kind: rtc.TrackVideo}
	r.AddTrack("bob", signaling.PurposePrimary, audio, "stream-1")
	r.AddTrack("bob", signaling.PurposePrimary, video, "stream-1")

	p, _ := r.Get("bob")
	if p.PrimaryStream == nil || len(p.PrimaryStream.Tracks) != 2 {
		t.Fatalf("primary stream = %+v", p.PrimaryStream)
	}
	if p.ScreenStream != nil {
		t.Error("screen stream should be empty")
	}

	screen := &fakeTrack{id: "s", kind: rtc.TrackVideo}
	r.AddTrack("bob", signaling.PurposeScreen, screen, "stream-2")
	p, _ = r.Get("bob")
	if p.ScreenStream == nil || len(p.ScreenStream.Tracks) != 1 {
		t.Fatalf("screen stream = %+v", p.ScreenStream)
	}
}

func TestAddTrackForUnknownParticipantIgnored(t *testing.T) {
	r := NewRoster(nil)
	r.AddTrack("ghost", signaling.PurposePrimary, &fakeTrack{}, "stream-1")
	if r.Len() != 0 {
		t.Error("track for unknown participant created an entry")
	}
}

func TestSharingStopClearsScreenStream(t *testing.T) {
	r := NewRoster(nil)
	r.Ensure("bob")
	r.SetSharing("bob", true)
	r.AddTrack("bob", signaling.PurposeScreen, &fakeTrack{}, "stream-2")

	if sharer, ok := r.Sharer(); !ok || sharer != "bob" {
		t.Fatalf("sharer = %s, %v", sharer, ok)
	}

	r.SetSharing("bob", false)
	p, _ := r.Get("bob")
	if p.ScreenStream != nil || p.SharingScreen {
		t.Error("screen state survived stop")
	}
	if _, ok := r.Sharer(); ok {
		t.Error("sharer still reported")
	}
}

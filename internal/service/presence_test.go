package service

import (
	"testing"
	"time"
)

func TestEnterIsIdempotent(t *testing.T) {
	f := newFixture(t, time.Minute, time.Minute)
	a := f.addUser(t, "alice")
	viewer := f.addUser(t, "carol")
	room := f.addWaitingRoom(t, a)

	for i := 0; i < 3; i++ {
		if err := f.presence.Enter(room.ID, viewer); err != nil {
			t.Fatalf("enter #%d: %v", i+1, err)
		}
	}

	reloaded := f.reload(t, room.ID)
	if reloaded.CurrentParticipants != 1 {
		t.Fatalf("expected 1 participant, got %d", reloaded.CurrentParticipants)
	}
	if reloaded.TotalVisits != 1 {
		t.Fatalf("totalVisits should count the first entry only, got %d", reloaded.TotalVisits)
	}
}

func TestReenterReactivatesSameRecord(t *testing.T) {
	f := newFixture(t, time.Minute, time.Minute)
	a := f.addUser(t, "alice")
	viewer := f.addUser(t, "carol")
	room := f.addWaitingRoom(t, a)

	if err := f.presence.Enter(room.ID, viewer); err != nil {
		t.Fatalf("enter: %v", err)
	}
	if err := f.presence.Leave(room.ID, viewer); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if err := f.presence.Enter(room.ID, viewer); err != nil {
		t.Fatalf("re-enter: %v", err)
	}

	reloaded := f.reload(t, room.ID)
	if reloaded.CurrentParticipants != 1 {
		t.Fatalf("expected 1 active participant, got %d", reloaded.CurrentParticipants)
	}
	// 重新進入不算新的造訪
	if reloaded.TotalVisits != 1 {
		t.Fatalf("re-entry must not bump totalVisits, got %d", reloaded.TotalVisits)
	}

	participant, err := f.parts.FindByUserAndRoom(viewer.ID, room.ID)
	if err != nil {
		t.Fatalf("find participant: %v", err)
	}
	if !participant.Active || participant.ExitedAt != nil {
		t.Fatalf("record should be reactivated: %+v", participant)
	}
}

func TestLeaveStampsExitTime(t *testing.T) {
	f := newFixture(t, time.Minute, time.Minute)
	a := f.addUser(t, "alice")
	viewer := f.addUser(t, "carol")
	room := f.addWaitingRoom(t, a)

	if err := f.presence.Enter(room.ID, viewer); err != nil {
		t.Fatalf("enter: %v", err)
	}
	if err := f.presence.Leave(room.ID, viewer); err != nil {
		t.Fatalf("leave: %v", err)
	}

	participant, err := f.parts.FindByUserAndRoom(viewer.ID, room.ID)
	if err != nil {
		t.Fatalf("find participant: %v", err)
	}
	if participant.Active {
		t.Fatal("participant should be inactive after leave")
	}
	if participant.ExitedAt == nil {
		t.Fatal("leave must stamp the exit time")
	}
	if reloaded := f.reload(t, room.ID); reloaded.CurrentParticipants != 0 {
		t.Fatalf("expected 0 participants, got %d", reloaded.CurrentParticipants)
	}
}

func TestLeaveWithoutEnterIsNoop(t *testing.T) {
	f := newFixture(t, time.Minute, time.Minute)
	a := f.addUser(t, "alice")
	viewer := f.addUser(t, "carol")
	room := f.addWaitingRoom(t, a)

	if err := f.presence.Leave(room.ID, viewer); err != nil {
		t.Fatalf("leave without enter should be a no-op, got %v", err)
	}
	if events := f.broadcaster.byTopic(ParticipantsTopic(room.ID)); len(events) != 0 {
		t.Fatalf("no-op leave must not broadcast, got %d events", len(events))
	}
}

func TestDebaterEntryDoesNotCountAsVisit(t *testing.T) {
	f := newFixture(t, time.Minute, time.Minute)
	a := f.addUser(t, "alice")
	room := f.addWaitingRoom(t, a)

	if err := f.presence.Enter(room.ID, a); err != nil {
		t.Fatalf("enter: %v", err)
	}

	reloaded := f.reload(t, room.ID)
	if reloaded.TotalVisits != 0 {
		t.Fatalf("debater entry must not count as a visit, got %d", reloaded.TotalVisits)
	}
	if reloaded.CurrentParticipants != 1 {
		t.Fatalf("debater still counts as present, got %d", reloaded.CurrentParticipants)
	}
}

func TestParticipantCountBroadcastOnEveryChange(t *testing.T) {
	f := newFixture(t, time.Minute, time.Minute)
	a := f.addUser(t, "alice")
	viewer := f.addUser(t, "carol")
	viewer2 := f.addUser(t, "dave")
	room := f.addWaitingRoom(t, a)

	f.presence.Enter(room.ID, viewer)
	f.presence.Enter(room.ID, viewer2)
	f.presence.Leave(room.ID, viewer)

	events := f.broadcaster.byTopic(ParticipantsTopic(room.ID))
	if len(events) != 3 {
		t.Fatalf("expected 3 participant broadcasts, got %d", len(events))
	}

	last := events[2].payload.(map[string]interface{})
	if last["current_participants"] != 1 {
		t.Fatalf("final broadcast should report 1, got %v", last["current_participants"])
	}
}

package store

import (
	"errors"
	"testing"
	"time"

	"github.com/roach88/neko/internal/domain"
)

func TestAddEvent_Basic(t *testing.T) {
	s := createTestStore(t)
	ev := createTestEvent("N001-2026", time.Hour)
	ev.Image = "https://example.com/prize.png"
	mustAddEvent(t, s, ev)

	got, err := s.GetEvent(t.Context(), ev.ID)
	if err != nil {
		t.Fatalf("GetEvent() failed: %v", err)
	}
	if got != ev {
		t.Errorf("GetEvent() = %+v, want %+v", got, ev)
	}
}

func TestAddEvent_Duplicate(t *testing.T) {
	s := createTestStore(t)
	mustAddEvent(t, s, createTestEvent("N001-2026", time.Hour))

	err := s.AddEvent(t.Context(), createTestEvent("N001-2026", 2*time.Hour))
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("AddEvent() duplicate error = %v, want ErrDuplicate", err)
	}
}

func TestAddEntry_Idempotent(t *testing.T) {
	s := createTestStore(t)
	mustAddEvent(t, s, createTestEvent("N001-2026", time.Hour))

	created, err := s.AddEntry(t.Context(), "N001-2026", "alice")
	if err != nil {
		t.Fatalf("first AddEntry() failed: %v", err)
	}
	if !created {
		t.Error("first AddEntry() should report created")
	}

	created, err = s.AddEntry(t.Context(), "N001-2026", "alice")
	if err != nil {
		t.Fatalf("second AddEntry() failed: %v", err)
	}
	if created {
		t.Error("second AddEntry() should report already entered")
	}

	n, err := s.CountEntries(t.Context(), "N001-2026")
	if err != nil {
		t.Fatalf("CountEntries() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("entry rows = %d, want 1", n)
	}
}

func TestAddEntry_UnknownEvent(t *testing.T) {
	s := createTestStore(t)

	_, err := s.AddEntry(t.Context(), "N404-2026", "alice")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("AddEntry() unknown event error = %v, want ErrNotFound", err)
	}
}

func TestRemoveEntry(t *testing.T) {
	s := createTestStore(t)
	mustAddEvent(t, s, createTestEvent("N001-2026", time.Hour))
	if _, err := s.AddEntry(t.Context(), "N001-2026", "alice"); err != nil {
		t.Fatalf("AddEntry() failed: %v", err)
	}

	removed, err := s.RemoveEntry(t.Context(), "N001-2026", "alice")
	if err != nil || !removed {
		t.Fatalf("RemoveEntry() = %v, %v; want true, nil", removed, err)
	}

	removed, err = s.RemoveEntry(t.Context(), "N001-2026", "alice")
	if err != nil || removed {
		t.Errorf("second RemoveEntry() = %v, %v; want false, nil", removed, err)
	}
}

func TestDeleteEvent_CascadesEntries(t *testing.T) {
	s := createTestStore(t)
	mustAddEvent(t, s, createTestEvent("N001-2026", time.Hour))
	for _, p := range []string{"alice", "bob"} {
		if _, err := s.AddEntry(t.Context(), "N001-2026", p); err != nil {
			t.Fatalf("AddEntry(%s) failed: %v", p, err)
		}
	}

	if err := s.DeleteEvent(t.Context(), "N001-2026"); err != nil {
		t.Fatalf("DeleteEvent() failed: %v", err)
	}

	if _, err := s.GetEvent(t.Context(), "N001-2026"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetEvent() after delete error = %v, want ErrNotFound", err)
	}
	entrants, err := s.ListEntries(t.Context(), "N001-2026")
	if err != nil {
		t.Fatalf("ListEntries() failed: %v", err)
	}
	if len(entrants) != 0 {
		t.Errorf("entries after delete = %v, want none", entrants)
	}
}

func TestDeleteEvent_NotFound(t *testing.T) {
	s := createTestStore(t)

	if err := s.DeleteEvent(t.Context(), "N404-2026"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteEvent() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateEvent_Partial(t *testing.T) {
	s := createTestStore(t)
	ev := createTestEvent("N001-2026", time.Hour)
	mustAddEvent(t, s, ev)

	loc := domain.Location{Channel: "chan-1", Message: "msg-new"}
	later := ev.EndTime.Add(30 * time.Minute)
	got, err := s.UpdateEvent(t.Context(), ev.ID, domain.EventPatch{Location: &loc, EndTime: &later})
	if err != nil {
		t.Fatalf("UpdateEvent() failed: %v", err)
	}

	want := ev
	want.Location = loc
	want.EndTime = later
	if got != want {
		t.Errorf("UpdateEvent() = %+v, want %+v", got, want)
	}

	stored, err := s.GetEvent(t.Context(), ev.ID)
	if err != nil {
		t.Fatalf("GetEvent() failed: %v", err)
	}
	if stored != want {
		t.Errorf("stored = %+v, want %+v", stored, want)
	}
}

func TestUpdateEvent_EndTimeNeverDecreases(t *testing.T) {
	s := createTestStore(t)
	ev := createTestEvent("N001-2026", time.Hour)
	mustAddEvent(t, s, ev)

	earlier := ev.EndTime.Add(-time.Minute)
	_, err := s.UpdateEvent(t.Context(), ev.ID, domain.EventPatch{EndTime: &earlier})
	if !errors.Is(err, ErrEndTimeDecrease) {
		t.Fatalf("UpdateEvent() error = %v, want ErrEndTimeDecrease", err)
	}

	stored, _ := s.GetEvent(t.Context(), ev.ID)
	if !stored.EndTime.Equal(ev.EndTime) {
		t.Errorf("end_time changed to %v after rejected update", stored.EndTime)
	}
}

func TestUpdateEvent_NotFound(t *testing.T) {
	s := createTestStore(t)
	title := "x"

	_, err := s.UpdateEvent(t.Context(), "N404-2026", domain.EventPatch{Title: &title})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateEvent() error = %v, want ErrNotFound", err)
	}
}

func TestNextEventSeq_Monotonic(t *testing.T) {
	s := createTestStore(t)

	for want := 1; want <= 3; want++ {
		got, err := s.NextEventSeq(t.Context(), 2026)
		if err != nil {
			t.Fatalf("NextEventSeq() failed: %v", err)
		}
		if got != want {
			t.Errorf("NextEventSeq() = %d, want %d", got, want)
		}
	}

	// Other years have their own counter.
	got, err := s.NextEventSeq(t.Context(), 2027)
	if err != nil {
		t.Fatalf("NextEventSeq(2027) failed: %v", err)
	}
	if got != 1 {
		t.Errorf("NextEventSeq(2027) = %d, want 1", got)
	}
}

func TestNextEventSeq_NotReusedAfterDelete(t *testing.T) {
	s := createTestStore(t)

	first, _ := s.NextEventSeq(t.Context(), 2026)
	mustAddEvent(t, s, createTestEvent("N001-2026", time.Hour))
	if err := s.DeleteEvent(t.Context(), "N001-2026"); err != nil {
		t.Fatalf("DeleteEvent() failed: %v", err)
	}

	second, err := s.NextEventSeq(t.Context(), 2026)
	if err != nil {
		t.Fatalf("NextEventSeq() failed: %v", err)
	}
	if second <= first {
		t.Errorf("sequence reused: first=%d second=%d", first, second)
	}
}

func TestNextEventSeq_FloorFromExistingRows(t *testing.T) {
	s := createTestStore(t)
	// Rows written before the counter existed.
	mustAddEvent(t, s, createTestEvent("N001-2026", time.Hour))
	mustAddEvent(t, s, createTestEvent("N002-2026", time.Hour))
	mustAddEvent(t, s, createTestEvent("N001-2025", time.Hour))

	got, err := s.NextEventSeq(t.Context(), 2026)
	if err != nil {
		t.Fatalf("NextEventSeq() failed: %v", err)
	}
	if got != 3 {
		t.Errorf("NextEventSeq() = %d, want 3", got)
	}
}

func TestWriteRecord_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ev := createTestEvent("N001-2026", 0)
	rec := domain.NewArchiveRecord(ev, []string{"alice", "bob"}, []string{"bob"}, testNow)

	if err := s.WriteRecord(t.Context(), rec); err != nil {
		t.Fatalf("first WriteRecord() failed: %v", err)
	}

	second := rec
	second.Winners = []string{"alice"}
	if err := s.WriteRecord(t.Context(), second); err != nil {
		t.Fatalf("second WriteRecord() failed: %v", err)
	}

	got, err := s.ReadRecord(t.Context(), ev.ID)
	if err != nil {
		t.Fatalf("ReadRecord() failed: %v", err)
	}
	if len(got.Winners) != 1 || got.Winners[0] != "bob" {
		t.Errorf("archived winners = %v, want first write [bob]", got.Winners)
	}
	if len(got.Entrants) != 2 {
		t.Errorf("archived entrants = %v, want 2", got.Entrants)
	}
}

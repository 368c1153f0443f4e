package session

import (
	"math"
	"testing"
)

func TestTracker_Percentage(t *testing.T) {
	tr := NewTracker(2.0)
	tr.Start()

	if got := tr.Percentage(); got != 0 {
		t.Errorf("Fresh tracker percentage: %v, want 0", got)
	}

	tr.AddChunk(true)
	tr.AddChunk(true)
	tr.AddChunk(false)
	tr.AddChunk(false)

	if got := tr.Percentage(); math.Abs(got-50) > 1e-9 {
		t.Errorf("Percentage after 2/4 chunks: %v, want 50", got)
	}
}

func TestTracker_Snapshot(t *testing.T) {
	tr := NewTracker(2.0)
	tr.Start()
	tr.AddChunk(true)
	tr.AddLine(SpeakerYou, "привет", 0.8)

	snap := tr.Snapshot()
	if !snap.Tracking {
		t.Error("Snapshot should report tracking")
	}
	if snap.YouSeconds != 2 || snap.TotalSeconds != 2 {
		t.Errorf("Snapshot seconds: you=%v total=%v, want 2/2", snap.YouSeconds, snap.TotalSeconds)
	}
	if len(snap.History) != 1 || snap.History[0] != 100 {
		t.Errorf("History %v, want [100]", snap.History)
	}
	if len(snap.Lines) != 1 || snap.Lines[0].Speaker != SpeakerYou {
		t.Errorf("Lines %v", snap.Lines)
	}

	// Снимок - копия, мутации трекера его не меняют
	tr.AddChunk(false)
	if len(snap.History) != 1 {
		t.Error("Snapshot history changed after AddChunk")
	}
}

func TestTracker_Finish(t *testing.T) {
	tr := NewTracker(3.0)
	tr.Start()
	tr.AddChunk(true)
	tr.AddChunk(false)
	tr.AddChunk(false)

	rec := tr.Finish()
	if rec.ID == "" {
		t.Error("Record has no ID")
	}
	if rec.TotalSeconds != 9 || rec.YouSeconds != 3 {
		t.Errorf("Record seconds: you=%v total=%v, want 3/9", rec.YouSeconds, rec.TotalSeconds)
	}
	if math.Abs(rec.Percentage-100.0/3.0) > 1e-9 {
		t.Errorf("Record percentage %v, want %v", rec.Percentage, 100.0/3.0)
	}
	if rec.EndedAt.Before(rec.StartedAt) {
		t.Error("EndedAt before StartedAt")
	}

	if tr.Snapshot().Tracking {
		t.Error("Tracker still reports tracking after Finish")
	}
}

func TestTracker_StartResets(t *testing.T) {
	tr := NewTracker(2.0)
	tr.Start()
	tr.AddChunk(true)
	tr.Start()

	snap := tr.Snapshot()
	if snap.TotalSeconds != 0 || len(snap.History) != 0 {
		t.Errorf("Start did not reset: %+v", snap)
	}
}

func TestManager_SaveLoadList(t *testing.T) {
	mgr := NewManager(t.TempDir())

	tr := NewTracker(2.0)
	tr.Start()
	tr.AddChunk(true)
	rec := tr.Finish()

	if err := mgr.Save(rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := mgr.Load(rec.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.ID != rec.ID || loaded.YouSeconds != rec.YouSeconds {
		t.Errorf("Loaded record differs: %+v vs %+v", loaded, rec)
	}

	ids, err := mgr.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != rec.ID {
		t.Errorf("List = %v, want [%s]", ids, rec.ID)
	}
}

func TestManager_ListEmptyDir(t *testing.T) {
	mgr := NewManager(t.TempDir() + "/does-not-exist")
	ids, err := mgr.List()
	if err != nil {
		t.Fatalf("List on missing dir failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("Expected no sessions, got %v", ids)
	}
}

func TestManager_SaveInvalid(t *testing.T) {
	mgr := NewManager(t.TempDir())
	if err := mgr.Save(nil); err == nil {
		t.Error("Expected error for nil record")
	}
	if err := mgr.Save(&Record{}); err == nil {
		t.Error("Expected error for record without ID")
	}
}

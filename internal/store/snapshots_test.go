package store

import "testing"

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateAndGetSnapshot(t *testing.T) {
	db := openTestDB(t)

	id, err := db.CreateSnapshot("calls.json", "1.0.0")
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	if id == 0 {
		t.Fatal("expected a nonzero snapshot id")
	}

	latest, err := db.GetLatestSnapshot()
	if err != nil {
		t.Fatalf("GetLatestSnapshot: %v", err)
	}
	if latest == nil {
		t.Fatal("expected a snapshot")
	}
	if latest.ID != id || latest.Source != "calls.json" || latest.Version != "1.0.0" {
		t.Errorf("got %+v", latest)
	}
	if latest.TakenAt.IsZero() {
		t.Error("taken_at should round-trip")
	}
}

func TestGetLatestSnapshot_Empty(t *testing.T) {
	db := openTestDB(t)
	latest, err := db.GetLatestSnapshot()
	if err != nil {
		t.Fatalf("GetLatestSnapshot: %v", err)
	}
	if latest != nil {
		t.Errorf("expected nil on an empty database, got %+v", latest)
	}
}

func TestGetSnapshotN(t *testing.T) {
	db := openTestDB(t)

	first, _ := db.CreateSnapshot("a.json", "dev")
	second, _ := db.CreateSnapshot("b.json", "dev")

	latest, err := db.GetSnapshotN(1)
	if err != nil || latest == nil || latest.ID != second {
		t.Fatalf("GetSnapshotN(1) = %+v, %v; want id %d", latest, err, second)
	}
	previous, err := db.GetSnapshotN(2)
	if err != nil || previous == nil || previous.ID != first {
		t.Fatalf("GetSnapshotN(2) = %+v, %v; want id %d", previous, err, first)
	}
	missing, err := db.GetSnapshotN(3)
	if err != nil || missing != nil {
		t.Errorf("GetSnapshotN(3) = %+v, %v; want nil", missing, err)
	}
}

func TestStoryScoresRoundTrip(t *testing.T) {
	db := openTestDB(t)
	snapID, _ := db.CreateSnapshot("calls.json", "dev")

	scores := []StoryScore{
		{SnapshotID: snapID, Story: "token-balance", HealthScore: 62.5, Calls: 40, FlaggedCalls: 12, TotalCost: 4.20, WastedCost: 1.10},
		{SnapshotID: snapID, Story: "cost", HealthScore: 88, Calls: 40, FlaggedCalls: 3, TotalCost: 4.20, WastedCost: 0.20},
	}
	for i := range scores {
		if err := db.InsertStoryScore(&scores[i]); err != nil {
			t.Fatalf("InsertStoryScore: %v", err)
		}
	}

	got, err := db.StoryScoresForSnapshot(snapID)
	if err != nil {
		t.Fatalf("StoryScoresForSnapshot: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d scores, want 2", len(got))
	}
	// Ordered by story name.
	if got[0].Story != "cost" || got[1].Story != "token-balance" {
		t.Errorf("order = [%s %s]", got[0].Story, got[1].Story)
	}
	if got[1].HealthScore != 62.5 || got[1].FlaggedCalls != 12 {
		t.Errorf("token-balance score round-tripped wrong: %+v", got[1])
	}
}

func TestInsertOperationScore(t *testing.T) {
	db := openTestDB(t)
	snapID, _ := db.CreateSnapshot("calls.json", "dev")

	err := db.InsertOperationScore(&OperationScore{
		SnapshotID:    snapID,
		Story:         "token-balance",
		Operation:     "summarize",
		AgentName:     "support-bot",
		HealthScore:   35,
		Calls:         10,
		CriticalCalls: 4,
		WarningCalls:  2,
		TotalCost:     1.25,
	})
	if err != nil {
		t.Fatalf("InsertOperationScore: %v", err)
	}
}

func TestCompareSnapshots(t *testing.T) {
	db := openTestDB(t)

	prev, _ := db.CreateSnapshot("monday.json", "dev")
	curr, _ := db.CreateSnapshot("tuesday.json", "dev")

	_ = db.InsertStoryScore(&StoryScore{SnapshotID: prev, Story: "token-balance", HealthScore: 60})
	_ = db.InsertStoryScore(&StoryScore{SnapshotID: prev, Story: "cost", HealthScore: 90})
	_ = db.InsertStoryScore(&StoryScore{SnapshotID: curr, Story: "token-balance", HealthScore: 72})
	// "latency" only exists in the current snapshot; deltas need both ends.
	_ = db.InsertStoryScore(&StoryScore{SnapshotID: curr, Story: "latency", HealthScore: 80})

	deltas, err := db.CompareSnapshots(prev, curr)
	if err != nil {
		t.Fatalf("CompareSnapshots: %v", err)
	}
	if len(deltas) != 1 {
		t.Fatalf("got %d deltas, want 1: %+v", len(deltas), deltas)
	}
	d := deltas[0]
	if d.Story != "token-balance" || d.Previous != 60 || d.Current != 72 || d.Delta != 12 {
		t.Errorf("delta = %+v", d)
	}
}

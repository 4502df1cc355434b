package calllog

import (
	"testing"
	"time"

	"github.com/dbehnke/gofax/internal/t30"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(Config{Path: ":memory:"}, nil)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateAndFetchCallRecord(t *testing.T) {
	db := openTestDB(t)
	repo := db.Repository()

	started := time.Now()
	rec := &CallRecord{
		StartedAt:      started,
		EndedAt:        started.Add(90 * time.Second),
		Role:           "answer",
		RemoteIdent:    "ACME FAX",
		CompletionCode: int(t30.CompletionOK),
		CompletionText: t30.CompletionOK.String(),
		PagesReceived:  3,
		ECMUsed:        true,
		FinalModem:     "V17_14400",
	}
	if err := repo.Create(rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ID == 0 {
		t.Fatal("expected ID to be assigned")
	}

	got, err := repo.ByID(rec.ID)
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if got.RemoteIdent != "ACME FAX" || got.PagesReceived != 3 {
		t.Errorf("got = %+v", got)
	}
	if !got.Successful() {
		t.Error("expected Successful()")
	}
	if got.Duration() != 90*time.Second {
		t.Errorf("Duration() = %v, want 90s", got.Duration())
	}
}

func TestAddPageAndListPages(t *testing.T) {
	db := openTestDB(t)
	repo := db.Repository()

	rec := &CallRecord{StartedAt: time.Now(), Role: "call"}
	if err := repo.Create(rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for i := 1; i <= 2; i++ {
		page := &PageRecord{
			CallRecordID:  rec.ID,
			PageNumber:    i,
			Quality:       "GOOD",
			Compression:   "2D",
			TransferredAt: time.Now(),
		}
		if err := repo.AddPage(page); err != nil {
			t.Fatalf("AddPage %d: %v", i, err)
		}
	}

	pages, err := repo.Pages(rec.ID)
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	if len(pages) != 2 || pages[0].PageNumber != 1 || pages[1].PageNumber != 2 {
		t.Errorf("pages = %+v", pages)
	}
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	db := openTestDB(t)
	repo := db.Repository()

	base := time.Now()
	for i := 0; i < 3; i++ {
		rec := &CallRecord{StartedAt: base.Add(time.Duration(i) * time.Minute), Role: "call"}
		if err := repo.Create(rec); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}

	recs, err := repo.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("len = %d, want 3", len(recs))
	}
	if !recs[0].StartedAt.After(recs[1].StartedAt) {
		t.Errorf("expected newest first: %v vs %v", recs[0].StartedAt, recs[1].StartedAt)
	}
}

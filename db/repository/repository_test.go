package repository

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/agnosto/fbtweeter/db/models"
)

func ids(records []models.PostRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func equalIDs(got []models.PostRecord, want ...string) bool {
	g := ids(got)
	if len(g) != len(want) {
		return false
	}
	for i := range g {
		if g[i] != want[i] {
			return false
		}
	}
	return true
}

// testRepository runs the same checks against any backend.
func testRepository(t *testing.T, repo PostRepository) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	base := time.Date(2017, 9, 1, 12, 0, 0, 0, time.UTC)
	seed := []models.PostRecord{
		{ID: "new", Text: "c", ImageURL: "https://img/new", CreatedTime: base.Add(30 * time.Minute)},
		{ID: "old", Text: "a", ImageURL: "https://img/old", CreatedTime: base.Add(10 * time.Minute)},
		{ID: "mid", Text: "b", ImageURL: "https://img/mid", CreatedTime: base.Add(20 * time.Minute)},
		{ID: "done", Text: "d", ImageURL: "https://img/done", CreatedTime: base, Published: true},
	}

	if got, err := repo.FindByIDs(ctx, nil); err != nil || len(got) != 0 {
		t.Fatalf("FindByIDs(nil) = %v, %v", got, err)
	}
	if err := repo.InsertMany(ctx, seed); err != nil {
		t.Fatalf("InsertMany: %v", err)
	}

	found, err := repo.FindByIDs(ctx, []string{"old", "missing", "done"})
	if err != nil {
		t.Fatalf("FindByIDs: %v", err)
	}
	sort.Slice(found, func(i, j int) bool { return found[i].ID < found[j].ID })
	if !equalIDs(found, "done", "old") {
		t.Fatalf("FindByIDs returned %v, want [done old]", ids(found))
	}
	if !found[1].CreatedTime.Equal(seed[1].CreatedTime) || found[1].ImageURL != "https://img/old" || found[1].Published {
		t.Errorf("record did not round-trip: %+v", found[1])
	}

	pending, err := repo.FindUnpublishedOldest(ctx, 2)
	if err != nil {
		t.Fatalf("FindUnpublishedOldest: %v", err)
	}
	if !equalIDs(pending, "old", "mid") {
		t.Fatalf("pending = %v, want [old mid]", ids(pending))
	}

	if err := repo.MarkPublished(ctx, "old"); err != nil {
		t.Fatalf("MarkPublished: %v", err)
	}
	pending, err = repo.FindUnpublishedOldest(ctx, 10)
	if err != nil {
		t.Fatalf("FindUnpublishedOldest: %v", err)
	}
	if !equalIDs(pending, "mid", "new") {
		t.Fatalf("pending after publish = %v, want [mid new]", ids(pending))
	}
	if got, _ := repo.FindByIDs(ctx, []string{"old"}); len(got) != 1 || !got[0].Published {
		t.Errorf("old not marked published: %+v", got)
	}

	if err := repo.MarkPublished(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkPublished(missing) = %v, want ErrNotFound", err)
	}
	if err := repo.InsertMany(ctx, seed[:1]); err == nil {
		t.Error("inserting a duplicate id succeeded")
	}
}

package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/jobtrail/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "jobs.json"), Options{Logger: zaptest.NewLogger(t).Sugar()})
	require.NoError(t, err)
	return s
}

func posting(key string) NewRecord {
	return NewRecord{
		SourceType:  SourceURL,
		SourceKey:   key,
		Source:      key,
		Title:       "Backend Engineer",
		Company:     "Acme",
		Description: "Build services.",
		Salary:      "$120k",
		Location:    "Remote",
	}
}

func TestStore_AddCreatesSavedRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, created, err := s.Add(ctx, posting("https://jobs.example.com/1"))
	require.NoError(t, err)

	assert.True(t, created)
	assert.Len(t, rec.ID, 36)
	assert.Equal(t, StatusSaved, rec.Status)
	assert.Equal(t, "Backend Engineer", rec.Title)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Equal(t, time.UTC, rec.CreatedAt.Location())
	assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)
}

func TestStore_AddFillsMissingRequiredFields(t *testing.T) {
	s := newTestStore(t)

	rec, _, err := s.Add(context.Background(), NewRecord{SourceType: SourceText, SourceKey: "sha256:abc"})
	require.NoError(t, err)

	assert.Equal(t, Unknown, rec.Title)
	assert.Equal(t, Unknown, rec.Company)
	assert.Equal(t, Unknown, rec.Description)
	assert.Equal(t, Unknown, rec.Salary)
	assert.Empty(t, rec.Location)
}

func TestStore_AddRejectsInvalidRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.Add(ctx, NewRecord{SourceType: SourceURL})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, _, err = s.Add(ctx, NewRecord{SourceType: "ftp", SourceKey: "x"})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	records, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStore_AddDeduplicatesBySourceKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, created, err := s.Add(ctx, posting("https://jobs.example.com/1"))
	require.NoError(t, err)
	require.True(t, created)

	_, err = s.UpdateStatus(ctx, first.ID, StatusApplied, "sent CV")
	require.NoError(t, err)

	again := posting("https://jobs.example.com/1")
	again.Title = "Senior Backend Engineer"
	again.Salary = Unknown
	second, created, err := s.Add(ctx, again)
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, StatusApplied, second.Status, "status survives a re-add")
	assert.Len(t, second.Notes, 1, "notes survive a re-add")
	assert.Equal(t, "Senior Backend Engineer", second.Title)
	assert.Equal(t, "$120k", second.Salary, "an undetermined field keeps its previous value")

	records, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestStore_StatusTransitions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, _, err := s.Add(ctx, posting("k1"))
	require.NoError(t, err)

	for _, next := range []Status{StatusApplied, StatusInterviewing, StatusOffer, StatusHired} {
		rec, err = s.UpdateStatus(ctx, rec.ID, next, "")
		require.NoError(t, err, next)
		assert.Equal(t, next, rec.Status)
	}

	_, err = s.UpdateStatus(ctx, rec.ID, StatusWithdrawn, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidTransition))
	assert.Contains(t, errors.FlattenHints(err), "Hired is terminal")

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusHired, got.Status, "a rejected transition leaves the record unchanged")
}

func TestStore_InvalidTransitionNamesTargets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, _, err := s.Add(ctx, posting("k1"))
	require.NoError(t, err)

	_, err = s.UpdateStatus(ctx, rec.ID, StatusOffer, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidTransition))
	assert.Equal(t, errors.ClassCaller, errors.ClassOf(err))
	assert.Contains(t, err.Error(), rec.ID)
	assert.Contains(t, err.Error(), "Saved -> Offer")
	assert.Contains(t, errors.FlattenHints(err), "Applied, Withdrawn")
}

func TestStore_UpdateStatusWithNote(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s, err := Open(filepath.Join(t.TempDir(), "jobs.json"), Options{Now: func() time.Time { return now }})
	require.NoError(t, err)
	ctx := context.Background()

	rec, _, err := s.Add(ctx, posting("k1"))
	require.NoError(t, err)

	now = now.Add(48 * time.Hour)
	rec, err = s.UpdateStatus(ctx, rec.ID, StatusApplied, "  applied via referral ")
	require.NoError(t, err)

	require.Len(t, rec.Notes, 1)
	assert.Equal(t, "applied via referral", rec.Notes[0].Text)
	assert.Equal(t, now, rec.Notes[0].At)
	assert.Equal(t, now, rec.UpdatedAt)
	assert.True(t, rec.CreatedAt.Before(rec.UpdatedAt))
}

func TestStore_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.True(t, errors.IsNotFoundError(err))

	_, err = s.UpdateStatus(ctx, "missing", StatusApplied, "")
	assert.True(t, errors.IsNotFoundError(err))

	_, err = s.AddNote(ctx, "missing", "hello")
	assert.True(t, errors.IsNotFoundError(err))

	err = s.Delete(ctx, "missing")
	assert.True(t, errors.IsNotFoundError(err))
}

func TestStore_AddNoteAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, _, err := s.Add(ctx, posting("a"))
	require.NoError(t, err)
	b, _, err := s.Add(ctx, posting("b"))
	require.NoError(t, err)

	_, err = s.AddNote(ctx, a.ID, "   ")
	assert.True(t, errors.Is(err, errors.ErrValidation))

	got, err := s.AddNote(ctx, a.ID, "recruiter called")
	require.NoError(t, err)
	require.Len(t, got.Notes, 1)
	assert.Equal(t, StatusSaved, got.Status)

	require.NoError(t, s.Delete(ctx, a.ID))

	records, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, b.ID, records[0].ID)
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "jobs.json")
	ctx := context.Background()

	s1, err := Open(path, Options{})
	require.NoError(t, err)
	rec, _, err := s1.Add(ctx, posting("k1"))
	require.NoError(t, err)
	_, err = s1.UpdateStatus(ctx, rec.ID, StatusApplied, "first note")
	require.NoError(t, err)

	s2, err := Open(path, Options{})
	require.NoError(t, err)
	got, err := s2.Get(ctx, rec.ID)
	require.NoError(t, err)

	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, StatusApplied, got.Status)
	assert.Equal(t, "first note", got.Notes[0].Text)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
}

func TestStore_RoundTripPreservesRecordsAndOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	ctx := context.Background()

	s1, err := Open(path, Options{})
	require.NoError(t, err)

	inputs := []NewRecord{
		{SourceType: SourceURL, SourceKey: "https://jobs.example.com/a", Source: "https://jobs.example.com/a?utm_source=x",
			Title: "Backend Engineer", Company: "Acme", Description: "Build services.", Salary: "$120k",
			Location: "Remote", JobType: "Full-time", Requirements: "Go, SQL"},
		{SourceType: SourcePDF, SourceKey: "sha256:b", Source: "/tmp/offer.pdf",
			Title: "SRE", Company: "Globex", Description: "Keep it up.", Salary: "unknown"},
		{SourceType: SourceText, SourceKey: "sha256:c", Source: "direct input",
			Title: "Data Engineer", Company: "Initech", Description: "Pipelines. Ünïcode ✓", Salary: "€90k",
			Location: "Berlin"},
		{SourceType: SourceURL, SourceKey: "https://jobs.example.com/d", Source: "https://jobs.example.com/d",
			Title: "Staff Engineer", Company: "Hooli", Description: "Lead.", Salary: "$200k", JobType: "Contract"},
		{SourceType: SourceText, SourceKey: "sha256:e", Source: "direct input"},
	}

	var ids []string
	final := make(map[string]*Record)
	for _, in := range inputs {
		rec, created, err := s1.Add(ctx, in)
		require.NoError(t, err)
		require.True(t, created)
		ids = append(ids, rec.ID)
		final[rec.ID] = rec
	}

	rec, err := s1.UpdateStatus(ctx, ids[0], StatusApplied, "sent via referral")
	require.NoError(t, err)
	final[rec.ID] = rec
	rec, err = s1.UpdateStatus(ctx, ids[0], StatusInterviewing, "")
	require.NoError(t, err)
	final[rec.ID] = rec
	rec, err = s1.AddNote(ctx, ids[2], "recruiter called")
	require.NoError(t, err)
	final[rec.ID] = rec
	rec, err = s1.UpdateStatus(ctx, ids[3], StatusWithdrawn, "relocation required")
	require.NoError(t, err)
	final[rec.ID] = rec

	want := make([]Record, 0, len(ids))
	for _, id := range ids {
		want = append(want, normalizeTimes(*final[id]))
	}

	s2, err := Open(path, Options{})
	require.NoError(t, err)
	got, err := s2.List(ctx)
	require.NoError(t, err)

	require.Len(t, got, len(ids))
	for i := range got {
		got[i] = normalizeTimes(got[i])
	}
	require.Equal(t, want, got)

	again, err := s1.List(ctx)
	require.NoError(t, err)
	for i := range again {
		again[i] = normalizeTimes(again[i])
	}
	assert.Equal(t, got, again)
}

// normalizeTimes drops monotonic readings and location pointers so records
// read from disk compare equal to the ones returned in memory
func normalizeTimes(r Record) Record {
	r.CreatedAt = r.CreatedAt.UTC().Round(0)
	r.UpdatedAt = r.UpdatedAt.UTC().Round(0)
	if r.Notes != nil {
		notes := make([]Note, len(r.Notes))
		for i, n := range r.Notes {
			notes[i] = Note{At: n.At.UTC().Round(0), Text: n.Text}
		}
		r.Notes = notes
	}
	return r
}

func TestStore_FileFormat(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.Add(ctx, posting("k1"))
	require.NoError(t, err)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "[\n  {"), "two-space indented array")

	var raw []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 1)
	for _, key := range []string{"id", "source_type", "source_key", "title", "company", "description", "salary", "status", "created_at", "updated_at"} {
		assert.Contains(t, raw[0], key)
	}
	assert.Equal(t, "Saved", raw[0]["status"])

	_, err = time.Parse(time.RFC3339, raw[0]["created_at"].(string))
	assert.NoError(t, err)

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-", "no temp files left behind")
	}
}

func TestOpen_EmptyAndCorruptFiles(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0644))
	s, err := Open(empty, Options{})
	require.NoError(t, err)
	records, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte(`{"not": "an array"`), 0644))
	_, err = Open(corrupt, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid job list")

	_, err = Open("", Options{})
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestStore_Unwritable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "jobs.json"), Options{})
	require.NoError(t, err)

	require.NoError(t, os.Chmod(dir, 0555))
	t.Cleanup(func() { os.Chmod(dir, 0755) })

	_, _, err = s.Add(context.Background(), posting("k1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStorageUnwritable))
	assert.Equal(t, errors.ClassFatal, errors.ClassOf(err))
}

func TestStore_LockTimeout(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "jobs.json"), Options{LockTimeout: 100 * time.Millisecond})
	require.NoError(t, err)
	ctx := context.Background()

	held, err := acquireLock(ctx, s.lockPath, time.Second)
	require.NoError(t, err)

	_, _, err = s.Add(ctx, posting("k1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStorageUnwritable))

	require.NoError(t, held.Unlock())
	_, _, err = s.Add(ctx, posting("k1"))
	assert.NoError(t, err)
}

func TestStore_ConcurrentStoresSameFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	ctx := context.Background()

	const writers = 4
	const perWriter = 10

	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for w := 0; w < writers; w++ {
		// Separate Store values hold separate lock file handles, as separate processes would
		s, err := Open(path, Options{})
		require.NoError(t, err)

		wg.Add(1)
		go func(w int, s *Store) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, _, err := s.Add(ctx, posting(fmt.Sprintf("writer-%d-%d", w, i))); err != nil {
					errs <- err
				}
			}
		}(w, s)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	s, err := Open(path, Options{})
	require.NoError(t, err)
	records, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, writers*perWriter, "no write is lost")
}

func TestStore_Resolve(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, _, err := s.Add(ctx, posting("a"))
	require.NoError(t, err)
	b, _, err := s.Add(ctx, posting("b"))
	require.NoError(t, err)

	got, err := s.Resolve(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	got, err = s.Resolve(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	got, err = s.Resolve(ctx, strings.ToUpper(b.ID[:8]))
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	_, err = s.Resolve(ctx, "3")
	assert.True(t, errors.IsNotFoundError(err))

	_, err = s.Resolve(ctx, "")
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestStore_Stale(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s, err := Open(filepath.Join(t.TempDir(), "jobs.json"), Options{Now: func() time.Time { return now }})
	require.NoError(t, err)
	ctx := context.Background()

	old, _, err := s.Add(ctx, posting("old"))
	require.NoError(t, err)
	_, err = s.UpdateStatus(ctx, old.ID, StatusApplied, "")
	require.NoError(t, err)

	done, _, err := s.Add(ctx, posting("done"))
	require.NoError(t, err)
	_, err = s.UpdateStatus(ctx, done.ID, StatusWithdrawn, "")
	require.NoError(t, err)

	now = now.Add(100 * 24 * time.Hour)
	fresh, _, err := s.Add(ctx, posting("fresh"))
	require.NoError(t, err)

	now = now.Add(30 * 24 * time.Hour)
	stale, err := s.Stale(ctx, 60*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, stale, 1, "terminal and recent records are excluded")
	assert.Equal(t, old.ID, stale[0].ID)

	stale, err = s.Stale(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, stale, 2)
	assert.Equal(t, old.ID, stale[0].ID, "least recently updated first")
	assert.Equal(t, fresh.ID, stale[1].ID)
}

func TestStore_Watch(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "jobs.json"), Options{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notified := make(chan struct{}, 10)
	require.NoError(t, s.Watch(ctx, func() { notified <- struct{}{} }))

	// A second store on the same file commits, as another process would
	other, err := Open(s.Path(), Options{})
	require.NoError(t, err)
	_, _, err = other.Add(context.Background(), posting("k1"))
	require.NoError(t, err)

	select {
	case <-notified:
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification after commit")
	}
}

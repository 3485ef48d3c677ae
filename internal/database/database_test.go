package database

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/bryan-buckman/watchdeck/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newWatch(t *testing.T, db *DB, mutate func(*model.Watch)) *model.Watch {
	t.Helper()
	now := time.Now().UTC()
	w := &model.Watch{
		ID:            uuid.New().String(),
		URL:           "https://example.com/page",
		Title:         "Example",
		CheckInterval: 3600,
		Tags:          []string{},
		Status:        model.StatusOK,
		LastChecked:   now,
		LastChanged:   now,
		CreatedAt:     now,
	}
	if mutate != nil {
		mutate(w)
	}
	require.NoError(t, db.CreateWatch(w))
	return w
}

func newFolder(t *testing.T, db *DB, name string) *model.Folder {
	t.Helper()
	f := &model.Folder{
		ID:        uuid.New().String(),
		Name:      name,
		Color:     "#3b82f6",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, db.CreateFolder(f))
	return f
}

func TestBackendTraits(t *testing.T) {
	db := newTestDB(t)
	assert.Equal(t, "SQLite", db.DatabaseType())
	assert.False(t, db.SupportsHighConcurrency())
}

func TestCreateFolderAssignsSortOrder(t *testing.T) {
	db := newTestDB(t)

	a := newFolder(t, db, "A")
	b := newFolder(t, db, "B")
	c := newFolder(t, db, "C")
	assert.Equal(t, 1, a.SortOrder)
	assert.Equal(t, 2, b.SortOrder)
	assert.Equal(t, 3, c.SortOrder)

	folders, err := db.ListFolders()
	require.NoError(t, err)
	require.Len(t, folders, 3)
	assert.Equal(t, "A", folders[0].Name)
	assert.Equal(t, "C", folders[2].Name)
}

func TestWatchRoundTrip(t *testing.T) {
	db := newTestDB(t)
	f := newFolder(t, db, "Inbox")

	w := newWatch(t, db, func(w *model.Watch) {
		w.FolderID = &f.ID
		w.Tags = []string{"gpu", "hardware"}
		w.Notes = "restock watch"
	})

	got, err := db.GetWatchByID(w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.URL, got.URL)
	assert.Equal(t, w.Title, got.Title)
	require.NotNil(t, got.FolderID)
	assert.Equal(t, f.ID, *got.FolderID)
	assert.Equal(t, []string{"gpu", "hardware"}, got.Tags)
	assert.Equal(t, "restock watch", got.Notes)
	assert.Equal(t, model.StatusOK, got.Status)
	assert.Equal(t, 0, got.ChangeCount)
}

func TestUpdateWatchFieldsPartial(t *testing.T) {
	db := newTestDB(t)
	w := newWatch(t, db, func(w *model.Watch) {
		w.Tags = []string{"keep"}
		w.Notes = "original"
	})

	title := "Renamed"
	exists, err := db.UpdateWatchFields(w.ID, model.WatchUpdate{Title: &title})
	require.NoError(t, err)
	require.True(t, exists)

	got, err := db.GetWatchByID(w.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, w.URL, got.URL)
	assert.Equal(t, []string{"keep"}, got.Tags)
	assert.Equal(t, "original", got.Notes)
}

func TestUpdateWatchFieldsClearsFolder(t *testing.T) {
	db := newTestDB(t)
	f := newFolder(t, db, "Inbox")
	w := newWatch(t, db, func(w *model.Watch) { w.FolderID = &f.ID })

	empty := ""
	exists, err := db.UpdateWatchFields(w.ID, model.WatchUpdate{FolderID: &empty})
	require.NoError(t, err)
	require.True(t, exists)

	got, err := db.GetWatchByID(w.ID)
	require.NoError(t, err)
	assert.Nil(t, got.FolderID)
}

func TestUpdateWatchFieldsMissing(t *testing.T) {
	db := newTestDB(t)
	title := "x"
	exists, err := db.UpdateWatchFields("nope", model.WatchUpdate{Title: &title})
	require.NoError(t, err)
	assert.False(t, exists)

	// Empty update still reports existence correctly.
	exists, err = db.UpdateWatchFields("nope", model.WatchUpdate{})
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAddWatchTagIdempotent(t *testing.T) {
	db := newTestDB(t)
	w := newWatch(t, db, nil)

	for i := 0; i < 2; i++ {
		touched, err := db.AddWatchTag(w.ID, "gpu")
		require.NoError(t, err)
		assert.True(t, touched)
	}

	got, err := db.GetWatchByID(w.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"gpu"}, got.Tags)
}

func TestRemoveWatchTag(t *testing.T) {
	db := newTestDB(t)
	w := newWatch(t, db, func(w *model.Watch) { w.Tags = []string{"a", "b"} })

	touched, err := db.RemoveWatchTag(w.ID, "a")
	require.NoError(t, err)
	assert.True(t, touched)

	// Removing an absent tag is a no-op but still touches the record.
	touched, err = db.RemoveWatchTag(w.ID, "missing")
	require.NoError(t, err)
	assert.True(t, touched)

	got, err := db.GetWatchByID(w.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, got.Tags)

	touched, err = db.RemoveWatchTag("nope", "a")
	require.NoError(t, err)
	assert.False(t, touched)
}

func TestDeleteWatchCascadesChanges(t *testing.T) {
	db := newTestDB(t)
	w := newWatch(t, db, nil)
	for i := 0; i < 3; i++ {
		require.NoError(t, db.CreateChange(&model.Change{
			ID:        uuid.New().String(),
			WatchID:   w.ID,
			Timestamp: time.Now().UTC(),
			DiffText:  "- old\n+ new\n",
		}))
	}

	ok, err := db.DeleteWatch(w.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	changes, err := db.ListChanges(w.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, changes)

	ok, err = db.DeleteWatch(w.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteFolderDetachesAndReparents(t *testing.T) {
	db := newTestDB(t)
	parent := newFolder(t, db, "Parent")
	mid := &model.Folder{
		ID:        uuid.New().String(),
		Name:      "Mid",
		ParentID:  &parent.ID,
		Color:     "#10b981",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, db.CreateFolder(mid))
	child := &model.Folder{
		ID:        uuid.New().String(),
		Name:      "Child",
		ParentID:  &mid.ID,
		Color:     "#ef4444",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, db.CreateFolder(child))
	w := newWatch(t, db, func(w *model.Watch) { w.FolderID = &mid.ID })

	ok, err := db.DeleteFolder(mid.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// Watch is detached, not deleted.
	gotW, err := db.GetWatchByID(w.ID)
	require.NoError(t, err)
	assert.Nil(t, gotW.FolderID)

	// Child folder moves up to the deleted folder's parent.
	gotC, err := db.GetFolderByID(child.ID)
	require.NoError(t, err)
	require.NotNil(t, gotC.ParentID)
	assert.Equal(t, parent.ID, *gotC.ParentID)

	ok, err = db.DeleteFolder(mid.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListWatchesFiltersAndOrder(t *testing.T) {
	db := newTestDB(t)
	f := newFolder(t, db, "Inbox")
	base := time.Now().UTC()

	older := newWatch(t, db, func(w *model.Watch) {
		w.Title = "Older release page"
		w.LastChanged = base.Add(-2 * time.Hour)
		w.FolderID = &f.ID
	})
	newer := newWatch(t, db, func(w *model.Watch) {
		w.Title = "Newer RELEASE page"
		w.LastChanged = base.Add(-1 * time.Hour)
		w.FolderID = &f.ID
	})
	newWatch(t, db, func(w *model.Watch) {
		w.Title = "Unrelated"
		w.Status = model.StatusPaused
		w.LastChanged = base
	})

	got, err := db.ListWatches(WatchFilter{FolderID: f.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].ID)
	assert.Equal(t, older.ID, got[1].ID)

	got, err = db.ListWatches(WatchFilter{Status: model.StatusPaused})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Unrelated", got[0].Title)

	// Search is case-insensitive over title and url.
	got, err = db.ListWatches(WatchFilter{Search: "release"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestChangeQueries(t *testing.T) {
	db := newTestDB(t)
	w := newWatch(t, db, nil)
	now := time.Now().UTC()

	for i := 0; i < 15; i++ {
		require.NoError(t, db.CreateChange(&model.Change{
			ID:        uuid.New().String(),
			WatchID:   w.ID,
			Timestamp: now.Add(-time.Duration(i) * time.Hour),
			DiffText:  fmt.Sprintf("change %d", i),
		}))
	}

	changes, err := db.ListChanges(w.ID, 10)
	require.NoError(t, err)
	require.Len(t, changes, 10)
	assert.Equal(t, "change 0", changes[0].DiffText)

	n, err := db.CountChangesSince(now.Add(-5*time.Hour - time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	pruned, err := db.DeleteChangesBefore(now.Add(-10*time.Hour + time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(5), pruned)
}

func TestCounts(t *testing.T) {
	db := newTestDB(t)
	newFolder(t, db, "A")
	newWatch(t, db, nil)
	newWatch(t, db, func(w *model.Watch) { w.Status = model.StatusError })

	folders, err := db.CountFolders()
	require.NoError(t, err)
	assert.Equal(t, 1, folders)

	watches, err := db.CountWatches()
	require.NoError(t, err)
	assert.Equal(t, 2, watches)

	errored, err := db.CountWatchesByStatus(model.StatusError)
	require.NoError(t, err)
	assert.Equal(t, 1, errored)
}

func TestDecodeTagsTolerant(t *testing.T) {
	db := newTestDB(t)
	w := newWatch(t, db, nil)

	// Malformed stored tags read back as an empty set, never an error.
	_, err := db.conn.Exec("UPDATE watches SET tags = 'not json' WHERE id = ?", w.ID)
	require.NoError(t, err)

	got, err := db.GetWatchByID(w.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{}, got.Tags)
}

package seed

import (
	"path/filepath"
	"testing"

	"github.com/bryan-buckman/watchdeck/internal/database"
	"github.com/bryan-buckman/watchdeck/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedPopulatesEmptyStore(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	seeded, err := Seed(db)
	require.NoError(t, err)
	require.True(t, seeded)

	watches, err := db.CountWatches()
	require.NoError(t, err)
	assert.Equal(t, len(demoWatches), watches)

	folders, err := db.CountFolders()
	require.NoError(t, err)
	assert.Equal(t, len(demoFolders), folders)

	// Every watch landed in a folder and carries history.
	listed, err := db.ListWatches(database.WatchFilter{})
	require.NoError(t, err)
	require.Len(t, listed, len(demoWatches))
	statuses := make(map[string]int)
	for _, w := range listed {
		require.NotNil(t, w.FolderID)
		assert.True(t, model.ValidStatus(w.Status))
		statuses[w.Status]++

		changes, err := db.ListChanges(w.ID, 100)
		require.NoError(t, err)
		assert.NotEmpty(t, changes)
		assert.GreaterOrEqual(t, len(changes), 5)
		assert.LessOrEqual(t, len(changes), 12)
	}
	assert.Equal(t, 14, statuses[model.StatusOK])
	assert.Equal(t, 6, statuses[model.StatusChanged])
	assert.Equal(t, 3, statuses[model.StatusError])
	assert.Equal(t, 2, statuses[model.StatusPaused])
}

func TestSeedIsNoOpWhenDataExists(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	seeded, err := Seed(db)
	require.NoError(t, err)
	require.True(t, seeded)

	seeded, err = Seed(db)
	require.NoError(t, err)
	assert.False(t, seeded)

	watches, err := db.CountWatches()
	require.NoError(t, err)
	assert.Equal(t, len(demoWatches), watches)
}

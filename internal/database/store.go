// Package database provides storage backends for the watch dashboard.
package database

import (
	"time"

	"github.com/bryan-buckman/watchdeck/internal/model"
)

// WatchFilter narrows ListWatches. Zero-value fields apply no
// constraint. Tag filtering is not part of the filter: tags live in a
// serialized column, so membership is tested after decoding.
type WatchFilter struct {
	FolderID string
	Status   string
	Search   string // case-insensitive substring over title and url
}

// Store defines the interface for database operations.
// Both SQLite and PostgreSQL implementations satisfy this interface.
//
// Mutating methods that target a single record by id return a bool
// reporting whether the record existed; a missing record is not an
// error at this layer.
type Store interface {
	Close() error

	// DatabaseType returns the name of the database backend ("SQLite" or "PostgreSQL").
	DatabaseType() string

	// SupportsHighConcurrency returns true if the database can handle
	// many concurrent write operations (e.g., PostgreSQL).
	// SQLite returns false due to write locking limitations.
	SupportsHighConcurrency() bool

	// Folder operations
	CreateFolder(f *model.Folder) error
	GetFolderByID(id string) (*model.Folder, error)
	ListFolders() ([]model.FolderWithCount, error)
	DeleteFolder(id string) (bool, error)
	CountFolders() (int, error)

	// Watch operations
	CreateWatch(w *model.Watch) error
	GetWatchByID(id string) (*model.Watch, error)
	ListWatches(f WatchFilter) ([]model.Watch, error)
	UpdateWatchFields(id string, upd model.WatchUpdate) (bool, error)
	SetWatchStatus(id, status string) (bool, error)
	SetWatchFolder(id string, folderID *string) (bool, error)
	AddWatchTag(id, tag string) (bool, error)
	RemoveWatchTag(id, tag string) (bool, error)
	DeleteWatch(id string) (bool, error)
	CountWatches() (int, error)
	CountWatchesByStatus(status string) (int, error)
	// AllWatchTags returns the decoded tag set of every watch, ordered
	// by watch creation time so frequency ties resolve stably.
	AllWatchTags() ([][]string, error)

	// Change operations
	CreateChange(c *model.Change) error
	ListChanges(watchID string, limit int) ([]model.Change, error)
	CountChangesSince(t time.Time) (int, error)
	DeleteChangesBefore(t time.Time) (int64, error)
}

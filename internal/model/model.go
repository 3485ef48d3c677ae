// Package model defines shared data structures.
package model

import "time"

// Watch status values.
const (
	StatusOK      = "ok"
	StatusChanged = "changed"
	StatusError   = "error"
	StatusPaused  = "paused"
)

// ValidStatus reports whether s is one of the four watch statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusOK, StatusChanged, StatusError, StatusPaused:
		return true
	}
	return false
}

// Bulk action names.
const (
	ActionMoveFolder = "move_folder"
	ActionAddTag     = "add_tag"
	ActionRemoveTag  = "remove_tag"
	ActionPause      = "pause"
	ActionResume     = "resume"
	ActionDelete     = "delete"
)

// Folder groups watches for display. ParentID is a weak grouping
// reference: deleting a parent reparents its children, it never
// cascades.
type Folder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  *string   `json:"parent_id"`
	Color     string    `json:"color"`
	Icon      *string   `json:"icon"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
}

// FolderWithCount is a folder annotated with the number of watches
// currently filed under it.
type FolderWithCount struct {
	Folder
	WatchCount int `json:"watch_count"`
}

// Watch represents a monitored URL.
type Watch struct {
	ID            string    `json:"id"`
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	CheckInterval int       `json:"check_interval"` // seconds
	FolderID      *string   `json:"folder_id"`      // nil means unfiled
	Tags          []string  `json:"tags"`
	Notes         string    `json:"notes"`
	Status        string    `json:"status"`
	LastChecked   time.Time `json:"last_checked"`
	LastChanged   time.Time `json:"last_changed"`
	ChangeCount   int       `json:"change_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// Change is one recorded difference for a watch. Changes are owned by
// their watch and deleted with it.
type Change struct {
	ID           string    `json:"id"`
	WatchID      string    `json:"watch_id"`
	Timestamp    time.Time `json:"timestamp"`
	DiffText     string    `json:"diff_text"`
	SnapshotText *string   `json:"snapshot_text"`
}

// WatchUpdate is a partial update. A nil field is left untouched; a
// non-nil field is written. FolderID set to the empty string clears
// the watch to unfiled.
type WatchUpdate struct {
	Title         *string   `json:"title"`
	URL           *string   `json:"url"`
	CheckInterval *int      `json:"check_interval"`
	FolderID      *string   `json:"folder_id"`
	Tags          *[]string `json:"tags"`
	Notes         *string   `json:"notes"`
	Status        *string   `json:"status"`
}

// TagCount is one entry of the tag frequency breakdown.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Stats holds the aggregate dashboard counters.
type Stats struct {
	TotalWatches int        `json:"total_watches"`
	ChangesToday int        `json:"changes_today"`
	Errored      int        `json:"errored"`
	Paused       int        `json:"paused"`
	Changed      int        `json:"changed"`
	Folders      int        `json:"folders"`
	TopTags      []TagCount `json:"top_tags"`
}

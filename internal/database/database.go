// Package database provides SQLite storage for the watch dashboard.
package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bryan-buckman/watchdeck/internal/model"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
}

// Ensure DB implements Store interface.
var _ Store = (*DB)(nil)

// New opens or creates an SQLite database at the given path.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Enable WAL mode for better concurrency.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	// Deleting a folder must detach its watches.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// DatabaseType returns the database backend name.
func (db *DB) DatabaseType() string {
	return "SQLite"
}

// SupportsHighConcurrency returns false for SQLite.
func (db *DB) SupportsHighConcurrency() bool {
	return false
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS folders (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		parent_id TEXT REFERENCES folders(id),
		color TEXT NOT NULL DEFAULT '#3b82f6',
		icon TEXT,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS watches (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		check_interval INTEGER NOT NULL DEFAULT 3600,
		folder_id TEXT REFERENCES folders(id) ON DELETE SET NULL,
		tags TEXT NOT NULL DEFAULT '[]',
		notes TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'ok',
		last_checked DATETIME,
		last_changed DATETIME,
		change_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS changes (
		id TEXT PRIMARY KEY,
		watch_id TEXT NOT NULL REFERENCES watches(id) ON DELETE CASCADE,
		timestamp DATETIME NOT NULL,
		diff_text TEXT NOT NULL DEFAULT '',
		snapshot_text TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_watches_folder ON watches(folder_id);
	CREATE INDEX IF NOT EXISTS idx_watches_status ON watches(status);
	CREATE INDEX IF NOT EXISTS idx_changes_watch ON changes(watch_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// --- Folder Methods ---

// CreateFolder inserts a folder, assigning the next sort_order so new
// folders sort last. The assigned order is written back to f.
func (db *DB) CreateFolder(f *model.Folder) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var maxOrder int
	if err := tx.QueryRow("SELECT COALESCE(MAX(sort_order), 0) FROM folders").Scan(&maxOrder); err != nil {
		return err
	}
	f.SortOrder = maxOrder + 1
	_, err = tx.Exec(
		"INSERT INTO folders (id, name, parent_id, color, icon, sort_order, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		f.ID, f.Name, f.ParentID, f.Color, f.Icon, f.SortOrder, f.CreatedAt)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// GetFolderByID returns the folder, or sql.ErrNoRows if absent.
func (db *DB) GetFolderByID(id string) (*model.Folder, error) {
	var f model.Folder
	err := db.conn.QueryRow(
		"SELECT id, name, parent_id, color, icon, sort_order, created_at FROM folders WHERE id = ?", id).
		Scan(&f.ID, &f.Name, &f.ParentID, &f.Color, &f.Icon, &f.SortOrder, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ListFolders returns all folders by sort_order, each with the number
// of watches currently filed under it.
func (db *DB) ListFolders() ([]model.FolderWithCount, error) {
	rows, err := db.conn.Query(`
		SELECT f.id, f.name, f.parent_id, f.color, f.icon, f.sort_order, f.created_at,
			(SELECT COUNT(*) FROM watches WHERE folder_id = f.id) AS watch_count
		FROM folders f ORDER BY f.sort_order`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFolders(rows)
}

// DeleteFolder removes a folder, detaching its watches and reparenting
// child folders to the deleted folder's parent. Returns false if the
// folder does not exist.
func (db *DB) DeleteFolder(id string) (bool, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var parentID *string
	err = tx.QueryRow("SELECT parent_id FROM folders WHERE id = ?", id).Scan(&parentID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := tx.Exec("UPDATE folders SET parent_id = ? WHERE parent_id = ?", parentID, id); err != nil {
		return false, err
	}
	if _, err := tx.Exec("UPDATE watches SET folder_id = NULL WHERE folder_id = ?", id); err != nil {
		return false, err
	}
	if _, err := tx.Exec("DELETE FROM folders WHERE id = ?", id); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// CountFolders returns the total number of folders.
func (db *DB) CountFolders() (int, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM folders").Scan(&n)
	return n, err
}

// --- Watch Methods ---

const watchColumns = "id, url, title, check_interval, folder_id, tags, notes, status, last_checked, last_changed, change_count, created_at"

// CreateWatch inserts a new watch record.
func (db *DB) CreateWatch(w *model.Watch) error {
	_, err := db.conn.Exec(
		"INSERT INTO watches ("+watchColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		w.ID, w.URL, w.Title, w.CheckInterval, w.FolderID, encodeTags(w.Tags), w.Notes,
		w.Status, w.LastChecked, w.LastChanged, w.ChangeCount, w.CreatedAt)
	return err
}

// GetWatchByID returns the watch, or sql.ErrNoRows if absent.
func (db *DB) GetWatchByID(id string) (*model.Watch, error) {
	row := db.conn.QueryRow("SELECT "+watchColumns+" FROM watches WHERE id = ?", id)
	return scanWatch(row)
}

// ListWatches returns watches matching the filter, most recently
// changed first.
func (db *DB) ListWatches(f WatchFilter) ([]model.Watch, error) {
	query := "SELECT " + watchColumns + " FROM watches WHERE 1=1"
	var args []any
	if f.FolderID != "" {
		query += " AND folder_id = ?"
		args = append(args, f.FolderID)
	}
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, f.Status)
	}
	if f.Search != "" {
		query += " AND (title LIKE ? OR url LIKE ?)"
		pat := "%" + f.Search + "%"
		args = append(args, pat, pat)
	}
	query += " ORDER BY last_changed DESC"
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWatches(rows)
}

// UpdateWatchFields applies the set fields of upd in a single UPDATE.
// Returns false if the watch does not exist. An empty-string FolderID
// clears the watch to unfiled.
func (db *DB) UpdateWatchFields(id string, upd model.WatchUpdate) (bool, error) {
	var sets []string
	var args []any
	add := func(col string, val any) {
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}
	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.URL != nil {
		add("url", *upd.URL)
	}
	if upd.CheckInterval != nil {
		add("check_interval", *upd.CheckInterval)
	}
	if upd.FolderID != nil {
		add("folder_id", nullableID(*upd.FolderID))
	}
	if upd.Tags != nil {
		add("tags", encodeTags(*upd.Tags))
	}
	if upd.Notes != nil {
		add("notes", *upd.Notes)
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if len(sets) == 0 {
		var one int
		err := db.conn.QueryRow("SELECT 1 FROM watches WHERE id = ?", id).Scan(&one)
		if err == sql.ErrNoRows {
			return false, nil
		}
		return err == nil, err
	}
	args = append(args, id)
	res, err := db.conn.Exec("UPDATE watches SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetWatchStatus updates the status of one watch.
func (db *DB) SetWatchStatus(id, status string) (bool, error) {
	res, err := db.conn.Exec("UPDATE watches SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetWatchFolder moves one watch to a folder (nil means unfiled).
func (db *DB) SetWatchFolder(id string, folderID *string) (bool, error) {
	res, err := db.conn.Exec("UPDATE watches SET folder_id = ? WHERE id = ?", folderID, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// AddWatchTag adds a tag to a watch if not already present. The
// read-modify-write runs in one transaction so concurrent bulk tag
// operations on the same watch cannot lose updates.
func (db *DB) AddWatchTag(id, tag string) (bool, error) {
	return db.mutateTags(id, func(tags []string) []string {
		for _, t := range tags {
			if t == tag {
				return tags
			}
		}
		return append(tags, tag)
	})
}

// RemoveWatchTag removes a tag from a watch; a no-op if absent.
func (db *DB) RemoveWatchTag(id, tag string) (bool, error) {
	return db.mutateTags(id, func(tags []string) []string {
		out := tags[:0]
		for _, t := range tags {
			if t != tag {
				out = append(out, t)
			}
		}
		return out
	})
}

func (db *DB) mutateTags(id string, mutate func([]string) []string) (bool, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var raw sql.NullString
	err = tx.QueryRow("SELECT tags FROM watches WHERE id = ?", id).Scan(&raw)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	tags := mutate(decodeTags(raw))
	if _, err := tx.Exec("UPDATE watches SET tags = ? WHERE id = ?", encodeTags(tags), id); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// DeleteWatch removes a watch and all its change records. Returns
// false if the watch does not exist.
func (db *DB) DeleteWatch(id string) (bool, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM changes WHERE watch_id = ?", id); err != nil {
		return false, err
	}
	res, err := tx.Exec("DELETE FROM watches WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	return true, tx.Commit()
}

// CountWatches returns the total number of watches.
func (db *DB) CountWatches() (int, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM watches").Scan(&n)
	return n, err
}

// CountWatchesByStatus returns the number of watches in one status.
func (db *DB) CountWatchesByStatus(status string) (int, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM watches WHERE status = ?", status).Scan(&n)
	return n, err
}

// AllWatchTags returns every watch's decoded tag set in creation
// order.
func (db *DB) AllWatchTags() ([][]string, error) {
	rows, err := db.conn.Query("SELECT tags FROM watches ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTagSets(rows)
}

// --- Change Methods ---

// CreateChange inserts a change record for a watch.
func (db *DB) CreateChange(c *model.Change) error {
	_, err := db.conn.Exec(
		"INSERT INTO changes (id, watch_id, timestamp, diff_text, snapshot_text) VALUES (?, ?, ?, ?, ?)",
		c.ID, c.WatchID, c.Timestamp, c.DiffText, c.SnapshotText)
	return err
}

// ListChanges returns the newest changes for a watch, capped at limit.
func (db *DB) ListChanges(watchID string, limit int) ([]model.Change, error) {
	rows, err := db.conn.Query(
		"SELECT id, watch_id, timestamp, diff_text, snapshot_text FROM changes WHERE watch_id = ? ORDER BY timestamp DESC LIMIT ?",
		watchID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChanges(rows)
}

// CountChangesSince counts change records at or after t.
func (db *DB) CountChangesSince(t time.Time) (int, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM changes WHERE timestamp >= ?", t).Scan(&n)
	return n, err
}

// DeleteChangesBefore removes change records older than t and returns
// how many were removed.
func (db *DB) DeleteChangesBefore(t time.Time) (int64, error) {
	res, err := db.conn.Exec("DELETE FROM changes WHERE timestamp < ?", t)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Helper functions ---

// encodeTags serializes a tag set for storage. A nil set is stored as
// an empty list.
func encodeTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// decodeTags deserializes a stored tag column. Absent or malformed
// data is treated as an empty set, never an error.
func decodeTags(raw sql.NullString) []string {
	if !raw.Valid || raw.String == "" {
		return []string{}
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw.String), &tags); err != nil || tags == nil {
		return []string{}
	}
	return tags
}

// nullableID maps the empty string to NULL for weak references.
func nullableID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWatchInto(s rowScanner, w *model.Watch) error {
	var tags sql.NullString
	var lastChecked, lastChanged sql.NullTime
	if err := s.Scan(&w.ID, &w.URL, &w.Title, &w.CheckInterval, &w.FolderID, &tags, &w.Notes,
		&w.Status, &lastChecked, &lastChanged, &w.ChangeCount, &w.CreatedAt); err != nil {
		return err
	}
	w.Tags = decodeTags(tags)
	if lastChecked.Valid {
		w.LastChecked = lastChecked.Time
	}
	if lastChanged.Valid {
		w.LastChanged = lastChanged.Time
	}
	return nil
}

func scanWatch(row *sql.Row) (*model.Watch, error) {
	var w model.Watch
	if err := scanWatchInto(row, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func scanWatches(rows *sql.Rows) ([]model.Watch, error) {
	var watches []model.Watch
	for rows.Next() {
		var w model.Watch
		if err := scanWatchInto(rows, &w); err != nil {
			return nil, err
		}
		watches = append(watches, w)
	}
	return watches, rows.Err()
}

func scanFolders(rows *sql.Rows) ([]model.FolderWithCount, error) {
	var folders []model.FolderWithCount
	for rows.Next() {
		var f model.FolderWithCount
		if err := rows.Scan(&f.ID, &f.Name, &f.ParentID, &f.Color, &f.Icon, &f.SortOrder, &f.CreatedAt, &f.WatchCount); err != nil {
			return nil, err
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

func scanChanges(rows *sql.Rows) ([]model.Change, error) {
	var changes []model.Change
	for rows.Next() {
		var c model.Change
		if err := rows.Scan(&c.ID, &c.WatchID, &c.Timestamp, &c.DiffText, &c.SnapshotText); err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

func scanTagSets(rows *sql.Rows) ([][]string, error) {
	var sets [][]string
	for rows.Next() {
		var raw sql.NullString
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		sets = append(sets, decodeTags(raw))
	}
	return sets, rows.Err()
}

// Package engine validates and applies mutations against the record
// store, publishing an event to the hub after each successful one.
package engine

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bryan-buckman/watchdeck/internal/database"
	"github.com/bryan-buckman/watchdeck/internal/hub"
	"github.com/bryan-buckman/watchdeck/internal/model"
	"github.com/google/uuid"
)

// Error categories surfaced to API callers. Wrap with context via
// fmt.Errorf and test with errors.Is.
var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid input")
)

// DefaultCheckInterval is used when a create request omits the
// interval.
const DefaultCheckInterval = 3600

// defaultFolderColor matches the dashboard's accent blue.
const defaultFolderColor = "#3b82f6"

// maxDefaultTitleLen bounds the title derived from the URL.
const maxDefaultTitleLen = 80

// Engine applies one logical change to the store per call.
type Engine struct {
	store database.Store
	hub   *hub.Hub
	now   func() time.Time
}

// New creates an engine over the given store and hub.
func New(store database.Store, h *hub.Hub) *Engine {
	return &Engine{store: store, hub: h, now: time.Now}
}

// publish hands an event to the hub. Delivery problems are the hub's
// to absorb; a mutation never fails because of its notification.
func (e *Engine) publish(evt hub.Event) {
	if e.hub != nil {
		e.hub.Broadcast(evt)
	}
}

// CreateWatchRequest is the payload for CreateWatch.
type CreateWatchRequest struct {
	URL           string   `json:"url"`
	Title         string   `json:"title"`
	CheckInterval int      `json:"check_interval"`
	FolderID      *string  `json:"folder_id"`
	Tags          []string `json:"tags"`
	Notes         string   `json:"notes"`
}

// CreateWatch creates a watch with status "ok", a zero change count
// and timestamps set to now. The title defaults to a truncated URL.
func (e *Engine) CreateWatch(req CreateWatchRequest) (*model.Watch, error) {
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalid)
	}
	interval := req.CheckInterval
	if interval == 0 {
		interval = DefaultCheckInterval
	}
	if interval < 0 {
		return nil, fmt.Errorf("%w: check_interval must be positive", ErrInvalid)
	}
	folderID, err := e.resolveFolderRef(req.FolderID)
	if err != nil {
		return nil, err
	}
	title := req.Title
	if title == "" {
		// Truncate by runes so a multi-byte URL never yields an
		// invalid-UTF-8 title.
		title = url
		if r := []rune(title); len(r) > maxDefaultTitleLen {
			title = string(r[:maxDefaultTitleLen])
		}
	}
	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}

	now := e.now().UTC()
	w := &model.Watch{
		ID:            uuid.New().String(),
		URL:           url,
		Title:         title,
		CheckInterval: interval,
		FolderID:      folderID,
		Tags:          tags,
		Notes:         req.Notes,
		Status:        model.StatusOK,
		LastChecked:   now,
		LastChanged:   now,
		ChangeCount:   0,
		CreatedAt:     now,
	}
	if err := e.store.CreateWatch(w); err != nil {
		return nil, fmt.Errorf("create watch: %w", err)
	}
	e.publish(hub.Event{Type: hub.EventWatchCreated, Watch: w})
	return w, nil
}

// UpdateWatch applies only the fields present in upd and returns the
// full updated record.
func (e *Engine) UpdateWatch(id string, upd model.WatchUpdate) (*model.Watch, error) {
	if upd.URL != nil && strings.TrimSpace(*upd.URL) == "" {
		return nil, fmt.Errorf("%w: url cannot be empty", ErrInvalid)
	}
	if upd.CheckInterval != nil && *upd.CheckInterval <= 0 {
		return nil, fmt.Errorf("%w: check_interval must be positive", ErrInvalid)
	}
	if upd.Status != nil && !model.ValidStatus(*upd.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalid, *upd.Status)
	}
	if upd.FolderID != nil && *upd.FolderID != "" {
		if _, err := e.resolveFolderRef(upd.FolderID); err != nil {
			return nil, err
		}
	}

	exists, err := e.store.UpdateWatchFields(id, upd)
	if err != nil {
		return nil, fmt.Errorf("update watch: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: watch %s", ErrNotFound, id)
	}
	w, err := e.store.GetWatchByID(id)
	if err != nil {
		return nil, fmt.Errorf("reload watch: %w", err)
	}
	e.publish(hub.Event{Type: hub.EventWatchUpdated, Watch: w})
	return w, nil
}

// DeleteWatch removes a watch and, transitively, its change records.
func (e *Engine) DeleteWatch(id string) error {
	ok, err := e.store.DeleteWatch(id)
	if err != nil {
		return fmt.Errorf("delete watch: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: watch %s", ErrNotFound, id)
	}
	e.publish(hub.Event{Type: hub.EventWatchDeleted, WatchID: id})
	return nil
}

// CreateFolderRequest is the payload for CreateFolder.
type CreateFolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
	Color    string  `json:"color"`
	Icon     *string `json:"icon"`
}

// CreateFolder creates a folder sorted after all existing ones.
func (e *Engine) CreateFolder(req CreateFolderRequest) (*model.Folder, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	parentID, err := e.resolveFolderRef(req.ParentID)
	if err != nil {
		return nil, err
	}
	color := req.Color
	if color == "" {
		color = defaultFolderColor
	}
	f := &model.Folder{
		ID:        uuid.New().String(),
		Name:      name,
		ParentID:  parentID,
		Color:     color,
		Icon:      req.Icon,
		CreatedAt: e.now().UTC(),
	}
	if err := e.store.CreateFolder(f); err != nil {
		return nil, fmt.Errorf("create folder: %w", err)
	}
	return f, nil
}

// DeleteFolder removes a folder; its watches are detached and child
// folders reparented, never deleted.
func (e *Engine) DeleteFolder(id string) error {
	ok, err := e.store.DeleteFolder(id)
	if err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: folder %s", ErrNotFound, id)
	}
	return nil
}

// BulkRequest applies one action to every listed watch.
type BulkRequest struct {
	WatchIDs []string `json:"watch_ids"`
	Action   string   `json:"action"`
	Value    string   `json:"value"`
}

// BulkApply applies the action to each id independently: a missing id
// is skipped, not an error. It returns the number of existing records
// touched, which may be less than the input length.
func (e *Engine) BulkApply(req BulkRequest) (int, error) {
	var targetFolder *string
	switch req.Action {
	case model.ActionMoveFolder:
		// Empty value means "move to unfiled".
		if req.Value != "" {
			id := req.Value
			if _, err := e.resolveFolderRef(&id); err != nil {
				return 0, err
			}
			targetFolder = &id
		}
	case model.ActionAddTag, model.ActionRemoveTag:
		if strings.TrimSpace(req.Value) == "" {
			return 0, fmt.Errorf("%w: tag value is required", ErrInvalid)
		}
	case model.ActionPause, model.ActionResume, model.ActionDelete:
	default:
		return 0, fmt.Errorf("%w: unknown bulk action %q", ErrInvalid, req.Action)
	}

	affected := 0
	for _, id := range req.WatchIDs {
		var touched bool
		var err error
		switch req.Action {
		case model.ActionMoveFolder:
			touched, err = e.store.SetWatchFolder(id, targetFolder)
		case model.ActionAddTag:
			touched, err = e.store.AddWatchTag(id, req.Value)
		case model.ActionRemoveTag:
			touched, err = e.store.RemoveWatchTag(id, req.Value)
		case model.ActionPause:
			touched, err = e.store.SetWatchStatus(id, model.StatusPaused)
		case model.ActionResume:
			touched, err = e.store.SetWatchStatus(id, model.StatusOK)
		case model.ActionDelete:
			touched, err = e.store.DeleteWatch(id)
		}
		if err != nil {
			return affected, fmt.Errorf("bulk %s: %w", req.Action, err)
		}
		if touched {
			affected++
		}
	}

	e.publish(hub.Event{Type: hub.EventBulkAction, Action: req.Action, Count: affected})
	return affected, nil
}

// PruneChanges removes change records older than the retention window
// and returns how many were removed.
func (e *Engine) PruneChanges(retention time.Duration) (int64, error) {
	cutoff := e.now().UTC().Add(-retention)
	n, err := e.store.DeleteChangesBefore(cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune changes: %w", err)
	}
	return n, nil
}

// resolveFolderRef normalizes a folder reference: nil or empty means
// unfiled, anything else must name an existing folder.
func (e *Engine) resolveFolderRef(id *string) (*string, error) {
	if id == nil || *id == "" {
		return nil, nil
	}
	_, err := e.store.GetFolderByID(*id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: folder %s does not exist", ErrInvalid, *id)
	}
	if err != nil {
		return nil, fmt.Errorf("check folder: %w", err)
	}
	return id, nil
}

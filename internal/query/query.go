// Package query provides read-only projections over the record store.
package query

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/bryan-buckman/watchdeck/internal/database"
	"github.com/bryan-buckman/watchdeck/internal/model"
)

// Change history limits.
const (
	DefaultChangeLimit = 10
	MaxChangeLimit     = 100
)

// TopTagCount is how many tags the stats breakdown reports.
const TopTagCount = 15

// Service answers read queries. It never mutates state.
type Service struct {
	store database.Store
	now   func() time.Time
}

// New creates a query service over the given store.
func New(store database.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WatchFilter narrows ListWatches; all supplied filters apply
// conjunctively.
type WatchFilter struct {
	FolderID string
	Tag      string
	Status   string
	Search   string
}

// ListWatches returns watches satisfying the filter, most recently
// changed first. Tag membership is tested against the decoded tag set
// after retrieval.
func (s *Service) ListWatches(f WatchFilter) ([]model.Watch, error) {
	watches, err := s.store.ListWatches(database.WatchFilter{
		FolderID: f.FolderID,
		Status:   f.Status,
		Search:   f.Search,
	})
	if err != nil {
		return nil, fmt.Errorf("list watches: %w", err)
	}
	if f.Tag == "" {
		return watches, nil
	}
	filtered := watches[:0]
	for _, w := range watches {
		if slices.Contains(w.Tags, f.Tag) {
			filtered = append(filtered, w)
		}
	}
	return filtered, nil
}

// ListFolders returns all folders by sort order with watch counts.
func (s *Service) ListFolders() ([]model.FolderWithCount, error) {
	folders, err := s.store.ListFolders()
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	return folders, nil
}

// ListChanges returns the most recent change history for one watch.
// The limit defaults to 10 and is capped at 100. An unknown watch id
// yields an empty history, not an error.
func (s *Service) ListChanges(watchID string, limit int) ([]model.Change, error) {
	if limit <= 0 {
		limit = DefaultChangeLimit
	}
	if limit > MaxChangeLimit {
		limit = MaxChangeLimit
	}
	changes, err := s.store.ListChanges(watchID, limit)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	return changes, nil
}

// Stats computes the aggregate dashboard counters: totals, changes
// since UTC midnight, per-status counts, and the top tags by
// frequency with ties broken by first-seen order.
func (s *Service) Stats() (*model.Stats, error) {
	st := &model.Stats{}
	var err error

	if st.TotalWatches, err = s.store.CountWatches(); err != nil {
		return nil, fmt.Errorf("count watches: %w", err)
	}
	midnight := s.now().UTC().Truncate(24 * time.Hour)
	if st.ChangesToday, err = s.store.CountChangesSince(midnight); err != nil {
		return nil, fmt.Errorf("count changes today: %w", err)
	}
	if st.Errored, err = s.store.CountWatchesByStatus(model.StatusError); err != nil {
		return nil, fmt.Errorf("count errored: %w", err)
	}
	if st.Paused, err = s.store.CountWatchesByStatus(model.StatusPaused); err != nil {
		return nil, fmt.Errorf("count paused: %w", err)
	}
	if st.Changed, err = s.store.CountWatchesByStatus(model.StatusChanged); err != nil {
		return nil, fmt.Errorf("count changed: %w", err)
	}
	if st.Folders, err = s.store.CountFolders(); err != nil {
		return nil, fmt.Errorf("count folders: %w", err)
	}

	tagSets, err := s.store.AllWatchTags()
	if err != nil {
		return nil, fmt.Errorf("collect tags: %w", err)
	}
	st.TopTags = topTags(tagSets, TopTagCount)
	return st, nil
}

// topTags accumulates tag frequencies across all watches and returns
// the n most frequent, ties resolved by first-seen order.
func topTags(tagSets [][]string, n int) []model.TagCount {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	for _, tags := range tagSets {
		for _, t := range tags {
			if _, ok := counts[t]; !ok {
				firstSeen[t] = len(firstSeen)
			}
			counts[t]++
		}
	}

	top := make([]model.TagCount, 0, len(counts))
	for tag, count := range counts {
		top = append(top, model.TagCount{Tag: tag, Count: count})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return firstSeen[top[i].Tag] < firstSeen[top[j].Tag]
	})
	if len(top) > n {
		top = top[:n]
	}
	return top
}

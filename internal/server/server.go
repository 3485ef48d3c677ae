// Package server provides the HTTP API and the live-update channel.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/bryan-buckman/watchdeck/internal/engine"
	"github.com/bryan-buckman/watchdeck/internal/hub"
	"github.com/bryan-buckman/watchdeck/internal/model"
	"github.com/bryan-buckman/watchdeck/internal/query"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the main HTTP server.
type Server struct {
	engine *engine.Engine
	query  *query.Service
	hub    *hub.Hub
	router chi.Router
}

// New creates a new server.
func New(eng *engine.Engine, q *query.Service, h *hub.Hub) *Server {
	s := &Server{
		engine: eng,
		query:  q,
		hub:    h,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/watches", s.handleListWatches)
		r.Post("/watches", s.handleCreateWatch)
		r.Put("/watches/{watchID}", s.handleUpdateWatch)
		r.Delete("/watches/{watchID}", s.handleDeleteWatch)
		r.Get("/folders", s.handleListFolders)
		r.Post("/folders", s.handleCreateFolder)
		r.Delete("/folders/{folderID}", s.handleDeleteFolder)
		r.Get("/changes/{watchID}", s.handleListChanges)
		r.Post("/bulk", s.handleBulk)
		r.Get("/stats", s.handleStats)
	})

	// Live updates.
	r.Get("/ws", s.handleWebSocket)

	s.router = r
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP on addr.
func (s *Server) Start(addr string) error {
	log.Printf("Server starting on %s", addr)
	return http.ListenAndServe(addr, s.router)
}

// --- API Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"subscribers": s.hub.Count(),
	})
}

func (s *Server) handleListWatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	watches, err := s.query.ListWatches(query.WatchFilter{
		FolderID: q.Get("folder_id"),
		Tag:      q.Get("tag"),
		Status:   q.Get("status"),
		Search:   q.Get("search"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if watches == nil {
		watches = []model.Watch{}
	}
	writeJSON(w, http.StatusOK, watches)
}

func (s *Server) handleCreateWatch(w http.ResponseWriter, r *http.Request) {
	var req engine.CreateWatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	watch, err := s.engine.CreateWatch(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, watch)
}

func (s *Server) handleUpdateWatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "watchID")
	var upd model.WatchUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	watch, err := s.engine.UpdateWatch(id, upd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, watch)
}

func (s *Server) handleDeleteWatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "watchID")
	if err := s.engine.DeleteWatch(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := s.query.ListFolders()
	if err != nil {
		writeError(w, err)
		return
	}
	if folders == nil {
		folders = []model.FolderWithCount{}
	}
	writeJSON(w, http.StatusOK, folders)
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req engine.CreateFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	folder, err := s.engine.CreateFolder(req)
	if err != nil {
		writeError(w, err)
		return
	}
	// A fresh folder has no watches yet.
	writeJSON(w, http.StatusCreated, model.FolderWithCount{Folder: *folder})
}

func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "folderID")
	if err := s.engine.DeleteFolder(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleListChanges(w http.ResponseWriter, r *http.Request) {
	watchID := chi.URLParam(r, "watchID")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		limit = n
	}
	changes, err := s.query.ListChanges(watchID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if changes == nil {
		changes = []model.Change{}
	}
	writeJSON(w, http.StatusOK, changes)
}

func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request) {
	var req engine.BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	affected, err := s.engine.BulkApply(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "affected": affected})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.query.Stats()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": message})
}

// writeError maps engine error categories to HTTP statuses. Storage
// faults are reported generically so internals never leak.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, engine.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.Printf("internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

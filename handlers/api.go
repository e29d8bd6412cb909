package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"arcane-atlas/persistence"
)

// API serves the document store over HTTP. Every successful write or
// delete is reported to the notifier, which fans it out to the world's
// room.
type API struct {
	store    persistence.DocumentStore
	notifier DocumentNotifier
	logger   *slog.Logger
}

// NewAPI creates the document API over the given store and notifier.
func NewAPI(store persistence.DocumentStore, notifier DocumentNotifier) *API {
	return &API{
		store:    store,
		notifier: notifier,
		logger:   slog.With("component", "api"),
	}
}

// Register mounts the API routes on a mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/list-worlds", a.listWorlds)
	mux.HandleFunc("POST /api/world", a.createWorld)
	mux.HandleFunc("DELETE /api/world/{worldId}", a.deleteWorld)
	mux.HandleFunc("GET /api/world/{worldId}/config/{file}", a.getDocument)
	mux.HandleFunc("PUT /api/world/{worldId}/config/{file}", a.putDocument)
	mux.HandleFunc("DELETE /api/world/{worldId}/config/{file}", a.deleteDocument)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (a *API) listWorlds(w http.ResponseWriter, r *http.Request) {
	worlds, err := a.store.ListWorlds(r.Context())
	if err != nil {
		a.logger.Error("failed to list worlds", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list worlds")
		return
	}
	if worlds == nil {
		worlds = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"worlds": worlds})
}

func (a *API) createWorld(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "id required")
		return
	}
	if err := a.store.CreateWorld(r.Context(), req.ID); err != nil {
		a.logger.Error("failed to create world", "world", req.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create world")
		return
	}

	// Seed world metadata unless the world already has it; creating an
	// existing world must not wipe its config.
	if _, err := a.store.GetDocument(r.Context(), req.ID, persistence.WorldDocument); errors.Is(err, persistence.ErrNotFound) {
		name := req.Name
		if name == "" {
			name = req.ID
		}
		meta, _ := json.Marshal(map[string]any{"id": req.ID, "name": name})
		if err := a.store.PutDocument(r.Context(), req.ID, persistence.WorldDocument, meta); err != nil {
			a.logger.Error("failed to seed world metadata", "world", req.ID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": req.ID})
}

func (a *API) deleteWorld(w http.ResponseWriter, r *http.Request) {
	worldID := r.PathValue("worldId")
	if err := a.store.DeleteWorld(r.Context(), worldID); err != nil {
		a.logger.Error("failed to delete world", "world", worldID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete world")
		return
	}
	a.notifier.DocumentChanged(worldID, persistence.WorldDocument, nil)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) getDocument(w http.ResponseWriter, r *http.Request) {
	worldID, file := r.PathValue("worldId"), r.PathValue("file")
	body, err := a.store.GetDocument(r.Context(), worldID, file)
	if errors.Is(err, persistence.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		a.logger.Error("failed to read document", "world", worldID, "doc", file, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read document")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (a *API) putDocument(w http.ResponseWriter, r *http.Request) {
	worldID, file := r.PathValue("worldId"), r.PathValue("file")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 50<<20))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "document too large")
		return
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "body is not valid JSON")
		return
	}
	if err := a.store.PutDocument(r.Context(), worldID, file, body); err != nil {
		a.logger.Error("failed to write document", "world", worldID, "doc", file, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to write document")
		return
	}
	a.notifier.DocumentChanged(worldID, file, body)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) deleteDocument(w http.ResponseWriter, r *http.Request) {
	worldID, file := r.PathValue("worldId"), r.PathValue("file")
	if err := a.store.DeleteDocument(r.Context(), worldID, file); err != nil {
		a.logger.Error("failed to delete document", "world", worldID, "doc", file, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete document")
		return
	}
	a.notifier.DocumentChanged(worldID, file, nil)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

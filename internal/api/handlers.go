package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheclass"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheengine"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheentry"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/edgeerr"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/pipeline"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/syncmanager"
)

// handler holds the three collaborators every endpoint delegates to; it
// carries no other state (spec.md §9: no business logic in the wire layer).
type handler struct {
	pipeline *pipeline.Pipeline
	engine   *cacheengine.Engine
	sync     *syncmanager.Manager
}

func (h *handler) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.health)

	mux.HandleFunc("POST /v1/translate", h.translateRequest)
	mux.HandleFunc("POST /v1/translate/audio", h.translateAudio)

	mux.HandleFunc("GET /v1/cache/{class}/{key}", h.cacheGet)
	mux.HandleFunc("PUT /v1/cache/{class}/{key}", h.cacheSet)
	mux.HandleFunc("POST /v1/cache/clear", h.cacheClear)
	mux.HandleFunc("POST /v1/cache/save", h.cacheSave)
	mux.HandleFunc("GET /v1/cache/stats", h.cacheStats)
	mux.HandleFunc("POST /v1/cache/cleanup", h.cacheCleanup)
	mux.HandleFunc("POST /v1/cache/resolve-conflict", h.resolveConflict)

	mux.HandleFunc("POST /v1/sync/queue", h.syncQueue)
	mux.HandleFunc("POST /v1/sync/run", h.syncRun)
	mux.HandleFunc("GET /v1/sync/test", h.syncTest)
	mux.HandleFunc("GET /v1/sync/status", h.syncStatus)
	mux.HandleFunc("POST /v1/sync/enabled", h.syncSetEnabled)
	mux.HandleFunc("POST /v1/sync/clear", h.syncClear)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- translateRequest / translateAudio -------------------------------------

type translateRequestBody struct {
	Text       string `json:"text"`
	SourceLang string `json:"sourceLang"`
	TargetLang string `json:"targetLang"`
	Context    string `json:"context"`
}

func (h *handler) translateRequest(w http.ResponseWriter, r *http.Request) {
	var body translateRequestBody
	if !decodeJSON(w, r, &body) {
		return
	}
	resp, err := h.pipeline.TranslateRequest(r.Context(), body.Text, body.SourceLang, body.TargetLang, body.Context)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type translateAudioBody struct {
	AudioBase64 string `json:"audioBase64"`
	SourceLang  string `json:"sourceLang"`
	TargetLang  string `json:"targetLang"`
	Context     string `json:"context"`
}

func (h *handler) translateAudio(w http.ResponseWriter, r *http.Request) {
	var body translateAudioBody
	if !decodeJSON(w, r, &body) {
		return
	}
	audio, err := decodeAudio(body.AudioBase64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := h.pipeline.TranslateAudio(r.Context(), audio, body.SourceLang, body.TargetLang, body.Context)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- raw get / set (spec.md §6: get(class,key,opts) / set(class,key,body,opts)) --

func (h *handler) cacheGet(w http.ResponseWriter, r *http.Request) {
	class, ok := parseClass(w, r.PathValue("class"))
	if !ok {
		return
	}
	key := r.PathValue("key")

	opts := cacheengine.GetOptions{
		Version:         r.URL.Query().Get("version"),
		IncludeMetadata: r.URL.Query().Get("metadata") == "true",
	}
	res, err := h.engine.Get(class, key, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type cacheSetBody struct {
	Body        json.RawMessage       `json:"body"`
	TTLMillis   int64                 `json:"ttlMillis"`
	Criticality cacheentry.Criticality `json:"criticality"`
	NeedsSync   bool                  `json:"needsSync"`
	Context     string                `json:"context"`
	Confidence  string                `json:"confidence"`
}

func (h *handler) cacheSet(w http.ResponseWriter, r *http.Request) {
	class, ok := parseClass(w, r.PathValue("class"))
	if !ok {
		return
	}
	key := r.PathValue("key")

	var body cacheSetBody
	if !decodeJSON(w, r, &body) {
		return
	}
	err := h.engine.Set(class, key, body.Body, cacheengine.SetOptions{
		TTLMillis:   body.TTLMillis,
		Criticality: body.Criticality,
		NeedsSync:   body.NeedsSync,
		Context:     body.Context,
		Confidence:  body.Confidence,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// --- clear / clearCache / saveCacheToDisk / getCacheStats -------------------

func (h *handler) cacheClear(w http.ResponseWriter, r *http.Request) {
	class, ok := parseOptionalClass(w, r)
	if !ok {
		return
	}
	if err := h.engine.Clear(class); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *handler) cacheSave(w http.ResponseWriter, r *http.Request) {
	class, ok := parseOptionalClass(w, r)
	if !ok {
		return
	}
	if err := h.engine.SaveToDisk(class); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *handler) cacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Stats())
}

func (h *handler) cacheCleanup(w http.ResponseWriter, r *http.Request) {
	class, ok := parseOptionalClass(w, r)
	if !ok {
		return
	}
	force := r.URL.Query().Get("force") == "true"
	n, err := h.engine.CleanupExpired(class, cacheengine.CleanupOptions{ForceCleanup: force})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

// --- resolveVersionConflict --------------------------------------------------

type resolveConflictBody struct {
	Class    string                    `json:"class"`
	Key      string                    `json:"key"`
	Local    cacheengine.ConflictSide  `json:"local"`
	Remote   cacheengine.ConflictSide  `json:"remote"`
	Strategy cacheengine.ConflictStrategy `json:"strategy"`
}

func (h *handler) resolveConflict(w http.ResponseWriter, r *http.Request) {
	var body resolveConflictBody
	if !decodeJSON(w, r, &body) {
		return
	}
	class, ok := cacheclass.Parse(body.Class)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "unknown cache class: "+body.Class)
		return
	}
	entry, err := h.engine.ResolveConflict(class, body.Key, body.Local, body.Remote, body.Strategy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// --- sync operations ---------------------------------------------------------

type syncQueueBody struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Class      string          `json:"class"`
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt int64           `json:"enqueuedAt"`
}

func (h *handler) syncQueue(w http.ResponseWriter, r *http.Request) {
	var body syncQueueBody
	if !decodeJSON(w, r, &body) {
		return
	}
	class, ok := cacheclass.Parse(body.Class)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "unknown cache class: "+body.Class)
		return
	}
	err := h.sync.Enqueue(&cacheentry.SyncRecord{
		ID: body.ID, Kind: body.Kind, Class: class, Key: body.Key,
		Payload: body.Payload, EnqueuedAt: body.EnqueuedAt,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *handler) syncRun(w http.ResponseWriter, r *http.Request) {
	if err := h.sync.RunCycle(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.sync.Status())
}

func (h *handler) syncTest(w http.ResponseWriter, r *http.Request) {
	if err := h.sync.TestConnection(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"reachable": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reachable": true})
}

func (h *handler) syncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sync.Status())
}

func (h *handler) syncSetEnabled(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	h.sync.SetEnabled(body.Enabled)
	writeJSON(w, http.StatusOK, h.sync.Status())
}

func (h *handler) syncClear(w http.ResponseWriter, r *http.Request) {
	if err := h.sync.ClearQueue(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// --- helpers ------------------------------------------------------------

func parseClass(w http.ResponseWriter, raw string) (cacheclass.Class, bool) {
	class, ok := cacheclass.Parse(raw)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "unknown cache class: "+raw)
		return 0, false
	}
	return class, true
}

// parseOptionalClass reads an optional "class" query param; absent means
// "every class" (nil), matching clear(class?)/saveCacheToDisk(class?)/
// cleanupExpiredEntries(class?) from spec.md §6.
func parseOptionalClass(w http.ResponseWriter, r *http.Request) (*cacheclass.Class, bool) {
	raw := r.URL.Query().Get("class")
	if raw == "" {
		return nil, true
	}
	class, ok := cacheclass.Parse(raw)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "unknown cache class: "+raw)
		return nil, false
	}
	return &class, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func decodeAudio(b64 string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(b64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps the edgeerr sentinels surfaced across the cache engine,
// sync manager and pipeline to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, edgeerr.NotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, edgeerr.InvalidClass), errors.Is(err, edgeerr.BadRequest):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, edgeerr.CacheDisabled):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, edgeerr.UpstreamUnreachable):
		writeJSONError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, edgeerr.ConflictUnresolved):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, edgeerr.EngineFailed):
		writeJSONError(w, http.StatusBadGateway, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

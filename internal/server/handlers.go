package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/tapeview/internal/acquire"
	"github.com/hyperjump/tapeview/internal/archive"
	"github.com/hyperjump/tapeview/internal/catalog"
	"github.com/hyperjump/tapeview/internal/models"
	"github.com/hyperjump/tapeview/internal/storage"
	"github.com/hyperjump/tapeview/internal/viewer"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

type acquireResponse struct {
	Status string          `json:"status"`
	State  viewer.Snapshot `json:"state"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.viewer.Snapshot())
}

type modeRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	mode := models.ParseMode(req.Mode, models.FallbackMode)
	s.logger.Debug("set mode request", zap.String("requested", req.Mode), zap.String("mode", string(mode)))
	if err := s.viewer.SetMode(mode); err != nil {
		s.respondViewerError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.viewer.Snapshot())
}

type charsetRequest struct {
	Charset bool `json:"charset"`
}

func (s *Server) handleSetCharset(w http.ResponseWriter, r *http.Request) {
	var req charsetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.viewer.SetCharset(req.Charset); err != nil {
		s.respondViewerError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.viewer.Snapshot())
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.viewer.Snapshot().LocalDisabled {
		s.respondError(w, http.StatusConflict, acquire.ErrLocalDisabled.Error())
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, archive.MaxMemberSize+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, archive.MaxMemberSize+1))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(data) > archive.MaxMemberSize {
		s.respondError(w, http.StatusRequestEntityTooLarge, archive.ErrTooLarge.Error())
		return
	}
	s.logger.Debug("upload request", zap.String("name", header.Filename), zap.Int("bytes", len(data)))
	s.acquire(w, r, acquire.Upload{Name: header.Filename, Data: data})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if s.viewer.Snapshot().LocalDisabled {
		s.respondError(w, http.StatusConflict, acquire.ErrLocalDisabled.Error())
		return
	}
	s.acquire(w, r, acquire.None{})
}

type fetchRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		s.respondError(w, http.StatusBadRequest, "url is required")
		return
	}
	s.logger.Debug("fetch request", zap.String("url", req.URL))
	s.acquire(w, r, acquire.Remote{URL: req.URL})
}

func (s *Server) acquire(w http.ResponseWriter, r *http.Request, src acquire.Source) {
	out, err := s.viewer.Acquire(r.Context(), src)
	if err != nil {
		s.respondViewerError(w, err)
		return
	}
	if out.Status == acquire.StatusRejected {
		s.respondError(w, http.StatusConflict, out.Err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, acquireResponse{Status: out.Status.String(), State: s.viewer.Snapshot()})
}

type saveRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	a, err := s.viewer.Save(r.Context(), req.Name)
	if err != nil {
		if errors.Is(err, viewer.ErrNotReady) {
			s.respondViewerError(w, err)
			return
		}
		s.logger.Error("save failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if a == nil {
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "nothing to save"})
		return
	}
	s.respondJSON(w, http.StatusCreated, a)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	snap := s.viewer.Snapshot()
	if !snap.CanSave {
		s.respondError(w, http.StatusNotFound, "nothing to download")
		return
	}
	name := snap.SaveName
	if q := r.URL.Query().Get("name"); q != "" {
		name = q
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, snap.Text)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondError(w, http.StatusNotImplemented, "history not enabled")
		return
	}
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", defaultPageSize)
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	items, err := s.history.List(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("history list failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.history.Count(r.Context())
	if err != nil {
		s.logger.Error("history count failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []*models.Artifact{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"artifacts": items, "total": total})
}

func (s *Server) handleHistoryEntry(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondError(w, http.StatusNotImplemented, "history not enabled")
		return
	}
	a, err := s.history.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "artifact not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, a)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		s.respondError(w, http.StatusNotImplemented, "search not enabled")
		return
	}
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := queryInt(r, "limit", catalog.DefaultLimit)
	if limit > maxPageSize {
		limit = catalog.DefaultLimit
	}
	opts := &catalog.SearchOptions{
		NameBoost: 2.0,
		Fuzziness: queryInt(r, "fuzziness", 0),
	}
	if m := q.Get("mode"); m != "" {
		opts.Mode = models.ParseMode(m, models.FallbackMode)
	}
	s.logger.Debug("search request", zap.String("query", query), zap.Int("limit", limit))
	hits, err := s.catalog.Search(r.Context(), query, limit, opts)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if hits == nil {
		hits = []models.CatalogHit{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"query": query, "hits": hits})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.viewer.Snapshot()
	resp := map[string]interface{}{
		"viewer": s.viewer.Profile().Kind,
		"ready":  snap.Ready,
		"mode":   snap.Mode,
		"loaded": snap.Loaded,
	}
	if s.history != nil {
		if n, err := s.history.Count(r.Context()); err == nil {
			resp["saved"] = n
		} else {
			s.logger.Warn("status: count history failed", zap.Error(err))
		}
	}
	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"database_path":    s.config.Storage.DatabasePath,
			"bleve_index_path": s.config.Storage.BleveIndexPath,
			"output_directory": s.config.Output.Directory,
		}
		if bytes, err := storage.Footprint(s.config.Storage.DatabasePath, s.config.Storage.BleveIndexPath); err == nil {
			resp["disk_usage_bytes"] = bytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondViewerError(w http.ResponseWriter, err error) {
	if errors.Is(err, viewer.ErrNotReady) {
		s.respondError(w, http.StatusServiceUnavailable, s.viewer.Snapshot().Text)
		return
	}
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

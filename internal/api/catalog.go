package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-catalog/internal/catalog/source"
	"github.com/nerrad567/gray-logic-catalog/internal/catalog/update"
	"github.com/nerrad567/gray-logic-catalog/internal/device"
	"github.com/nerrad567/gray-logic-catalog/internal/history"
)

// handleListDevices returns corpus entries.
//
// Query parameters:
//   - category: filter by category
//   - archived: "true" lists entries retired by merges instead of active ones
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	var devices []device.Entry
	switch {
	case r.URL.Query().Get("archived") == "true":
		for _, e := range s.corpus.Archived() {
			if category == "" || e.Category == category {
				devices = append(devices, e)
			}
		}
	case category != "":
		devices = s.corpus.ByCategory(category)
	default:
		devices = s.corpus.Active()
	}
	if devices == nil {
		devices = []device.Entry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns one entry. Ids are unique per category only, so an
// id present in several categories needs ?category= to disambiguate.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if category := r.URL.Query().Get("category"); category != "" {
		e, err := s.corpus.Get(device.Key{ID: id, Category: category})
		if err != nil {
			if errors.Is(err, device.ErrEntryNotFound) {
				writeNotFound(w, "device not found")
				return
			}
			writeInternalError(w, "failed to get device")
			return
		}
		writeJSON(w, http.StatusOK, e)
		return
	}

	matches := s.corpus.FindByID(id)
	switch len(matches) {
	case 0:
		writeNotFound(w, "device not found")
	case 1:
		writeJSON(w, http.StatusOK, matches[0])
	default:
		categories := make([]string, len(matches))
		for i, e := range matches {
			categories[i] = e.Category
		}
		writeErrorDetails(w, http.StatusConflict, ErrCodeConflict,
			"device id exists in several categories; pass ?category=",
			map[string]any{"categories": categories})
	}
}

// handleListDataPoints returns the whole canonical schema keyed by category
// then data point id.
func (s *Server) handleListDataPoints(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": s.schema.Export(),
		"count":      s.schema.Len(),
		"conflicts":  s.schema.Conflicts(),
	})
}

// handleGetCategory returns the data points of one category ordered by id.
func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")

	defs := s.schema.Category(category)
	if len(defs) == 0 {
		writeNotFound(w, "category not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"category":   category,
		"datapoints": defs,
		"count":      len(defs),
	})
}

// sourceView adds refresh state to a registered source.
type sourceView struct {
	source.Source
	Due bool `json:"due"`
}

// handleListSources returns the registered catalog sources.
func (s *Server) handleListSources(w http.ResponseWriter, _ *http.Request) {
	list := s.sources.List()
	views := make([]sourceView, len(list))
	for i, src := range list {
		views[i] = sourceView{Source: src, Due: s.sources.ShouldUpdate(src.ID)}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": views, "count": len(views)})
}

// updateRequest is the body of POST /update. An empty body runs a normal
// cycle over every source.
type updateRequest struct {
	Force   bool     `json:"force"`
	Sources []string `json:"sources"`

	// Wait holds the response until the cycle finishes and returns its report.
	Wait bool `json:"wait"`
}

// handleUpdate triggers an update cycle.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if s.updater == nil {
		writeUnavailable(w, "updates are not enabled")
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if len(req.Sources) > 0 {
		if _, unknown := s.sources.Select(req.Sources); len(unknown) > 0 {
			writeErrorDetails(w, http.StatusBadRequest, ErrCodeUnknownSource,
				"unknown sources: "+strings.Join(unknown, ", "),
				map[string]any{"sources": unknown})
			return
		}
	}

	opts := update.Options{ForceUpdate: req.Force, SourceFilter: req.Sources}

	if req.Wait {
		writeJSON(w, http.StatusOK, s.updater.UpdateAll(r.Context(), opts))
		return
	}

	if s.ctx.Err() != nil {
		writeUnavailable(w, "server is shutting down")
		return
	}

	ctx := s.ctx
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		rep := s.updater.UpdateAll(ctx, opts)
		s.logger.Info("update cycle finished",
			"report_id", rep.ID,
			"total_devices", rep.TotalDevices,
			"errors", len(rep.Errors),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":  "accepted",
		"force":   req.Force,
		"sources": req.Sources,
	})
}

// handleListReports returns stored update reports, most recent first.
//
// Query parameters:
//   - limit, offset: paging (limit defaults to 50, max 200)
//   - failed: "true" lists only reports with source errors
//   - since: RFC 3339 lower bound on the report timestamp
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		writeUnavailable(w, "report history is not enabled")
		return
	}

	q := r.URL.Query()
	filter := history.Filter{OnlyFailed: q.Get("failed") == "true"}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeBadRequest(w, "limit must be an integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeBadRequest(w, "offset must be an integer")
		return
	}
	if since := q.Get("since"); since != "" {
		if filter.Since, err = time.Parse(time.RFC3339, since); err != nil {
			writeBadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
	}

	result, err := s.reports.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing reports", "error", err)
		writeInternalError(w, "failed to list reports")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleLatestReport returns the most recent update report.
func (s *Server) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		writeUnavailable(w, "report history is not enabled")
		return
	}
	s.writeReport(w, func() (*update.Report, error) { return s.reports.Latest(r.Context()) })
}

// handleGetReport returns one update report by id.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		writeUnavailable(w, "report history is not enabled")
		return
	}
	id := chi.URLParam(r, "id")
	s.writeReport(w, func() (*update.Report, error) { return s.reports.Get(r.Context(), id) })
}

func (s *Server) writeReport(w http.ResponseWriter, load func() (*update.Report, error)) {
	rep, err := load()
	if err != nil {
		if errors.Is(err, history.ErrReportNotFound) {
			writeNotFound(w, "report not found")
			return
		}
		s.logger.Error("loading report", "error", err)
		writeInternalError(w, "failed to load report")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handleListFusions returns the committed merge history, oldest first.
func (s *Server) handleListFusions(w http.ResponseWriter, r *http.Request) {
	merges, err := s.corpus.Merges(r.Context())
	if err != nil {
		s.logger.Error("listing merges", "error", err)
		writeInternalError(w, "failed to list fusions")
		return
	}
	if merges == nil {
		merges = []device.Merge{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"fusions": merges, "count": len(merges)})
}

// handleClassify runs the classifier on ?name= and explains the decision.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if strings.TrimSpace(name) == "" {
		writeBadRequest(w, "name query parameter is required")
		return
	}
	writeJSON(w, http.StatusOK, s.classifier.ClassifyDetailed(name))
}

// intParam parses an optional non-negative integer query parameter.
func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("invalid integer")
	}
	return n, nil
}

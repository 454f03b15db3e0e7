package http

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
	"github.com/secmon-lab/mnemosyne/pkg/utils/errutil"
	"github.com/secmon-lab/mnemosyne/pkg/utils/safe"
)

const (
	maxProjectLength = 100
	maxSearchLimit   = 50
	maxListLimit     = 100
)

type memoryResponse struct {
	ID        model.MemoryID `json:"id"`
	Text      string         `json:"text"`
	Score     *float64       `json:"score"`
	Project   *string        `json:"project"`
	Tags      []string       `json:"tags"`
	CreatedAt string         `json:"created_at"`
}

func toMemoryResponses(results []*model.SearchResult) []memoryResponse {
	resp := make([]memoryResponse, len(results))
	for i, r := range results {
		resp[i] = memoryResponse{
			ID:        r.ID,
			Text:      r.Text,
			Score:     r.Score,
			Tags:      r.Tags,
			CreatedAt: r.CreatedAt,
		}
		if r.Project != "" {
			project := r.Project
			resp[i].Project = &project
		}
	}
	return resp
}

// parseTags splits a comma separated list, trimming spaces and dropping empty items.
func parseTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// intParam reads an optional integer query parameter bounded by [lo, hi].
func intParam(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		return 0, goerr.Wrap(model.ErrValidation, name+" must be an integer between "+strconv.Itoa(lo)+" and "+strconv.Itoa(hi),
			goerr.V(name, raw))
	}
	return v, nil
}

func checkProject(project string) error {
	if utf8.RuneCountInString(project) > maxProjectLength {
		return goerr.Wrap(model.ErrValidation, "project must be at most 100 characters", goerr.V(model.ProjectKey, project))
	}
	return nil
}

type saveRequest struct {
	Text    string   `json:"text"`
	Project *string  `json:"project"`
	Tags    []string `json:"tags"`
}

type saveResponse struct {
	ID        model.MemoryID `json:"id"`
	Saved     bool           `json:"saved"`
	Reason    string         `json:"reason"`
	Duplicate bool           `json:"duplicate"`
}

func (s *Server) saveHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(model.ErrValidation, "invalid request body", goerr.V("cause", err.Error())), http.StatusBadRequest)
		return
	}
	defer safe.Drain(ctx, r.Body)

	if req.Text == "" {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(model.ErrValidation, "text is required"), http.StatusBadRequest)
		return
	}

	input := usecase.SaveInput{Text: req.Text, Tags: req.Tags}
	if req.Project != nil {
		input.Project = *req.Project
	}
	if err := checkProject(input.Project); err != nil {
		errutil.HandleHTTP(ctx, w, err, http.StatusBadRequest)
		return
	}

	result, err := s.memory.SaveMemory(ctx, input)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, errutil.StatusCode(err))
		return
	}

	writeJSON(w, r, http.StatusOK, saveResponse{
		ID:        result.ID,
		Saved:     true,
		Reason:    result.Reason,
		Duplicate: result.Duplicate,
	})
}

type searchResponse struct {
	Query   string           `json:"query"`
	Results []memoryResponse `json:"results"`
	Total   int              `json:"total"`
}

func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	query := q.Get("q")
	if query == "" {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(model.ErrValidation, "q is required"), http.StatusBadRequest)
		return
	}

	limit, err := intParam(r, "limit", usecase.DefaultSearchLimit, 1, maxSearchLimit)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, http.StatusBadRequest)
		return
	}

	threshold := s.memory.DefaultThreshold()
	if raw := q.Get("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || v < 0 || v > 1 {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(model.ErrValidation, "threshold must be a number between 0 and 1", goerr.V("threshold", raw)), http.StatusBadRequest)
			return
		}
		threshold = v
	}

	results, err := s.memory.SearchMemory(ctx, usecase.SearchInput{
		Query:      query,
		Project:    q.Get("project"),
		Tags:       parseTags(q.Get("tags")),
		Limit:      limit,
		Threshold:  &threshold,
		AfterDate:  q.Get("after_date"),
		BeforeDate: q.Get("before_date"),
	})
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, errutil.StatusCode(err))
		return
	}

	writeJSON(w, r, http.StatusOK, searchResponse{
		Query:   query,
		Results: toMemoryResponses(results),
		Total:   len(results),
	})
}

type listResponse struct {
	Memories   []memoryResponse `json:"memories"`
	Page       int              `json:"page"`
	TotalPages int              `json:"total_pages"`
	TotalItems int              `json:"total_items"`
}

func (s *Server) listHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	page, err := intParam(r, "page", 1, 1, math.MaxInt32)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, http.StatusBadRequest)
		return
	}
	limit, err := intParam(r, "limit", usecase.DefaultListLimit, 1, maxListLimit)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, http.StatusBadRequest)
		return
	}

	sort := model.SortOrder(q.Get("sort"))
	if sort == "" {
		sort = model.SortByDate
	}

	result, err := s.memory.ListMemories(ctx, usecase.ListInput{
		Project: q.Get("project"),
		Tags:    parseTags(q.Get("tags")),
		Page:    page,
		Limit:   limit,
		Sort:    sort,
		Query:   q.Get("q"),
	})
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, errutil.StatusCode(err))
		return
	}

	writeJSON(w, r, http.StatusOK, listResponse{
		Memories:   toMemoryResponses(result.Memories),
		Page:       page,
		TotalPages: (result.Total + limit - 1) / limit,
		TotalItems: result.Total,
	})
}

type deleteResponse struct {
	Deleted bool           `json:"deleted"`
	ID      model.MemoryID `json:"id"`
}

func (s *Server) deleteHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := model.MemoryID(chi.URLParam(r, "id"))

	deleted, err := s.memory.DeleteMemory(ctx, id)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, errutil.StatusCode(err))
		return
	}
	if !deleted {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(usecase.ErrMemoryNotFound, "Memory not found", goerr.V(model.MemoryIDKey, id)), http.StatusNotFound)
		return
	}

	writeJSON(w, r, http.StatusOK, deleteResponse{Deleted: true, ID: id})
}

func (s *Server) archiveHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := model.MemoryID(chi.URLParam(r, "id"))

	archived, err := s.memory.ArchiveMemory(ctx, id)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, errutil.StatusCode(err))
		return
	}
	if !archived {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(usecase.ErrMemoryNotFound, "Memory not found or already archived", goerr.V(model.MemoryIDKey, id)), http.StatusNotFound)
		return
	}

	writeJSON(w, r, http.StatusOK, deleteResponse{Deleted: true, ID: id})
}

type bulkDeleteRequest struct {
	Project    *string `json:"project"`
	BeforeDate *string `json:"before_date"`
}

type bulkDeleteResponse struct {
	DeletedCount int `json:"deleted_count"`
}

func (s *Server) bulkDeleteHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req bulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(model.ErrValidation, "invalid request body", goerr.V("cause", err.Error())), http.StatusBadRequest)
		return
	}
	defer safe.Drain(ctx, r.Body)

	var input usecase.BulkDeleteInput
	if req.Project != nil {
		input.Project = *req.Project
	}
	if req.BeforeDate != nil {
		input.BeforeDate = *req.BeforeDate
	}

	deleted, err := s.memory.BulkDelete(ctx, input)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, errutil.StatusCode(err))
		return
	}

	writeJSON(w, r, http.StatusOK, bulkDeleteResponse{DeletedCount: deleted})
}

type statsResponse struct {
	TotalMemories int            `json:"total_memories"`
	TotalProjects int            `json:"total_projects"`
	StorageMB     float64        `json:"storage_mb"`
	ByProject     map[string]int `json:"by_project"`
	TopTags       []string       `json:"top_tags"`
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := s.memory.Stats(ctx)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, errutil.StatusCode(err))
		return
	}

	byProject := stats.ByProject
	if byProject == nil {
		byProject = map[string]int{}
	}
	topTags := stats.TopTags
	if topTags == nil {
		topTags = []string{}
	}

	writeJSON(w, r, http.StatusOK, statsResponse{
		TotalMemories: stats.TotalCount,
		TotalProjects: len(byProject),
		StorageMB:     math.Round(float64(stats.StorageBytes)/(1024*1024)*100) / 100,
		ByProject:     byProject,
		TopTags:       topTags,
	})
}

func (s *Server) exportHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	format := model.ExportFormat(q.Get("format"))
	if format == "" {
		format = model.ExportJSON
	}

	result, err := s.memory.Export(ctx, format, q.Get("project"))
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, errutil.StatusCode(err))
		return
	}

	w.Header().Set("Content-Type", result.ContentType)
	w.WriteHeader(http.StatusOK)
	safe.Write(ctx, w, result.Body)
}

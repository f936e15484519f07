package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/logging"
)

// bookResponse 是单条推荐的输出格式。
type bookResponse struct {
	ItemID        string   `json:"itemId"`
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	Description   string   `json:"description"`
	Thumbnail     string   `json:"thumbnail"`
	AverageRating float64  `json:"averageRating"`
	RatingsCount  int      `json:"ratingsCount"`
	Score         float64  `json:"score"`
}

// byItemsRequest 是 by-items 请求体。
// 新格式用 items 显式标明类型；旧格式 itemIds 中的每个值都按检索串处理。
type byItemsRequest struct {
	Items   []identifierRequest `json:"items" validate:"omitempty,dive"`
	ItemIDs []string            `json:"itemIds" validate:"omitempty,dive,required"`
}

type identifierRequest struct {
	Kind  string `json:"kind" validate:"required,oneof=key query"`
	Value string `json:"value" validate:"required"`
}

func (req byItemsRequest) identifiers() []core.Identifier {
	if len(req.Items) > 0 {
		ids := make([]core.Identifier, 0, len(req.Items))
		for _, it := range req.Items {
			ids = append(ids, core.Identifier{Kind: core.IdentifierKind(it.Kind), Value: it.Value})
		}
		return ids
	}
	ids := make([]core.Identifier, 0, len(req.ItemIDs))
	for _, v := range req.ItemIDs {
		ids = append(ids, core.Identifier{Kind: core.IdentifierQuery, Value: v})
	}
	return ids
}

type healthResponse struct {
	Status    string     `json:"status"`
	Trained   bool       `json:"trained"`
	Users     int        `json:"users"`
	Items     int        `json:"items"`
	Metric    string     `json:"metric,omitempty"`
	TrainedAt *time.Time `json:"trainedAt,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if st, ok := s.rec.Stats(); ok {
		resp.Trained = true
		resp.Users = st.Users
		resp.Items = st.Items
		resp.Metric = string(st.Metric)
		resp.TrainedAt = &st.TrainedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGlobal(w http.ResponseWriter, r *http.Request) {
	limit, err := s.parseLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	recs, err := s.rec.GlobalRecommendations(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(recs))
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	limit, err := s.parseLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		writeError(w, r, badRequest("userID is required"))
		return
	}
	recs, err := s.rec.RecommendForUser(r.Context(), userID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(recs))
}

func (s *Server) handleByItems(w http.ResponseWriter, r *http.Request) {
	limit, err := s.parseLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req byItemsRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, r, badRequest("read body: "+err.Error()))
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, r, badRequest("invalid json: "+err.Error()))
			return
		}
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, r, badRequest(err.Error()))
		return
	}

	recs, err := s.rec.RecommendByItems(r.Context(), req.identifiers(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(recs))
}

func (s *Server) handleRetrain(w http.ResponseWriter, r *http.Request) {
	if err := s.rec.Retrain(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	s.handleHealth(w, r)
}

// parseLimit 解析 limit 参数；缺省取 DefaultLimit，取值范围 [0, MaxLimit]。
func (s *Server) parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return s.defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > MaxLimit {
		return 0, badRequest(fmt.Sprintf("limit must be an integer between 0 and %d", MaxLimit))
	}
	return n, nil
}

func toResponse(recs []core.Recommendation) []bookResponse {
	out := make([]bookResponse, 0, len(recs))
	for _, rec := range recs {
		resp := bookResponse{ItemID: rec.ItemID, Score: rec.Score, Authors: []string{}}
		if b := rec.Book; b != nil {
			resp.Title = b.Title
			if b.Authors != nil {
				resp.Authors = b.Authors
			}
			resp.Description = b.Description
			resp.Thumbnail = b.Thumbnail
			resp.AverageRating = b.AverageRating
			resp.RatingsCount = b.RatingsCount
		}
		out = append(out, resp)
	}
	return out
}

func badRequest(msg string) error {
	return core.NewDomainError("server", core.ErrorCodeInvalidInput, msg)
}

func statusOf(err error) int {
	switch {
	case core.IsInvalidInput(err):
		return http.StatusBadRequest
	case core.IsNotFound(err):
		return http.StatusNotFound
	case core.IsUnavailable(err):
		return http.StatusServiceUnavailable
	case core.IsNotSupported(err):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	resp := errorResponse{Error: err.Error()}
	if de := core.GetDomainError(err); de != nil {
		resp.Code = de.Code
	}
	if status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

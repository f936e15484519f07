package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/model"
)

type fakeRecommender struct {
	trained  bool
	lastUser string
	lastIDs  []core.Identifier
	lastN    int
	err      error
}

func (f *fakeRecommender) RecommendForUser(_ context.Context, userID string, count int) ([]core.Recommendation, error) {
	f.lastUser, f.lastN = userID, count
	if f.err != nil {
		return nil, f.err
	}
	if !f.trained {
		return nil, core.ErrModelNotTrained
	}
	return []core.Recommendation{
		{ItemID: "30", Score: 1.5, Book: &core.Book{ItemID: "30", Title: "Emma", Authors: []string{"Jane Austen"}, RatingsCount: 7}},
		{ItemID: "60", Score: 0},
	}[:min(count, 2)], nil
}

func (f *fakeRecommender) GlobalRecommendations(_ context.Context, count int) ([]core.Recommendation, error) {
	f.lastN = count
	return []core.Recommendation{{ItemID: "g1", Book: &core.Book{ItemID: "g1", Title: "Global"}}}, nil
}

func (f *fakeRecommender) RecommendByItems(_ context.Context, ids []core.Identifier, count int) ([]core.Recommendation, error) {
	f.lastIDs, f.lastN = ids, count
	return []core.Recommendation{}, nil
}

func (f *fakeRecommender) Retrain(context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.trained = true
	return nil
}

func (f *fakeRecommender) Stats() (model.Stats, bool) {
	if !f.trained {
		return model.Stats{}, false
	}
	return model.Stats{Users: 3, Items: 6, Metric: model.MetricCosine, TrainedAt: time.Unix(0, 0)}, true
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRecommendUser(t *testing.T) {
	f := &fakeRecommender{trained: true}
	s := New(f, Options{})

	rec := do(t, s, http.MethodGet, "/recommend/user/42", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if f.lastUser != "42" || f.lastN != 10 {
		t.Errorf("engine called with user=%q n=%d, want 42 and default 10", f.lastUser, f.lastN)
	}
	var got []bookResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Title != "Emma" || got[0].Score != 1.5 || got[0].RatingsCount != 7 {
		t.Errorf("response = %+v", got)
	}
	if got[1].ItemID != "60" || got[1].Authors == nil {
		t.Errorf("entry without metadata = %+v", got[1])
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestLimitParsing(t *testing.T) {
	tests := []struct {
		target string
		status int
		n      int
	}{
		{target: "/recommend/global?limit=3", status: http.StatusOK, n: 3},
		{target: "/recommend/global?limit=0", status: http.StatusOK, n: 0},
		{target: "/recommend/global?limit=-1", status: http.StatusBadRequest},
		{target: "/recommend/global?limit=abc", status: http.StatusBadRequest},
		{target: "/recommend/global?limit=1000", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			f := &fakeRecommender{}
			rec := do(t, New(f, Options{DefaultLimit: 5}), http.MethodGet, tt.target, "")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body)
			}
			if tt.status == http.StatusOK && f.lastN != tt.n {
				t.Errorf("limit = %d, want %d", f.lastN, tt.n)
			}
		})
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		f      *fakeRecommender
		status int
	}{
		{name: "not trained", f: &fakeRecommender{}, status: http.StatusServiceUnavailable},
		{name: "invalid count", f: &fakeRecommender{err: core.ErrInvalidCount}, status: http.StatusBadRequest},
		{name: "internal", f: &fakeRecommender{err: context.DeadlineExceeded}, status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, New(tt.f, Options{}), http.MethodGet, "/recommend/user/1", "")
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			var body errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Error == "" {
				t.Errorf("error body = %s", rec.Body)
			}
		})
	}
}

func TestByItems(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		want   []core.Identifier
	}{
		{
			name:   "tagged identifiers",
			body:   `{"items":[{"kind":"key","value":"zyTCAlFPjgYC"},{"kind":"query","value":"dune"}]}`,
			status: http.StatusOK,
			want: []core.Identifier{
				{Kind: core.IdentifierCatalogKey, Value: "zyTCAlFPjgYC"},
				{Kind: core.IdentifierQuery, Value: "dune"},
			},
		},
		{
			name:   "legacy item ids",
			body:   `{"itemIds":["The Hobbit"]}`,
			status: http.StatusOK,
			want:   []core.Identifier{{Kind: core.IdentifierQuery, Value: "The Hobbit"}},
		},
		{name: "empty body", body: ``, status: http.StatusOK, want: []core.Identifier{}},
		{name: "bad kind", body: `{"items":[{"kind":"isbn","value":"1"}]}`, status: http.StatusBadRequest},
		{name: "empty value", body: `{"itemIds":[""]}`, status: http.StatusBadRequest},
		{name: "bad json", body: `{"items":`, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeRecommender{}
			rec := do(t, New(f, Options{}), http.MethodPost, "/recommend/by-items?limit=4", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body)
			}
			if tt.status != http.StatusOK {
				return
			}
			if len(f.lastIDs) != len(tt.want) {
				t.Fatalf("identifiers = %+v, want %+v", f.lastIDs, tt.want)
			}
			for i := range tt.want {
				if f.lastIDs[i] != tt.want[i] {
					t.Errorf("identifiers[%d] = %+v, want %+v", i, f.lastIDs[i], tt.want[i])
				}
			}
			if f.lastN != 4 {
				t.Errorf("limit = %d, want 4", f.lastN)
			}
			if strings.TrimSpace(rec.Body.String()) != "[]" {
				t.Errorf("body = %s, want []", rec.Body)
			}
		})
	}
}

func TestHealthAndRetrain(t *testing.T) {
	f := &fakeRecommender{}
	s := New(f, Options{AdminRetrain: true, RetrainPerMinute: 10})

	var h healthResponse
	rec := do(t, s, http.MethodGet, "/health", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &h); err != nil || rec.Code != http.StatusOK {
		t.Fatalf("health = %d %s", rec.Code, rec.Body)
	}
	if h.Trained {
		t.Error("health reports trained before training")
	}

	rec = do(t, s, http.MethodPost, "/admin/retrain", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("retrain status = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &h); err != nil || !h.Trained || h.Items != 6 {
		t.Errorf("retrain response = %s", rec.Body)
	}

	f.err = core.NewDomainError(core.ModuleEngine, core.ErrorCodeNotSupported, "no loader")
	if rec := do(t, s, http.MethodPost, "/admin/retrain", ""); rec.Code != http.StatusNotImplemented {
		t.Errorf("retrain without loader status = %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := New(&fakeRecommender{}, Options{})
	do(t, s, http.MethodGet, "/health", "")
	rec := do(t, s, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "bookrec_http_requests_total") {
		t.Errorf("metrics status = %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	s := New(&fakeRecommender{}, Options{RateLimit: 2})
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, do(t, s, http.MethodGet, "/recommend/global", "").Code)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want third request limited", codes)
	}
}

func TestAdminRetrainGuards(t *testing.T) {
	tests := []struct {
		name  string
		opts  Options
		calls int
		want  []int
	}{
		{name: "disabled by default", opts: Options{}, calls: 1, want: []int{http.StatusNotFound}},
		{
			name:  "limited to one per minute",
			opts:  Options{AdminRetrain: true},
			calls: 2,
			want:  []int{http.StatusOK, http.StatusTooManyRequests},
		},
		{
			name:  "configured budget",
			opts:  Options{AdminRetrain: true, RetrainPerMinute: 2},
			calls: 3,
			want:  []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeRecommender{}
			s := New(f, tt.opts)
			got := make([]int, 0, tt.calls)
			for i := 0; i < tt.calls; i++ {
				got = append(got, do(t, s, http.MethodPost, "/admin/retrain", "").Code)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("codes = %v, want %v", got, tt.want)
			}
		})
	}
}

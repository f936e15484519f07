package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"slices"
	"sync"
	"testing"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/filter"
	"github.com/rushteam/bookrec/model"
	"github.com/rushteam/bookrec/pipeline"
	"github.com/rushteam/bookrec/rating"
)

type fakeFallback struct {
	mu     sync.Mutex
	global []core.Recommendation
	byItem []core.Recommendation
	calls  int
}

func (f *fakeFallback) GlobalRecommendations(_ context.Context, count int) ([]core.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if count > len(f.global) {
		count = len(f.global)
	}
	return f.global[:count], nil
}

func (f *fakeFallback) RecommendByItems(_ context.Context, _ []core.Identifier, count int) ([]core.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if count > len(f.byItem) {
		count = len(f.byItem)
	}
	return f.byItem[:count], nil
}

func newFallback() *fakeFallback {
	return &fakeFallback{
		global: []core.Recommendation{{ItemID: "g1"}, {ItemID: "g2"}, {ItemID: "g3"}, {ItemID: "g4"}, {ItemID: "g5"}, {ItemID: "g6"}},
		byItem: []core.Recommendation{{ItemID: "b1"}},
	}
}

func mustStore(t *testing.T, ratings []core.Rating, books []core.Book) *rating.Store {
	t.Helper()
	s, err := rating.NewStore(ratings, books)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s
}

func sampleStore(t *testing.T) *rating.Store {
	ratings := []core.Rating{
		{UserID: "1", ItemID: "10", Value: 5},
		{UserID: "1", ItemID: "20", Value: 4},
		{UserID: "2", ItemID: "10", Value: 4},
		{UserID: "2", ItemID: "30", Value: 5},
		{UserID: "2", ItemID: "40", Value: 2},
		{UserID: "3", ItemID: "20", Value: 3},
		{UserID: "3", ItemID: "30", Value: 1},
		{UserID: "3", ItemID: "50", Value: 4},
		{UserID: "4", ItemID: "60", Value: 0},
	}
	books := []core.Book{
		{ItemID: "10", Title: "Dune"},
		{ItemID: "30", Title: "Emma", Authors: []string{"Jane Austen"}, RatingsCount: 40},
		{ItemID: "40", Title: "Beowulf", Authors: []string{"Anonymous"}},
	}
	return mustStore(t, ratings, books)
}

func trained(t *testing.T, opts Options, src *rating.Store) *Engine {
	t.Helper()
	e := New(opts)
	if err := e.Train(context.Background(), src); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	return e
}

func ids(recs []core.Recommendation) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ItemID)
	}
	return out
}

func TestRecommendForUser_CountContract(t *testing.T) {
	ctx := context.Background()

	untrained := New(Options{Fallback: newFallback()})
	if _, err := untrained.RecommendForUser(ctx, "1", 5); !errors.Is(err, core.ErrModelNotTrained) {
		t.Errorf("untrained error = %v, want ErrModelNotTrained", err)
	}
	if _, err := untrained.RecommendForUser(ctx, "1", -1); !errors.Is(err, core.ErrInvalidCount) {
		t.Errorf("negative count error = %v, want ErrInvalidCount", err)
	}

	e := trained(t, Options{Fallback: newFallback()}, sampleStore(t))
	for _, count := range []int{0, 1, 2, 3, 100} {
		recs, err := e.RecommendForUser(ctx, "1", count)
		if err != nil {
			t.Fatalf("RecommendForUser(count=%d) error = %v", count, err)
		}
		// 用户 1 喜欢 10、20，候选为 30、40、50、60
		want := count
		if want > 4 {
			want = 4
		}
		if len(recs) != want {
			t.Errorf("RecommendForUser(count=%d) len = %d, want %d", count, len(recs), want)
		}
	}
	if _, err := e.RecommendForUser(ctx, "1", -3); !core.IsInvalidInput(err) {
		t.Errorf("negative count error = %v, want INVALID_INPUT", err)
	}
}

func TestRecommendForUser_ExclusionAndOrder(t *testing.T) {
	src := sampleStore(t)
	e := trained(t, Options{Fallback: newFallback()}, src)

	recs, err := e.RecommendForUser(context.Background(), "1", 10)
	if err != nil {
		t.Fatalf("RecommendForUser() error = %v", err)
	}
	for _, r := range recs {
		if r.ItemID == "10" || r.ItemID == "20" {
			t.Errorf("liked item %s recommended", r.ItemID)
		}
	}

	// 手工计算期望分数
	m := e.Model()
	liked := map[string]float64{"10": 5, "20": 4}
	want := map[string]float64{}
	for _, j := range []string{"30", "40", "50", "60"} {
		for i, w := range liked {
			s, _ := m.Similarity(i, j)
			want[j] += s * w
		}
	}
	for i, r := range recs {
		if d := r.Score - want[r.ItemID]; d > 1e-9 || d < -1e-9 {
			t.Errorf("score(%s) = %v, want %v", r.ItemID, r.Score, want[r.ItemID])
		}
		if i > 0 {
			prev := recs[i-1]
			if prev.Score < r.Score || (prev.Score == r.Score && core.CompareIDs(prev.ItemID, r.ItemID) > 0) {
				t.Errorf("order violated at %d: %+v then %+v", i, prev, r)
			}
		}
	}

	// 元数据：有则挂上，没有也保留
	byID := map[string]core.Recommendation{}
	for _, r := range recs {
		byID[r.ItemID] = r
	}
	if b := byID["30"].Book; b == nil || b.Title != "Emma" {
		t.Errorf("item 30 book = %+v", b)
	}
	if r, ok := byID["60"]; !ok || r.Book != nil || r.Score != 0 {
		t.Errorf("item 60 = %+v, %v (want kept with nil book and zero score)", r, ok)
	}
}

func TestRecommendForUser_ColdStart(t *testing.T) {
	fb := newFallback()
	e := trained(t, Options{Fallback: fb}, sampleStore(t))
	ctx := context.Background()

	global, err := e.GlobalRecommendations(ctx, 5)
	if err != nil {
		t.Fatalf("GlobalRecommendations() error = %v", err)
	}
	for _, user := range []string{"unknown", "4"} {
		recs, err := e.RecommendForUser(ctx, user, 5)
		if err != nil {
			t.Fatalf("RecommendForUser(%s) error = %v", user, err)
		}
		if !reflect.DeepEqual(recs, global) {
			t.Errorf("RecommendForUser(%s) = %v, want global %v", user, ids(recs), ids(global))
		}
	}
}

func TestRecommendForUser_OrthogonalScenario(t *testing.T) {
	src := mustStore(t, []core.Rating{
		{UserID: "u1", ItemID: "i1", Value: 5},
		{UserID: "u1", ItemID: "i2", Value: 0},
		{UserID: "u2", ItemID: "i1", Value: 0},
		{UserID: "u2", ItemID: "i2", Value: 5},
	}, nil)
	e := trained(t, Options{}, src)

	if s, _ := e.Model().Similarity("i1", "i2"); s != 0 {
		t.Errorf("sim(i1,i2) = %v, want 0", s)
	}
	recs, err := e.RecommendForUser(context.Background(), "u1", 1)
	if err != nil {
		t.Fatalf("RecommendForUser() error = %v", err)
	}
	if len(recs) != 1 || recs[0].ItemID != "i2" || recs[0].Score != 0 {
		t.Errorf("RecommendForUser(u1, 1) = %+v, want [i2 score 0]", recs)
	}
}

func TestRecommendForUser_Deterministic(t *testing.T) {
	var ratings []core.Rating
	for u := 0; u < 30; u++ {
		for i := 0; i < 20; i++ {
			if (u+2*i)%3 == 0 {
				ratings = append(ratings, core.Rating{UserID: fmt.Sprint(u), ItemID: fmt.Sprint(i), Value: float64(1 + (u*i)%5)})
			}
		}
	}
	a := trained(t, Options{Model: model.Config{Workers: 1}}, mustStore(t, ratings, nil))
	b := trained(t, Options{Model: model.Config{Workers: 6}}, mustStore(t, ratings, nil))

	for u := 0; u < 30; u++ {
		user := fmt.Sprint(u)
		ra, err := a.RecommendForUser(context.Background(), user, 8)
		if err != nil {
			t.Fatal(err)
		}
		rb, err := b.RecommendForUser(context.Background(), user, 8)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(ra, rb) {
			t.Errorf("user %s: %v != %v", user, ids(ra), ids(rb))
		}
	}
}

func TestRecommendForUser_ConfiguredFilters(t *testing.T) {
	expr, err := filter.NewExprFilter(`"Anonymous" in item.authors`, true)
	if err != nil {
		t.Fatal(err)
	}
	e := trained(t, Options{Nodes: []pipeline.Node{
		&filter.FilterNode{Filters: []filter.Filter{filter.NewBlacklistFilter([]string{"50"}), expr}},
	}}, sampleStore(t))

	recs, err := e.RecommendForUser(context.Background(), "1", 10)
	if err != nil {
		t.Fatalf("RecommendForUser() error = %v", err)
	}
	got := ids(recs)
	for _, banned := range []string{"40", "50"} {
		for _, id := range got {
			if id == banned {
				t.Errorf("filtered item %s present in %v", banned, got)
			}
		}
	}
	if len(got) != 2 {
		t.Errorf("RecommendForUser() = %v, want 30 and 60", got)
	}
}

func TestGlobalAndByItems(t *testing.T) {
	fb := newFallback()
	e := New(Options{Fallback: fb})
	ctx := context.Background()

	// 不需要模型
	recs, err := e.GlobalRecommendations(ctx, 2)
	if err != nil || !reflect.DeepEqual(ids(recs), []string{"g1", "g2"}) {
		t.Errorf("GlobalRecommendations() = %v, %v", ids(recs), err)
	}
	if _, err := e.GlobalRecommendations(ctx, -1); !errors.Is(err, core.ErrInvalidCount) {
		t.Errorf("GlobalRecommendations(-1) error = %v", err)
	}

	seed := []core.Identifier{{Kind: core.IdentifierQuery, Value: "dune"}}
	recs, err = e.RecommendByItems(ctx, seed, 3)
	if err != nil || !reflect.DeepEqual(ids(recs), []string{"b1"}) {
		t.Errorf("RecommendByItems() = %v, %v", ids(recs), err)
	}
	if _, err := e.RecommendByItems(ctx, seed, -1); !errors.Is(err, core.ErrInvalidCount) {
		t.Errorf("RecommendByItems(-1) error = %v", err)
	}

	before := fb.calls
	for _, tc := range []struct {
		ids   []core.Identifier
		count int
	}{{seed, 0}, {nil, 5}} {
		recs, err := e.RecommendByItems(ctx, tc.ids, tc.count)
		if err != nil || recs == nil || len(recs) != 0 {
			t.Errorf("RecommendByItems(%v, %d) = %v, %v", tc.ids, tc.count, recs, err)
		}
	}
	if fb.calls != before {
		t.Error("fallback should not be called for empty requests")
	}
}

func TestRetrain(t *testing.T) {
	e := New(Options{})
	if err := e.Retrain(context.Background()); !core.IsNotSupported(err) {
		t.Errorf("Retrain() without loader error = %v", err)
	}

	loads := 0
	e = New(Options{Loader: func(context.Context) (*rating.Store, error) {
		loads++
		if loads > 1 {
			return nil, errors.New("disk gone")
		}
		return sampleStore(t), nil
	}})
	if err := e.Retrain(context.Background()); err != nil {
		t.Fatalf("Retrain() error = %v", err)
	}
	st, ok := e.Stats()
	if !ok || st.Items != 6 {
		t.Fatalf("Stats() = %+v, %v", st, ok)
	}
	if err := e.Retrain(context.Background()); err == nil {
		t.Fatal("Retrain() expected loader error")
	}
	// 失败的重训不影响当前模型
	if _, err := e.RecommendForUser(context.Background(), "1", 3); err != nil {
		t.Errorf("RecommendForUser() after failed retrain error = %v", err)
	}
}

func TestConcurrentReadsDuringRetrain(t *testing.T) {
	src := sampleStore(t)
	e := trained(t, Options{Fallback: newFallback()}, src)
	want, err := e.RecommendForUser(context.Background(), "1", 3)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				got, err := e.RecommendForUser(context.Background(), "1", 3)
				if err != nil {
					errs <- err
					return
				}
				if !reflect.DeepEqual(ids(got), ids(want)) {
					errs <- fmt.Errorf("got %v, want %v", ids(got), ids(want))
					return
				}
			}
		}()
	}
	for i := 0; i < 5; i++ {
		if err := e.Train(context.Background(), src); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestRecommendForUser_MixedIDTieOrder(t *testing.T) {
	base := []core.Rating{
		{UserID: "u1", ItemID: "L", Value: 5},
		{UserID: "u2", ItemID: "10", Value: 1},
		{UserID: "u2", ItemID: "9", Value: 1},
		{UserID: "u2", ItemID: "1a", Value: 1},
		{UserID: "u2", ItemID: "043970818X", Value: 1},
		{UserID: "u2", ItemID: "07", Value: 1},
	}
	want := []string{"07", "9", "10", "043970818X", "1a"}

	r := rand.New(rand.NewSource(7))
	for i := 0; i < 30; i++ {
		ratings := slices.Clone(base)
		r.Shuffle(len(ratings), func(i, j int) { ratings[i], ratings[j] = ratings[j], ratings[i] })

		e := trained(t, Options{}, mustStore(t, ratings, nil))
		recs, err := e.RecommendForUser(context.Background(), "u1", 5)
		if err != nil {
			t.Fatal(err)
		}
		if got := ids(recs); !slices.Equal(got, want) {
			t.Fatalf("run %d: RecommendForUser(u1) = %v, want %v", i, got, want)
		}
	}
}

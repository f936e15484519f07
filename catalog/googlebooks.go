// Package catalog 实现外部书目服务：Google Books 客户端、Store 缓存，
// 以及冷启动/by-items 使用的 Fallback 策略。
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/logging"
	"github.com/rushteam/bookrec/metrics"
)

// MaxResults 是 Google Books 单次检索允许的最大条数。
const MaxResults = 40

// Options 是 GoogleBooks 客户端参数。
type Options struct {
	BaseURL string // 默认 https://www.googleapis.com/books/v1
	APIKey  string
	Timeout time.Duration

	// MaxFailures 连续失败多少次后熔断，默认 5
	MaxFailures uint32
	// OpenTimeout 熔断后多久进入半开，默认 30s
	OpenTimeout time.Duration

	// RatePerSecond 出站请求限速，<= 0 不限速
	RatePerSecond float64
	Burst         int

	HTTPClient *http.Client
}

// GoogleBooks 是 core.Catalog 的 Google Books 实现。
// 所有请求经过限速器和熔断器，熔断打开时直接返回 core.ErrCatalogUnavailable。
type GoogleBooks struct {
	baseURL string
	apiKey  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	limiter *rate.Limiter
}

// NewGoogleBooks 创建客户端。
func NewGoogleBooks(opts Options) *GoogleBooks {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://www.googleapis.com/books/v1"
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = (&core.DefaultEngineConfig{}).DefaultTimeout()
		}
		client = &http.Client{Timeout: timeout}
	}

	g := &GoogleBooks{
		baseURL: opts.BaseURL,
		apiKey:  opts.APIKey,
		client:  client,
	}
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}

	maxFailures := opts.MaxFailures
	g.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "google-books",
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// 404 是正常业务结果，不计入失败
		IsSuccessful: func(err error) bool {
			return err == nil || core.IsNotFound(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("catalog circuit breaker state changed")
		},
	})
	return g
}

// Search 实现 core.Catalog。limit 超过 MaxResults 时按 MaxResults 取。
func (g *GoogleBooks) Search(ctx context.Context, query string, limit int) ([]core.Book, error) {
	if limit <= 0 {
		return []core.Book{}, nil
	}
	if limit > MaxResults {
		limit = MaxResults
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(limit))
	params.Set("printType", "books")

	body, err := g.get(ctx, "/volumes", params)
	if err != nil {
		metrics.RecordCatalogError("search")
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		metrics.RecordCatalogError("search")
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	books := make([]core.Book, 0, len(resp.Items))
	for _, v := range resp.Items {
		books = append(books, v.book())
	}
	return books, nil
}

// Volume 实现 core.Catalog。
func (g *GoogleBooks) Volume(ctx context.Context, id string) (*core.Book, error) {
	body, err := g.get(ctx, "/volumes/"+url.PathEscape(id), url.Values{})
	if err != nil {
		if !core.IsNotFound(err) {
			metrics.RecordCatalogError("volume")
		}
		return nil, err
	}

	var v volume
	if err := json.Unmarshal(body, &v); err != nil {
		metrics.RecordCatalogError("volume")
		return nil, fmt.Errorf("decode volume %s: %w", id, err)
	}
	b := v.book()
	return &b, nil
}

func (g *GoogleBooks) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if g.apiKey != "" {
		params.Set("key", g.apiKey)
	}
	u := g.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	body, err := g.breaker.Execute(func() ([]byte, error) {
		return g.do(ctx, u)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", core.ErrCatalogUnavailable, err)
	}
	return body, err
}

func (g *GoogleBooks) do(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, core.NewDomainError(core.ModuleCatalog, core.ErrorCodeNotFound, "catalog: volume not found")
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: status %d", core.ErrCatalogUnavailable, resp.StatusCode)
	}
	return body, nil
}

type searchResponse struct {
	TotalItems int      `json:"totalItems"`
	Items      []volume `json:"items"`
}

type volume struct {
	ID         string `json:"id"`
	VolumeInfo struct {
		Title         string   `json:"title"`
		Authors       []string `json:"authors"`
		Description   string   `json:"description"`
		AverageRating float64  `json:"averageRating"`
		RatingsCount  int      `json:"ratingsCount"`
		ImageLinks    struct {
			Thumbnail string `json:"thumbnail"`
		} `json:"imageLinks"`
	} `json:"volumeInfo"`
}

func (v volume) book() core.Book {
	info := v.VolumeInfo
	authors := info.Authors
	if authors == nil {
		authors = []string{}
	}
	return core.Book{
		ItemID:        v.ID,
		Title:         info.Title,
		Authors:       authors,
		Description:   info.Description,
		Thumbnail:     info.ImageLinks.Thumbnail,
		AverageRating: info.AverageRating,
		RatingsCount:  info.RatingsCount,
	}
}

var _ core.Catalog = (*GoogleBooks)(nil)

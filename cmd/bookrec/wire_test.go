package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rushteam/bookrec/config"
	_ "github.com/rushteam/bookrec/config/builders"
	"github.com/rushteam/bookrec/pipeline"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	rp := filepath.Join(dir, "ratings.csv")
	bp := filepath.Join(dir, "books.csv")
	ratings := "userId,itemId,rating\n1,10,5\n1,20,4\n2,10,4\n2,30,5\n"
	books := "itemId,title,authors,description,thumbnail,averageRating,ratingsCount\n" +
		"10,Dune,Frank Herbert,,,4.2,100\n20,Emma,Jane Austen,,,3.9,50\n30,Ubik,Philip K. Dick,,,4.0,20\n"
	if err := os.WriteFile(rp, []byte(ratings), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bp, []byte(books), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Data.RatingsPath = rp
	cfg.Data.BooksPath = bp
	return cfg
}

func TestBuild_CSVAndTrain(t *testing.T) {
	for _, backend := range []string{config.CacheMemory, config.CacheBadger} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Cache.Backend = backend

			a, err := build(context.Background(), cfg)
			if err != nil {
				t.Fatalf("build() error = %v", err)
			}
			defer a.Close()

			if err := a.engine.Retrain(context.Background()); err != nil {
				t.Fatalf("Retrain() error = %v", err)
			}
			st, ok := a.engine.Stats()
			if !ok || st.Users != 2 || st.Items != 3 {
				t.Errorf("Stats() = %+v, %v", st, ok)
			}

			recs, err := a.engine.RecommendForUser(context.Background(), "1", 5)
			if err != nil {
				t.Fatalf("RecommendForUser() error = %v", err)
			}
			if len(recs) != 1 || recs[0].ItemID != "30" {
				t.Errorf("RecommendForUser(1) = %+v, want only item 30", recs)
			}
		})
	}
}

func TestBuild_InvalidPipeline(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Enabled = false
	cfg.Pipeline.Nodes = []pipeline.NodeConfig{
		{Type: "filter.expr", Config: map[string]any{"expr": "item.score >"}},
	}

	if _, err := build(context.Background(), cfg); err == nil {
		t.Error("build() with invalid expression expected error")
	}
}

package rating

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/store"
)

const ratingsCSV = `userId,itemId,rating
1,10,5
1,20,3
2,10,4
`

const booksCSV = `itemId,title,authors,description,thumbnail,averageRating,ratingsCount
10,Dune,Frank Herbert,Spice,http://img/10,4.5,120
20,"Good Omens","Terry Pratchett | Neil Gaiman","Apocalypse, sort of",,,
`

func writeFiles(t *testing.T, ratings, books string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	rp := filepath.Join(dir, "ratings.csv")
	bp := filepath.Join(dir, "books.csv")
	if err := os.WriteFile(rp, []byte(ratings), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bp, []byte(books), 0o600); err != nil {
		t.Fatal(err)
	}
	return rp, bp
}

func TestLoadCSV(t *testing.T) {
	rp, bp := writeFiles(t, ratingsCSV, booksCSV)
	s, err := LoadCSV(rp, bp)
	if err != nil {
		t.Fatalf("LoadCSV() error = %v", err)
	}

	nr, nb := s.Len()
	if nr != 3 || nb != 2 {
		t.Fatalf("Len() = (%d, %d), want (3, 2)", nr, nb)
	}
	if got := s.Ratings()[1]; got != (core.Rating{UserID: "1", ItemID: "20", Value: 3}) {
		t.Errorf("Ratings()[1] = %+v", got)
	}

	b, ok := s.Book("20")
	if !ok {
		t.Fatal("Book(20) not found")
	}
	if len(b.Authors) != 2 || b.Authors[0] != "Terry Pratchett" || b.Authors[1] != "Neil Gaiman" {
		t.Errorf("Authors = %v", b.Authors)
	}
	if b.Description != "Apocalypse, sort of" || b.AverageRating != 0 || b.RatingsCount != 0 {
		t.Errorf("Book(20) = %+v", b)
	}
	if dune, _ := s.Book("10"); dune.AverageRating != 4.5 || dune.RatingsCount != 120 {
		t.Errorf("Book(10) = %+v", dune)
	}
	if _, ok := s.Book("30"); ok {
		t.Error("Book(30) should be absent")
	}
}

func TestLoadCSV_Failures(t *testing.T) {
	tests := []struct {
		name    string
		ratings string
		books   string
		wantErr string
	}{
		{
			name:    "missing rating column",
			ratings: "userId,itemId\n1,10\n",
			books:   booksCSV,
			wantErr: "missing columns: rating",
		},
		{
			name:    "malformed rating",
			ratings: "userId,itemId,rating\n1,10,five\n",
			books:   booksCSV,
			wantErr: "line 2: rating",
		},
		{
			name:    "negative rating",
			ratings: "userId,itemId,rating\n1,10,-1\n",
			books:   booksCSV,
			wantErr: "invalid value",
		},
		{
			name:    "ragged row",
			ratings: "userId,itemId,rating\n1,10\n",
			books:   booksCSV,
			wantErr: "wrong number of fields",
		},
		{
			name:    "empty ratings file",
			ratings: "",
			books:   booksCSV,
			wantErr: "missing header",
		},
		{
			name:    "duplicate book",
			ratings: ratingsCSV,
			books:   "itemId,title,authors,description,thumbnailUrl,averageRating,ratingsCount\n1,a,,,,,\n1,b,,,,,\n",
			wantErr: "duplicate item id",
		},
		{
			name:    "malformed ratings count",
			ratings: ratingsCSV,
			books:   "itemId,title,authors,description,thumbnail,averageRating,ratingsCount\n1,a,,,,,1.5\n",
			wantErr: "ratingsCount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rp, bp := writeFiles(t, tt.ratings, tt.books)
			_, err := LoadCSV(rp, bp)
			if err == nil {
				t.Fatal("LoadCSV() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadCSV() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadCSV(filepath.Join(t.TempDir(), "nope.csv"), "nope.csv"); err == nil {
			t.Error("LoadCSV() expected error for missing file")
		}
	})
}

func TestPublishAndLoadFromStore(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()

	if _, err := LoadFromStore(ctx, kv, ""); !core.IsStoreNotFound(err) {
		t.Fatalf("LoadFromStore() on empty store error = %v, want not found", err)
	}

	rp, bp := writeFiles(t, ratingsCSV, booksCSV)
	src, err := LoadCSV(rp, bp)
	if err != nil {
		t.Fatal(err)
	}
	if err := Publish(ctx, kv, "test", src); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	got, err := LoadFromStore(ctx, kv, "test")
	if err != nil {
		t.Fatalf("LoadFromStore() error = %v", err)
	}
	nr, nb := got.Len()
	if nr != 3 || nb != 2 {
		t.Errorf("Len() = (%d, %d), want (3, 2)", nr, nb)
	}
	if b, ok := got.Book("20"); !ok || len(b.Authors) != 2 {
		t.Errorf("Book(20) = %+v, %v", b, ok)
	}

	if err := kv.Set(ctx, "bad:ratings", []byte("{")); err != nil {
		t.Fatal(err)
	}
	if err := kv.Set(ctx, "bad:books", []byte("[]")); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromStore(ctx, kv, "bad"); err == nil {
		t.Error("LoadFromStore() expected decode error")
	}
}

package rating

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/rushteam/bookrec/core"
)

// AuthorSeparator 是 books.csv 中 authors 列的分隔符。
const AuthorSeparator = "|"

var (
	ratingColumns = []string{"userid", "itemid", "rating"}
	bookColumns   = []string{"itemid", "title", "authors", "description", "thumbnail", "averagerating", "ratingscount"}

	// 列名别名，统一成 bookColumns 中的名字
	columnAliases = map[string]string{
		"thumbnailurl": "thumbnail",
	}
)

// LoadCSV 从两份 CSV 加载 Store，任何错误都让整个加载失败。
func LoadCSV(ratingsPath, booksPath string) (*Store, error) {
	ratings, err := readFile(ratingsPath, ReadRatings)
	if err != nil {
		return nil, fmt.Errorf("load ratings %s: %w", ratingsPath, err)
	}
	books, err := readFile(booksPath, ReadBooks)
	if err != nil {
		return nil, fmt.Errorf("load books %s: %w", booksPath, err)
	}
	return NewStore(ratings, books)
}

func readFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, err
	}
	defer f.Close()
	return read(f)
}

// ReadRatings 解析评分表，表头需包含 userId,itemId,rating（大小写不敏感，顺序任意）。
func ReadRatings(r io.Reader) ([]core.Rating, error) {
	rows, cols, err := readTable(r, ratingColumns)
	if err != nil {
		return nil, err
	}

	out := make([]core.Rating, 0, len(rows))
	for i, row := range rows {
		line := i + 2 // 表头占第 1 行
		value, err := strconv.ParseFloat(strings.TrimSpace(row[cols["rating"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: rating: %w", line, err)
		}
		out = append(out, core.Rating{
			UserID: strings.TrimSpace(row[cols["userid"]]),
			ItemID: strings.TrimSpace(row[cols["itemid"]]),
			Value:  value,
		})
	}
	return out, nil
}

// ReadBooks 解析书目表。averageRating / ratingsCount 为空时取 0，非空但非法时报错。
func ReadBooks(r io.Reader) ([]core.Book, error) {
	rows, cols, err := readTable(r, bookColumns)
	if err != nil {
		return nil, err
	}

	out := make([]core.Book, 0, len(rows))
	for i, row := range rows {
		line := i + 2
		avg, err := parseOptionalFloat(row[cols["averagerating"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: averageRating: %w", line, err)
		}
		count, err := parseOptionalInt(row[cols["ratingscount"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: ratingsCount: %w", line, err)
		}
		out = append(out, core.Book{
			ItemID:        strings.TrimSpace(row[cols["itemid"]]),
			Title:         row[cols["title"]],
			Authors:       splitAuthors(row[cols["authors"]]),
			Description:   row[cols["description"]],
			Thumbnail:     strings.TrimSpace(row[cols["thumbnail"]]),
			AverageRating: avg,
			RatingsCount:  count,
		})
	}
	return out, nil
}

// readTable 读取表头并定位 required 列，返回数据行与列下标。
func readTable(r io.Reader, required []string) ([][]string, map[string]int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, errors.New("empty file: missing header")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if alias, ok := columnAliases[name]; ok {
			name = alias
		}
		cols[name] = i
	}
	var missing []string
	for _, c := range required {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ","))
	}

	// csv.Reader 默认要求每行字段数与表头一致，格式错误的行会在这里报错
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return rows, cols, nil
}

func splitAuthors(s string) []string {
	parts := strings.Split(s, AuthorSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseOptionalFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseOptionalInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	// pandas 导出的整数列可能带 ".0"
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) {
		return int(f), nil
	}
	return strconv.Atoi(s)
}

func sortBooks(books []core.Book) {
	slices.SortFunc(books, func(a, b core.Book) int {
		return core.CompareIDs(a.ItemID, b.ItemID)
	})
}

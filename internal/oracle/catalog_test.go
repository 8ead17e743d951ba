package oracle

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestLoadCatalog_FillsBook(t *testing.T) {
	book := NewStockBook()
	n, err := LoadCatalog(book, strings.NewReader(`[
		{"product_id":"p-1","quantity":10,"price":"10.50"},
		{"product_id":"p-2","quantity":0,"price":"3"}
	]`))
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 entries, got %d", n)
	}
	if got := book.Quantity("p-1"); got != 10 {
		t.Fatalf("expected quantity 10, got %d", got)
	}
	price, err := book.CheckPrice(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("check price: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("10.5")) {
		t.Fatalf("unexpected price %s", price)
	}
}

func TestLoadCatalog_RejectsInvalidEntries(t *testing.T) {
	cases := map[string]string{
		"broken json":     `[{`,
		"missing product": `[{"quantity":1,"price":"1"}]`,
		"negative qty":    `[{"product_id":"p-1","quantity":-1,"price":"1"}]`,
		"negative price":  `[{"product_id":"p-1","quantity":1,"price":"-1"}]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			book := NewStockBook()
			if _, err := LoadCatalog(book, strings.NewReader(raw)); err == nil {
				t.Fatal("expected error")
			}
			if got := book.Quantity("p-1"); got != 0 {
				t.Fatalf("book must stay empty, got quantity %d", got)
			}
		})
	}
}

func TestLoadCatalogFile(t *testing.T) {
	book := NewStockBook()
	if n, err := LoadCatalogFile(book, ""); err != nil || n != 0 {
		t.Fatalf("empty path: n=%d err=%v", n, err)
	}

	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(`[{"product_id":"p-9","quantity":3,"price":"1.25"}]`), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	if _, err := LoadCatalogFile(book, path); err != nil {
		t.Fatalf("load file: %v", err)
	}
	if got := book.Quantity("p-9"); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	if _, err := LoadCatalogFile(book, filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

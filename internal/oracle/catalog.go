package oracle

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
)

// CatalogEntry: начальный остаток и цена товара.
type CatalogEntry struct {
	ProductID string          `json:"product_id"`
	Quantity  int32           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// LoadCatalog читает JSON-массив CatalogEntry и заполняет склад.
func LoadCatalog(book *StockBook, r io.Reader) (int, error) {
	var entries []CatalogEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return 0, fmt.Errorf("decode catalog: %w", err)
	}
	for i, e := range entries {
		switch {
		case e.ProductID == "":
			return 0, fmt.Errorf("catalog entry %d: product_id is required", i)
		case e.Quantity < 0:
			return 0, fmt.Errorf("catalog entry %d (%s): negative quantity", i, e.ProductID)
		case e.Price.IsNegative():
			return 0, fmt.Errorf("catalog entry %d (%s): negative price", i, e.ProductID)
		}
	}
	for _, e := range entries {
		book.Set(e.ProductID, e.Quantity, e.Price)
	}
	return len(entries), nil
}

// LoadCatalogFile: LoadCatalog из файла; пустой path ничего не делает.
func LoadCatalogFile(book *StockBook, path string) (int, error) {
	if path == "" {
		return 0, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return LoadCatalog(book, f)
}

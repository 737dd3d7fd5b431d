package pricing

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Domenick1991/glamexpress/internal/domain"
	"github.com/shopspring/decimal"
)

// Quote is the resolved selection plus its total, ready to be copied onto a booking.
type Quote struct {
	Services []domain.Service `json:"services"`
	Total    float64          `json:"total"`
}

// Calculate resolves each chosen name against the catalog by exact name and sums the prices.
// Names must be non-empty and unique, and at least one is required.
func Calculate(catalog []domain.CatalogEntry, names []string) (Quote, error) {
	if len(names) == 0 {
		return Quote{}, fmt.Errorf("%w: select at least one service", domain.ErrInvalidProposal)
	}

	index := make(map[string]domain.CatalogEntry, len(catalog))
	for _, entry := range catalog {
		if _, dup := index[entry.Name]; !dup {
			index[entry.Name] = entry
		}
	}

	seen := make(map[string]struct{}, len(names))
	resolved := make([]domain.Service, 0, len(names))
	total := decimal.Zero
	for _, name := range names {
		if _, dup := seen[name]; dup {
			return Quote{}, fmt.Errorf("%w: %q selected more than once", domain.ErrInvalidProposal, name)
		}
		seen[name] = struct{}{}

		entry, ok := index[name]
		if !ok || name == "" {
			return Quote{}, fmt.Errorf("%w: %q", domain.ErrServiceNotFound, name)
		}
		price := decimal.NewFromFloat(entry.Price)
		if !entry.HasPrice {
			price = decimal.Zero
		}
		total = total.Add(price)
		resolved = append(resolved, domain.Service{Name: entry.Name, Price: price.InexactFloat64()})
	}

	return Quote{Services: resolved, Total: total.InexactFloat64()}, nil
}

// Total sums already-resolved line items exactly.
func Total(services []domain.Service) float64 {
	total := decimal.Zero
	for _, s := range services {
		total = total.Add(decimal.NewFromFloat(s.Price))
	}
	return total.InexactFloat64()
}

// Names lists the service names of a selection in order.
func Names(services []domain.Service) []string {
	names := make([]string, 0, len(services))
	for _, s := range services {
		names = append(names, s.Name)
	}
	return names
}

type catalogObject struct {
	Name  string           `json:"name"`
	Price *decimal.Decimal `json:"price"`
}

// DecodeCatalog normalizes a beautician's published services, which the backend sends either
// as bare names or as {name, price} objects, into catalog entries.
func DecodeCatalog(raw json.RawMessage) ([]domain.CatalogEntry, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	entries := make([]domain.CatalogEntry, 0, len(items))
	for i, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) > 0 && item[0] == '"' {
			var name string
			if err := json.Unmarshal(item, &name); err != nil {
				return nil, fmt.Errorf("decode catalog entry %d: %w", i, err)
			}
			entries = append(entries, domain.CatalogEntry{Name: name})
			continue
		}

		var obj catalogObject
		if err := json.Unmarshal(item, &obj); err != nil {
			return nil, fmt.Errorf("decode catalog entry %d: %w", i, err)
		}
		entry := domain.CatalogEntry{Name: obj.Name}
		if obj.Price != nil {
			if obj.Price.IsNegative() {
				return nil, fmt.Errorf("decode catalog entry %d: negative price", i)
			}
			entry.Price = obj.Price.InexactFloat64()
			entry.HasPrice = true
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

package ing

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

//go:embed data/position_types.json
var defaultPositionTypes []byte

var (
	familyPattern  = regexp.MustCompile(`\d*([A-Z]{2,})\b`)
	platformSuffix = regexp.MustCompile(`-[A-Z]{2}$`)
)

// PositionNames maps a product-family code embedded in a SKU to the invoice line name.
type PositionNames map[string]string

// LoadPositionNames reads the table from path, or the built-in table when path is empty.
func LoadPositionNames(path string) (PositionNames, error) {
	raw := defaultPositionTypes
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read position types: %w", err)
		}
		raw = b
	}

	var names PositionNames
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, fmt.Errorf("failed to parse position types: %w", err)
	}
	if _, ok := names[shippingEntry]; !ok {
		return nil, fmt.Errorf("position types have no %s entry", shippingEntry)
	}
	return names, nil
}

// NameForSKU returns the position name for the first family code in sku.
func (p PositionNames) NameForSKU(sku string) (string, bool) {
	m := familyPattern.FindStringSubmatch(sku)
	if m == nil {
		return "", false
	}
	name, ok := p[m[1]]
	return name, ok
}

func (p PositionNames) Shipping() string {
	return p[shippingEntry]
}

// ProductCode strips the trailing two-letter platform suffix from sku.
func ProductCode(sku string) string {
	return platformSuffix.ReplaceAllString(sku, "")
}

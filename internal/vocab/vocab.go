package vocab

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"colsense/domain/mapping"
	"colsense/internal/errors"
)

// Vocabulary holds the synonym dictionary and region gazetteer the matcher
// and extractor consult. It is plain data: adding a canonical type or a
// synonym is an additive data change, not a code change.
type Vocabulary struct {
	synonyms map[mapping.CanonicalType][]string
	byName   map[string]mapping.CanonicalType
	regions  map[string]struct{}
}

// overlay is the YAML shape accepted by LoadFile.
type overlay struct {
	Synonyms map[string][]string `yaml:"synonyms"`
	Regions  []string            `yaml:"regions"`
}

// Default returns the built-in vocabulary.
func Default() *Vocabulary {
	v := &Vocabulary{
		synonyms: map[mapping.CanonicalType][]string{},
		byName:   map[string]mapping.CanonicalType{},
		regions:  map[string]struct{}{},
	}
	for t, syns := range defaultSynonyms {
		v.add(t, syns)
	}
	for _, r := range defaultRegions {
		v.regions[r] = struct{}{}
	}
	return v
}

// LoadFile returns the default vocabulary merged with a YAML overlay.
// Overlay synonyms and regions are additive; they never remove defaults.
func LoadFile(path string) (*Vocabulary, error) {
	v := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading vocabulary overlay %s", path)
	}
	var o overlay
	if err := yaml.Unmarshal(raw, &o); err != nil {
		return nil, errors.Wrapf(err, "parsing vocabulary overlay %s", path)
	}
	for name, syns := range o.Synonyms {
		t := mapping.CanonicalType(name)
		if !t.Valid() {
			return nil, errors.InvalidInput("unknown canonical type in vocabulary overlay: " + name)
		}
		v.add(t, syns)
	}
	for _, r := range o.Regions {
		v.regions[Normalize(r)] = struct{}{}
	}
	return v, nil
}

func (v *Vocabulary) add(t mapping.CanonicalType, syns []string) {
	for _, s := range syns {
		key := Normalize(s)
		if key == "" {
			continue
		}
		if _, taken := v.byName[key]; taken {
			continue
		}
		v.synonyms[t] = append(v.synonyms[t], key)
		v.byName[key] = t
	}
}

// Normalize lowers a column name and collapses separator characters so
// "Sales_Amount", "sales-amount" and "Sales Amount" all compare equal.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.Trim(name, `"'`)
	for _, sep := range []string{"_", "-", ".", "/"} {
		name = strings.ReplaceAll(name, sep, " ")
	}
	return strings.Join(strings.Fields(name), " ")
}

// ExactMatch resolves a normalized column name against the synonym
// dictionary, including the canonical type names themselves.
func (v *Vocabulary) ExactMatch(columnName string) (mapping.CanonicalType, bool) {
	key := Normalize(columnName)
	if t, ok := v.byName[key]; ok {
		return t, true
	}
	for _, t := range mapping.AllTypes() {
		if key == Normalize(string(t)) {
			return t, true
		}
	}
	return "", false
}

// Synonyms returns the normalized synonyms for a canonical type.
func (v *Vocabulary) Synonyms(t mapping.CanonicalType) []string {
	return v.synonyms[t]
}

// IsRegion reports whether a single value names a known geography. The
// whole value is checked first, then its individual tokens, so compound
// values like "North - Alice" still register their geographic token.
func (v *Vocabulary) IsRegion(value string) bool {
	key := Normalize(value)
	if _, ok := v.regions[key]; ok {
		return true
	}
	for _, tok := range strings.Fields(key) {
		if _, ok := v.regions[tok]; ok {
			return true
		}
	}
	return false
}

// defaultSynonyms maps each canonical type to accepted column-name
// variants. Grounded in common commerce export headers; entries are
// normalized on load, so spelling with underscores or spaces is equivalent.
var defaultSynonyms = map[mapping.CanonicalType][]string{
	mapping.TypeDate: {
		"date", "order date", "orderdate", "invoice date", "transaction date",
		"purchase date", "ship date", "created at", "updated at", "timestamp",
		"time", "period", "month", "week", "day", "fiscal period",
	},
	mapping.TypeSales: {
		"sales", "sale", "sales amount", "total sales", "gross sales",
		"sales value", "sales total", "net sales", "total amount",
	},
	mapping.TypeRevenue: {
		"revenue", "income", "earnings", "turnover", "gmv", "proceeds",
		"total revenue", "gross revenue",
	},
	mapping.TypeExpense: {
		"expense", "expenses", "spend", "expenditure", "cost of goods",
		"cogs", "overhead", "operating cost", "outgoings",
	},
	mapping.TypeProduct: {
		"product", "product name", "productname", "product id", "productid",
		"item", "item name", "item id", "sku", "article", "category", "brand",
		"model",
	},
	mapping.TypeRegion: {
		"region", "territory", "area", "zone", "location", "geography",
		"market", "state", "province", "country", "city", "district",
	},
	mapping.TypeQuantity: {
		"quantity", "qty", "units", "unit count", "units sold",
		"quantity sold", "volume", "order quantity", "item count", "pieces",
	},
	mapping.TypeCustomer: {
		"customer", "customer name", "customername", "customer id",
		"customerid", "client", "client name", "buyer", "account",
		"account name", "shopper",
	},
	mapping.TypePrice: {
		"price", "unit price", "unitprice", "unit cost", "cost price",
		"list price", "price per unit", "rate", "msrp", "selling price",
	},
	mapping.TypeIgnore: {
		"notes", "note", "comment", "comments", "remarks", "memo",
		"row", "row number", "index", "serial no", "sl no", "misc",
	},
}

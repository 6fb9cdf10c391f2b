package mapping

// CanonicalType is the fixed business meaning a column can resolve to.
type CanonicalType string

const (
	TypeDate     CanonicalType = "Date"
	TypeSales    CanonicalType = "Sales"
	TypeRevenue  CanonicalType = "Revenue"
	TypeExpense  CanonicalType = "Expense"
	TypeProduct  CanonicalType = "Product"
	TypeRegion   CanonicalType = "Region"
	TypeQuantity CanonicalType = "Quantity"
	TypeCustomer CanonicalType = "Customer"
	TypePrice    CanonicalType = "Price"
	TypeIgnore   CanonicalType = "Ignore"
)

// AllTypes returns the closed enumeration in stable order.
func AllTypes() []CanonicalType {
	return []CanonicalType{
		TypeDate, TypeSales, TypeRevenue, TypeExpense, TypeProduct,
		TypeRegion, TypeQuantity, TypeCustomer, TypePrice, TypeIgnore,
	}
}

// Valid reports whether t is a member of the closed enumeration.
func (t CanonicalType) Valid() bool {
	for _, known := range AllTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// IsMonetary reports whether t carries currency-shaped values.
func (t CanonicalType) IsMonetary() bool {
	switch t {
	case TypeSales, TypeRevenue, TypeExpense, TypePrice:
		return true
	}
	return false
}

// Method identifies how a mapping candidate was derived.
type Method string

const (
	MethodExactSynonym  Method = "exact_synonym"
	MethodFuzzyMatch    Method = "fuzzy_match"
	MethodKnowledgeBase Method = "knowledge_base"
	MethodValueAdjusted Method = "value_adjusted"
	MethodUserConfirmed Method = "user_confirmed"
)

// Column is the engine's input unit: a header name plus its raw values.
type Column struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// ValueSignal is the statistical fingerprint of a column's sampled values.
// All percentage fields are in [0,100].
type ValueSignal struct {
	NumericPct    float64 `json:"numeric_pct"`
	DatePct       float64 `json:"date_pct"`
	CurrencyPct   float64 `json:"currency_pct"`
	UniquePct     float64 `json:"unique_pct"`
	AvgLen        float64 `json:"avg_len"`
	Entropy       float64 `json:"entropy"`
	IDPatternPct  float64 `json:"id_pattern_pct"`
	RegionGeoPct  float64 `json:"region_geo_pct"`
	SKUPatternPct float64 `json:"sku_pattern_pct"`
	NullPct       float64 `json:"null_pct"`
	SampleSize    int     `json:"sample_size"`
}

// ColumnProfile is the per-run working state for one column.
type ColumnProfile struct {
	Name     string                    `json:"name"`
	Position int                       `json:"position"`
	Signal   ValueSignal               `json:"signal"`
	Scores   map[CanonicalType]float64 `json:"scores"`
}

// MappingCandidate is one scored (column, canonical type) pairing.
type MappingCandidate struct {
	OriginalColumn string        `json:"original_column"`
	Position       int           `json:"position"`
	CanonicalType  CanonicalType `json:"canonical_type"`
	Confidence     float64       `json:"confidence"`
	Method         Method        `json:"method"`
	Reasoning      string        `json:"reasoning"`
}

// Conflict is a canonical type claimed by two or more columns.
// Candidates are ordered by confidence descending, ties by column position.
type Conflict struct {
	TargetType CanonicalType      `json:"target_type"`
	Candidates []MappingCandidate `json:"candidates"`
}

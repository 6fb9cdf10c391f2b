package signal

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"colsense/internal/vocab"
)

// nullTokens are value spellings treated as missing.
var nullTokens = map[string]struct{}{
	"": {}, "null": {}, "nil": {}, "none": {}, "na": {}, "n/a": {}, "-": {},
}

// IsNull reports whether a raw cell value counts as missing.
func IsNull(value string) bool {
	_, ok := nullTokens[strings.ToLower(strings.TrimSpace(value))]
	return ok
}

// dateLayouts covers the formats the flexible date parse attempts, most
// specific first.
var dateLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02-01-2006",
	"02.01.2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan-06",
	"2006-01",
}

// ParsesAsDate attempts a flexible date parse.
func ParsesAsDate(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

// ParsesAsNumber strips currency decoration and thousands separators and
// attempts a numeric parse.
func ParsesAsNumber(value string) (float64, bool) {
	stripped := vocab.StripCurrency(value)
	if stripped == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(stripped, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// entropy computes Shannon entropy (bits) over the value-frequency
// distribution of the sample.
func entropy(values []string) float64 {
	if len(values) == 0 {
		return 0
	}
	freq := map[string]int{}
	for _, v := range values {
		freq[v]++
	}
	total := float64(len(values))
	probs := make([]float64, 0, len(freq))
	for _, n := range freq {
		probs = append(probs, float64(n)/total)
	}
	// stat.Entropy uses natural log; convert to bits
	return stat.Entropy(probs) / math.Ln2
}

// Sequentialness scores how auto-incremented a column's values look, in
// [0,100]. It extracts the numeric run from each value, sorts, and measures
// what share of successive gaps equals the modal gap. Identifier columns
// like PEP001..PEP999 score near 100; free-form measures score near 0.
func Sequentialness(values []string) float64 {
	nums := make([]float64, 0, len(values))
	for _, v := range values {
		if IsNull(v) {
			continue
		}
		if n, ok := trailingNumber(v); ok {
			nums = append(nums, n)
		}
	}
	if len(nums) < 3 || len(nums) < len(values)/2 {
		return 0
	}

	sort.Float64s(nums)
	gaps := make([]float64, 0, len(nums)-1)
	for i := 1; i < len(nums); i++ {
		gaps = append(gaps, nums[i]-nums[i-1])
	}

	mode, err := stats.Mode(gaps)
	if err != nil || len(mode) == 0 || mode[0] <= 0 {
		return 0
	}
	modal := 0
	for _, g := range gaps {
		if g == mode[0] {
			modal++
		}
	}
	return 100 * float64(modal) / float64(len(gaps))
}

// trailingNumber extracts the numeric run at the end of a value, so both
// plain numbers and prefixed identifiers ("PEP001") yield one.
func trailingNumber(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	end := len(value)
	start := end
	for start > 0 {
		c := value[start-1]
		if c < '0' || c > '9' {
			break
		}
		start--
	}
	if start == end {
		return 0, false
	}
	f, err := strconv.ParseFloat(value[start:end], 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

package knowledge

import (
	"sort"
	"strconv"
	"strings"
)

// Leg identifies one backend search call within a plan
type Leg string

const (
	LegPrimary Leg = "primary"
	LegChip    Leg = "chip"
)

// Document type codes defined by the knowledge base
const (
	TypeBaseline      = 0
	TypeOnSale        = 1
	TypeEOL           = 2
	TypeProgramming   = 3
	TypeChipDatasheet = 4
	TypeESPHome       = 11
)

// Filter type names accepted by knowledge_search
const (
	FilterProduct      = "product"
	FilterProductNoEOL = "product_no_eol"
	FilterProgram      = "program"
	FilterArduino      = "arduino"
	FilterUIFlow       = "uiflow"
	FilterESPIDF       = "esp-idf"
	FilterESPHome      = "esphome"
)

// FilterTypes lists every accepted filter_type value in advertised order
var FilterTypes = []string{
	FilterProduct,
	FilterProductNoEOL,
	FilterProgram,
	FilterArduino,
	FilterUIFlow,
	FilterESPIDF,
	FilterESPHome,
}

// filterCodes maps filter names to backend type codes. Names without an
// entry are accepted but restrict nothing.
var filterCodes = map[string][]int{
	FilterProduct:      {TypeBaseline, TypeOnSale, TypeEOL},
	FilterProductNoEOL: {TypeBaseline, TypeOnSale},
	FilterProgram:      {TypeBaseline, TypeProgramming},
	FilterESPHome:      {TypeESPHome},
}

// TypeFilter is a must-match predicate over the document type field
type TypeFilter struct {
	Op    string `json:"op"`
	Field string `json:"field"`
	Conds []int  `json:"conds"`
}

// NewTypeFilter returns a filter over the given codes, or nil when codes is empty
func NewTypeFilter(codes ...int) *TypeFilter {
	if len(codes) == 0 {
		return nil
	}
	conds := make([]int, len(codes))
	copy(conds, codes)
	return &TypeFilter{Op: "must", Field: "type", Conds: conds}
}

// ResolveFilter maps a filter_type name to its type filter. Unknown, empty
// and code-less names resolve to nil so no filter clause is sent.
func ResolveFilter(filterType string) *TypeFilter {
	codes, ok := filterCodes[strings.TrimSpace(filterType)]
	if !ok {
		return nil
	}
	return NewTypeFilter(codes...)
}

// IsKnownFilterType reports whether name is one of FilterTypes
func IsKnownFilterType(name string) bool {
	for _, ft := range FilterTypes {
		if ft == name {
			return true
		}
	}
	return false
}

// String renders the filter for logs and span attributes
func (f *TypeFilter) String() string {
	if f == nil {
		return "none"
	}
	codes := make([]int, len(f.Conds))
	copy(codes, f.Conds)
	sort.Ints(codes)
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = strconv.Itoa(c)
	}
	return f.Field + " " + f.Op + " {" + strings.Join(parts, ",") + "}"
}

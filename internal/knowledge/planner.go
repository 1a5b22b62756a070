package knowledge

const (
	limitPerEntity  = 20
	minPrimaryLimit = 10
	maxPrimaryLimit = 50
	chipLimit       = 10
)

// SearchRequest is one backend search call. Requests are built by NewPlan
// and never modified afterwards.
type SearchRequest struct {
	Leg    Leg
	Query  string
	Limit  int
	Filter *TypeFilter
}

// Plan is the ordered list of legs for one invocation, primary first
type Plan struct {
	Requests []SearchRequest
}

// PrimaryLimit converts an entity count into the primary result limit
func PrimaryLimit(entityCount int) int {
	limit := entityCount * limitPerEntity
	if limit == 0 {
		return minPrimaryLimit
	}
	if limit > maxPrimaryLimit {
		return maxPrimaryLimit
	}
	return limit
}

// NewPlan decides which backend searches answer a query. The primary leg
// always runs; a chip datasheet leg is added when needsChipDocs is set.
func NewPlan(query string, entityCount int, needsChipDocs bool, filterType string) *Plan {
	plan := &Plan{Requests: make([]SearchRequest, 0, 2)}

	plan.Requests = append(plan.Requests, SearchRequest{
		Leg:    LegPrimary,
		Query:  query,
		Limit:  PrimaryLimit(entityCount),
		Filter: ResolveFilter(filterType),
	})

	if needsChipDocs {
		plan.Requests = append(plan.Requests, SearchRequest{
			Leg:    LegChip,
			Query:  query,
			Limit:  chipLimit,
			Filter: NewTypeFilter(TypeChipDatasheet),
		})
	}

	return plan
}

// Primary returns the primary request
func (p *Plan) Primary() SearchRequest {
	return p.Requests[0]
}

// HasChipLeg reports whether the plan includes the chip datasheet leg
func (p *Plan) HasChipLeg() bool {
	for _, req := range p.Requests {
		if req.Leg == LegChip {
			return true
		}
	}
	return false
}

package listing

import "smflab/internal/models"

// View holds the dashboard's two-stage sort: the pending selection only takes
// effect on Refresh, while filters apply on every List call.
type View struct {
	Filter  Filter
	pending SortOrder
	applied SortOrder
	marker  string
}

// NewView starts with order both selected and applied.
func NewView(order SortOrder, marker string) *View {
	return &View{pending: order, applied: order, marker: marker}
}

// Select changes the pending order without reordering anything.
func (v *View) Select(order SortOrder) {
	v.pending = order
}

// Refresh applies the pending order.
func (v *View) Refresh() {
	v.applied = v.pending
}

// Pending returns the selected but possibly unapplied order.
func (v *View) Pending() SortOrder { return v.pending }

// Applied returns the order List uses.
func (v *View) Applied() SortOrder { return v.applied }

// Marker returns the client marker of the "mine" filter.
func (v *View) Marker() string { return v.marker }

// List filters tests with the current filter and sorts by the applied order.
func (v *View) List(tests []*models.Test) []*models.Test {
	return List(tests, v.Filter, v.applied, v.marker)
}

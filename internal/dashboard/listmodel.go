// Package dashboard implements the dashboard workflow over the prediction
// backend: the customer list model, per-session selection and what-if
// simulation state, and the top-level controller that owns loading,
// error state, and CSV export.
package dashboard

import (
	"sort"
	"strings"
	"sync"

	"github.com/tjfontaine/churn-dashboard/internal/churn"
)

// SortKey identifies a sortable customer column.
type SortKey string

const (
	SortTenure  SortKey = "tenure_months"
	SortCharges SortKey = "monthly_charges"
	SortTickets SortKey = "support_tickets"
)

// SortDirection is the sort order for a column.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ListModel holds the fetched customer collection and derives filtered,
// sorted views of it. The stored collection is only ever replaced as a
// whole set; views never mutate it.
type ListModel struct {
	mu        sync.RWMutex
	customers []churn.Customer
	sortKey   SortKey
	sortDir   SortDirection
}

// NewListModel creates an empty list model. No sort column is active
// until the first ToggleSort, so views keep the fetched order and the
// first toggle of any column counts as a new-key selection (descending).
func NewListModel() *ListModel {
	return &ListModel{}
}

// SetAll replaces the stored customer set.
func (m *ListModel) SetAll(customers []churn.Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers = append([]churn.Customer(nil), customers...)
}

// All returns a copy of the full stored set in original order.
func (m *ListModel) All() []churn.Customer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]churn.Customer(nil), m.customers...)
}

// ToggleSort flips the direction when key is the current sort key and
// resets to descending when a new key is selected. It returns the
// resulting sort state.
func (m *ListModel) ToggleSort(key SortKey) (SortKey, SortDirection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if key == m.sortKey {
		if m.sortDir == SortDesc {
			m.sortDir = SortAsc
		} else {
			m.sortDir = SortDesc
		}
	} else {
		m.sortKey = key
		m.sortDir = SortDesc
	}
	return m.sortKey, m.sortDir
}

// CurrentSort returns the current sort state.
func (m *ListModel) CurrentSort() (SortKey, SortDirection) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortKey, m.sortDir
}

// View returns the filtered, sorted view of the customer set. The filter
// is a case-insensitive substring match against customer_id; an empty
// term yields the full set. Sorting is stable, so equal keys preserve
// original relative order.
func (m *ListModel) View(searchTerm string, key SortKey, dir SortDirection) []churn.Customer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	term := strings.ToLower(strings.TrimSpace(searchTerm))
	view := make([]churn.Customer, 0, len(m.customers))
	for _, c := range m.customers {
		if term == "" || strings.Contains(strings.ToLower(c.CustomerID), term) {
			view = append(view, c)
		}
	}

	less := lessFunc(key)
	if less == nil {
		return view
	}
	sort.SliceStable(view, func(i, j int) bool {
		if dir == SortAsc {
			return less(view[i], view[j])
		}
		return less(view[j], view[i])
	})
	return view
}

func lessFunc(key SortKey) func(a, b churn.Customer) bool {
	switch key {
	case SortTenure:
		return func(a, b churn.Customer) bool { return a.TenureMonths < b.TenureMonths }
	case SortCharges:
		return func(a, b churn.Customer) bool { return a.MonthlyCharges < b.MonthlyCharges }
	case SortTickets:
		return func(a, b churn.Customer) bool { return a.SupportTickets < b.SupportTickets }
	default:
		return nil
	}
}

package accounts

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting"
)

// Tree indexes a tenant's chart by parent so it can be walked without recursion
// through the storage layer.
type Tree struct {
	byID     map[int64]accounting.Account
	children map[int64][]int64
	roots    []int64
}

// NewTree builds the parent index. Accounts whose parent is unknown are treated as roots.
func NewTree(list []accounting.Account) *Tree {
	t := &Tree{
		byID:     make(map[int64]accounting.Account, len(list)),
		children: make(map[int64][]int64),
	}
	for _, a := range list {
		t.byID[a.ID] = a
	}
	for _, a := range list {
		if a.ParentID != nil {
			if _, ok := t.byID[*a.ParentID]; ok {
				t.children[*a.ParentID] = append(t.children[*a.ParentID], a.ID)
				continue
			}
		}
		t.roots = append(t.roots, a.ID)
	}
	byCode := func(ids []int64) {
		sort.Slice(ids, func(i, j int) bool { return t.byID[ids[i]].Code < t.byID[ids[j]].Code })
	}
	byCode(t.roots)
	for _, ids := range t.children {
		byCode(ids)
	}
	return t
}

// Account returns the account with id.
func (t *Tree) Account(id int64) (accounting.Account, bool) {
	a, ok := t.byID[id]
	return a, ok
}

// Ordered lists accounts parent-before-child, siblings by code.
func (t *Tree) Ordered() []accounting.Account {
	out := make([]accounting.Account, 0, len(t.byID))
	visited := make(map[int64]bool, len(t.byID))
	stack := make([]int64, 0, len(t.roots))
	for i := len(t.roots) - 1; i >= 0; i-- {
		stack = append(stack, t.roots[i])
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		out = append(out, t.byID[id])
		kids := t.children[id]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return out
}

// Depth returns the number of ancestors of id.
func (t *Tree) Depth(id int64) int {
	depth := 0
	seen := map[int64]bool{id: true}
	for {
		a, ok := t.byID[id]
		if !ok || a.ParentID == nil {
			return depth
		}
		id = *a.ParentID
		if seen[id] {
			return depth
		}
		seen[id] = true
		depth++
	}
}

// Rollup computes every account's balance bottom-up: a leaf takes leaf(account),
// a group the sum of its children.
func (t *Tree) Rollup(leaf func(accounting.Account) decimal.Decimal) map[int64]decimal.Decimal {
	totals := make(map[int64]decimal.Decimal, len(t.byID))
	ordered := t.Ordered()
	// reverse pre-order visits every child before its parent
	for i := len(ordered) - 1; i >= 0; i-- {
		a := ordered[i]
		if !a.IsGroup {
			totals[a.ID] = leaf(a)
			continue
		}
		sum := decimal.Zero
		for _, child := range t.children[a.ID] {
			sum = sum.Add(totals[child])
		}
		totals[a.ID] = sum
	}
	return totals
}

// StoredBalance is the leaf function that reads the materialised running balance.
func StoredBalance(a accounting.Account) decimal.Decimal { return a.Balance }

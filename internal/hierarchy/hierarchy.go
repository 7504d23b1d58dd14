// Package hierarchy decides role implication from per-namespace privilege
// ordering. The table is static configuration, loaded once and read-only
// afterwards, so no locking is needed.
package hierarchy

import (
	"github.com/commng/commng/internal/rolekey"
)

// Table maps a namespace to its actions ordered highest privilege first.
// A namespace absent from the table gets no implication: only exact key
// equality counts there.
type Table struct {
	order map[string][]string
}

// New builds a table from explicit namespace orderings.
func New(order map[string][]string) *Table {
	copied := make(map[string][]string, len(order))
	for ns, actions := range order {
		list := make([]string, len(actions))
		copy(list, actions)
		copied[ns] = list
	}
	return &Table{order: copied}
}

// Default builds the table from the platform role catalogue.
func Default() *Table {
	order := make(map[string][]string)
	for _, ns := range rolekey.Namespaces() {
		order[ns] = rolekey.Actions(ns)
	}
	return New(order)
}

// Rank returns the privilege index of an action within its namespace,
// lower meaning more privileged. The second result is false when the
// namespace or action is unknown to the table.
func (t *Table) Rank(namespace, action string) (int, bool) {
	for i, a := range t.order[namespace] {
		if a == action {
			return i, true
		}
	}
	return 0, false
}

// Implies reports whether holding held grants required. Subjects must match
// exactly; there is no subject wildcard and no cross-subject escalation.
func (t *Table) Implies(held, required rolekey.RoleKey) bool {
	if held == required {
		return true
	}
	if held.Namespace != required.Namespace || held.Subject != required.Subject {
		return false
	}
	heldRank, ok := t.Rank(held.Namespace, held.Action)
	if !ok {
		return false
	}
	requiredRank, ok := t.Rank(required.Namespace, required.Action)
	if !ok {
		return false
	}
	return heldRank <= requiredRank
}

// Expand returns role followed by every same-scope key at an equal or lower
// privilege, in table order. A role outside the table expands to itself.
func (t *Table) Expand(role rolekey.RoleKey) []rolekey.RoleKey {
	rank, ok := t.Rank(role.Namespace, role.Action)
	if !ok {
		return []rolekey.RoleKey{role}
	}
	actions := t.order[role.Namespace][rank:]
	out := make([]rolekey.RoleKey, 0, len(actions))
	for _, action := range actions {
		out = append(out, rolekey.RoleKey{Namespace: role.Namespace, Subject: role.Subject, Action: action})
	}
	return out
}

// HasPermission reports whether any held key implies required.
func (t *Table) HasPermission(held []rolekey.RoleKey, required rolekey.RoleKey) bool {
	for _, h := range held {
		if t.Implies(h, required) {
			return true
		}
	}
	return false
}

// HasAnyPermission reports whether any held key implies at least one of
// the alternatives.
func (t *Table) HasAnyPermission(held []rolekey.RoleKey, alternatives []rolekey.RoleKey) bool {
	for _, required := range alternatives {
		if t.HasPermission(held, required) {
			return true
		}
	}
	return false
}

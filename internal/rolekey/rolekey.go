// Package rolekey defines the canonical permission identifier used across
// the platform: "namespace:action" or "namespace:subject:action".
package rolekey

import (
	"fmt"
	"strings"
)

// RoleKey is an immutable permission identifier. Subject is optional and
// scopes the action to a single resource (a channel id in practice).
type RoleKey struct {
	Namespace string
	Subject   string
	Action    string
}

// ParseError reports a raw string that does not follow the role key grammar.
type ParseError struct {
	Raw string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("rolekey: malformed role key %q", e.Raw)
}

// ActionError reports an action outside a namespace's enumerated set.
type ActionError struct {
	Namespace string
	Action    string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("rolekey: invalid action %q for namespace %q", e.Action, e.Namespace)
}

// Parse splits raw on ":" into a RoleKey. Two segments produce a key without
// a subject, three segments a key with one; any other shape is malformed.
func Parse(raw string) (RoleKey, error) {
	parts := strings.Split(raw, ":")
	for _, p := range parts {
		if p == "" {
			return RoleKey{}, &ParseError{Raw: raw}
		}
	}
	switch len(parts) {
	case 2:
		return RoleKey{Namespace: parts[0], Action: parts[1]}, nil
	case 3:
		return RoleKey{Namespace: parts[0], Subject: parts[1], Action: parts[2]}, nil
	default:
		return RoleKey{}, &ParseError{Raw: raw}
	}
}

// Build composes the canonical string form, omitting the subject segment
// when subject is empty.
func Build(namespace, subject, action string) string {
	if subject == "" {
		return namespace + ":" + action
	}
	return namespace + ":" + subject + ":" + action
}

// String returns the canonical wire form of the key.
func (k RoleKey) String() string {
	return Build(k.Namespace, k.Subject, k.Action)
}

// HasSubject reports whether the key is scoped to a resource.
func (k RoleKey) HasSubject() bool {
	return k.Subject != ""
}

// Equal reports field-wise equality.
func (k RoleKey) Equal(other RoleKey) bool {
	return k == other
}

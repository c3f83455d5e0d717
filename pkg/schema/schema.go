// Package schema defines the closed KT-SQEP code sets for knowledge-graph
// entities and relations. Raw code strings are parsed once at the boundary;
// everything outside these alphabets is rejected, never coerced.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// DistinctType is the single primary classification of an entity.
// It is fixed at creation time and never changes afterwards.
type DistinctType string

const (
	KnowledgeArea   DistinctType = "ka"
	KnowledgeUnit   DistinctType = "ku"
	KnowledgePoint  DistinctType = "kp"
	KnowledgeDetail DistinctType = "kd"
)

// AddonType is an orthogonal tag attached to an entity. Zero or more apply.
type AddonType string

const (
	Knowledge AddonType = "k"
	Thinking  AddonType = "t"
	Example   AddonType = "e"
	Question  AddonType = "q"
	Practice  AddonType = "p"
	Political AddonType = "z"
)

// Relation is the kind of a directed edge between two entities.
type Relation string

const (
	Contain Relation = "contain"
	Order   Relation = "order"
)

// ValidDistinctType reports whether code is one of the four fixed codes.
func ValidDistinctType(t DistinctType) bool {
	switch t {
	case KnowledgeArea, KnowledgeUnit, KnowledgePoint, KnowledgeDetail:
		return true
	}
	return false
}

// ValidAddonType reports whether code is in the fixed addon alphabet.
func ValidAddonType(t AddonType) bool {
	switch t {
	case Knowledge, Thinking, Example, Question, Practice, Political:
		return true
	}
	return false
}

// ValidRelation reports whether token is a supported relation kind.
func ValidRelation(r Relation) bool {
	return r == Contain || r == Order
}

// ParseDistinctType parses a raw code such as "ka". Case-insensitive.
func ParseDistinctType(code string) (DistinctType, error) {
	t := DistinctType(strings.ToLower(code))
	if !ValidDistinctType(t) {
		return "", &InvalidCodeError{Kind: "distinct type", Code: code}
	}
	return t, nil
}

// ParseRelation parses a raw relation token such as "contain". Case-insensitive.
func ParseRelation(token string) (Relation, error) {
	r := Relation(strings.ToLower(token))
	if !ValidRelation(r) {
		return "", &InvalidCodeError{Kind: "relation", Code: token}
	}
	return r, nil
}

// AddonSet is a set of addon types. Duplicates collapse; order is not
// significant.
type AddonSet map[AddonType]bool

// NewAddonSet builds a set from the given types. The caller is expected to
// pass valid codes; use ParseAddonTypes for untrusted input.
func NewAddonSet(types ...AddonType) AddonSet {
	s := make(AddonSet, len(types))
	for _, t := range types {
		s[t] = true
	}
	return s
}

// ParseAddonTypes parses a concatenated code string such as "ktq".
// Case-insensitive. An empty string yields an empty set.
func ParseAddonTypes(codes string) (AddonSet, error) {
	s := make(AddonSet, len(codes))
	for _, c := range strings.ToLower(codes) {
		t := AddonType(string(c))
		if !ValidAddonType(t) {
			return nil, &InvalidCodeError{Kind: "addon type", Code: string(c)}
		}
		s[t] = true
	}
	return s, nil
}

// Valid reports whether every member is in the addon alphabet.
func (s AddonSet) Valid() bool {
	for t := range s {
		if !ValidAddonType(t) {
			return false
		}
	}
	return true
}

// Has reports membership.
func (s AddonSet) Has(t AddonType) bool { return s[t] }

// Equal reports whether both sets hold the same members.
func (s AddonSet) Equal(other AddonSet) bool {
	if len(s) != len(other) {
		return false
	}
	for t := range s {
		if !other[t] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (s AddonSet) Clone() AddonSet {
	c := make(AddonSet, len(s))
	for t := range s {
		c[t] = true
	}
	return c
}

// String returns the members as a sorted code string, e.g. "kqt".
func (s AddonSet) String() string {
	codes := make([]string, 0, len(s))
	for t := range s {
		codes = append(codes, string(t))
	}
	sort.Strings(codes)
	return strings.Join(codes, "")
}

// InvalidCodeError reports a code outside one of the fixed alphabets.
type InvalidCodeError struct {
	Kind string // "distinct type", "addon type" or "relation"
	Code string
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid %s code %q", e.Kind, e.Code)
}

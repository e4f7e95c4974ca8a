package types

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// RefKind tells where a reference is resolved.
type RefKind string

const (
	RefRaw         RefKind = "raw"
	RefCondition   RefKind = "condition"
	RefFormula     RefKind = "formula"
	RefNodeFormula RefKind = "node-formula"
	RefValue       RefKind = "value"
	RefTable       RefKind = "table"
	RefUUID        RefKind = "uuid"
	RefNodeID      RefKind = "node-id"
)

// refPrefixes is checked in order; node-formula must come before formula.
var refPrefixes = []struct {
	prefix string
	kind   RefKind
}{
	{"condition:", RefCondition},
	{"node-formula:", RefNodeFormula},
	{"formula:", RefFormula},
	{"@value.", RefValue},
	{"@table.", RefTable},
}

var generatedNodeID = regexp.MustCompile(`^node_\d+_[A-Za-z0-9]+$`)

// Ref is a parsed reference string. Everything except RefRaw is resolved by
// the backend against the original tree and must never be namespaced.
type Ref struct {
	Kind RefKind
	ID   string
}

// ParseRef classifies s once so later code can switch on Kind.
func ParseRef(s string) Ref {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}
	}
	for _, p := range refPrefixes {
		if strings.HasPrefix(s, p.prefix) {
			return Ref{Kind: p.kind, ID: strings.TrimPrefix(s, p.prefix)}
		}
	}
	if len(s) == 36 {
		if _, err := uuid.Parse(s); err == nil {
			return Ref{Kind: RefUUID, ID: s}
		}
	}
	if generatedNodeID.MatchString(s) {
		return Ref{Kind: RefNodeID, ID: s}
	}
	return Ref{Kind: RefRaw, ID: s}
}

// IsZero reports whether r is empty.
func (r Ref) IsZero() bool { return r.ID == "" }

// BackendResolved reports whether r points at something the backend resolves.
func (r Ref) BackendResolved() bool {
	return !r.IsZero() && r.Kind != RefRaw
}

// Namespace returns r rewritten under prefix. Backend references and
// references already carrying prefix are returned unchanged.
func (r Ref) Namespace(prefix string) Ref {
	if prefix == "" || r.IsZero() || r.BackendResolved() || strings.HasPrefix(r.ID, prefix) {
		return r
	}
	return Ref{Kind: RefRaw, ID: prefix + r.ID}
}

// String renders r back to its wire form.
func (r Ref) String() string {
	for _, p := range refPrefixes {
		if p.kind == r.Kind {
			return p.prefix + r.ID
		}
	}
	return r.ID
}

func (r Ref) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Ref) UnmarshalText(b []byte) error {
	*r = ParseRef(string(b))
	return nil
}

package entities

import (
	"fmt"
	"strings"

	pkgerrors "nodestand-backend/pkg/errors"
)

// Kind is the closed set of argument node variants.
type Kind string

const (
	KindAssertion      Kind = "assertion"
	KindInterpretation Kind = "interpretation"
	KindSource         Kind = "source"
)

// AllKinds lists every variant in a stable order.
var AllKinds = []Kind{KindAssertion, KindInterpretation, KindSource}

// ParseKind accepts the lower-case variant name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindAssertion:
		return KindAssertion, nil
	case KindInterpretation:
		return KindInterpretation, nil
	case KindSource:
		return KindSource, nil
	}
	return "", pkgerrors.InvalidInput("type", fmt.Sprintf("unknown node type %q", s))
}

func (k Kind) String() string {
	return string(k)
}

// CanLinkTo enforces the child type rules:
// Assertion -> {Assertion, Interpretation}; Interpretation -> {Source}; Source -> {}.
func (k Kind) CanLinkTo(child Kind) error {
	ok := false
	switch k {
	case KindAssertion:
		ok = child == KindAssertion || child == KindInterpretation
	case KindInterpretation:
		ok = child == KindSource
	}
	if !ok {
		return pkgerrors.InvalidLinkType(string(k), string(child))
	}
	return nil
}

// MaxChildren returns the child slot count, or -1 when unbounded.
func (k Kind) MaxChildren() int {
	switch k {
	case KindAssertion:
		return -1
	case KindInterpretation:
		return 1
	default:
		return 0
	}
}

// HasURL reports whether bodies of this kind carry a url instead of text.
func (k Kind) HasURL() bool {
	return k == KindSource
}

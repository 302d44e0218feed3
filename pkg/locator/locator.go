// Package locator describes how to find an element in the remote UI tree.
package locator

import (
	"fmt"
	"strings"
	"sync"

	"github.com/devicelab-dev/webfind/pkg/core"
)

// Kind is the locator strategy family.
type Kind int

const (
	KindXPath Kind = iota
	KindCSS
	KindID
	KindName
	KindClassName
	KindTagName
	KindLinkText
	KindPartialLinkText
)

// W3C WebDriver location strategies.
const (
	StrategyXPath           = "xpath"
	StrategyCSS             = "css selector"
	StrategyLinkText        = "link text"
	StrategyPartialLinkText = "partial link text"
	StrategyTagName         = "tag name"
)

var kindNames = map[Kind]string{
	KindXPath:           "xpath",
	KindCSS:             "css",
	KindID:              "id",
	KindName:            "name",
	KindClassName:       "class",
	KindTagName:         "tag",
	KindLinkText:        "link",
	KindPartialLinkText: "partial-link",
}

// String returns the short name used in config files and flags.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind parses a kind name (case-insensitive). Accepts the short names
// plus a few common aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "xpath", "":
		return KindXPath, nil
	case "css", "css selector":
		return KindCSS, nil
	case "id":
		return KindID, nil
	case "name":
		return KindName, nil
	case "class", "classname", "class name":
		return KindClassName, nil
	case "tag", "tagname", "tag name":
		return KindTagName, nil
	case "link", "linktext", "link text":
		return KindLinkText, nil
	case "partial-link", "partiallink", "partial link text":
		return KindPartialLinkText, nil
	}
	return 0, fmt.Errorf("unknown locator kind %q", s)
}

// Spec is a declarative description of how to find one element. Its kind and
// raw locator are frozen once an element has been bound through it; the
// friendly name stays writable for display decoration.
type Spec struct {
	mu       sync.RWMutex
	kind     Kind
	raw      string
	name     string
	resolved string
	bound    bool
}

// New creates a Spec. An empty name defaults to the raw locator.
func New(kind Kind, raw, name string) *Spec {
	if name == "" {
		name = raw
	}
	return &Spec{kind: kind, raw: raw, name: name}
}

// XPath is shorthand for New(KindXPath, raw, name).
func XPath(raw, name string) *Spec { return New(KindXPath, raw, name) }

// CSS is shorthand for New(KindCSS, raw, name).
func CSS(raw, name string) *Spec { return New(KindCSS, raw, name) }

// ID is shorthand for New(KindID, raw, name).
func ID(raw, name string) *Spec { return New(KindID, raw, name) }

// Kind returns the locator kind.
func (s *Spec) Kind() Kind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kind
}

// Raw returns the raw locator string.
func (s *Spec) Raw() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.raw
}

// Name returns the human-readable name.
func (s *Spec) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// Resolved returns the indexed locator if this spec was produced by Copy,
// otherwise the raw locator.
func (s *Spec) Resolved() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.resolved != "" {
		return s.resolved
	}
	return s.raw
}

// Bound reports whether an element has been bound through this spec.
func (s *Spec) Bound() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bound
}

// MarkBound freezes kind and raw locator.
func (s *Spec) MarkBound() {
	s.mu.Lock()
	s.bound = true
	s.mu.Unlock()
}

// SetRaw changes the raw locator. Fails once bound.
func (s *Spec) SetRaw(raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound {
		return s.alreadyBound("raw locator")
	}
	s.raw = raw
	s.resolved = ""
	return nil
}

// SetKind changes the locator kind. Fails once bound.
func (s *Spec) SetKind(kind Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound {
		return s.alreadyBound("kind")
	}
	s.kind = kind
	return nil
}

// SetName changes the display name. Always allowed.
func (s *Spec) SetName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

func (s *Spec) alreadyBound(field string) error {
	return core.ErrLocatorAlreadyBound.
		WithMessage(fmt.Sprintf("cannot change %s of a bound locator", field)).
		WithDetails(map[string]interface{}{
			core.DetailLocator:  s.name,
			core.DetailResolved: s.raw,
		})
}

// Copy returns an independent, unbound clone decorated for the match at index.
func (s *Spec) Copy(index int) *Spec {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := &Spec{
		kind: s.kind,
		raw:  s.raw,
		name: fmt.Sprintf("%s[%d]", s.name, index),
	}
	if s.kind == KindXPath {
		c.resolved = fmt.Sprintf("(%s)[%d]", s.raw, index)
	} else {
		c.resolved = s.raw
	}
	return c
}

// Strategy returns the W3C "using" strategy and value for a find request.
// Kinds without a native W3C strategy are expressed as CSS selectors.
func (s *Spec) Strategy() (using, value string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch s.kind {
	case KindCSS:
		return StrategyCSS, s.raw
	case KindID:
		return StrategyCSS, fmt.Sprintf(`[id="%s"]`, escapeCSSString(s.raw))
	case KindName:
		return StrategyCSS, fmt.Sprintf(`[name="%s"]`, escapeCSSString(s.raw))
	case KindClassName:
		return StrategyCSS, "." + escapeCSSIdent(s.raw)
	case KindTagName:
		return StrategyTagName, s.raw
	case KindLinkText:
		return StrategyLinkText, s.raw
	case KindPartialLinkText:
		return StrategyPartialLinkText, s.raw
	default:
		return StrategyXPath, s.raw
	}
}

// Describe returns `"name" (kind: locator)` for logs and messages.
func (s *Spec) Describe() string {
	return fmt.Sprintf("%q (%s: %s)", s.Name(), s.Kind(), s.Resolved())
}

// escapeCSSString escapes quotes for a CSS attribute selector value
func escapeCSSString(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// escapeCSSIdent escapes characters that are not valid in a CSS identifier.
func escapeCSSIdent(s string) string {
	var b strings.Builder
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_', c == '-', c > 0x7f:
			b.WriteRune(c)
		case c >= '0' && c <= '9' && i > 0:
			b.WriteRune(c)
		default:
			fmt.Fprintf(&b, `\%x `, c)
		}
	}
	return b.String()
}

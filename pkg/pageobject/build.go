package pageobject

import (
	"context"

	"go.trai.ch/zerr"

	"github.com/devicelab-dev/webfind/pkg/cache"
	"github.com/devicelab-dev/webfind/pkg/element"
	"github.com/devicelab-dev/webfind/pkg/jsengine"
	"github.com/devicelab-dev/webfind/pkg/locator"
)

// Bound is a page element with its control.
type Bound struct {
	Element  *Element
	Path     string
	Control  *element.Control
	Parent   *Bound
	Children []*Bound
}

// Tree is a page built against one session.
type Tree struct {
	Page    *Page
	Session *element.Session
	Roots   []*Bound
	byPath  map[string]*Bound
	order   []*Bound
}

// Build creates the control tree for p in s. Locator templates are
// expanded with js; a nil js leaves locators as written.
func Build(s *element.Session, p *Page, js *jsengine.Engine) (*Tree, error) {
	t := &Tree{Page: p, Session: s, byPath: make(map[string]*Bound)}

	var build func(parent *Bound, prefix string, els []*Element) ([]*Bound, error)
	build = func(parent *Bound, prefix string, els []*Element) ([]*Bound, error) {
		out := make([]*Bound, 0, len(els))
		for _, el := range els {
			path := el.Name
			if prefix != "" {
				path = prefix + " > " + el.Name
			}

			raw := el.Locator
			if js != nil && jsengine.HasExpressions(raw) {
				expanded, err := js.ExpandVariables(raw)
				if err != nil {
					return nil, zerr.With(zerr.Wrap(err, "failed to expand locator"), "element", path)
				}
				raw = expanded
			}

			spec := locator.New(el.Kind, raw, el.Name)
			var ctl *element.Control
			if parent == nil {
				ctl = s.Control(spec, controlOptions(el)...)
			} else {
				ctl = parent.Control.Child(spec, controlOptions(el)...)
			}

			b := &Bound{Element: el, Path: path, Control: ctl, Parent: parent}
			t.byPath[path] = b
			t.order = append(t.order, b)

			children, err := build(b, path, el.Children)
			if err != nil {
				return nil, err
			}
			b.Children = children
			out = append(out, b)
		}
		return out, nil
	}

	roots, err := build(nil, "", p.Elements)
	if err != nil {
		return nil, zerr.With(err, "page", p.Name)
	}
	t.Roots = roots
	return t, nil
}

func controlOptions(el *Element) []element.ControlOption {
	var opts []element.ControlOption
	if el.Shape != "" {
		opts = append(opts, element.WithShape(el.Shape))
	}
	if el.Multiple {
		opts = append(opts, element.WithAllowMultiple())
	}
	if el.Stable {
		opts = append(opts, element.WithStable())
	}
	if el.Timeout > 0 {
		opts = append(opts, element.WithTimeout(el.Timeout))
	}
	return opts
}

// Lookup returns the element at a friendly path such as "Form > User".
func (t *Tree) Lookup(path string) (*Bound, bool) {
	b, ok := t.byPath[path]
	return b, ok
}

// All returns every bound element, parents before children.
func (t *Tree) All() []*Bound {
	return append([]*Bound(nil), t.order...)
}

// Resolution is the outcome of resolving one bound element.
type Resolution struct {
	Control *element.Control   // the instance Resolve returned; nil for zero matches
	Matches []*element.Control // every match, for multiple elements
	Outcome cache.Outcome
}

// Resolve resolves b. Multiple elements resolve every match through FindAll,
// where zero matches is not an error; others resolve their single control.
func (b *Bound) Resolve(ctx context.Context) (*Resolution, error) {
	if !b.Element.Multiple {
		got, outcome, err := b.Control.ResolveWithOutcome(ctx)
		if err != nil {
			return nil, err
		}
		return &Resolution{Control: got, Matches: []*element.Control{got}, Outcome: outcome}, nil
	}

	spec := b.Control.Spec()
	var matches []*element.Control
	var err error
	if b.Parent == nil {
		matches, err = b.Control.Session().FindAll(ctx, spec)
	} else {
		matches, err = b.Parent.Control.FindAll(ctx, spec)
	}
	if err != nil {
		return nil, err
	}
	r := &Resolution{Matches: matches, Outcome: cache.Miss}
	if len(matches) > 0 {
		r.Control = matches[0]
	}
	return r, nil
}

// Package pageobject parses YAML page-object files: named trees of locators
// that build into element.Control trees.
//
//	page: Login
//	url: https://example.com/login
//	elements:
//	  - name: Form
//	    css: form#login
//	    children:
//	      - name: User
//	        id: username
//	        type: input
//	  - //h1
package pageobject

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/webfind/pkg/locator"
)

// ParseError represents a parsing error with location info.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Page is one parsed page-object file.
type Page struct {
	Name       string
	URL        string
	Elements   []*Element
	SourcePath string
}

// Element is one named locator in a page, with its nested children.
type Element struct {
	Name     string
	Kind     locator.Kind
	Locator  string
	Shape    string // control type name; empty means the default
	Multiple bool
	Stable   bool
	Timeout  time.Duration
	Children []*Element
	Line     int

	// Locator keys present in the source; Validate requires exactly one
	kindKeys []string
}

// kindKeys maps YAML keys to locator kinds. "name" is the friendly name, so
// the HTML name attribute is spelled nameAttr.
var kindKeys = []struct {
	key  string
	kind locator.Kind
}{
	{"xpath", locator.KindXPath},
	{"css", locator.KindCSS},
	{"id", locator.KindID},
	{"nameAttr", locator.KindName},
	{"class", locator.KindClassName},
	{"tag", locator.KindTagName},
	{"link", locator.KindLinkText},
	{"partialLink", locator.KindPartialLinkText},
}

type rawPage struct {
	Page     string      `yaml:"page"`
	URL      string      `yaml:"url"`
	Elements []yaml.Node `yaml:"elements"`
}

type rawElement struct {
	Name        string      `yaml:"name"`
	XPath       *string     `yaml:"xpath"`
	CSS         *string     `yaml:"css"`
	ID          *string     `yaml:"id"`
	NameAttr    *string     `yaml:"nameAttr"`
	Class       *string     `yaml:"class"`
	Tag         *string     `yaml:"tag"`
	Link        *string     `yaml:"link"`
	PartialLink *string     `yaml:"partialLink"`
	Type        string      `yaml:"type"`
	Multiple    bool        `yaml:"multiple"`
	Stable      bool        `yaml:"stable"`
	TimeoutMs   int         `yaml:"timeoutMs"`
	Children    []yaml.Node `yaml:"children"`
}

func (r *rawElement) locators() []*string {
	return []*string{r.XPath, r.CSS, r.ID, r.NameAttr, r.Class, r.Tag, r.Link, r.PartialLink}
}

// ParseFile parses a single page-object file.
func ParseFile(path string) (*Page, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided page file
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, path)
}

// Parse parses page-object YAML content. Structural problems fail here;
// semantic problems are left to Validate.
func Parse(data []byte, sourcePath string) (*Page, error) {
	var raw rawPage
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{Path: sourcePath, Message: fmt.Sprintf("invalid page: %v", err)}
	}
	if raw.Page == "" && len(raw.Elements) == 0 {
		return nil, &ParseError{Path: sourcePath, Line: 1, Message: "empty page file"}
	}

	page := &Page{Name: raw.Page, URL: raw.URL, SourcePath: sourcePath}
	for i := range raw.Elements {
		el, err := parseElement(&raw.Elements[i], sourcePath)
		if err != nil {
			return nil, err
		}
		page.Elements = append(page.Elements, el)
	}
	return page, nil
}

func parseElement(node *yaml.Node, sourcePath string) (*Element, error) {
	// Scalar shorthand: "- //h1" is an XPath named after itself
	if node.Kind == yaml.ScalarNode {
		return &Element{
			Name:     node.Value,
			Kind:     locator.KindXPath,
			Locator:  node.Value,
			Line:     node.Line,
			kindKeys: []string{"xpath"},
		}, nil
	}

	if node.Kind != yaml.MappingNode {
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    node.Line,
			Message: "element must be a mapping or an XPath string",
		}
	}

	var raw rawElement
	if err := node.Decode(&raw); err != nil {
		return nil, wrapParseError(sourcePath, node.Line, err)
	}

	el := &Element{
		Name:     raw.Name,
		Shape:    raw.Type,
		Multiple: raw.Multiple,
		Stable:   raw.Stable,
		Timeout:  time.Duration(raw.TimeoutMs) * time.Millisecond,
		Line:     node.Line,
	}
	for i, value := range raw.locators() {
		if value == nil {
			continue
		}
		if len(el.kindKeys) == 0 {
			el.Kind = kindKeys[i].kind
			el.Locator = *value
		}
		el.kindKeys = append(el.kindKeys, kindKeys[i].key)
	}

	for i := range raw.Children {
		child, err := parseElement(&raw.Children[i], sourcePath)
		if err != nil {
			return nil, err
		}
		el.Children = append(el.Children, child)
	}
	return el, nil
}

func wrapParseError(path string, line int, err error) error {
	return &ParseError{Path: path, Line: line, Message: err.Error()}
}

// Walk visits every element depth-first, parents before children. path is
// the " > "-joined friendly names from the top level down.
func (p *Page) Walk(fn func(path string, el *Element)) {
	var walk func(prefix string, els []*Element)
	walk = func(prefix string, els []*Element) {
		for _, el := range els {
			path := el.Name
			if prefix != "" {
				path = prefix + " > " + el.Name
			}
			fn(path, el)
			walk(path, el.Children)
		}
	}
	walk("", p.Elements)
}

// Count returns the number of elements in the page, at every depth.
func (p *Page) Count() int {
	n := 0
	p.Walk(func(string, *Element) { n++ })
	return n
}

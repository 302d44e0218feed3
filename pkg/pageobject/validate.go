package pageobject

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/devicelab-dev/webfind/pkg/jsengine"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File    string
	Line    int
	Path    string // friendly path of the offending element
	Message string
}

func (e *ValidationError) Error() string {
	loc := e.File
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.File, e.Line)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", loc, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", loc, e.Message)
}

// Result contains the validation result.
type Result struct {
	// Files is the list of page file paths that parsed, in sorted order.
	Files []string
	// Pages are the parsed pages, parallel to Files.
	Pages []*Page
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator validates page files.
type Validator struct {
	js *jsengine.Engine
}

// NewValidator creates a Validator. With a non-nil js engine, ${...}
// expressions in locators are evaluated and failures reported.
func NewValidator(js *jsengine.Engine) *Validator {
	return &Validator{js: js}
}

// Validate validates files and directories of page files.
func (v *Validator) Validate(paths ...string) *Result {
	result := &Result{}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{
				File:    path,
				Message: fmt.Sprintf("cannot access: %v", err),
			})
			continue
		}

		files := []string{path}
		if info.IsDir() {
			files, err = collectPageFiles(path)
			if err != nil {
				result.Errors = append(result.Errors, &ValidationError{
					File:    path,
					Message: fmt.Sprintf("failed to scan directory: %v", err),
				})
				continue
			}
		}

		for _, file := range files {
			v.validateFile(file, result)
		}
	}

	return result
}

func (v *Validator) validateFile(file string, result *Result) {
	page, err := ParseFile(file)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{
			File:    file,
			Message: fmt.Sprintf("parse error: %v", err),
		})
		return
	}

	errs := v.ValidatePage(page)
	result.Errors = append(result.Errors, errs...)
	if len(errs) == 0 {
		result.Files = append(result.Files, file)
		result.Pages = append(result.Pages, page)
	}
}

// ValidatePage checks one parsed page: every element has a name and exactly
// one locator, sibling names are unique, and multiple elements have no
// children.
func (v *Validator) ValidatePage(p *Page) []error {
	var errs []error
	fail := func(el *Element, path, format string, args ...interface{}) {
		errs = append(errs, &ValidationError{
			File:    p.SourcePath,
			Line:    el.Line,
			Path:    path,
			Message: fmt.Sprintf(format, args...),
		})
	}

	var check func(prefix string, els []*Element)
	check = func(prefix string, els []*Element) {
		seen := make(map[string]int)
		for _, el := range els {
			path := el.Name
			if prefix != "" {
				path = prefix + " > " + el.Name
			}

			if strings.TrimSpace(el.Name) == "" {
				fail(el, prefix, "element has no name")
			} else if line, dup := seen[el.Name]; dup {
				fail(el, path, "duplicate name (first defined on line %d)", line)
			} else {
				seen[el.Name] = el.Line
			}

			switch len(el.kindKeys) {
			case 0:
				fail(el, path, "no locator; expected one of %s", locatorKeyList())
			case 1:
				if strings.TrimSpace(el.Locator) == "" {
					fail(el, path, "empty %s locator", el.kindKeys[0])
				} else if v.js != nil && jsengine.HasExpressions(el.Locator) {
					if _, err := v.js.ExpandVariables(el.Locator); err != nil {
						fail(el, path, "%v", err)
					}
				}
			default:
				fail(el, path, "multiple locators (%s); expected exactly one", strings.Join(el.kindKeys, ", "))
			}

			if el.Timeout < 0 {
				fail(el, path, "timeoutMs must be >= 0")
			}
			if el.Multiple && len(el.Children) > 0 {
				fail(el, path, "multiple elements cannot have children")
			}

			check(path, el.Children)
		}
	}
	check("", p.Elements)
	return errs
}

func locatorKeyList() string {
	keys := make([]string, len(kindKeys))
	for i, k := range kindKeys {
		keys[i] = k.key
	}
	return strings.Join(keys, "|")
}

// collectPageFiles finds all .yaml/.yml files in a directory.
func collectPageFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})

	sort.Strings(files)
	return files, err
}

package pageobject

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/webfind/pkg/cache"
	"github.com/devicelab-dev/webfind/pkg/core"
	"github.com/devicelab-dev/webfind/pkg/element"
	"github.com/devicelab-dev/webfind/pkg/jsengine"
	"github.com/devicelab-dev/webfind/pkg/locator"
	"github.com/devicelab-dev/webfind/pkg/remote/fake"
	"github.com/devicelab-dev/webfind/pkg/wait/waittest"
)

const loginPage = `
page: Login
url: https://example.com/login
elements:
  - name: Form
    css: form#login
    children:
      - name: User
        id: username
        type: input
      - name: Password
        nameAttr: password
        type: input
        timeoutMs: 1500
      - name: Submit
        xpath: .//button[@type='submit']
        stable: true
  - name: Links
    tag: a
    multiple: true
  - //h1
`

func TestParse_LoginPage(t *testing.T) {
	page, err := Parse([]byte(loginPage), "login.yaml")
	require.NoError(t, err)

	assert.Equal(t, "Login", page.Name)
	assert.Equal(t, "https://example.com/login", page.URL)
	require.Len(t, page.Elements, 3)
	assert.Equal(t, 6, page.Count())

	form := page.Elements[0]
	assert.Equal(t, "Form", form.Name)
	assert.Equal(t, locator.KindCSS, form.Kind)
	assert.Equal(t, "form#login", form.Locator)
	assert.Equal(t, 5, form.Line)
	require.Len(t, form.Children, 3)

	user := form.Children[0]
	assert.Equal(t, locator.KindID, user.Kind)
	assert.Equal(t, "input", user.Shape)

	password := form.Children[1]
	assert.Equal(t, locator.KindName, password.Kind)
	assert.Equal(t, 1500*time.Millisecond, password.Timeout)

	assert.True(t, form.Children[2].Stable)
	assert.True(t, page.Elements[1].Multiple)
	assert.Equal(t, locator.KindTagName, page.Elements[1].Kind)

	heading := page.Elements[2]
	assert.Equal(t, "//h1", heading.Name)
	assert.Equal(t, locator.KindXPath, heading.Kind)
	assert.Equal(t, "//h1", heading.Locator)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		line    int
	}{
		{"empty", "", 1},
		{"invalid yaml", "elements: [", 0},
		{"element is a list", "elements:\n  - [a, b]\n", 2},
		{"bad field type", "elements:\n  - name: X\n    css: a\n    timeoutMs: soon\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content), "bad.yaml")
			require.Error(t, err)
			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, "bad.yaml", pe.Path)
			if tt.line > 0 {
				assert.Equal(t, tt.line, pe.Line)
			}
		})
	}
}

func TestWalk_Paths(t *testing.T) {
	page, err := Parse([]byte(loginPage), "login.yaml")
	require.NoError(t, err)

	var paths []string
	page.Walk(func(path string, _ *Element) { paths = append(paths, path) })
	assert.Equal(t, []string{
		"Form", "Form > User", "Form > Password", "Form > Submit", "Links", "//h1",
	}, paths)
}

func TestValidatePage(t *testing.T) {
	content := `
page: Broken
elements:
  - name: Form
    css: form
    children:
      - name: Field
        css: input
      - name: Field
        css: textarea
  - name: ""
    css: div
  - name: Nothing
  - name: Both
    css: a
    xpath: //a
  - name: Empty
    css: ""
  - name: Rows
    css: tr
    multiple: true
    children:
      - name: Cell
        css: td
`
	page, err := Parse([]byte(content), "broken.yaml")
	require.NoError(t, err)

	errs := NewValidator(nil).ValidatePage(page)
	var messages []string
	for _, e := range errs {
		messages = append(messages, e.Error())
	}
	joined := strings.Join(messages, "\n")

	assert.Len(t, errs, 6, joined)
	assert.Contains(t, joined, "Form > Field: duplicate name (first defined on line 7)")
	assert.Contains(t, joined, "element has no name")
	assert.Contains(t, joined, "Nothing: no locator")
	assert.Contains(t, joined, "Both: multiple locators (xpath, css)")
	assert.Contains(t, joined, "Empty: empty css locator")
	assert.Contains(t, joined, "Rows: multiple elements cannot have children")
}

func TestValidatePage_Expressions(t *testing.T) {
	js := jsengine.New()
	js.SetEnv(map[string]string{"LABEL": "Save"})

	content := `
elements:
  - name: Save
    xpath: //button[text()=${xpathLiteral(env.LABEL)}]
  - name: Broken
    xpath: //button[text()=${missing}]
`
	page, err := Parse([]byte(content), "expr.yaml")
	require.NoError(t, err)

	errs := NewValidator(js).ValidatePage(page)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "Broken")

	// Without an engine expressions are not checked
	assert.Empty(t, NewValidator(nil).ValidatePage(page))
}

func TestValidator_Directory(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	write("a.yaml", "page: A\nelements:\n  - //a\n")
	write("b.yml", "page: B\nelements:\n  - name: X\n")
	write("c.yaml", "elements: [")
	write("notes.txt", "ignored")

	result := NewValidator(nil).Validate(dir, filepath.Join(dir, "missing.yaml"))
	assert.False(t, result.IsValid())
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml")}, result.Files)
	require.Len(t, result.Pages, 1)
	assert.Equal(t, "A", result.Pages[0].Name)
	assert.Len(t, result.Errors, 3)
}

func newSession(src *fake.Source) *element.Session {
	settings := element.DefaultSettings()
	settings.FindTimeout = 500 * time.Millisecond
	settings.PollInterval = 50 * time.Millisecond
	return element.NewSession(src,
		element.WithClock(waittest.NewStepClock()),
		element.WithSettings(settings),
	)
}

func TestBuild_ResolvesTree(t *testing.T) {
	src := fake.New()
	form := fake.NewElement("form", "")
	src.On(nil, locator.StrategyCSS, "form#login", form)
	src.On(form, locator.StrategyCSS, `[id="username"]`, fake.NewElement("input", ""))
	src.On(form, locator.StrategyCSS, `[name="password"]`, fake.NewElement("input", ""))
	src.On(form, locator.StrategyXPath, ".//button[@type='submit']", fake.NewElement("button", "Sign in"))
	src.On(nil, locator.StrategyTagName, "a", fake.NewElement("a", "Help"), fake.NewElement("a", "Terms"))
	src.On(nil, locator.StrategyXPath, "//h1", fake.NewElement("h1", "Welcome"))

	page, err := Parse([]byte(loginPage), "login.yaml")
	require.NoError(t, err)

	s := newSession(src)
	tree, err := Build(s, page, nil)
	require.NoError(t, err)
	require.Len(t, tree.Roots, 3)
	require.Len(t, tree.All(), 6)

	ctx := context.Background()
	for _, b := range tree.All() {
		res, err := b.Resolve(ctx)
		require.NoError(t, err, b.Path)
		if b.Element.Multiple {
			assert.Len(t, res.Matches, 2)
		} else {
			assert.Equal(t, cache.Miss, res.Outcome, b.Path)
		}
	}

	submit, ok := tree.Lookup("Form > Submit")
	require.True(t, ok)
	assert.Equal(t, "Form > Submit", submit.Control.Path())
	text, err := submit.Control.GetText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Sign in", text)

	// Second pass is served from the cache
	res, err := submit.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, cache.Hit, res.Outcome)
}

func TestBuild_ExpandsTemplates(t *testing.T) {
	js := jsengine.New()
	js.SetEnv(map[string]string{"ROW": "3"})

	page, err := Parse([]byte("elements:\n  - name: Row\n    xpath: //tr[${ROW}]\n"), "rows.yaml")
	require.NoError(t, err)

	tree, err := Build(newSession(fake.New()), page, js)
	require.NoError(t, err)
	assert.Equal(t, "//tr[3]", tree.Roots[0].Control.Spec().Raw())
}

func TestBuild_TemplateError(t *testing.T) {
	page, err := Parse([]byte("elements:\n  - name: Row\n    xpath: //tr[${nope}]\n"), "rows.yaml")
	require.NoError(t, err)

	_, err = Build(newSession(fake.New()), page, jsengine.New())
	assert.Error(t, err)
}

func TestResolve_MultipleWithNoMatches(t *testing.T) {
	page, err := Parse([]byte("elements:\n  - name: Rows\n    css: tr\n    multiple: true\n"), "rows.yaml")
	require.NoError(t, err)

	tree, err := Build(newSession(fake.New()), page, nil)
	require.NoError(t, err)

	res, err := tree.Roots[0].Resolve(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	assert.Nil(t, res.Control)
}

func TestResolve_MissingElement(t *testing.T) {
	page, err := Parse([]byte("elements:\n  - name: Gone\n    css: .gone\n"), "gone.yaml")
	require.NoError(t, err)

	tree, err := Build(newSession(fake.New()), page, nil)
	require.NoError(t, err)

	_, err = tree.Roots[0].Resolve(context.Background())
	assert.True(t, errors.Is(err, core.ErrNoElementsFound))
}

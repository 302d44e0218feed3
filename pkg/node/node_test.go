package node

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/webfind/pkg/core"
	"github.com/devicelab-dev/webfind/pkg/locator"
	"github.com/devicelab-dev/webfind/pkg/remote"
	"github.com/devicelab-dev/webfind/pkg/remote/fake"
)

func TestFindAll_IndexesMatchesInRemoteOrder(t *testing.T) {
	src := fake.New()
	items := []*fake.Element{
		fake.NewElement("li", "one"),
		fake.NewElement("li", "two"),
		fake.NewElement("li", "three"),
	}
	src.On(nil, locator.StrategyXPath, "//li", items...)

	r := NewResolver(src)
	nodes, err := r.FindAll(context.Background(), nil, locator.XPath("//li", "Item"))
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, 1, src.Calls("FindAll"))

	for i, n := range nodes {
		want, ok := src.HandleOf(items[i])
		require.True(t, ok)
		assert.Equal(t, want, n.Handle())
		assert.Equal(t, "Item["+string(rune('0'+i))+"]", n.Spec().Name())
		assert.Equal(t, "(//li)["+string(rune('0'+i))+"]", n.Spec().Resolved())
		assert.True(t, n.Spec().Bound())
		assert.Nil(t, n.Parent())
	}
}

func TestFindAll_ZeroMatchesIsEmpty(t *testing.T) {
	src := fake.New()
	nodes, err := NewResolver(src).FindAll(context.Background(), nil, locator.CSS(".missing", ""))
	require.NoError(t, err)
	assert.Empty(t, nodes)
	assert.NotNil(t, nodes)
}

func TestFindAll_ScopedToParent(t *testing.T) {
	src := fake.New()
	form := fake.NewElement("form", "")
	input := fake.NewElement("input", "")
	src.On(nil, locator.StrategyCSS, "form", form)
	src.On(form, locator.StrategyCSS, `[name="user"]`, input)

	r := NewResolver(src)
	ctx := context.Background()
	forms, err := r.FindAll(ctx, nil, locator.CSS("form", "Login"))
	require.NoError(t, err)
	require.Len(t, forms, 1)

	inputs, err := r.FindAll(ctx, forms[0], locator.New(locator.KindName, "user", "User"))
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Same(t, forms[0], inputs[0].Parent())
	assert.Equal(t, "Login[0] > User[0]", inputs[0].Path())

	finds := src.Finds()
	require.Len(t, finds, 2)
	assert.Equal(t, forms[0].Handle(), finds[1].Scope)
}

func TestFindAll_RemoteErrorIsWrapped(t *testing.T) {
	src := fake.New()
	cause := remote.TransportError(errors.New("connection reset"))
	src.FailNext("FindAll", cause)

	_, err := NewResolver(src).FindAll(context.Background(), NewRoot("main"), locator.XPath("//a", "Link"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrRemoteFind))
	assert.True(t, errors.Is(err, cause))

	var execErr *core.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "Link", execErr.Detail(core.DetailLocator))
	assert.Equal(t, "//a", execErr.Detail(core.DetailResolved))
}

func TestFindAll_UnboundScope(t *testing.T) {
	src := fake.New()
	parent := New(src, locator.CSS("form", "Form"), nil)

	_, err := NewResolver(src).FindAll(context.Background(), parent, locator.CSS("input", ""))
	assert.True(t, errors.Is(err, core.ErrNotBound))
	assert.Equal(t, 0, src.Calls("FindAll"))
}

type emptyHandleSource struct {
	remote.Source
}

func (emptyHandleSource) FindAll(context.Context, remote.Handle, string, string) ([]remote.Handle, error) {
	return []remote.Handle{"h1", ""}, nil
}

func TestFindAll_EmptyHandleIsInvariantViolation(t *testing.T) {
	_, err := NewResolver(emptyHandleSource{}).FindAll(context.Background(), nil, locator.XPath("//a", ""))
	assert.True(t, errors.Is(err, core.ErrInvariantViolation))
}

func TestNode_IsStale(t *testing.T) {
	src := fake.New()
	el := fake.NewElement("button", "Go")
	src.On(nil, locator.StrategyCSS, "button", el)

	ctx := context.Background()
	nodes, err := NewResolver(src).FindAll(ctx, nil, locator.CSS("button", ""))
	require.NoError(t, err)
	n := nodes[0]

	assert.False(t, n.IsStale(ctx))
	src.Rerender(el)
	assert.True(t, n.IsStale(ctx))

	unbound := New(src, locator.CSS("button", ""), nil)
	assert.True(t, unbound.IsStale(ctx))
}

func TestNode_IsStale_TransportErrorIsNotStale(t *testing.T) {
	src := fake.New()
	el := fake.NewElement("button", "Go")
	src.On(nil, locator.StrategyCSS, "button", el)

	ctx := context.Background()
	nodes, err := NewResolver(src).FindAll(ctx, nil, locator.CSS("button", ""))
	require.NoError(t, err)

	src.FailNext("TagName", remote.TransportError(errors.New("timeout")))
	assert.False(t, nodes[0].IsStale(ctx))
}

func TestNode_BindFreezesLocator(t *testing.T) {
	spec := locator.XPath("//a", "")
	n := New(fake.New(), spec, nil)
	require.NoError(t, n.Bind("h1"))
	assert.True(t, n.Bound())
	assert.True(t, errors.Is(spec.SetRaw("//b"), core.ErrLocatorAlreadyBound))

	n.Unbind()
	assert.False(t, n.Bound())
	assert.True(t, spec.Bound())
}

func TestNode_UnboundAccessors(t *testing.T) {
	n := New(fake.New(), locator.XPath("//a", "Link"), nil)
	ctx := context.Background()

	_, err := n.Rect(ctx)
	assert.True(t, errors.Is(err, core.ErrNotBound))
	_, err = n.Displayed(ctx)
	assert.True(t, errors.Is(err, core.ErrNotBound))
	assert.True(t, errors.Is(n.Probe(ctx), core.ErrNotBound))
}

func TestDetails_IncludesParentPath(t *testing.T) {
	parent := New(fake.New(), locator.CSS("nav", "Menu"), NewRoot(""))
	d := Details(locator.XPath("//a", "Home"), parent)

	assert.Equal(t, "Home", d[core.DetailLocator])
	assert.Equal(t, "//a", d[core.DetailResolved])
	assert.Equal(t, "Menu", d[core.DetailParent])

	top := Details(locator.XPath("//a", "Home"), nil)
	_, hasParent := top[core.DetailParent]
	assert.False(t, hasParent)
}

func TestScopeHelpers(t *testing.T) {
	assert.Equal(t, remote.Root, HandleOf(nil))
	assert.Equal(t, remote.Root, HandleOf(NewRoot("x")))
	assert.Equal(t, "", PathOf(nil))
	assert.Equal(t, "document", NewRoot("").String())
	assert.Equal(t, "checkout", NewRoot("checkout").String())

	n := New(fake.New(), locator.CSS("a", "Link"), nil)
	require.NoError(t, n.Bind("abc"))
	assert.Equal(t, "Link #abc", n.String())
}

package htmltree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStartAndEndTagRanges(t *testing.T) {
	src := []byte(`<div id="a">hi</div>`)
	root, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, root.Children, 1)

	div := root.Children[0]
	assert.Equal(t, "div", div.TagName)

	start, end := div.StartTagRange()
	assert.Equal(t, `<div id="a">`, string(src[start:end]))

	cstart, cend := div.ContentRange()
	assert.Equal(t, "hi", string(src[cstart:cend]))

	assert.Equal(t, len(src), div.EndTagEnd)
	assert.Equal(t, `</div>`, string(src[div.EndTagStart:div.EndTagEnd]))
}

func TestAttrRange(t *testing.T) {
	src := []byte(`<img src="x.png" alt="desc">`)
	root, err := Parse(src)
	require.NoError(t, err)
	img := root.Children[0]

	start, end, ok := img.AttrRange("alt")
	require.True(t, ok)
	assert.Equal(t, `alt="desc"`, string(src[start:end]))

	v, ok := img.Attr("SRC")
	require.True(t, ok)
	assert.Equal(t, "x.png", v)
}

func TestVoidElementHasEmptyContentRange(t *testing.T) {
	src := []byte(`<br>`)
	root, err := Parse(src)
	require.NoError(t, err)
	br := root.Children[0]

	assert.Equal(t, br.StartTagEnd, br.EndTagStart)
	assert.Equal(t, br.EndTagStart, br.EndTagEnd)

	cstart, cend := br.ContentRange()
	assert.Equal(t, cstart, cend)
}

func TestSelfClosingElementTreatedAsVoid(t *testing.T) {
	src := []byte(`<svg><path d="M0 0"/></svg>`)
	root, err := Parse(src)
	require.NoError(t, err)
	svg := root.Children[0]
	require.Len(t, svg.Children, 1)
	path := svg.Children[0]
	assert.Equal(t, path.StartTagEnd, path.EndTagEnd)
}

func TestWalkSkipsIgnoredSubtree(t *testing.T) {
	src := []byte(`<div><script>x</script><p>keep</p></div>`)
	root, err := Parse(src)
	require.NoError(t, err)

	var visited []string
	ignoreTag := func(tag string) bool { return tag == "script" }
	Walk(root, ignoreTag, func(n *Node) bool {
		visited = append(visited, n.TagName)
		return true
	})

	assert.Equal(t, []string{"div", "p"}, visited)
}

func TestWalkDescendsIntoTemplateWithoutSpecialCasing(t *testing.T) {
	src := []byte(`<template><span>inner</span></template>`)
	root, err := Parse(src)
	require.NoError(t, err)

	var visited []string
	Walk(root, nil, func(n *Node) bool {
		visited = append(visited, n.TagName)
		return true
	})

	assert.Equal(t, []string{"template", "span"}, visited)
}

func TestWalkStopsEarlyWhenVisitReturnsFalse(t *testing.T) {
	src := []byte(`<div><p>a</p><p>b</p></div>`)
	root, err := Parse(src)
	require.NoError(t, err)

	var visited []string
	Walk(root, nil, func(n *Node) bool {
		visited = append(visited, n.TagName)
		return n.TagName != "p"
	})

	assert.Equal(t, []string{"div", "p"}, visited)
}

func TestAnalyzeContentDetectsTextAndElements(t *testing.T) {
	src := []byte(`<div>  <span>x</span>hello </div>`)
	root, err := Parse(src)
	require.NoError(t, err)
	div := root.Children[0]

	ca := div.AnalyzeContent(nil)
	assert.True(t, ca.HasElements)
	assert.True(t, ca.HasText)
}

func TestAnalyzeContentWhitespaceOnlyIsNotText(t *testing.T) {
	src := []byte(`<div>  <span>x</span>   </div>`)
	root, err := Parse(src)
	require.NoError(t, err)
	div := root.Children[0]

	ca := div.AnalyzeContent(nil)
	assert.True(t, ca.HasElements)
	assert.False(t, ca.HasText)
}

func TestAnalyzeContentAppliesTextIgnore(t *testing.T) {
	src := []byte(`<div>${count} items</div>`)
	root, err := Parse(src)
	require.NoError(t, err)
	div := root.Children[0]

	ignoreInterpolations := func(s string) bool {
		return s == "${count} items"
	}

	ca := div.AnalyzeContent(ignoreInterpolations)
	assert.False(t, ca.HasText)
	assert.Equal(t, "${count} items", ca.Text)
}

func TestParseHandlesComments(t *testing.T) {
	src := []byte(`<div><!-- note --><p>x</p></div>`)
	root, err := Parse(src)
	require.NoError(t, err)
	div := root.Children[0]
	require.Len(t, div.Children, 2)
	assert.Equal(t, KindComment, div.Children[0].Kind)
	assert.Equal(t, KindElement, div.Children[1].Kind)
}

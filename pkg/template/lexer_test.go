package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexSplitsTextOutputStatementComment(t *testing.T) {
	tags := lex("a{{ b }}c{% if d %}e{# f #}g")
	require.Len(t, tags, 7)
	assert.Equal(t, tagText, tags[0].kind)
	assert.Equal(t, "a", tags[0].raw)
	assert.Equal(t, tagOutput, tags[1].kind)
	assert.Equal(t, "b", tags[1].raw)
	assert.Equal(t, tagText, tags[2].kind)
	assert.Equal(t, "c", tags[2].raw)
	assert.Equal(t, tagStatement, tags[3].kind)
	assert.Equal(t, "if d", tags[3].raw)
	assert.Equal(t, tagText, tags[4].kind)
	assert.Equal(t, "e", tags[4].raw)
	assert.Equal(t, tagComment, tags[5].kind)
	assert.Equal(t, "f", tags[5].raw)
}

func TestLexPlainTextHasNoTags(t *testing.T) {
	tags := lex("just plain text")
	require.Len(t, tags, 1)
	assert.Equal(t, tagText, tags[0].kind)
}

func TestLexUnterminatedTagFallsBackToText(t *testing.T) {
	tags := lex("start {{ incomplete")
	require.Len(t, tags, 2)
	assert.Equal(t, tagText, tags[0].kind)
	assert.Equal(t, tagText, tags[1].kind)
}

func TestParseNestedIfInsideFor(t *testing.T) {
	src := "{% for x in xs %}{% if x %}Y{% else %}N{% endif %}{% endfor %}"
	tags := lex(src)
	nodes, err := parse(tags)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	fn, ok := nodes[0].(forNode)
	require.True(t, ok)
	require.Len(t, fn.body, 1)
	_, ok = fn.body[0].(ifNode)
	assert.True(t, ok)
}

func TestParseMissingEndifErrors(t *testing.T) {
	tags := lex("{% if x %}body")
	_, err := parse(tags)
	require.Error(t, err)
}

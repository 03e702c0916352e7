package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndEvalDottedPath(t *testing.T) {
	e, err := parseExpr("agpm.resource.name")
	require.NoError(t, err)
	v, err := e.eval(map[string]any{"agpm": map[string]any{"resource": map[string]any{"name": "x"}}}, "")
	require.NoError(t, err)
	assert.Equal(t, "x", v)
}

func TestParseAndEvalMissingPathIsNil(t *testing.T) {
	e, err := parseExpr("agpm.project.missing")
	require.NoError(t, err)
	v, err := e.eval(map[string]any{"agpm": map[string]any{"project": map[string]any{}}}, "")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestParseAndEvalComparison(t *testing.T) {
	e, err := parseExpr("1 < 2")
	require.NoError(t, err)
	v, err := e.eval(nil, "")
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestParseAndEvalAndOr(t *testing.T) {
	e, err := parseExpr("true and false or true")
	require.NoError(t, err)
	v, err := e.eval(nil, "")
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestParseAndEvalStringEquality(t *testing.T) {
	e, err := parseExpr(`"a" == "a"`)
	require.NoError(t, err)
	v, err := e.eval(nil, "")
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestParseAndEvalLengthFilter(t *testing.T) {
	e, err := parseExpr(`"hello" | length`)
	require.NoError(t, err)
	v, err := e.eval(nil, "")
	require.NoError(t, err)
	assert.Equal(t, float64(5), v)
}

func TestParseAndEvalJoinFilterWithArg(t *testing.T) {
	e, err := parseExpr(`items | join("-")`)
	require.NoError(t, err)
	env := map[string]any{"items": []any{"a", "b", "c"}}
	v, err := e.eval(env, "")
	require.NoError(t, err)
	assert.Equal(t, "a-b-c", v)
}

func TestParseAndEvalNot(t *testing.T) {
	e, err := parseExpr("not false")
	require.NoError(t, err)
	v, err := e.eval(nil, "")
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestParseRejectsEmptyExpression(t *testing.T) {
	_, err := parseExpr("   ")
	require.Error(t, err)
}

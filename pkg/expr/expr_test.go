// pkg/expr/expr_test.go
package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-language/mopack/pkg/path"
	"github.com/arc-language/mopack/pkg/placeholder"
)

func testSymbols(t *testing.T) *Symbols {
	t.Helper()
	s := NewSymbols(map[string]any{
		"target_platform": "linux",
		"flag":            true,
		"list":            []any{"a", "b"},
		"dict":            map[string]any{"k": "v"},
		"env":             NewEnv(map[string]string{"MOPACK_EXPR_TEST": "yes"}),
	})
	s, err := s.AugmentPathBases(path.SrcDir)
	require.NoError(t, err)
	return s
}

func TestEvaluateIf(t *testing.T) {
	symbols := testSymbols(t)
	tests := []struct {
		expr string
		want any
	}{
		{`target_platform == "linux"`, true},
		{`target_platform != 'linux'`, false},
		{`!flag`, false},
		{`flag && "x"`, "x"},
		{`false || null`, nil},
		{`flag ? "yes" : "no"`, "yes"},
		{`(false || flag) && !false`, true},
		{`dict["k"]`, "v"},
		{`env["MOPACK_EXPR_TEST"]`, "yes"},
		{`env["MOPACK_EXPR_TEST_UNSET"]`, nil},
		{`list + ["c"]`, []any{"a", "b", "c"}},
		{`"a" + "b"`, "ab"},
		{`$target_platform`, "linux"},
		{` ${{ target_platform == "linux" }} `, true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Evaluate(symbols, tt.expr, true)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateTemplate(t *testing.T) {
	symbols := testSymbols(t)

	got, err := Evaluate(symbols, "plain text", false)
	require.NoError(t, err)
	assert.Equal(t, "plain text", got)

	got, err = Evaluate(symbols, "cost: $$5", false)
	require.NoError(t, err)
	assert.Equal(t, "cost: $5", got)

	got, err = Evaluate(symbols, "os-$target_platform", false)
	require.NoError(t, err)
	assert.Equal(t, "os-linux", got)

	got, err = Evaluate(symbols, "${{ flag }}", false)
	require.NoError(t, err)
	assert.Equal(t, true, got)

	got, err = Evaluate(symbols, "${{ list }}", false)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, got)

	got, err = Evaluate(symbols, "$srcdir/include", false)
	require.NoError(t, err)
	ps, ok := got.(placeholder.String)
	require.True(t, ok, "expected a placeholder string, got %T", got)
	assert.True(t, ps.Equal(placeholder.New(placeholder.Value{V: path.Root(path.SrcDir)}, "/include")))
}

func TestEvaluateErrors(t *testing.T) {
	symbols := testSymbols(t)

	_, err := Evaluate(symbols, "foo == 1", true)
	require.Error(t, err)

	_, err = Evaluate(symbols, "x-$undefined", false)
	var exprErr *Error
	require.ErrorAs(t, err, &exprErr)
	assert.Equal(t, 3, exprErr.Offset)
	assert.Contains(t, exprErr.Msg, `undefined symbol "undefined"`)

	_, err = Evaluate(symbols, "a-${{ list }}", false)
	assert.ErrorContains(t, err, "unable to embed array")

	_, err = Evaluate(symbols, `"unterminated`, true)
	assert.ErrorContains(t, err, "unterminated string")

	_, err = Evaluate(symbols, "$", false)
	assert.ErrorContains(t, err, "expected identifier")

	// Conditions hold exactly one substitution.
	for _, cond := range []string{"${{ flag }} x", "$flag-extra", "$$flag"} {
		_, err = Evaluate(symbols, cond, true)
		require.ErrorAs(t, err, &exprErr, cond)
	}
	_, err = Evaluate(symbols, "${{ flag }} x", true)
	require.ErrorAs(t, err, &exprErr)
	assert.Equal(t, 11, exprErr.Offset)
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy([]any{}))
	assert.True(t, Truthy("x"))
	assert.True(t, Truthy(map[string]any{"a": 1}))
	assert.False(t, Truthy(placeholder.New()))
}

func TestAugmentPathBases(t *testing.T) {
	s, err := NewSymbols(nil).AugmentPathBases(path.SrcDir, path.BuildDir)
	require.NoError(t, err)
	assert.Equal(t, []string{path.SrcDir, path.BuildDir}, s.PathBases())
	assert.True(t, s.HasPathBase(path.BuildDir))

	_, err = s.AugmentPathBases(path.BuildDir)
	var dup *DuplicateSymbolError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, path.BuildDir, dup.Name)

	other := s.Augment(map[string]any{"x": 1})
	_, ok := s.Lookup("x")
	assert.False(t, ok, "Augment must not modify the original table")
	v, ok := other.Lookup("x")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

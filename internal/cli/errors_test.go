// internal/cli/errors_test.go
package cli

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-language/mopack"
	"github.com/arc-language/mopack/pkg/core"
	"github.com/arc-language/mopack/pkg/types"
	"github.com/arc-language/mopack/pkg/yamltools"
)

func TestExitCode(t *testing.T) {
	parseErr := &yamltools.ParseError{File: "mopack.yml", Line: 1, Column: 1, Msg: "bad", Err: types.ErrConfiguration}
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"failure", errors.New("boom"), 1},
		{"not resolved", &mopack.Error{Op: "deploy", Err: mopack.ErrNotResolved}, 1},
		{"configuration", parseErr, 2},
		{"wrapped configuration", &mopack.Error{Op: "fetch", Package: "foo", Err: parseErr}, 2},
		{"bad flag", fmt.Errorf("%w: invalid --env", mopack.ErrConfiguration), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestRender(t *testing.T) {
	out := Render(errors.New("boom"))
	assert.Contains(t, out, "error:")
	assert.Contains(t, out, "boom")

	out = Render(&mopack.Error{Op: "fetch", Package: "foo", Err: &yamltools.ParseError{
		File: "mopack.yml", Line: 4, Column: 11, Msg: "expected a string",
		Snippet: "    path: 42", Err: types.ErrConfiguration,
	}})
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "mopack.yml:4:11:")
	assert.Contains(t, lines[0], "expected a string")
	assert.Equal(t, "      path: 42", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "  "+strings.Repeat(" ", 10)))
	assert.Contains(t, lines[2], "^")

	out = Render(&yamltools.ParseError{File: "mopack.yml", Msg: "duplicate key", Err: types.ErrConfiguration})
	assert.Contains(t, out, "mopack.yml: duplicate key")
}

func TestParsePairs(t *testing.T) {
	dst := map[string]any{"CC": "gcc"}
	require.NoError(t, parsePairs([]string{"CC=clang", "CFLAGS=-O2 -g", "EMPTY="}, "env", dst))
	assert.Equal(t, map[string]any{"CC": "clang", "CFLAGS": "-O2 -g", "EMPTY": ""}, dst)

	for _, bad := range []string{"CC", "=clang"} {
		err := parsePairs([]string{bad}, "env", map[string]any{})
		require.Error(t, err, bad)
		assert.True(t, mopack.IsConfigurationError(err))
		assert.Equal(t, 2, ExitCode(err))
	}
}

func TestCommandLineOptions(t *testing.T) {
	settings = core.DefaultSettings()
	settings.Env = map[string]string{"CC": "gcc"}
	t.Cleanup(func() { settings = nil })

	require.NoError(t, resolveCmd.Flags().Set("env", "CXX=clang++"))
	require.NoError(t, resolveCmd.Flags().Set("deploy-dir", "prefix=/opt/foo"))

	frag, err := commandLineOptions(resolveCmd)
	require.NoError(t, err)
	assert.Equal(t, true, frag.Data["final"])
	assert.Equal(t, map[string]any{"CC": "gcc", "CXX": "clang++"}, frag.Data["env"])
	assert.Equal(t, map[string]any{"prefix": "/opt/foo"}, frag.Data["deploy_dirs"])
	assert.NotContains(t, frag.Data, "strict")
}

// pkg/logging/logging_test.go
package logging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackageMessages(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, false))

	Fetch(ctx, "foo", "from /src/foo")
	Resolve(ctx, "bar", "")
	FromContext(ctx).Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "fetching foo from /src/foo")
	assert.Contains(t, out, "resolving bar")
	assert.NotContains(t, out, "hidden")

	buf.Reset()
	ctx = WithLogger(context.Background(), New(&buf, true))
	FromContext(ctx).Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestCheckCall(t *testing.T) {
	fs := afero.NewMemMapFs()
	ctx := WithLogger(context.Background(), Discard())
	ctx = WithRunner(ctx, func(_ context.Context, c Call) error {
		fmt.Fprintln(c.Stdout, "building")
		if c.Args[0] == "false" {
			return errors.New("exit status 1")
		}
		return nil
	})

	lf, err := OpenLogFile(fs, "/pkg", "foo", true)
	require.NoError(t, err)
	assert.Equal(t, "/pkg/logs/foo.log", lf.Path())

	require.NoError(t, lf.CheckCall(ctx, Call{Args: []string{"make", "all files"}}))
	err = lf.CheckCall(ctx, Call{Args: []string{"false"}})
	var cerr *CommandError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "/pkg/logs/foo.log", cerr.LogPath)
	assert.Contains(t, err.Error(), "(see /pkg/logs/foo.log)")
	require.NoError(t, lf.Close())

	data, err := afero.ReadFile(fs, "/pkg/logs/foo.log")
	require.NoError(t, err)
	assert.Equal(t, "$ make 'all files'\nbuilding\n$ false\nbuilding\n", string(data))

	// Reopening without truncating appends.
	lf, err = OpenLogFile(fs, "/pkg", "foo", false)
	require.NoError(t, err)
	out, err := lf.CheckOutput(ctx, Call{Args: []string{"echo"}})
	require.NoError(t, err)
	assert.Equal(t, "building", out)
	require.NoError(t, lf.Close())

	data, err = afero.ReadFile(fs, "/pkg/logs/foo.log")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "$ echo\n"))
	assert.Equal(t, 3, strings.Count(string(data), "$ "))
}

func TestOutput(t *testing.T) {
	ctx := WithRunner(context.Background(), func(_ context.Context, c Call) error {
		_, err := io.WriteString(c.Stdout, "  1.2.3\n")
		return err
	})
	out, err := Output(ctx, Call{Args: []string{"pkg-config", "--modversion", "foo"}})
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", out)

	ctx = WithRunner(context.Background(), func(context.Context, Call) error {
		return errors.New("exit status 1")
	})
	_, err = Output(ctx, Call{Args: []string{"pkg-config"}})
	var cerr *CommandError
	require.ErrorAs(t, err, &cerr)
	assert.Empty(t, cerr.LogPath)
	assert.NotContains(t, err.Error(), "see")
}

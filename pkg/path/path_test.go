// pkg/path/path_test.go
package path

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	p, err := New(SrcDir, "include/../lib/")
	require.NoError(t, err)
	assert.Equal(t, SrcDir, p.Base())
	assert.Equal(t, "lib", p.Path())
	assert.True(t, p.IsInner())
	assert.False(t, p.IsAbs())

	_, err = New(Absolute, "relative")
	assert.ErrorContains(t, err, "expected an absolute path")

	_, err = New(SrcDir, "/abs")
	assert.ErrorContains(t, err, "expected a relative path")

	_, err = New(SrcDir, "C:foo")
	assert.ErrorContains(t, err, "drive-relative")
}

func TestParse(t *testing.T) {
	p, err := Parse(CfgDir, "/usr/include")
	require.NoError(t, err)
	assert.True(t, p.IsAbs())

	p, err = Parse(CfgDir, "../sibling")
	require.NoError(t, err)
	assert.Equal(t, CfgDir, p.Base())
	assert.False(t, p.IsInner())
}

func TestString(t *testing.T) {
	bases := map[string]string{SrcDir: "/src/foo"}

	s, err := Root(SrcDir).String(bases)
	require.NoError(t, err)
	assert.Equal(t, "/src/foo", s)

	s, err = Root(SrcDir).Join("include", "foo.h").String(bases)
	require.NoError(t, err)
	assert.Equal(t, "/src/foo/include/foo.h", s)

	_, err = Root(BuildDir).String(bases)
	assert.ErrorIs(t, err, ErrUnknownBase)
}

func TestRoundTrip(t *testing.T) {
	p, err := New(BuildDir, "out/lib")
	require.NoError(t, err)

	data, err := json.Marshal(p.Dehydrate())
	require.NoError(t, err)
	var raw any
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.True(t, IsPath(raw))
	got, err := Rehydrate(raw)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

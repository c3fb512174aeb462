// pkg/core/core_test.go
package core

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-language/mopack/pkg/types"
)

func TestParseDependency(t *testing.T) {
	tests := []struct {
		in   string
		name string
		subs []string
		bad  bool
	}{
		{in: "zlib", name: "zlib"},
		{in: "boost[regex,thread]", name: "boost", subs: []string{"regex", "thread"}},
		{in: "", bad: true},
		{in: "[x]", bad: true},
		{in: "boost[]", bad: true},
		{in: "boost[regex", bad: true},
		{in: "boost[a,,b]", bad: true},
		{in: "a,b", bad: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, subs, err := ParseDependency(tt.in)
			if tt.bad {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.subs, subs)
			assert.Equal(t, tt.in, DependencyString(name, subs))
		})
	}
}

func TestCheckSubmodules(t *testing.T) {
	_, err := Check("zlib", nil, []string{"x"})
	assert.EqualError(t, err, `package "zlib" has no submodules`)

	subs, err := Check("zlib", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, subs)

	required := &Submodules{Names: []string{"regex", "thread"}, Required: true}
	_, err = Check("boost", required, nil)
	assert.EqualError(t, err, `package "boost" requires submodules`)

	_, err = Check("boost", required, []string{"python"})
	assert.EqualError(t, err, `unrecognized submodule "python" for package "boost"`)

	subs, err = Check("boost", required, []string{"regex"})
	require.NoError(t, err)
	assert.Equal(t, []string{"regex"}, subs)

	anything := &Submodules{Any: true}
	subs, err = Check("qt", anything, []string{"Core", "Widgets"})
	require.NoError(t, err)
	assert.Len(t, subs, 2)
}

func TestSubmodulesChecker(t *testing.T) {
	s, err := SubmodulesChecker(nil, types.Unset)
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = SubmodulesChecker(types.Field{"submodules"}, map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = SubmodulesChecker(nil, []any{"regex", "thread"})
	require.NoError(t, err)
	assert.Equal(t, &Submodules{Names: []string{"regex", "thread"}, Required: true}, s)

	s, err = SubmodulesChecker(nil, "*")
	require.NoError(t, err)
	assert.True(t, s.Any)
	assert.True(t, s.Required)

	s, err = SubmodulesChecker(nil, map[string]any{"names": "*", "required": false})
	require.NoError(t, err)
	assert.True(t, s.Any)
	assert.False(t, s.Required)

	back, err := RehydrateSubmodules(s.Dehydrate())
	require.NoError(t, err)
	assert.Equal(t, s, back)

	_, err = SubmodulesChecker(types.Field{"submodules"}, map[string]any{"names": 1, "required": true})
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestLoadSettings(t *testing.T) {
	fs := afero.NewMemMapFs()

	s, err := LoadSettings(fs, "/home/user/.config/mopack/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)

	s.TargetPlatform = "linux"
	s.Strict = true
	s.Env["CC"] = "clang"
	require.NoError(t, SaveSettings(fs, s, "/home/user/.config/mopack/config.yaml"))

	back, err := LoadSettings(fs, "/home/user/.config/mopack/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, s, back)

	require.NoError(t, afero.WriteFile(fs, "/bad.yaml", []byte("strict: [\n"), 0o644))
	_, err = LoadSettings(fs, "/bad.yaml")
	assert.Error(t, err)
}

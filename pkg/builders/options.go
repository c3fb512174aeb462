// pkg/builders/options.go
package builders

import (
	"github.com/arc-language/mopack/pkg/freezedry"
	"github.com/arc-language/mopack/pkg/options"
	"github.com/arc-language/mopack/pkg/path"
	"github.com/arc-language/mopack/pkg/types"
)

// ToolchainOptions are the options shared by builders that accept a
// toolchain file. The first toolchain given wins.
type ToolchainOptions struct {
	Toolchain string
}

var toolchainChecker = types.Maybe(types.AnyPath(path.CfgDir), path.Path{})

func (o *ToolchainOptions) Accumulate(tc *types.TypeCheck, cfgdir string) error {
	var p path.Path
	if !types.Check(tc, "toolchain", toolchainChecker, &p) {
		return tc.Err()
	}
	if o.Toolchain != "" || p == (path.Path{}) {
		return nil
	}

	s, err := p.String(map[string]string{path.CfgDir: cfgdir})
	if err != nil {
		return types.WrapField(err, tc.Field("toolchain")...)
	}
	o.Toolchain = s
	return nil
}

func (o *ToolchainOptions) Dehydrate() (map[string]any, error) {
	var toolchain any
	if o.Toolchain != "" {
		toolchain = o.Toolchain
	}
	return map[string]any{"toolchain": toolchain}, nil
}

func registerToolchainOptions(kind string) {
	options.Register(options.GenusBuilders, kind, freezedry.Versioned{Version: 1},
		func() options.KindOptions { return &ToolchainOptions{} },
		func(data map[string]any, _ struct{}) (options.KindOptions, error) {
			r := freezedry.NewReader(data)
			o := &ToolchainOptions{Toolchain: r.OptString("toolchain")}
			return o, r.Err()
		},
	)
}

func toolchainFor(md interface{ Options() *options.Options }, kind string) string {
	if md.Options() == nil {
		return ""
	}
	if o, ok := md.Options().Builder(kind).(*ToolchainOptions); ok {
		return o.Toolchain
	}
	return ""
}

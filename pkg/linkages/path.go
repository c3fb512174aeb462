// pkg/linkages/path.go
package linkages

import (
	"context"
	"fmt"
	"slices"

	"github.com/arc-language/mopack/pkg/core"
	"github.com/arc-language/mopack/pkg/defaults"
	"github.com/arc-language/mopack/pkg/freezedry"
	"github.com/arc-language/mopack/pkg/path"
	"github.com/arc-language/mopack/pkg/platform"
	"github.com/arc-language/mopack/pkg/shell"
	"github.com/arc-language/mopack/pkg/types"
)

// Library is one library to link against
type Library struct {
	Type string // library, framework or guess
	Name string
}

var libraryShape = types.DictShape("a library", map[string]types.Checker[any]{
	"type": types.Erase(types.Constant("library", "framework", "guess")),
	"name": types.Erase(types.String),
})

func libraryChecker(field types.Field, value any) (Library, error) {
	if s, ok := value.(string); ok {
		return Library{Type: "guess", Name: s}, nil
	}
	m, err := libraryShape(field, value)
	if err != nil {
		return Library{}, err
	}
	return Library{Type: m["type"].(string), Name: m["name"].(string)}, nil
}

// usageFields are the fields a path-style linkage (or one of its
// submodules) may set
type usageFields struct {
	IncludePath  []path.Path
	LibraryPath  []path.Path
	Headers      []string
	Libraries    []Library
	CompileFlags shell.Arguments
	LinkFlags    shell.Arguments
}

var submoduleKeys = []string{
	"include_path", "library_path", "headers", "libraries", "compile_flags", "link_flags",
}

func checkUsage(tc *types.TypeCheck, name, includeBase, libraryBase string, withDefaults bool) usageFields {
	var u usageFields
	resolve := func(field string, c types.Checker[[]string]) types.Checker[[]string] {
		if withDefaults {
			return defaults.Resolve(name, "linkage", field, c)
		}
		return c
	}

	types.Check(tc, "include_path", types.Maybe(types.ListOf(types.AnyPath(includeBase), true), nil), &u.IncludePath)
	types.Check(tc, "library_path", types.Maybe(types.ListOf(types.AnyPath(libraryBase), true), nil), &u.LibraryPath)
	types.Check(tc, "headers", resolve("headers", types.Maybe(types.ListOf(types.String, true), nil)), &u.Headers)

	libraries := types.Maybe(types.ListOf(libraryChecker, true), nil)
	if withDefaults {
		libraries = defaults.Resolve(name, "linkage", "libraries",
			types.Default(libraries, []Library{{Type: "guess", Name: name}}))
	}
	types.Check(tc, "libraries", libraries, &u.Libraries)
	types.Check(tc, "compile_flags", types.ShellArgs(true), &u.CompileFlags)
	types.Check(tc, "link_flags", types.ShellArgs(true), &u.LinkFlags)
	return u
}

func (u *usageFields) dehydrate() (map[string]any, error) {
	compile, err := u.CompileFlags.Dehydrate()
	if err != nil {
		return nil, err
	}
	link, err := u.LinkFlags.Dehydrate()
	if err != nil {
		return nil, err
	}
	libs := make([]any, len(u.Libraries))
	for i, l := range u.Libraries {
		libs[i] = map[string]any{"type": l.Type, "name": l.Name}
	}
	return map[string]any{
		"include_path":  dehydratePaths(u.IncludePath),
		"library_path":  dehydratePaths(u.LibraryPath),
		"headers":       u.Headers,
		"libraries":     libs,
		"compile_flags": compile,
		"link_flags":    link,
	}, nil
}

func rehydrateUsage(r *freezedry.Reader) (usageFields, error) {
	var u usageFields
	var err error
	if u.IncludePath, err = rehydratePaths(r.Raw("include_path")); err != nil {
		return u, err
	}
	if u.LibraryPath, err = rehydratePaths(r.Raw("library_path")); err != nil {
		return u, err
	}
	u.Headers = r.Strings("headers")
	r.Decode("libraries", &u.Libraries)
	if u.CompileFlags, err = shell.Rehydrate(r.Raw("compile_flags")); err != nil {
		return u, err
	}
	if u.LinkFlags, err = shell.Rehydrate(r.Raw("link_flags")); err != nil {
		return u, err
	}
	return u, r.Err()
}

// PathLinkage describes a package by its include and library directories,
// and generates pkg-config files from them
type PathLinkage struct {
	Base
	usageFields
	AutoLink     bool
	VersionStr   string
	SubmoduleMap any

	includeBase string
	libraryBase string
}

func init() {
	Register("path", Kind{
		Versioned: freezedry.Versioned{Version: 1},
		New: func(b Base, tc *types.TypeCheck) (Linkage, error) {
			return newPathLinkage(b, tc, preferredBase(path.SrcDir, b.Symbols), preferredBase(path.BuildDir, b.Symbols))
		},
		Rehydrate: func(b Base, r *freezedry.Reader) (Linkage, error) {
			return rehydratePathLinkage(b, r)
		},
	})
}

func newPathLinkage(b Base, tc *types.TypeCheck, includeBase, libraryBase string) (*PathLinkage, error) {
	l := &PathLinkage{Base: b, includeBase: includeBase, libraryBase: libraryBase}
	types.Check(tc, "auto_link", types.Maybe(types.Boolean, false), &l.AutoLink)
	types.Check(tc, "version", types.Maybe(types.String, ""), &l.VersionStr)
	l.usageFields = checkUsage(tc, b.Name, includeBase, libraryBase, true)
	if tc.Err() != nil {
		return nil, tc.Err()
	}

	subs, err := checkSubmoduleMap(tc, b.Symbols, submoduleKeys...)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		if d := defaults.Get(b.Name, "linkage", "submodule_map"); d != types.Unset {
			subs = d
		}
	}
	l.SubmoduleMap = subs
	return l, nil
}

func rehydratePathLinkage(b Base, r *freezedry.Reader) (*PathLinkage, error) {
	u, err := rehydrateUsage(r)
	if err != nil {
		return nil, err
	}
	return &PathLinkage{
		Base:         b,
		usageFields:  u,
		AutoLink:     r.Bool("auto_link"),
		VersionStr:   r.OptString("version"),
		SubmoduleMap: r.Raw("submodule_map"),
		includeBase:  preferredBase(path.SrcDir, b.Symbols),
		libraryBase:  preferredBase(path.BuildDir, b.Symbols),
	}, nil
}

func (l *PathLinkage) Version(context.Context, core.Metadata, core.Package) (string, error) {
	return l.VersionStr, nil
}

// submoduleUsage returns the extra fields for one submodule
func (l *PathLinkage) submoduleUsage(submodule string) (usageFields, error) {
	tmpl, entry, ok, err := submoduleEntry(l.SubmoduleMap, l.Symbols, submodule)
	switch {
	case err != nil:
		return usageFields{}, err
	case !ok:
		return usageFields{Libraries: []Library{{Type: "guess", Name: l.Name + "_" + submodule}}}, nil
	case entry != nil:
		tc := types.NewTypeCheck(entry, nil, "submodule_map", submodule)
		u := checkUsage(tc, l.Name, l.includeBase, l.libraryBase, false)
		return u, tc.Finish()
	}
	return usageFields{Libraries: []Library{{Type: "guess", Name: tmpl}}}, nil
}

// pcFor renders usage fields as a pkg-config file
func (l *PathLinkage) pcFor(md core.Metadata, name, version string, u usageFields,
	values map[string]string, requires []string) (pcFile, error) {
	pc := pcFile{Name: name, Version: version, Requires: requires}

	includes, err := pathStrings(u.IncludePath, values)
	if err != nil {
		return pc, err
	}
	for _, dir := range includes {
		pc.Cflags = append(pc.Cflags, "-I"+dir)
	}
	compile, err := u.CompileFlags.Values(values)
	if err != nil {
		return pc, err
	}
	pc.Cflags = append(pc.Cflags, compile...)

	libdirs, err := pathStrings(u.LibraryPath, values)
	if err != nil {
		return pc, err
	}
	for _, dir := range libdirs {
		pc.Libs = append(pc.Libs, "-L"+dir)
	}
	if !l.AutoLink {
		target := platform.HostName()
		if md.Options() != nil {
			target = md.Options().Common.TargetPlatform
		}
		for _, lib := range u.Libraries {
			if lib.Type == "framework" {
				pc.Libs = append(pc.Libs, "-framework", lib.Name)
			} else {
				pc.Libs = append(pc.Libs, "-l"+platform.LibraryName(target, lib.Name))
			}
		}
	}
	link, err := u.LinkFlags.Values(values)
	if err != nil {
		return pc, err
	}
	pc.Libs = append(pc.Libs, link...)
	return pc, nil
}

// generate writes .pc files for the package and each requested submodule
// and returns the linkage description pointing at them
func (l *PathLinkage) generate(ctx context.Context, md core.Metadata, pkg core.Package,
	submodules []string, main usageFields) (map[string]any, error) {
	values, err := pkg.PathValues(md)
	if err != nil {
		return nil, err
	}
	version, err := l.Version(ctx, md, pkg)
	if err != nil {
		return nil, err
	}

	dir := GeneratedDir(md.PkgDir())
	pc, err := l.pcFor(md, l.Name, version, main, values, nil)
	if err != nil {
		return nil, err
	}
	if err := writePC(md.FS(), dir, pc); err != nil {
		return nil, err
	}

	pcnames := []any{}
	for _, sub := range submodules {
		u, err := l.submoduleUsage(sub)
		if err != nil {
			return nil, err
		}
		name := l.Name + "_" + sub
		subpc, err := l.pcFor(md, name, version, u, values, []string{l.Name})
		if err != nil {
			return nil, err
		}
		if err := writePC(md.FS(), dir, subpc); err != nil {
			return nil, err
		}
		if !slices.Contains(pcnames, any(name)) {
			pcnames = append(pcnames, name)
		}
	}
	if len(pcnames) == 0 {
		pcnames = append(pcnames, l.Name)
	}

	return l.result(submodules, map[string]any{
		"generated":       true,
		"auto_link":       l.AutoLink,
		"pcnames":         pcnames,
		"pkg_config_path": []any{dir},
	}), nil
}

func (l *PathLinkage) Linkage(ctx context.Context, md core.Metadata, pkg core.Package, submodules []string) (map[string]any, error) {
	return l.generate(ctx, md, pkg, submodules, l.usageFields)
}

func (l *PathLinkage) Dehydrate() (map[string]any, error) {
	data, err := l.usageFields.dehydrate()
	if err != nil {
		return nil, fmt.Errorf("dehydrating %s linkage: %w", l.Kind, err)
	}
	data["auto_link"] = l.AutoLink
	data["version"] = l.VersionStr
	data["submodule_map"] = l.SubmoduleMap
	return data, nil
}

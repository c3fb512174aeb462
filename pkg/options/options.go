// pkg/options/options.go
package options

import (
	"fmt"
	"sort"

	"github.com/arc-language/mopack/pkg/expr"
	"github.com/arc-language/mopack/pkg/freezedry"
	"github.com/arc-language/mopack/pkg/types"
)

// Genus partitions the options into common, per-origin and per-builder groups.
type Genus string

const (
	GenusCommon   Genus = "common"
	GenusOrigins  Genus = "origins"
	GenusBuilders Genus = "builders"
)

// KindOptions accumulates the options of one origin or builder kind.
type KindOptions interface {
	// Accumulate reads this kind's fields from a fragment. Values already set
	// by an earlier (higher priority) fragment are kept.
	Accumulate(tc *types.TypeCheck, cfgdir string) error

	// Dehydrate returns the persisted form of the options.
	Dehydrate() (map[string]any, error)
}

// Factory creates an empty accumulator for a kind.
type Factory func() KindOptions

var (
	registries = map[Genus]*freezedry.Registry[KindOptions, struct{}]{
		GenusOrigins:  freezedry.NewRegistry[KindOptions, struct{}]("origin options", "type"),
		GenusBuilders: freezedry.NewRegistry[KindOptions, struct{}]("builder options", "type"),
	}
	factories = map[Genus]map[string]Factory{
		GenusOrigins:  {},
		GenusBuilders: {},
	}
)

// Register makes options available for an origin or builder kind.
func Register(genus Genus, kind string, v freezedry.Versioned, factory Factory,
	rehydrate freezedry.RehydrateFunc[KindOptions, struct{}]) {
	registries[genus].Register(kind, v, rehydrate)
	factories[genus][kind] = factory
}

// Fragment is one block of options read from a config file or the command
// line.
type Fragment struct {
	Genus     Genus
	Kind      string
	Data      map[string]any
	ConfigDir string

	// Child is set for fragments coming from a nested (child) config.
	Child bool

	// Wrap attaches location information to errors, when available.
	Wrap func(error) error
}

func (f Fragment) wrap(err error) error {
	if err == nil || f.Wrap == nil {
		return err
	}
	return f.Wrap(err)
}

// Options holds every option for one resolution. Common options are
// finalized first so that they can be used to evaluate `if:` conditions;
// origin and builder fragments wait in a queue until Finalize.
type Options struct {
	Common   *CommonOptions
	Origins  map[string]KindOptions
	Builders map[string]KindOptions

	pending         []Fragment
	final           map[string]bool
	commonFinalized bool
	finalized       bool
	symbols         *expr.Symbols
}

// New returns empty options ready to accumulate fragments.
func New() *Options {
	return &Options{
		Common:   newCommonOptions(),
		Origins:  map[string]KindOptions{},
		Builders: map[string]KindOptions{},
		final:    map[string]bool{},
	}
}

// Default returns finalized options with default values.
func Default() *Options {
	o := New()
	o.FinalizeCommon()
	o.Finalize(nil, nil)
	return o
}

func (o *Options) checkMutable() {
	if o.finalized {
		panic("options: mutated after finalization")
	}
}

func (o *Options) kinds(genus Genus) map[string]KindOptions {
	if genus == GenusOrigins {
		return o.Origins
	}
	return o.Builders
}

// Accumulate applies a fragment. Common fragments take effect immediately;
// others are queued until Finalize.
func (o *Options) Accumulate(f Fragment) error {
	o.checkMutable()

	if f.Genus != GenusCommon {
		if _, ok := registries[f.Genus]; !ok {
			return fmt.Errorf("unknown options genus %q", f.Genus)
		}
		o.pending = append(o.pending, f)
		return nil
	}

	if f.Child {
		return f.wrap(types.NewFieldKeyError("common options cannot be set in child configs", "common"))
	}
	if o.commonFinalized {
		panic("options: common options mutated after finalization")
	}
	if o.final[string(GenusCommon)] {
		return nil
	}

	tc := types.NewTypeCheck(f.Data, baseSymbols(), string(GenusCommon))
	final := isFinal(tc)
	o.Common.accumulate(tc)
	if err := tc.Finish(); err != nil {
		return f.wrap(err)
	}
	if final {
		o.final[string(GenusCommon)] = true
	}
	return nil
}

func isFinal(tc *types.TypeCheck) bool {
	var final bool
	types.CheckRaw(tc, "final", types.Maybe(types.Boolean, false), &final)
	return final
}

// FinalizeCommon locks the common options and derives the symbol table.
func (o *Options) FinalizeCommon() {
	if o.commonFinalized {
		return
	}
	o.Common.finalize()
	o.symbols = o.Common.symbols()
	o.commonFinalized = true
}

// Symbols returns the expression symbols derived from the common options.
func (o *Options) Symbols() *expr.Symbols {
	if !o.commonFinalized {
		panic("options: symbols requested before finalization")
	}
	return o.symbols
}

// Finalize creates accumulators for every kind in use, applies the queued
// fragments in order, and locks the options.
func (o *Options) Finalize(origins, builders []string) error {
	o.checkMutable()
	o.FinalizeCommon()

	for genus, used := range map[Genus][]string{GenusOrigins: origins, GenusBuilders: builders} {
		for _, kind := range used {
			o.ensure(genus, kind)
		}
	}

	for _, f := range o.pending {
		key := string(f.Genus) + "/" + f.Kind
		if o.final[key] {
			continue
		}
		if _, ok := factories[f.Genus][f.Kind]; !ok {
			return f.wrap(registries[f.Genus].UnknownTag(f.Kind, string(f.Genus), f.Kind))
		}

		tc := types.NewTypeCheck(f.Data, o.symbols, string(f.Genus), f.Kind)
		final := isFinal(tc)
		if err := o.ensure(f.Genus, f.Kind).Accumulate(tc, f.ConfigDir); err != nil {
			return f.wrap(err)
		}
		if err := tc.Finish(); err != nil {
			return f.wrap(err)
		}
		if final {
			o.final[key] = true
		}
	}

	o.pending = nil
	o.finalized = true
	return nil
}

func (o *Options) ensure(genus Genus, kind string) KindOptions {
	kinds := o.kinds(genus)
	if k, ok := kinds[kind]; ok {
		return k
	}
	factory, ok := factories[genus][kind]
	if !ok {
		return nil
	}
	k := factory()
	kinds[kind] = k
	return k
}

// Finalized reports whether Finalize has run.
func (o *Options) Finalized() bool { return o.finalized }

// Origin returns the options for an origin kind, or nil.
func (o *Options) Origin(kind string) KindOptions { return o.Origins[kind] }

// Builder returns the options for a builder kind, or nil.
func (o *Options) Builder(kind string) KindOptions { return o.Builders[kind] }

// Dehydrate returns the persisted form of the options.
func (o *Options) Dehydrate() (map[string]any, error) {
	common, err := o.Common.Dehydrate()
	if err != nil {
		return nil, err
	}
	result := map[string]any{"common": common}
	for _, genus := range []Genus{GenusOrigins, GenusBuilders} {
		kinds := o.kinds(genus)
		out := make(map[string]any, len(kinds))
		for _, name := range sortedKinds(kinds) {
			d, err := registries[genus].Dehydrate(name, kinds[name])
			if err != nil {
				return nil, fmt.Errorf("dehydrating %s options: %w", name, err)
			}
			out[name] = d
		}
		result[string(genus)] = out
	}
	return result, nil
}

// Rehydrate restores finalized options from their persisted form.
func Rehydrate(data map[string]any) (*Options, error) {
	o := New()
	common, err := rehydrateCommon(data["common"])
	if err != nil {
		return nil, err
	}
	o.Common = common

	for _, genus := range []Genus{GenusOrigins, GenusBuilders} {
		raw, _ := data[string(genus)].(map[string]any)
		kinds := o.kinds(genus)
		for name, v := range raw {
			k, err := registries[genus].Rehydrate(v, struct{}{})
			if err != nil {
				return nil, types.WrapField(err, string(genus), name)
			}
			kinds[name] = k
		}
	}

	o.symbols = o.Common.symbols()
	o.commonFinalized = true
	o.finalized = true
	return o, nil
}

func sortedKinds(m map[string]KindOptions) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

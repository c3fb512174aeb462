// internal/cli/resolve.go
package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arc-language/mopack"
	"github.com/arc-language/mopack/pkg/options"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [file|directory...]",
	Short: "Fetch and build the packages listed in config files",
	Long: `Fetch and build every package the config files list, along with the
packages listed by configs found in their sources. Later files take priority
over earlier ones; a directory stands for its mopack.yml and mopack-local.yml.

Examples:
  mopack resolve
  mopack resolve mopack.yml mopack-extra.yml
  mopack resolve --target-platform=windows --env CC=clang`,
	RunE: runResolve,
}

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Install the resolved packages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		mgr, err := manager()
		if err != nil {
			return err
		}
		return mgr.Deploy(cmd.Context())
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove every package and the package directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		mgr, err := manager()
		if err != nil {
			return err
		}
		return mgr.Clean(cmd.Context())
	},
}

func init() {
	flags := resolveCmd.Flags()
	flags.String("target-platform", "", "platform to build packages for")
	flags.StringArray("env", nil, "environment variable for builds (KEY=VALUE)")
	flags.StringArray("deploy-dir", nil, "installation directory (KIND=PATH)")
	flags.Bool("strict", false, "never guess that an unknown package is a system package")
	for _, name := range []string{"target-platform", "strict"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}
}

func runResolve(cmd *cobra.Command, args []string) error {
	frag, err := commandLineOptions(cmd)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		args = []string{"."}
	}

	mgr, err := manager()
	if err != nil {
		return err
	}
	cfg, err := mgr.LoadConfig(args, frag)
	if err != nil {
		return err
	}
	return mgr.Resolve(cmd.Context(), cfg)
}

// commandLineOptions turns the resolve flags into common options that win
// over every config file
func commandLineOptions(cmd *cobra.Command) (options.Fragment, error) {
	data := map[string]any{"final": true}
	if target := v.GetString("target-platform"); target != "" {
		data["target_platform"] = target
	}
	if cmd.Flags().Changed("strict") || settings.Strict {
		data["strict"] = v.GetBool("strict")
	}

	env := map[string]any{}
	for k, val := range settings.Env {
		env[k] = val
	}
	envFlags, _ := cmd.Flags().GetStringArray("env")
	if err := parsePairs(envFlags, "env", env); err != nil {
		return options.Fragment{}, err
	}
	data["env"] = env

	dirs := map[string]any{}
	for k, val := range settings.DeployDirs {
		dirs[k] = val
	}
	dirFlags, _ := cmd.Flags().GetStringArray("deploy-dir")
	if err := parsePairs(dirFlags, "deploy-dir", dirs); err != nil {
		return options.Fragment{}, err
	}
	for k, val := range dirs {
		abs, err := filepath.Abs(val.(string))
		if err != nil {
			return options.Fragment{}, fmt.Errorf("resolving deploy dir %s: %w", k, err)
		}
		dirs[k] = abs
	}
	data["deploy_dirs"] = dirs

	return options.Fragment{Genus: options.GenusCommon, Data: data}, nil
}

func parsePairs(values []string, flag string, dst map[string]any) error {
	for _, s := range values {
		k, val, ok := strings.Cut(s, "=")
		if !ok || k == "" {
			return fmt.Errorf("%w: invalid --%s %q, expected KEY=VALUE", mopack.ErrConfiguration, flag, s)
		}
		dst[k] = val
	}
	return nil
}

// internal/cli/root.go
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arc-language/mopack"
	"github.com/arc-language/mopack/pkg/core"
	"github.com/arc-language/mopack/pkg/logging"
)

var (
	fs       = afero.NewOsFs()
	v        = viper.New()
	settings *core.Settings
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mopack",
	Short: "Multiple-origin package manager",
	Long: `mopack - multiple-origin package manager

Fetches, builds and deploys the dependencies a project lists in its
mopack.yml, whether they come from tarballs, git, apt, conan or the system.`,
	Version:           version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute executes the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringP("directory", "d", ".", "directory holding the package directory")
	flags.Bool("debug", false, "enable debug logging")
	flags.String("color", "auto", "colorize output (auto, always, never)")
	for _, name := range []string{"directory", "debug", "color"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	// Add commands
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(linkageCmd)
	rootCmd.AddCommand(listFilesCmd)
	rootCmd.AddCommand(listPackagesCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	var err error
	settings, err = core.LoadSettings(fs, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading settings: %v\n", err)
		settings = core.DefaultSettings()
	}

	v.SetEnvPrefix("MOPACK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("directory", settings.Directory)
	v.SetDefault("debug", settings.Debug)
	v.SetDefault("target-platform", settings.TargetPlatform)
	v.SetDefault("strict", settings.Strict)
}

func setup(cmd *cobra.Command, _ []string) error {
	switch v.GetString("color") {
	case "always":
		lipgloss.SetColorProfile(termenv.ANSI256)
	case "never":
		lipgloss.SetColorProfile(termenv.Ascii)
	case "auto":
	default:
		return fmt.Errorf("invalid --color %q", v.GetString("color"))
	}

	logger := logging.New(os.Stderr, v.GetBool("debug"))
	cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
	return nil
}

func manager() (*mopack.Manager, error) {
	return mopack.NewManager(fs, mopack.PackageDir(v.GetString("directory")))
}

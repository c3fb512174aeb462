// internal/cli/linkage.go
package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/arc-language/mopack/pkg/core"
)

var linkageCmd = &cobra.Command{
	Use:     "linkage <package[submodule,...]>",
	Aliases: []string{"usage"},
	Short:   "Show how to link against a resolved package",
	Long: `Show how to link against a resolved package and, optionally, some of
its submodules.

Examples:
  mopack linkage zlib
  mopack linkage 'boost[regex,thread]' --json`,
	Args: cobra.ExactArgs(1),
	RunE: runLinkage,
}

func init() {
	linkageCmd.Flags().Bool("json", false, "print as JSON")
	linkageCmd.Flags().Bool("strict", false, "fail for packages that were never resolved")
}

func runLinkage(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	strict, _ := cmd.Flags().GetBool("strict")

	name, submodules, err := core.ParseDependency(args[0])
	if err != nil {
		return err
	}
	mgr, err := manager()
	if err != nil {
		return err
	}
	result, err := mgr.Linkage(cmd.Context(), name, submodules, strict)
	if err != nil {
		return err
	}

	var out []byte
	if asJSON {
		out, err = json.Marshal(result)
		out = append(out, '\n')
	} else {
		out, err = yaml.Marshal(result)
	}
	if err != nil {
		return fmt.Errorf("encoding linkage: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

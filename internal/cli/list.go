// internal/cli/list.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listFilesCmd = &cobra.Command{
	Use:   "list-files",
	Short: "List the config files used by the last resolution",
	Args:  cobra.NoArgs,
	RunE:  runListFiles,
}

var listPackagesCmd = &cobra.Command{
	Use:   "list-packages",
	Short: "List the resolved packages",
	Long: `List the resolved packages. By default packages are shown as a tree,
nested under the package whose sources defined them.`,
	Args: cobra.NoArgs,
	RunE: runListPackages,
}

func init() {
	listFilesCmd.Flags().BoolP("include-implicit", "I", false, "include configs found in package sources")
	listPackagesCmd.Flags().Bool("flat", false, "list packages without nesting")
}

func runListFiles(cmd *cobra.Command, _ []string) error {
	implicit, _ := cmd.Flags().GetBool("include-implicit")
	mgr, err := manager()
	if err != nil {
		return err
	}
	files, err := mgr.ListFiles(implicit)
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Fprintln(cmd.OutOrStdout(), f)
	}
	return nil
}

func runListPackages(cmd *cobra.Command, _ []string) error {
	flat, _ := cmd.Flags().GetBool("flat")
	mgr, err := manager()
	if err != nil {
		return err
	}
	out, err := mgr.ListPackages(cmd.Context(), flat)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

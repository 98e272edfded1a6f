// Package gen holds generators for files shipped alongside the binary.
package gen

import (
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate documentation for huddle",
	Long: `Generate documentation for huddle

Usage
	huddle gen man --dir man/
`,
}

func init() {
	RootCmd.AddCommand(ManPagesCmd)
}

package main

import (
	"fmt"

	"github.com/jobu711/optionalpha/internal/common"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "OptionAlpha version %s\n", common.GetFullVersion())
	},
}

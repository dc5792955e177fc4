package main

import "github.com/spf13/cobra"

// addQuietFlag registers the -q/--quiet flag shared by every subcommand
// that prints informational (non-error, non-requested-data) output.
func addQuietFlag(cmd *cobra.Command) {
	cmd.Flags().BoolP("quiet", "q", false, "suppress informational output")
}

func quiet(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("quiet")
	return v
}

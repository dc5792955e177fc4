package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonybepary/seqcrdt/branch"
)

func newCatCmd() *cobra.Command {
	var (
		outPath string
		version string
	)
	cmd := &cobra.Command{
		Use:   "cat FILE",
		Short: "materialize the text at a version (default: tip)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			oplg, err := loadOpLog(args[0])
			if err != nil {
				return err
			}
			f, err := parseFrontier(oplg, version)
			if err != nil {
				return err
			}
			text := branch.Checkout(oplg, f).Text.String()

			if outPath == "" || outPath == "-" {
				fmt.Fprint(cmd.OutOrStdout(), text)
				return nil
			}
			return os.WriteFile(outPath, []byte(text), 0o644)
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write to this file instead of stdout")
	cmd.Flags().StringVarP(&version, "version", "v", "", "version JSON to materialize (default: tip)")
	return cmd
}

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jonybepary/seqcrdt/branch"
	"github.com/jonybepary/seqcrdt/codec"
	"github.com/jonybepary/seqcrdt/oplog"
)

func newCreateCmd() *cobra.Command {
	var (
		contentPath string
		agent       string
		force       bool
	)
	cmd := &cobra.Command{
		Use:   "create FILE",
		Short: "create a new operation log file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := args[0]
			if err := requireAbsent(file, force); err != nil {
				return err
			}

			oplg := oplog.New()
			if contentPath != "" {
				text, err := os.ReadFile(contentPath)
				if err != nil {
					return err
				}
				b := branch.New()
				if _, err := b.Insert(oplg, agent, 0, string(text)); err != nil {
					return err
				}
			}

			data, err := codec.Encode(oplg, codec.DefaultWriteOptions())
			if err != nil {
				return err
			}
			if err := writeFileAtomic(file, data); err != nil {
				return err
			}
			log.Debugf("wrote %d bytes to %s", len(data), file)
			if !quiet(cmd) {
				cmd.Printf("created %s\n", file)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&contentPath, "content", "i", "", "seed the new file from this text file")
	cmd.Flags().StringVarP(&agent, "agent", "a", "seed", "agent name attributed to the seed content")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite FILE if it already exists")
	addQuietFlag(cmd)
	return cmd
}

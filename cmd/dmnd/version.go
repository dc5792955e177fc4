package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version FILE",
		Short: "print the tip frontier as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			oplg, err := loadOpLog(args[0])
			if err != nil {
				return err
			}
			out, err := json.Marshal(frontierToJSON(oplg.Graph, oplg.Graph.Version()))
			if err != nil {
				return err
			}
			cmd.Println(string(out))
			return nil
		},
	}
}

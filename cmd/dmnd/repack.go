package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonybepary/seqcrdt/causalgraph"
	"github.com/jonybepary/seqcrdt/codec"
)

func newRepackCmd() *cobra.Command {
	var (
		outPath           string
		force             bool
		uncompressed      bool
		version           string
		patch             bool
		noInsertedContent bool
		noDeletedContent  bool
	)
	cmd := &cobra.Command{
		Use:   "repack FILE",
		Short: "rewrite a file with altered storage options",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := args[0]
			oplg, err := loadOpLog(file)
			if err != nil {
				return err
			}

			opts := codec.DefaultWriteOptions()
			opts.CompressContent = !uncompressed
			opts.StoreInsertedContent = !noInsertedContent
			opts.StoreDeletedContent = !noDeletedContent

			if patch {
				from := causalgraph.Frontier{}
				if version != "" {
					var err error
					from, err = parseFrontier(oplg, version)
					if err != nil {
						return err
					}
				}
				opts.FromVersion = from
			}

			target := outPath
			inPlace := target == "" || target == file
			if inPlace {
				target = file
			}

			lossy := opts.IsPatch() || !opts.StoreInsertedContent || !opts.StoreDeletedContent
			if inPlace && lossy && !force {
				return fmt.Errorf("repack would drop data from %s in place (use -f to proceed, or -o to write elsewhere)", file)
			}
			log.WithField("lossy", lossy).Debugf("repacking %s", file)

			data, err := codec.Encode(oplg, opts)
			if err != nil {
				return err
			}
			if err := writeFileAtomic(target, data); err != nil {
				return err
			}
			if !quiet(cmd) {
				cmd.Printf("repacked %s -> %s\n", file, target)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write to this file instead of FILE")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "allow an in-place repack that would drop data")
	cmd.Flags().BoolVar(&uncompressed, "uncompressed", false, "disable LZ4 content compression")
	cmd.Flags().StringVarP(&version, "version", "v", "", "base version for --patch (default: root)")
	cmd.Flags().BoolVar(&patch, "patch", false, "produce a patch from --version instead of a standalone file")
	cmd.Flags().BoolVar(&noInsertedContent, "no-inserted-content", false, "omit inserted text (structure only)")
	cmd.Flags().BoolVar(&noDeletedContent, "no-deleted-content", false, "omit deleted text (structure only)")
	addQuietFlag(cmd)
	return cmd
}

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jonybepary/seqcrdt/branch"
	"github.com/jonybepary/seqcrdt/codec"
)

func newSetCmd() *cobra.Command {
	var (
		version string
		agent   string
	)
	cmd := &cobra.Command{
		Use:   "set FILE CONTENT_FILE",
		Short: "diff current content against CONTENT_FILE and append the edits as a new run",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, contentPath := args[0], args[1]

			oplg, err := loadOpLog(file)
			if err != nil {
				return err
			}
			target, err := os.ReadFile(contentPath)
			if err != nil {
				return err
			}
			f, err := parseFrontier(oplg, version)
			if err != nil {
				return err
			}

			b := branch.Checkout(oplg, f)
			prefix, suffix := commonAffixes(b.Text.Bytes(), target)

			oldMid := string(b.Text.Bytes()[prefix : b.Text.Len()-suffix])
			newMid := string(target[prefix : len(target)-suffix])

			if len(oldMid) > 0 {
				if _, err := b.Delete(oplg, agent, prefix, len(oldMid)); err != nil {
					return err
				}
			}
			if len(newMid) > 0 {
				if _, err := b.Insert(oplg, agent, prefix, newMid); err != nil {
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
			if !quiet(cmd) {
				cmd.Printf("updated %s\n", file)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&version, "version", "v", "", "checkout version JSON to diff against (default: tip)")
	cmd.Flags().StringVarP(&agent, "agent", "a", "set", "agent name attributed to the edit")
	addQuietFlag(cmd)
	return cmd
}

// commonAffixes returns the length of the longest common prefix and,
// independently, the longest common suffix of a and b, capped so the two
// never overlap (an exact match reports the whole string as prefix, zero
// as suffix).
func commonAffixes(a, b []byte) (prefix, suffix int) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for prefix < n && a[prefix] == b[prefix] {
		prefix++
	}
	maxSuffix := n - prefix
	for suffix < maxSuffix && a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}
	return prefix, suffix
}

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonybepary/seqcrdt/causalgraph"
	"github.com/jonybepary/seqcrdt/integration"
	"github.com/jonybepary/seqcrdt/oplog"
)

func newLogCmd() *cobra.Command {
	var (
		transformed bool
		asJSON      bool
		history     bool
	)
	cmd := &cobra.Command{
		Use:   "log FILE",
		Short: "dump operations or causal-graph history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			oplg, err := loadOpLog(args[0])
			if err != nil {
				return err
			}

			if history {
				return printHistory(cmd, oplg.Graph, asJSON)
			}

			if transformed {
				entries := oplg.IterXFOperations(causalgraph.Frontier{}, oplg.Graph.Version())
				if asJSON {
					return printJSON(cmd, entries)
				}
				for _, e := range entries {
					kind := "ins"
					if e.Kind == integration.OpDel {
						kind = "del"
					}
					cmd.Printf("lv=%d %s pos=%d\n", e.LV, kind, e.Pos)
				}
				return nil
			}

			ops := oplg.Iter()
			if asJSON {
				return printJSON(cmd, ops)
			}
			for _, op := range ops {
				kind := "ins"
				if op.Kind == oplog.KindDel {
					kind = "del"
				}
				cmd.Printf("lv=%d agent=%s %s pos=%d char=%q\n", op.LV, oplg.Graph.AgentName(op.Agent), kind, op.Pos, string(op.Char))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&transformed, "transformed", "t", false, "show transformed (replayed) positions instead of raw author-time positions")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "emit JSON instead of text")
	cmd.Flags().BoolVar(&history, "history", false, "dump causal-graph history instead of operations")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.Marshal(v)
	if err != nil {
		return err
	}
	cmd.Println(string(out))
	return nil
}

type historyEntry struct {
	Agent   string   `json:"agent"`
	Seq     int      `json:"seq"`
	LVStart int      `json:"lv_start"`
	LVEnd   int      `json:"lv_end"`
	Parents []string `json:"parents"`
}

func printHistory(cmd *cobra.Command, g *causalgraph.Graph, asJSON bool) error {
	summary := g.Summarize(g.Version())
	var entries []historyEntry
	for _, name := range g.AgentNames() {
		for _, span := range summary[name] {
			start, ok := g.LVOfRawVersion(causalgraph.RawVersion{Agent: name, Seq: span[0]})
			if !ok {
				continue
			}
			parents := g.ParentsAt(start)
			entries = append(entries, historyEntry{
				Agent:   name,
				Seq:     span[0],
				LVStart: int(start),
				LVEnd:   int(start) + (span[1] - span[0]),
				Parents: rawVersionsToStrings(g, parents),
			})
		}
	}
	if asJSON {
		return printJSON(cmd, entries)
	}
	for _, e := range entries {
		cmd.Printf("%s:%d  lv=[%d,%d)  parents=%v\n", e.Agent, e.Seq, e.LVStart, e.LVEnd, e.Parents)
	}
	return nil
}

func rawVersionsToStrings(g *causalgraph.Graph, f causalgraph.Frontier) []string {
	if len(f) == 0 {
		return []string{"ROOT"}
	}
	out := make([]string, len(f))
	for i, rv := range g.FrontierToRawVersions(f) {
		out[i] = fmt.Sprintf("%s:%d", rv.Agent, rv.Seq)
	}
	return out
}

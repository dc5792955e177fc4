package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonybepary/seqcrdt/causalgraph"
	"github.com/jonybepary/seqcrdt/codec"
	"github.com/jonybepary/seqcrdt/oplog"
)

// loadOpLog reads and fully decodes a .dt file. A patch file can't stand
// alone, so a bare load always rejects one (Decode's own check).
func loadOpLog(path string) (*oplog.OpLog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	log, err := codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return log, nil
}

// writeFileAtomic writes data to path via a temp file in the same
// directory followed by a rename, so a crash or interrupted write never
// leaves a partial file in place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".dmnd-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file into place: %w", err)
	}
	return nil
}

// requireAbsent refuses to clobber an existing file unless force is set.
func requireAbsent(path string, force bool) error {
	if force {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists (use -f to overwrite)", path)
	} else if !os.IsNotExist(err) {
		return err
	}
	return nil
}

// jsonVersion is the CLI's wire shape for a frontier: a JSON array of
// {"agent": name, "seq": N} objects.
type jsonVersion struct {
	Agent string `json:"agent"`
	Seq   int    `json:"seq"`
}

func frontierToJSON(g *causalgraph.Graph, f causalgraph.Frontier) []jsonVersion {
	raws := g.FrontierToRawVersions(f)
	out := make([]jsonVersion, len(raws))
	for i, rv := range raws {
		out[i] = jsonVersion{Agent: rv.Agent, Seq: rv.Seq}
	}
	return out
}

// parseFrontier resolves a JSON version array against log's graph. Every
// named (agent, seq) pair must already be known; an empty/absent string
// resolves to the tip frontier.
func parseFrontier(log *oplog.OpLog, raw string) (causalgraph.Frontier, error) {
	if raw == "" {
		return log.Graph.Version(), nil
	}
	var versions []jsonVersion
	if err := json.Unmarshal([]byte(raw), &versions); err != nil {
		return nil, fmt.Errorf("parse version JSON: %w", err)
	}
	out := make(causalgraph.Frontier, 0, len(versions))
	for _, v := range versions {
		lv, ok := log.Graph.LVOfRawVersion(causalgraph.RawVersion{Agent: v.Agent, Seq: v.Seq})
		if !ok {
			return nil, fmt.Errorf("version references unknown operation %s:%d", v.Agent, v.Seq)
		}
		out = append(out, lv)
	}
	return log.Graph.Dominators(out), nil
}

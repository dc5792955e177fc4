package codec

// chunkKind enumerates the top-level and nested chunk kinds a file
// carries: FileInfo, StartBranch, Patches, EndBranch, CRC, plus this
// implementation's concrete sub-chunk breakdown of Patches (op runs,
// inserted-content, deleted-content). Unknown kinds encountered on read must be skipped,
// which is why every chunk, nested or not, carries its own byte_length
// prefix.
type chunkKind uint64

const (
	chunkFileInfo    chunkKind = 1
	chunkStartBranch chunkKind = 2
	chunkPatches     chunkKind = 3
	chunkEndBranch   chunkKind = 4
	chunkCRC         chunkKind = 5
)

// FileInfo sub-chunks.
const (
	subUserData   chunkKind = 1
	subAgentNames chunkKind = 2
)

// StartBranch / EndBranch sub-chunks.
const (
	subBranchContent  chunkKind = 1
	subBranchFrontier chunkKind = 2
)

// Patches sub-chunks. The causal-graph assignments, parents, and
// operation-metrics tables are serialized together as a single ordered
// run list (DESIGN.md explains why: each run already carries its own
// parents and agent, and splitting them into separate parallel tables
// buys nothing here since they're always read, and written, in lockstep).
const (
	subOpRuns          chunkKind = 1
	subInsertedContent chunkKind = 2
	subDeletedContent  chunkKind = 3
)

// writeChunk appends a length-prefixed chunk: kind varint, byte_length
// varint, payload.
func writeChunk(w *writer, kind chunkKind, payload []byte) {
	w.writeUvarint(uint64(kind))
	w.writeLenPrefixed(payload)
}

// readChunk reads one chunk header + payload from r.
func readChunk(r *reader) (chunkKind, []byte, error) {
	k, err := r.readUvarint()
	if err != nil {
		return 0, nil, err
	}
	payload, err := r.readLenPrefixed()
	if err != nil {
		return 0, nil, err
	}
	return chunkKind(k), payload, nil
}

package codec

import "github.com/jonybepary/seqcrdt/causalgraph"

// WriteOptions controls what Encode includes.
type WriteOptions struct {
	// StoreStartBranchContent includes a StartBranch text chunk holding
	// the document as it stood at FromVersion.
	StoreStartBranchContent bool
	// StoreEndBranchContent includes an EndBranch text chunk holding the
	// document as it stands at the oplog's tip -- bigger, but lets a
	// reader skip replaying the patch just to see the result.
	StoreEndBranchContent bool
	// StoreInsertedContent includes the inserted-text buffer. Without
	// it, the file can still describe structure (positions, causality)
	// but can't reconstruct inserted characters.
	StoreInsertedContent bool
	// StoreDeletedContent includes the deleted-text buffer.
	StoreDeletedContent bool
	// CompressContent LZ4-compresses content sub-chunks.
	CompressContent bool
	// FromVersion, if non-empty, requests a patch: only operations not
	// already dominated by FromVersion are written. The zero value (nil
	// frontier) requests a full, standalone file.
	FromVersion causalgraph.Frontier
}

// DefaultWriteOptions matches what `create` and `set` produce: a full,
// uncompressed file with everything needed to stand alone. `repack` starts
// from these options but turns compression on unless --uncompressed is given.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{
		StoreInsertedContent: true,
		StoreDeletedContent:  true,
	}
}

// IsPatch reports whether these options describe a patch (requires an
// existing, compatible oplog to apply to) rather than a full file.
func (o WriteOptions) IsPatch() bool { return len(o.FromVersion) > 0 }

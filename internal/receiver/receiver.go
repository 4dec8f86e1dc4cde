// Package receiver implements the client-side phase-1 reader half of a
// download: it consumes the server's per-file literal/EOF token stream,
// verifies each file's whole-file seeded MD4 digest, and writes accepted
// files through a localtree.Tree.
package receiver

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/mmcloughlin/md4"

	"github.com/nlsync/rsyn/internal/localtree"
	"github.com/nlsync/rsyn/internal/rlog"
	"github.com/nlsync/rsyn/internal/rsyncwire"
)

// ErrBlockReference is returned when the server sends a block-reference
// token (t < 0) against a connection that always declares its basis empty.
// This client never sends a non-empty SumHead, so a server that still
// emits a block reference is violating the contract this client relies on.
var ErrBlockReference = errors.New("receiver: block-reference token received against empty basis")

// FileList is the minimal view of a sorted file list the receiver needs:
// resolving a wire index to the relative path it should be written under.
type FileList interface {
	Len() int
	Name(index int) string
}

// Result is the per-operation rollup this package accumulates; the session
// driver folds it into the public rsyn.Summary.
type Result struct {
	InvalidFileIndexCount     int
	WholeFileSumMismatchCount int
	LiteralBytesReceived      int64
	FilesReceived             int
}

// Transfer drives phase 1's reader half.
type Transfer struct {
	Conn   *rsyncwire.Conn
	Seed   int32
	Logger rlog.Logger

	// Tree is where accepted file contents are written. Nil discards
	// contents (used by callers that only want verification counters).
	Tree *localtree.Tree
}

// Run consumes indices until the phase-1 terminator (-1); it makes no
// assumption about ordering relative to the generator's requests.
func (rt *Transfer) Run(list FileList) (Result, error) {
	var res Result
	for {
		idx, err := rt.Conn.ReadInt32()
		if err != nil {
			return res, fmt.Errorf("receiver: reading file index: %w", err)
		}
		if idx == -1 {
			return res, nil
		}

		name := ""
		if idx >= 0 && int(idx) < list.Len() {
			name = list.Name(int(idx))
		} else {
			res.InvalidFileIndexCount++
			rt.Logger.Printf("receiver: index %d out of range (file list has %d entries)", idx, list.Len())
		}

		literal, mismatch, err := rt.recvFile(name)
		if err != nil {
			return res, err
		}
		res.LiteralBytesReceived += literal
		if mismatch {
			res.WholeFileSumMismatchCount++
		}
		res.FilesReceived++
	}
}

// recvFile consumes one file's sum-head echo and token stream, verifying
// its seeded MD4 digest. name == "" means there is nowhere sane to write
// (an out-of-range index); the bytes are still drained to stay in lockstep
// with the server, just not persisted.
func (rt *Transfer) recvFile(name string) (literalBytes int64, mismatch bool, err error) {
	// The server always echoes a sum head, even an empty one; this client
	// never had a basis to describe, so the echoed values are drained
	// without being interpreted.
	if _, err := rsyncwire.ReadSumHeadWords(rt.Conn); err != nil {
		return 0, false, fmt.Errorf("receiver: reading sum head: %w", err)
	}

	var out *localtree.WriteFile
	if rt.Tree != nil && name != "" {
		out, err = rt.Tree.Create(name)
		if err != nil {
			return 0, false, fmt.Errorf("receiver: opening %q for write: %w", name, err)
		}
		defer func() {
			if out != nil {
				_ = out.Discard()
			}
		}()
	}

	h := md4.New()
	var seedBytes [4]byte
	binary.LittleEndian.PutUint32(seedBytes[:], uint32(rt.Seed))
	h.Write(seedBytes[:])

	for {
		t, err := rt.Conn.ReadInt32()
		if err != nil {
			return 0, false, fmt.Errorf("receiver: reading token: %w", err)
		}
		if t == 0 {
			break
		}
		if t < 0 {
			return 0, false, fmt.Errorf("%w (t=%d, file %q)", ErrBlockReference, t, name)
		}
		data, err := rt.Conn.ReadBuf(int(t))
		if err != nil {
			return 0, false, fmt.Errorf("receiver: reading %d literal bytes: %w", t, err)
		}
		h.Write(data)
		literalBytes += int64(len(data))
		if out != nil {
			if _, err := out.Write(data); err != nil {
				return 0, false, fmt.Errorf("receiver: writing %q: %w", name, err)
			}
		}
	}

	local := h.Sum(nil)
	remote, err := rt.Conn.ReadBuf(len(local))
	if err != nil {
		return 0, false, fmt.Errorf("receiver: reading digest: %w", err)
	}
	mismatch = !bytes.Equal(local, remote)
	if mismatch {
		rt.Logger.Printf("receiver: checksum mismatch for %q: local %x, remote %x", name, local, remote)
	}

	if out != nil {
		if err := out.Finalize(); err != nil {
			return literalBytes, mismatch, fmt.Errorf("receiver: finalizing %q: %w", name, err)
		}
		out = nil // finalized; the deferred Discard becomes a no-op
	}

	return literalBytes, mismatch, nil
}

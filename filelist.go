package rsyn

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/nlsync/rsyn/internal/rsyncwire"
)

// File-list entry status-byte flags. Each bit lets an entry omit a field
// that is identical to the previous entry's, or identify a prefix of the
// previous entry's name it shares.
const (
	statusRepeatMode        = 0x02
	statusRepeatPartialName = 0x20
	statusLongName          = 0x40
	statusRepeatMtime       = 0x80
)

// Unix mode type-field masks. Kept as local constants rather than
// syscall.S_IFMT so the predicates below work identically regardless of
// GOOS: this client never creates files of these types locally, it only
// classifies what the server reports.
const (
	modeTypeMask  = 0170000
	modeTypeDir   = 0040000
	modeTypeChar  = 0020000
	modeTypeBlock = 0060000
	modeTypeFile  = 0100000
	modeTypeFifo  = 0010000
	modeTypeLink  = 0120000
	modeTypeSock  = 0140000
)

// FileEntry represents one filesystem object as reported by the server.
type FileEntry struct {
	// Name is the raw path as the server sent it: not necessarily UTF-8,
	// always non-empty, never absolute, never containing a ".." segment.
	Name []byte

	// FileLen is the entry's size in bytes.
	FileLen uint64

	// Mode is the 32-bit Unix mode word: type in the high nibble of the
	// 16-bit type field, permission bits in the low 12 bits.
	Mode int32

	// Mtime is seconds since the Unix epoch, as reported by the server.
	Mtime int32

	// LinkTarget is populated only for symlinks; reserved, never set by
	// this core (symlink materialization is a non-goal).
	LinkTarget []byte
}

// Basename returns the suffix of Name after its last '/', or Name itself if
// there is no '/'.
func (f FileEntry) Basename() []byte {
	if i := bytes.LastIndexByte(f.Name, '/'); i >= 0 {
		return f.Name[i+1:]
	}
	return f.Name
}

// Dirname returns the prefix of Name before its last '/', or empty if there
// is none.
func (f FileEntry) Dirname() []byte {
	if i := bytes.LastIndexByte(f.Name, '/'); i >= 0 {
		return f.Name[:i]
	}
	return nil
}

func (f FileEntry) modeType() int32 { return f.Mode & modeTypeMask }

func (f FileEntry) IsDir() bool         { return f.modeType() == modeTypeDir }
func (f FileEntry) IsFile() bool        { return f.modeType() == modeTypeFile }
func (f FileEntry) IsSymlink() bool     { return f.modeType() == modeTypeLink }
func (f FileEntry) IsCharDevice() bool  { return f.modeType() == modeTypeChar }
func (f FileEntry) IsBlockDevice() bool { return f.modeType() == modeTypeBlock }
func (f FileEntry) IsFifo() bool        { return f.modeType() == modeTypeFifo }
func (f FileEntry) IsSocket() bool      { return f.modeType() == modeTypeSock }

// FileList is an ordered, sorted, deduplicated sequence of FileEntry. Index
// positions are the shared handles the generator and receiver use to refer
// to files.
type FileList []FileEntry

// Len implements generator.FileIndexer and receiver.FileList.
func (l FileList) Len() int { return len(l) }

// IsRegularFile implements generator.FileIndexer.
func (l FileList) IsRegularFile(i int) bool { return l[i].IsFile() }

// Name implements receiver.FileList.
func (l FileList) Name(i int) string { return string(l[i].Name) }

// readFileList reads the server's length-delimited, per-entry-inheriting
// file list stream, then sorts and deduplicates it by byte-wise name order.
func readFileList(c *rsyncwire.Conn) (FileList, error) {
	var list FileList
	for {
		status, err := c.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("reading file list status: %w", err)
		}
		if status == 0 {
			break
		}

		var prev *FileEntry
		if len(list) > 0 {
			prev = &list[len(list)-1]
		}

		inheritedBytes := 0
		if status&statusRepeatPartialName != 0 {
			if prev == nil {
				return nil, fmt.Errorf("rsyn: file list inherits name with no previous entry")
			}
			b, err := c.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("reading inherited name length: %w", err)
			}
			inheritedBytes = int(b)
		}

		var nameLen int
		if status&statusLongName != 0 {
			n, err := c.ReadInt32()
			if err != nil {
				return nil, fmt.Errorf("reading long name length: %w", err)
			}
			nameLen = int(n)
		} else {
			b, err := c.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("reading name length: %w", err)
			}
			nameLen = int(b)
		}

		freshName, err := c.ReadBuf(nameLen)
		if err != nil {
			return nil, fmt.Errorf("reading name: %w", err)
		}

		name := freshName
		if inheritedBytes > 0 {
			if inheritedBytes > len(prev.Name) {
				return nil, fmt.Errorf("rsyn: inherited name prefix longer than previous entry")
			}
			name = append(append([]byte{}, prev.Name[:inheritedBytes]...), freshName...)
		}
		if err := validateName(name); err != nil {
			return nil, err
		}

		fileLen, err := c.ReadInt64()
		if err != nil {
			return nil, fmt.Errorf("reading file length: %w", err)
		}
		if fileLen < 0 {
			return nil, fmt.Errorf("%w: %d", ErrNegativeFileLength, fileLen)
		}

		var mtime int32
		if status&statusRepeatMtime != 0 {
			if prev == nil {
				return nil, fmt.Errorf("rsyn: file list inherits mtime with no previous entry")
			}
			mtime = prev.Mtime
		} else {
			mtime, err = c.ReadInt32()
			if err != nil {
				return nil, fmt.Errorf("reading mtime: %w", err)
			}
		}

		var mode int32
		if status&statusRepeatMode != 0 {
			if prev == nil {
				return nil, fmt.Errorf("rsyn: file list inherits mode with no previous entry")
			}
			mode = prev.Mode
		} else {
			mode, err = c.ReadInt32()
			if err != nil {
				return nil, fmt.Errorf("reading mode: %w", err)
			}
		}

		list = append(list, FileEntry{
			Name:    name,
			FileLen: uint64(fileLen),
			Mtime:   mtime,
			Mode:    mode,
		})
	}
	return sortAndDedupe(list), nil
}

// validateName rejects any name that could escape the destination tree
// once joined onto a local root: empty, absolute, or containing an empty
// or ".." path segment.
func validateName(name []byte) error {
	if len(name) == 0 {
		return fmt.Errorf("%w: empty name", ErrUnsafeName)
	}
	if name[0] == '/' {
		return fmt.Errorf("%w: absolute name %q", ErrUnsafeName, name)
	}
	for _, seg := range bytes.Split(name, []byte{'/'}) {
		if len(seg) == 0 {
			return fmt.Errorf("%w: empty path segment in %q", ErrUnsafeName, name)
		}
		if bytes.Equal(seg, []byte("..")) {
			return fmt.Errorf("%w: \"..\" path segment in %q", ErrUnsafeName, name)
		}
	}
	return nil
}

// sortAndDedupe sorts by byte-wise name comparison and drops adjacent
// duplicate names, matching the shared index space the rest of the
// protocol relies on.
func sortAndDedupe(list FileList) FileList {
	sort.SliceStable(list, func(i, j int) bool {
		return bytes.Compare(list[i].Name, list[j].Name) < 0
	})
	out := list[:0]
	for i, f := range list {
		if i > 0 && bytes.Equal(f.Name, out[len(out)-1].Name) {
			continue
		}
		out = append(out, f)
	}
	return out
}

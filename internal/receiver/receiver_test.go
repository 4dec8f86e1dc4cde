package receiver

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mmcloughlin/md4"

	"github.com/nlsync/rsyn/internal/localtree"
	"github.com/nlsync/rsyn/internal/rlog"
	"github.com/nlsync/rsyn/internal/rsyncwire"
)

type fakeList []string

func (f fakeList) Len() int          { return len(f) }
func (f fakeList) Name(i int) string { return f[i] }

const seed = int32(0x12345678)

// writeFileFrame appends one <index><emptySumHead><literal chunks><0><digest>
// frame in the shape the server sends, computing the seeded MD4 digest over
// the given contents.
func writeFileFrame(t *testing.T, c *rsyncwire.Conn, index int32, contents []byte) {
	t.Helper()
	if err := c.WriteInt32(index); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if err := c.WriteInt32(0); err != nil {
			t.Fatal(err)
		}
	}
	if len(contents) > 0 {
		if err := c.WriteInt32(int32(len(contents))); err != nil {
			t.Fatal(err)
		}
		if _, err := c.Writer.Write(contents); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.WriteInt32(0); err != nil { // end of token stream
		t.Fatal(err)
	}

	h := md4.New()
	var seedBytes [4]byte
	binary.LittleEndian.PutUint32(seedBytes[:], uint32(seed))
	h.Write(seedBytes[:])
	h.Write(contents)
	if _, err := c.Writer.Write(h.Sum(nil)); err != nil {
		t.Fatal(err)
	}
}

func TestRunReceivesFile(t *testing.T) {
	dir := t.TempDir()
	tree := localtree.New(dir)

	var buf bytes.Buffer
	wc := &rsyncwire.Conn{Writer: &buf}
	writeFileFrame(t, wc, 0, []byte("hello, world"))
	if err := wc.WriteInt32(-1); err != nil {
		t.Fatal(err)
	}

	rt := &Transfer{
		Conn:   &rsyncwire.Conn{Reader: &buf},
		Seed:   seed,
		Logger: rlog.Discard,
		Tree:   &tree,
	}
	res, err := rt.Run(fakeList{"hello"})
	if err != nil {
		t.Fatal(err)
	}
	if res.FilesReceived != 1 {
		t.Errorf("FilesReceived = %d, want 1", res.FilesReceived)
	}
	if res.WholeFileSumMismatchCount != 0 {
		t.Errorf("WholeFileSumMismatchCount = %d, want 0", res.WholeFileSumMismatchCount)
	}
	if res.LiteralBytesReceived != int64(len("hello, world")) {
		t.Errorf("LiteralBytesReceived = %d, want %d", res.LiteralBytesReceived, len("hello, world"))
	}

	got, err := os.ReadFile(filepath.Join(dir, "hello"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello, world" {
		t.Errorf("file contents = %q, want %q", got, "hello, world")
	}
}

func TestRunChecksumMismatchDoesNotAbort(t *testing.T) {
	dir := t.TempDir()
	tree := localtree.New(dir)

	var buf bytes.Buffer
	wc := &rsyncwire.Conn{Writer: &buf}
	// Write the frame by hand with a corrupted digest.
	if err := wc.WriteInt32(0); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if err := wc.WriteInt32(0); err != nil {
			t.Fatal(err)
		}
	}
	contents := []byte("data")
	if err := wc.WriteInt32(int32(len(contents))); err != nil {
		t.Fatal(err)
	}
	if _, err := wc.Writer.Write(contents); err != nil {
		t.Fatal(err)
	}
	if err := wc.WriteInt32(0); err != nil {
		t.Fatal(err)
	}
	if _, err := wc.Writer.Write(make([]byte, 16)); err != nil { // all-zero bogus digest
		t.Fatal(err)
	}
	if err := wc.WriteInt32(-1); err != nil {
		t.Fatal(err)
	}

	rt := &Transfer{
		Conn:   &rsyncwire.Conn{Reader: &buf},
		Seed:   seed,
		Logger: rlog.Discard,
		Tree:   &tree,
	}
	res, err := rt.Run(fakeList{"corrupt"})
	if err != nil {
		t.Fatal(err)
	}
	if res.WholeFileSumMismatchCount != 1 {
		t.Errorf("WholeFileSumMismatchCount = %d, want 1", res.WholeFileSumMismatchCount)
	}
	if res.FilesReceived != 1 {
		t.Errorf("FilesReceived = %d, want 1", res.FilesReceived)
	}
	// the file is still written despite the mismatch
	if _, err := os.Stat(filepath.Join(dir, "corrupt")); err != nil {
		t.Errorf("expected file to be written despite checksum mismatch: %v", err)
	}
}

func TestRunInvalidIndexIsCountedNotFatal(t *testing.T) {
	dir := t.TempDir()
	tree := localtree.New(dir)

	var buf bytes.Buffer
	wc := &rsyncwire.Conn{Writer: &buf}
	writeFileFrame(t, wc, 5, []byte("orphan")) // index 5 is out of range for a 1-entry list
	if err := wc.WriteInt32(-1); err != nil {
		t.Fatal(err)
	}

	rt := &Transfer{
		Conn:   &rsyncwire.Conn{Reader: &buf},
		Seed:   seed,
		Logger: rlog.Discard,
		Tree:   &tree,
	}
	res, err := rt.Run(fakeList{"only-entry"})
	if err != nil {
		t.Fatal(err)
	}
	if res.InvalidFileIndexCount != 1 {
		t.Errorf("InvalidFileIndexCount = %d, want 1", res.InvalidFileIndexCount)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no files written for an invalid index, got %v", entries)
	}
}

func TestRunBlockReferenceIsFatal(t *testing.T) {
	var buf bytes.Buffer
	wc := &rsyncwire.Conn{Writer: &buf}
	if err := wc.WriteInt32(0); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if err := wc.WriteInt32(0); err != nil {
			t.Fatal(err)
		}
	}
	if err := wc.WriteInt32(-5); err != nil { // block-reference token, unsupported
		t.Fatal(err)
	}

	rt := &Transfer{
		Conn:   &rsyncwire.Conn{Reader: &buf},
		Seed:   seed,
		Logger: rlog.Discard,
	}
	_, err := rt.Run(fakeList{"whatever"})
	if !errors.Is(err, ErrBlockReference) {
		t.Fatalf("expected ErrBlockReference, got %v", err)
	}
}

package rsyn

import (
	"bytes"
	"testing"

	"github.com/nlsync/rsyn/internal/rsyncwire"
)

// appendEntry encodes one non-inheriting file-list entry with a fresh name,
// mtime and mode (status byte is 0x01, plus statusLongName when needed).
func appendEntry(buf *bytes.Buffer, name string, fileLen int64, mtime, mode int32) {
	status := byte(0x01) // any non-zero, non-flag bit keeps the entry "fresh"
	if len(name) > 255 {
		status |= statusLongName
	}
	buf.WriteByte(status)
	if status&statusLongName != 0 {
		wc := &rsyncwire.Conn{Writer: buf}
		wc.WriteInt32(int32(len(name)))
	} else {
		buf.WriteByte(byte(len(name)))
	}
	buf.WriteString(name)
	wc := &rsyncwire.Conn{Writer: buf}
	wc.WriteInt64(fileLen)
	wc.WriteInt32(mtime)
	wc.WriteInt32(mode)
}

func TestReadFileListSortedAndDeduped(t *testing.T) {
	var buf bytes.Buffer
	appendEntry(&buf, "b", 1, 100, 0100644)
	appendEntry(&buf, "a", 2, 100, 0100644)
	appendEntry(&buf, "a", 3, 200, 0100644) // duplicate name, later entry dropped
	buf.WriteByte(0)                        // terminator

	c := &rsyncwire.Conn{Reader: &buf}
	list, err := readFileList(c)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 entries after dedup, got %d: %+v", len(list), list)
	}
	if string(list[0].Name) != "a" || string(list[1].Name) != "b" {
		t.Errorf("expected sorted [a b], got [%s %s]", list[0].Name, list[1].Name)
	}
	// First occurrence wins: "a" keeps file_len=2, not the duplicate's 3.
	if list[0].FileLen != 2 {
		t.Errorf("expected first occurrence's file_len=2 to win, got %d", list[0].FileLen)
	}
}

func TestReadFileListNameInheritance(t *testing.T) {
	var buf bytes.Buffer
	appendEntry(&buf, "subdir/galah", 0, 100, 0100644)

	// Second entry inherits "subdir/" (7 bytes) from the previous name and
	// appends "other".
	status := byte(statusRepeatPartialName | statusRepeatMode | statusRepeatMtime)
	buf.WriteByte(status)
	buf.WriteByte(7) // inherited prefix length
	buf.WriteByte(byte(len("other")))
	buf.WriteString("other")
	wc := &rsyncwire.Conn{Writer: &buf}
	wc.WriteInt64(5)
	buf.WriteByte(0) // terminator

	c := &rsyncwire.Conn{Reader: &buf}
	list, err := readFileList(c)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(list))
	}
	names := []string{string(list[0].Name), string(list[1].Name)}
	if names[0] != "subdir/galah" && names[0] != "subdir/other" {
		t.Fatalf("unexpected names %v", names)
	}
	found := map[string]bool{names[0]: true, names[1]: true}
	if !found["subdir/galah"] || !found["subdir/other"] {
		t.Errorf("expected subdir/galah and subdir/other, got %v", names)
	}
}

func TestReadFileListRejectsNegativeLength(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(0x01)
	buf.WriteByte(1)
	buf.WriteString("a")
	wc := &rsyncwire.Conn{Writer: &buf}
	wc.WriteInt64(-1)

	c := &rsyncwire.Conn{Reader: &buf}
	if _, err := readFileList(c); err == nil {
		t.Errorf("expected error for negative file length")
	}
}

func TestValidateName(t *testing.T) {
	bad := []string{"", "/abs", "a/../b", "a//b", ".."}
	for _, n := range bad {
		if err := validateName([]byte(n)); err == nil {
			t.Errorf("expected %q to be rejected", n)
		}
	}
	good := []string{"a", "a/b", "a/b/c", "..hidden", "a..b"}
	for _, n := range good {
		if err := validateName([]byte(n)); err != nil {
			t.Errorf("expected %q to be accepted, got %v", n, err)
		}
	}
}

func TestModeTypePredicates(t *testing.T) {
	tests := []struct {
		mode int32
		want string
	}{
		{0040755, "dir"},
		{0100644, "file"},
		{0120777, "symlink"},
		{0020666, "char"},
		{0060660, "block"},
		{0010644, "fifo"},
		{0140755, "socket"},
	}
	for _, tc := range tests {
		f := FileEntry{Mode: tc.mode}
		got := map[string]bool{
			"dir": f.IsDir(), "file": f.IsFile(), "symlink": f.IsSymlink(),
			"char": f.IsCharDevice(), "block": f.IsBlockDevice(),
			"fifo": f.IsFifo(), "socket": f.IsSocket(),
		}
		for kind, v := range got {
			if kind == tc.want && !v {
				t.Errorf("mode %o: expected %s to be true", tc.mode, kind)
			}
			if kind != tc.want && v {
				t.Errorf("mode %o: expected %s to be false", tc.mode, kind)
			}
		}
	}
}

func TestBasenameDirname(t *testing.T) {
	f := FileEntry{Name: []byte("a/b/c")}
	if string(f.Basename()) != "c" {
		t.Errorf("basename = %q", f.Basename())
	}
	if string(f.Dirname()) != "a/b" {
		t.Errorf("dirname = %q", f.Dirname())
	}
	f2 := FileEntry{Name: []byte("top")}
	if string(f2.Basename()) != "top" {
		t.Errorf("basename = %q", f2.Basename())
	}
	if f2.Dirname() != nil {
		t.Errorf("dirname = %q, want nil", f2.Dirname())
	}
}

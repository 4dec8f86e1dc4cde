// Package rsyncwire implements the low-level byte and varint codecs used by
// the rsync wire protocol: fixed-width integers, byte strings, and counting
// wrappers for the underlying transport.
package rsyncwire

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// CountingReader wraps an io.Reader and tracks the number of bytes read
// through it, for diagnostics and statistics reconciliation.
type CountingReader struct {
	R         io.Reader
	BytesRead int64
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	c.BytesRead += int64(n)
	return n, err
}

// CountingWriter wraps an io.Writer and tracks the number of bytes written
// through it.
type CountingWriter struct {
	W            io.Writer
	BytesWritten int64
}

func (c *CountingWriter) Write(p []byte) (int, error) {
	n, err := c.W.Write(p)
	c.BytesWritten += int64(n)
	return n, err
}

// Conn pairs a reader and writer half of an rsync connection and provides
// the fixed-width and variable-width integer codec on top of them. Reader
// is swapped out once for a demultiplexing reader after the handshake;
// Writer is never wrapped by the client, since the client never
// multiplexes its own output.
type Conn struct {
	Reader io.Reader
	Writer io.Writer
}

// ReadByte reads a single byte.
func (c *Conn) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(c.Reader, b[:]); err != nil {
		return 0, fmt.Errorf("reading byte: %w", err)
	}
	return b[0], nil
}

// WriteByte writes a single byte.
func (c *Conn) WriteByte(b byte) error {
	_, err := c.Writer.Write([]byte{b})
	return err
}

// ReadBuf reads exactly n bytes.
func (c *Conn) ReadBuf(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.Reader, buf); err != nil {
		return nil, fmt.Errorf("reading %d-byte string: %w", n, err)
	}
	return buf, nil
}

// ReadInt32 reads a little-endian 4-byte signed integer.
func (c *Conn) ReadInt32() (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(c.Reader, buf[:]); err != nil {
		return 0, fmt.Errorf("reading int32: %w", err)
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

// WriteInt32 writes a little-endian 4-byte signed integer.
func (c *Conn) WriteInt32(v int32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	_, err := c.Writer.Write(buf[:])
	return err
}

// ReadInt64 reads the rsync variable-width 64-bit integer encoding: a
// leading int32, extended to a full int64 only when that leading value is
// exactly -1.
func (c *Conn) ReadInt64() (int64, error) {
	v, err := c.ReadInt32()
	if err != nil {
		return 0, err
	}
	if v != -1 {
		return int64(v), nil
	}
	var buf [8]byte
	if _, err := io.ReadFull(c.Reader, buf[:]); err != nil {
		return 0, fmt.Errorf("reading int64 extension: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}

// WriteInt64 writes the rsync variable-width 64-bit integer encoding: the
// short (int32) form whenever the value fits and isn't -1, else -1
// followed by the full 8-byte value.
func (c *Conn) WriteInt64(v int64) error {
	if v != -1 && v >= math.MinInt32 && v <= math.MaxInt32 {
		return c.WriteInt32(int32(v))
	}
	if err := c.WriteInt32(-1); err != nil {
		return err
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	_, err := c.Writer.Write(buf[:])
	return err
}

// CheckEOF succeeds only if the next read on the reader yields io.EOF; any
// other outcome (more bytes, or a different error) is itself an error. The
// session driver uses this to confirm the server closed its end cleanly
// once the protocol exchange is done.
func CheckEOF(r io.Reader) error {
	var b [1]byte
	n, err := r.Read(b[:])
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("expected clean EOF, got error: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("expected clean EOF, got unexpected byte %#x", b[0])
	}
	return fmt.Errorf("expected clean EOF, got an empty read")
}

// ReadSumHeadWords reads the four-int32 block-sum descriptor that precedes
// every transferred file's token stream, without attributing meaning to
// the values: callers that care what each word means wrap this in their
// own named type.
func ReadSumHeadWords(c *Conn) ([4]int32, error) {
	var words [4]int32
	for i := range words {
		v, err := c.ReadInt32()
		if err != nil {
			return words, fmt.Errorf("reading sum head word %d: %w", i, err)
		}
		words[i] = v
	}
	return words, nil
}

// WriteSumHeadWords writes the four-int32 block-sum descriptor words in
// wire order.
func WriteSumHeadWords(c *Conn, words [4]int32) error {
	for _, v := range words {
		if err := c.WriteInt32(v); err != nil {
			return err
		}
	}
	return nil
}

package rsyncwire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MultiplexWriter is the inverse of MultiplexReader: it wraps an io.Writer
// and frames every write as a tag-7 data packet. The client never uses this
// (it writes an unframed stream to the server), but it's kept alongside
// MultiplexReader as the natural counterpart, for a future sender role.
type MultiplexWriter struct {
	Writer io.Writer
}

func (m *MultiplexWriter) Write(p []byte) (int, error) {
	if len(p) > 0xffffff {
		return 0, fmt.Errorf("payload of %d bytes too large for one envelope", len(p))
	}
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(TagData)<<24|uint32(len(p)))
	if _, err := m.Writer.Write(hdr[:]); err != nil {
		return 0, fmt.Errorf("writing frame header: %w", err)
	}
	return m.Writer.Write(p)
}

// Package generator implements the client-side phase-1 writer half of a
// download: it requests every regular file in the file list, declaring an
// empty basis for each, then terminates the phase.
package generator

import "github.com/nlsync/rsyn/internal/rsyncwire"

// FileIndexer is the minimal view of a file list the generator needs: how
// many entries there are, and whether a given entry is a regular file.
type FileIndexer interface {
	Len() int
	IsRegularFile(index int) bool
}

// Run writes one <index, empty SumHead> request per regular file in list
// order, then the phase-1 terminator (-1). It never reads from the
// connection: the generator only ever blocks on the output pipe. The
// SumHead is always the all-zero value, since this client never holds a
// local basis file to diff against.
func Run(c *rsyncwire.Conn, list FileIndexer) error {
	for i := 0; i < list.Len(); i++ {
		if !list.IsRegularFile(i) {
			continue
		}
		if err := c.WriteInt32(int32(i)); err != nil {
			return err
		}
		if err := rsyncwire.WriteSumHeadWords(c, [4]int32{}); err != nil {
			return err
		}
	}
	return c.WriteInt32(-1)
}

package rsyn

import "github.com/nlsync/rsyn/internal/rsyncwire"

// SumHead is the four-integer block-sum descriptor that precedes every
// transferred file's token stream. An all-zero SumHead declares that the
// receiver holds no basis data, which is all this client ever sends: it
// never attempts a delta transfer against a local file.
type SumHead struct {
	Count           int32
	BlockLength     int32
	Checksum2Length int32
	Remainder       int32
}

// IsEmpty reports whether all four fields are zero.
func (s SumHead) IsEmpty() bool {
	return s.Count == 0 && s.BlockLength == 0 && s.Checksum2Length == 0 && s.Remainder == 0
}

// ReadSumHead reads a SumHead from the wire.
func ReadSumHead(c *rsyncwire.Conn) (SumHead, error) {
	words, err := rsyncwire.ReadSumHeadWords(c)
	if err != nil {
		return SumHead{}, err
	}
	return SumHead{
		Count:           words[0],
		BlockLength:     words[1],
		Checksum2Length: words[2],
		Remainder:       words[3],
	}, nil
}

// WriteSumHead writes a SumHead to the wire.
func WriteSumHead(c *rsyncwire.Conn, sh SumHead) error {
	return rsyncwire.WriteSumHeadWords(c, [4]int32{
		sh.Count, sh.BlockLength, sh.Checksum2Length, sh.Remainder,
	})
}

package rsyn

import "github.com/nlsync/rsyn/internal/rsyncwire"

// ServerStatistics is the end-of-session counter block the server sends
// after the final phase.
type ServerStatistics struct {
	TotalBytesRead  int64
	TotalBytesWritten int64
	TotalFileSize   int64

	// FlistBuildTime and FlistXferTime are only populated (non-nil) when
	// the agreed protocol is >= 29.
	FlistBuildTime *int64
	FlistXferTime  *int64
}

// readServerStatistics reads the three always-present int64s, plus two more
// (flist build and transfer time) when the agreed protocol is new enough
// to carry them.
func readServerStatistics(c *rsyncwire.Conn, agreedProtocol int) (ServerStatistics, error) {
	var s ServerStatistics
	var err error
	if s.TotalBytesRead, err = c.ReadInt64(); err != nil {
		return ServerStatistics{}, err
	}
	if s.TotalBytesWritten, err = c.ReadInt64(); err != nil {
		return ServerStatistics{}, err
	}
	if s.TotalFileSize, err = c.ReadInt64(); err != nil {
		return ServerStatistics{}, err
	}
	if agreedProtocol >= minAgreedProtocolForExtendedStats {
		buildTime, err := c.ReadInt64()
		if err != nil {
			return ServerStatistics{}, err
		}
		xferTime, err := c.ReadInt64()
		if err != nil {
			return ServerStatistics{}, err
		}
		s.FlistBuildTime = &buildTime
		s.FlistXferTime = &xferTime
	}
	return s, nil
}

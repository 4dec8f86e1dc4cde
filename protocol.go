// Package rsyn implements a wire-compatible client for the legacy rsync
// network protocol, version 27. It can list a remote directory or download
// regular files from an unmodified rsync server reached as a local
// subprocess or tunneled through a remote-shell program.
package rsyn

import "errors"

// ProtocolVersion is the protocol version this client speaks. The agreed
// protocol version for a connection is min(ProtocolVersion, serverVersion);
// rsyn refuses to talk to a server that negotiates below this.
const ProtocolVersion = 27

// minAgreedProtocolForSoftErrorCount is the protocol version at and above
// which the server no longer sends a separate soft-error count after the
// file list: newer servers fold it into the file-list stream itself.
const minAgreedProtocolForSoftErrorCount = 30

// minAgreedProtocolForExtendedStats is the protocol version at and above
// which ServerStatistics carries flist build/transfer timing.
const minAgreedProtocolForExtendedStats = 29

var (
	// ErrServerVersionTooOld is returned by List and Download when the server reports
	// a protocol version below ProtocolVersion.
	ErrServerVersionTooOld = errors.New("rsyn: server protocol version too old")

	// ErrDaemonUnsupported is returned when an Address names the rsync
	// daemon-wrapper protocol (rsync:// or host::module). This client only
	// ever spawns a local or SSH-tunneled rsync subprocess; it never speaks
	// the daemon listener's own handshake.
	ErrDaemonUnsupported = errors.New("rsyn: rsync daemon protocol is not implemented")

	// ErrUnsafeName is returned by the file-list codec when a received
	// entry's name is absolute, empty, or contains a ".." or empty
	// path segment: such a name could escape the destination tree once
	// joined onto a local root.
	ErrUnsafeName = errors.New("rsyn: unsafe file name received from server")

	// ErrNegativeFileLength is returned when a file-list entry reports a
	// negative size.
	ErrNegativeFileLength = errors.New("rsyn: negative file length received from server")
)

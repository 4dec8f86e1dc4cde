package rsyn

import "os"

// Summary is the per-operation rollup returned alongside a file list or
// download result.
type Summary struct {
	// ServerFlistIOErrorCount is the soft-error count the server reports
	// while building its file list, when the agreed protocol is below 30.
	ServerFlistIOErrorCount int32

	ServerStats ServerStatistics

	// ChildExitStatus is the transport subprocess's exit status, once
	// reaped. Every List and Download spawns and reaps its own child, so a
	// returned Summary carries the reaped state; a clean exit is a
	// ProcessState with exit code 0, not nil.
	ChildExitStatus *os.ProcessState

	InvalidFileIndexCount     int
	WholeFileSumMismatchCount int
	LiteralBytesReceived      int64
	FilesReceived             int
}

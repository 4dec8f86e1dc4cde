package rsyn

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/nlsync/rsyn/internal/generator"
	"github.com/nlsync/rsyn/internal/localtree"
	"github.com/nlsync/rsyn/internal/receiver"
	"github.com/nlsync/rsyn/internal/rsyncwire"
	"github.com/nlsync/rsyn/internal/transport"
)

// Client drives one rsync session against a fixed Address. Each call to
// List or Download spawns its own subprocess and runs one full protocol
// session against it; the protocol is not designed to be reused across
// operations on one connection.
type Client struct {
	addr Address
	opts Options
}

// NewClient builds a Client for addr, applying any options over the
// defaults.
func NewClient(addr Address, opts ...ClientOption) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}
	addr.Options = o
	return &Client{addr: addr, opts: o}
}

// session holds the state threaded through one connection's lifetime.
type session struct {
	proc           *transport.Process
	conn           *rsyncwire.Conn
	demux          *rsyncwire.MultiplexReader
	agreedProtocol int
	checksumSeed   int32
}

// connect launches the subprocess and runs the version/seed handshake. The
// returned session's conn.Reader is already wrapped by the demultiplexer:
// the handshake itself happens on the raw, unmultiplexed stream, since the
// server doesn't start framing its output until after it has sent its
// version and checksum seed.
func (c *Client) connect() (*session, error) {
	if c.addr.IsDaemon() {
		return nil, ErrDaemonUnsupported
	}
	proc, err := transport.Launch(c.addr.buildArgs(), os.Stderr)
	if err != nil {
		return nil, err
	}

	raw := &rsyncwire.Conn{Reader: proc.Reader, Writer: proc.Writer}
	if err := raw.WriteInt32(ProtocolVersion); err != nil {
		proc.Wait()
		return nil, fmt.Errorf("rsyn: writing protocol version: %w", err)
	}
	serverVersion, err := raw.ReadInt32()
	if err != nil {
		proc.Wait()
		return nil, fmt.Errorf("rsyn: reading server protocol version: %w", err)
	}
	if serverVersion < ProtocolVersion {
		proc.Wait()
		return nil, fmt.Errorf("%w: server speaks %d, need >= %d", ErrServerVersionTooOld, serverVersion, ProtocolVersion)
	}
	agreed := ProtocolVersion
	if int(serverVersion) < agreed {
		agreed = int(serverVersion)
	}

	seed, err := raw.ReadInt32()
	if err != nil {
		proc.Wait()
		return nil, fmt.Errorf("rsyn: reading checksum seed: %w", err)
	}

	demux := &rsyncwire.MultiplexReader{Reader: proc.Reader, Logger: c.opts.Logger}
	conn := &rsyncwire.Conn{Reader: demux, Writer: proc.Writer}

	return &session{
		proc:           proc,
		conn:           conn,
		demux:          demux,
		agreedProtocol: agreed,
		checksumSeed:   seed,
	}, nil
}

// exchangeFileList performs the steps common to both operations: empty
// exclusion list, file-list receipt, and the protocol-version-gated
// soft-error count. Servers at protocol 30 and above fold the soft-error
// count into the file-list stream itself instead of sending it separately.
func (s *session) exchangeFileList() (FileList, int32, error) {
	if err := s.conn.WriteInt32(0); err != nil {
		return nil, 0, fmt.Errorf("rsyn: writing exclusion-list length: %w", err)
	}
	list, err := readFileList(s.conn)
	if err != nil {
		return nil, 0, err
	}
	var ioErrors int32
	if s.agreedProtocol < minAgreedProtocolForSoftErrorCount {
		ioErrors, err = s.conn.ReadInt32()
		if err != nil {
			return nil, 0, fmt.Errorf("rsyn: reading soft-error count: %w", err)
		}
	}
	return list, ioErrors, nil
}

// phaseMarker sends -1 and reads the server's -1 echo, unless skipEcho is
// set. The echo is skipped only when the file list came back empty: the
// server never enters the per-file exchange loop in that case, so there is
// no phase to close out with a round-trip.
func (s *session) phaseMarker(skipEcho bool) error {
	if err := s.conn.WriteInt32(-1); err != nil {
		return fmt.Errorf("rsyn: writing phase marker: %w", err)
	}
	if skipEcho {
		return nil
	}
	v, err := s.conn.ReadInt32()
	if err != nil {
		return fmt.Errorf("rsyn: reading phase marker echo: %w", err)
	}
	if v != -1 {
		return fmt.Errorf("rsyn: expected phase marker echo -1, got %d", v)
	}
	return nil
}

// finish sends end-of-sequence, reads server statistics, confirms a clean
// EOF, and reaps the child.
func (s *session) finish() (ServerStatistics, *os.ProcessState, error) {
	if err := s.conn.WriteInt32(-1); err != nil {
		return ServerStatistics{}, nil, fmt.Errorf("rsyn: writing end-of-sequence marker: %w", err)
	}
	stats, err := readServerStatistics(s.conn, s.agreedProtocol)
	if err != nil {
		return ServerStatistics{}, nil, err
	}
	if err := rsyncwire.CheckEOF(s.demux); err != nil {
		state, _ := s.proc.Wait()
		return stats, state, err
	}
	state, err := s.proc.Wait()
	return stats, state, err
}

// List retrieves the remote file list without transferring any data.
func (c *Client) List(ctx context.Context) (FileList, Summary, error) {
	s, err := c.connect()
	if err != nil {
		return nil, Summary{}, err
	}

	list, ioErrors, err := s.exchangeFileList()
	if err != nil {
		return nil, Summary{}, err
	}

	summary := Summary{ServerFlistIOErrorCount: ioErrors}
	if len(list) == 0 {
		state, _ := s.proc.Wait()
		summary.ChildExitStatus = state
		return list, summary, nil
	}

	if err := s.phaseMarker(false); err != nil { // phase 1 (no transfer requested)
		return nil, Summary{}, err
	}
	if err := s.phaseMarker(false); err != nil { // phase 2
		return nil, Summary{}, err
	}

	stats, state, err := s.finish()
	if err != nil {
		return nil, Summary{}, err
	}
	summary.ServerStats = stats
	summary.ChildExitStatus = state
	return list, summary, nil
}

// Download retrieves every regular file in the remote file list into
// destRoot, preserving relative paths.
func (c *Client) Download(ctx context.Context, destRoot string) (FileList, Summary, error) {
	s, err := c.connect()
	if err != nil {
		return nil, Summary{}, err
	}

	list, ioErrors, err := s.exchangeFileList()
	if err != nil {
		return nil, Summary{}, err
	}

	summary := Summary{ServerFlistIOErrorCount: ioErrors}
	if len(list) == 0 {
		state, _ := s.proc.Wait()
		summary.ChildExitStatus = state
		return list, summary, nil
	}

	if c.opts.ListOnly {
		if err := s.phaseMarker(false); err != nil {
			return nil, Summary{}, err
		}
	} else {
		tree := localtree.New(destRoot)
		for _, f := range list {
			if f.IsDir() {
				if err := tree.Mkdir(string(f.Name)); err != nil {
					return nil, Summary{}, fmt.Errorf("rsyn: creating directory %q: %w", f.Name, err)
				}
			}
		}

		recv := &receiver.Transfer{Conn: s.conn, Seed: s.checksumSeed, Logger: c.opts.Logger, Tree: &tree}

		eg, egCtx := errgroup.WithContext(ctx)
		var recvResult receiver.Result
		eg.Go(func() error {
			return generator.Run(s.conn, list)
		})
		eg.Go(func() error {
			// Run the receiver on its own goroutine so a generator failure
			// (reported through egCtx) doesn't leave this goroutine blocked
			// reading from a connection nobody is writing to anymore.
			type result struct {
				res receiver.Result
				err error
			}
			done := make(chan result, 1)
			go func() {
				res, err := recv.Run(list)
				done <- result{res, err}
			}()
			select {
			case <-egCtx.Done():
				return egCtx.Err()
			case r := <-done:
				recvResult = r.res
				return r.err
			}
		})
		if err := eg.Wait(); err != nil {
			return nil, Summary{}, err
		}

		summary.InvalidFileIndexCount = recvResult.InvalidFileIndexCount
		summary.WholeFileSumMismatchCount = recvResult.WholeFileSumMismatchCount
		summary.LiteralBytesReceived = recvResult.LiteralBytesReceived
		summary.FilesReceived = recvResult.FilesReceived
	}

	if err := s.phaseMarker(false); err != nil { // phase 2
		return nil, Summary{}, err
	}

	stats, state, err := s.finish()
	if err != nil {
		return nil, Summary{}, err
	}
	summary.ServerStats = stats
	summary.ChildExitStatus = state
	return list, summary, nil
}

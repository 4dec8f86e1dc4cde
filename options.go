package rsyn

import "github.com/nlsync/rsyn/internal/rlog"

// Options controls both how the client behaves locally and which flags get
// passed to the remote rsync process.
type Options struct {
	// Recursive descends into directories on the server side (-r).
	Recursive bool

	// ListOnly requests a directory listing and suppresses phase-1
	// transfer even if later code tries to run a download (--list-only).
	ListOnly bool

	// Verbose is the verbosity count passed to the server as -v...v.
	Verbose int

	// RsyncCommand overrides the default ["rsync"] program name/args used
	// to start the remote (or local) rsync process.
	RsyncCommand []string

	// SSHCommand overrides the default ["ssh"] program name/args used to
	// start the remote-shell transport.
	SSHCommand []string

	// Logger receives diagnostics and the server's out-of-band message
	// frames. Defaults to rlog.Discard.
	Logger rlog.Logger
}

// ClientOption configures a Client at construction time, following the
// functional-options shape rsyncd.Option uses for its server counterpart.
type ClientOption interface {
	apply(*Options)
}

type clientOptionFunc func(*Options)

func (f clientOptionFunc) apply(o *Options) { f(o) }

// WithRecursive sets Options.Recursive.
func WithRecursive(recursive bool) ClientOption {
	return clientOptionFunc(func(o *Options) { o.Recursive = recursive })
}

// WithListOnly sets Options.ListOnly.
func WithListOnly(listOnly bool) ClientOption {
	return clientOptionFunc(func(o *Options) { o.ListOnly = listOnly })
}

// WithVerbose sets Options.Verbose.
func WithVerbose(verbose int) ClientOption {
	return clientOptionFunc(func(o *Options) { o.Verbose = verbose })
}

// WithRsyncCommand overrides the remote rsync program name/args.
func WithRsyncCommand(argv []string) ClientOption {
	return clientOptionFunc(func(o *Options) { o.RsyncCommand = argv })
}

// WithSSHCommand overrides the ssh program name/args.
func WithSSHCommand(argv []string) ClientOption {
	return clientOptionFunc(func(o *Options) { o.SSHCommand = argv })
}

// WithLogger sets the diagnostics logger.
func WithLogger(logger rlog.Logger) ClientOption {
	return clientOptionFunc(func(o *Options) { o.Logger = logger })
}

func defaultOptions() Options {
	return Options{Logger: rlog.Discard}
}

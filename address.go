package rsyn

import (
	"fmt"
	"regexp"
)

const (
	defaultSSHCommand   = "ssh"
	defaultRsyncCommand = "rsync"
)

// Address describes where an rsync server lives and how to reach it:
// as a local subprocess, over an SSH-tunneled remote shell, or (parsed but
// not connectable) via the rsync daemon-wrapper protocol.
type Address struct {
	// Path is the root path to pass to the server.
	Path string

	ssh    *sshTarget
	daemon *daemonTarget

	Options Options
}

type sshTarget struct {
	user string // empty if unset
	host string
}

type daemonTarget struct {
	user string
	host string
	port int // 0 if unset
}

// Local builds an Address that, when connected, starts an
// `rsync --server --sender` subprocess on the local machine. Primarily
// useful for testing.
func Local(path string) Address {
	return Address{Path: path}
}

// SSH builds the address of an rsync server reached across SSH. If user is
// empty, SSH's own default username applies.
func SSH(user, host, path string) Address {
	return Address{Path: path, ssh: &sshTarget{user: user, host: host}}
}

// IsDaemon reports whether this address names the rsync daemon-wrapper
// protocol. This client only ever spawns a local or SSH-tunneled rsync
// subprocess; it cannot connect to a daemon listener.
func (a Address) IsDaemon() bool {
	return a.daemon != nil
}

var (
	sftpStyleRE = regexp.MustCompile(`^(?:([^@:]+)@)?([^:@]+):(:)?(.*)$`)
	urlStyleRE  = regexp.MustCompile(`^rsync://(?:([^@:]+)@)?([^:/]+)(?::(\d+))?/(.*)$`)
)

// ParseAddress parses the URL (rsync://user@host:port/path) and SFTP-like
// (user@host:path, host::module) forms rsync(1) accepts, plus plain local
// paths. The double-colon form (host::module) is a daemon address like the
// URL form; the single-colon form (host:path) is an SSH-reachable path.
func ParseAddress(s string) (Address, error) {
	if m := urlStyleRE.FindStringSubmatch(s); m != nil {
		d := &daemonTarget{user: m[1], host: m[2]}
		if m[3] != "" {
			if _, err := fmt.Sscanf(m[3], "%d", &d.port); err != nil {
				return Address{}, fmt.Errorf("rsyn: invalid port %q: %w", m[3], err)
			}
		}
		return Address{Path: m[4], daemon: d}, nil
	}
	if m := sftpStyleRE.FindStringSubmatch(s); m != nil {
		user, host, doubleColon, path := m[1], m[2], m[3], m[4]
		if doubleColon != "" {
			return Address{Path: path, daemon: &daemonTarget{user: user, host: host}}, nil
		}
		return Address{Path: path, ssh: &sshTarget{user: user, host: host}}, nil
	}
	// Assume it's just a path.
	return Address{Path: s}, nil
}

// buildArgs builds the argv to start a connection subprocess, including the
// command name itself. The server always runs as --server --sender, since
// this client only ever pulls.
func (a Address) buildArgs() []string {
	var v []string
	if a.ssh != nil {
		if len(a.Options.SSHCommand) > 0 {
			v = append(v, a.Options.SSHCommand...)
		} else {
			v = append(v, defaultSSHCommand)
		}
		if a.ssh.user != "" {
			v = append(v, "-l", a.ssh.user)
		}
		v = append(v, a.ssh.host)
	}
	if len(a.Options.RsyncCommand) > 0 {
		v = append(v, a.Options.RsyncCommand...)
	} else {
		v = append(v, defaultRsyncCommand)
	}
	v = append(v, "--server", "--sender")
	if a.Options.Verbose > 0 {
		o := "-"
		for i := 0; i < a.Options.Verbose; i++ {
			o += "v"
		}
		v = append(v, o)
	}
	if a.Options.ListOnly {
		v = append(v, "--list-only")
	}
	if a.Options.Recursive {
		v = append(v, "-r")
	}
	if a.Path == "" {
		v = append(v, ".")
	} else {
		v = append(v, a.Path)
	}
	return v
}

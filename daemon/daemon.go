// Package daemon supervises a signal-cli child process: spawn it on an
// ephemeral TCP port as the leader of a fresh process group, wait for the
// port to accept connections, and on shutdown terminate the whole group so
// the JVM signal-cli forks dies with it.
package daemon

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/signalgw/gateway/internal/netutil"
)

// Startup errors. All are fatal: the caller gives up rather than retrying.
var (
	ErrBinaryNotFound   = errors.New("signal-cli not found on $PATH")
	ErrReadinessTimeout = errors.New("signal-cli daemon did not become reachable in time")
	ErrUnexpectedExit   = errors.New("signal-cli daemon exited during startup")
)

const (
	// DefaultBinary is looked up on $PATH unless WithBinary overrides it.
	DefaultBinary = "signal-cli"

	// DefaultStartDeadline tolerates slow JVM startup.
	DefaultStartDeadline = 30 * time.Second

	DefaultPollInterval = 200 * time.Millisecond

	// DefaultGracePeriod is the fixed SIGTERM-to-SIGKILL wait during Stop.
	DefaultGracePeriod = 2 * time.Second
)

// Daemon is a supervised signal-cli process. Addr is the TCP address its
// JSON-RPC listener was told to bind.
type Daemon struct {
	Addr string

	log      *zap.SugaredLogger
	cmd      *exec.Cmd
	stderr   *tailBuffer
	waitCh   chan error
	grace    time.Duration
	stopOnce sync.Once
}

type config struct {
	log      *zap.SugaredLogger
	binary   string
	deadline time.Duration
	poll     time.Duration
	grace    time.Duration
}

type Option func(c *config)

func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		c.log = l.Named("daemon").Sugar()
	}
}

// WithBinary uses the given executable instead of looking signal-cli up on
// $PATH.
func WithBinary(path string) Option {
	return func(c *config) {
		c.binary = path
	}
}

func WithStartDeadline(d time.Duration) Option {
	return func(c *config) {
		c.deadline = d
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(c *config) {
		c.poll = d
	}
}

func WithGracePeriod(d time.Duration) Option {
	return func(c *config) {
		c.grace = d
	}
}

// Spawn starts `signal-cli daemon --tcp <addr>` on an unused local port and
// blocks until the port accepts connections, the process exits, or the
// deadline passes. On failure the returned error wraps one of the package
// sentinels and carries whatever the process wrote to stderr.
func Spawn(opts ...Option) (*Daemon, error) {
	cfg := &config{
		binary:   "",
		deadline: DefaultStartDeadline,
		poll:     DefaultPollInterval,
		grace:    DefaultGracePeriod,
	}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.log == nil {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("building logger: %w", err)
		}
		cfg.log = logger.Named("daemon").Sugar()
	}

	bin := cfg.binary
	if bin == "" {
		p, err := exec.LookPath(DefaultBinary)
		if err != nil {
			return nil, fmt.Errorf("%w: install it or pass --signal-cli <addr> to use an existing daemon", ErrBinaryNotFound)
		}
		bin = p
	}
	cfg.log.Infof("found signal-cli at %s", bin)

	port, err := netutil.EphemeralTCPPort()
	if err != nil {
		return nil, fmt.Errorf("picking a daemon port: %w", err)
	}
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	cmd := exec.Command(bin, "daemon", "--tcp", addr)
	stderr := &tailBuffer{}
	cmd.Stderr = stderr
	setNewProcessGroup(cmd)

	cfg.log.Infof("spawning signal-cli daemon on %s", addr)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawning %s: %w", bin, err)
	}

	d := &Daemon{
		Addr:   addr,
		log:    cfg.log,
		cmd:    cmd,
		stderr: stderr,
		waitCh: make(chan error, 1),
		grace:  cfg.grace,
	}
	go func() {
		d.waitCh <- cmd.Wait()
	}()

	if err := d.waitReady(cfg.deadline, cfg.poll); err != nil {
		d.Stop()
		return nil, err
	}
	cfg.log.Infof("signal-cli daemon ready on %s", addr)
	return d, nil
}

func (d *Daemon) waitReady(deadline, interval time.Duration) error {
	end := time.Now().Add(deadline)
	for {
		select {
		case waitErr := <-d.waitCh:
			d.waitCh <- waitErr // let Stop still reap the exit status
			return fmt.Errorf("%w (%v): %s", ErrUnexpectedExit, waitErr, d.diagnostics())
		default:
		}

		if time.Now().After(end) {
			return fmt.Errorf("%w (waited %s): %s", ErrReadinessTimeout, deadline, d.diagnostics())
		}

		conn, err := net.DialTimeout("tcp", d.Addr, interval)
		if err == nil {
			conn.Close()
			return nil
		}
		time.Sleep(interval)
	}
}

func (d *Daemon) diagnostics() string {
	msg := strings.TrimSpace(d.stderr.String())
	if msg == "" {
		return "no stderr output"
	}
	return msg
}

// Stop terminates the daemon's entire process group: SIGTERM, a fixed grace
// period, then SIGKILL. The grace wait is a plain sleep: the leader exiting
// early says nothing about its descendants, and the SIGKILL must reach the
// whole group regardless. Every signal is best-effort (the group may
// already be gone) and the whole sequence is bounded. Safe to call more
// than once.
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() {
		pid := d.cmd.Process.Pid
		d.log.Infof("stopping signal-cli daemon (pid %d)", pid)

		if err := terminateGroup(pid); err != nil {
			d.log.Debugf("SIGTERM to group %d: %s", pid, err)
		}
		time.Sleep(d.grace)

		if err := killGroup(pid); err != nil {
			d.log.Debugf("SIGKILL to group %d: %s", pid, err)
		}
		select {
		case <-d.waitCh:
		case <-time.After(time.Second):
			d.log.Warnf("signal-cli leader (pid %d) was not reaped", pid)
		}
	})
}

// tailBuffer is a concurrency-safe stderr sink. The child keeps writing
// while readiness polling (and failure reporting) reads.
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Package dispatcher reads command lines from the control stream, records
// each one in the audit log and hands it to a request handler.
//
// In detached mode every line gets its own goroutine and the next line is
// read immediately. In join mode the dispatcher waits for each request to
// finish before reading on, so at most one request is in flight.
package dispatcher

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/Iron-Ham/filesrv/internal/config"
	"github.com/Iron-Ham/filesrv/internal/event"
	"github.com/Iron-Ham/filesrv/internal/filelock"
	"github.com/Iron-Ham/filesrv/internal/handler"
	"github.com/Iron-Ham/filesrv/internal/logging"
	"github.com/Iron-Ham/filesrv/internal/store"
)

// Prompt is written before each line when a prompt writer is configured.
const Prompt = "> "

// AuditTimeFormat matches ctime(3) without the trailing newline.
const AuditTimeFormat = time.ANSIC

// Handler runs one request. *handler.Handler satisfies it.
type Handler interface {
	Handle(raw string) handler.Result
}

// Config controls the dispatch loop.
type Config struct {
	AuditLog string
	Join     bool
}

// ConfigFrom derives a dispatcher Config from the server configuration.
func ConfigFrom(c *config.Config) Config {
	return Config{AuditLog: c.Server.AuditLog, Join: c.Server.Join}
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithBus publishes request lifecycle events to bus.
func WithBus(bus *event.Bus) Option {
	return func(d *Dispatcher) { d.bus = bus }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *logging.Logger) Option {
	return func(d *Dispatcher) { d.log = l.WithComponent("dispatcher") }
}

// WithPrompt writes Prompt to w before reading each line.
func WithPrompt(w io.Writer) Option {
	return func(d *Dispatcher) { d.prompt = w }
}

// WithClock replaces time.Now for audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// Dispatcher owns the read loop and the handler goroutines it starts.
type Dispatcher struct {
	reg    *filelock.Registry
	h      Handler
	store  *store.Store
	cfg    Config
	bus    *event.Bus
	log    *logging.Logger
	prompt io.Writer
	now    func() time.Time

	wg  conc.WaitGroup
	seq atomic.Uint64

	mu      sync.Mutex // serializes dispatch against Wait
	stopped bool
}

// New returns a Dispatcher. The audit log is locked through reg like any
// other resource.
func New(reg *filelock.Registry, h Handler, st *store.Store, cfg Config, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		reg:   reg,
		h:     h,
		store: st,
		cfg:   cfg,
		log:   logging.NopLogger(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run dispatches lines from r until end of stream or until ctx is done.
// Blank lines are skipped. Run returns without waiting for detached
// requests; call Wait for that.
func (d *Dispatcher) Run(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.prompt != nil {
			_, _ = io.WriteString(d.prompt, Prompt)
		}
		if !scanner.Scan() {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		d.dispatch(line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read control stream: %w", err)
	}
	d.log.Info("end of control stream", "dispatched", d.seq.Load())
	return nil
}

// Dispatched returns the number of lines handed to the handler so far.
func (d *Dispatcher) Dispatched() uint64 {
	return d.seq.Load()
}

// Wait blocks until every started request has finished. Lines that Run
// reads after Wait is called are dropped. A panic inside a handler is
// returned as an error instead of crashing the process.
func (d *Dispatcher) Wait() error {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	if r := d.wg.WaitAndRecover(); r != nil {
		d.log.Error("handler panicked", "panic", fmt.Sprint(r.Value))
		return r.AsError()
	}
	return nil
}

func (d *Dispatcher) dispatch(line string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		d.log.Warn("line dropped after shutdown began", "line", line)
		return
	}

	seq := d.seq.Add(1)
	log := d.log.WithRequest(seq, line)

	if err := d.audit(line); err != nil {
		// The request still runs; only its audit entry is lost.
		log.Error("audit append failed", "error", err.Error())
	}
	d.bus.Publish(event.NewRequestAcceptedEvent(seq, line))
	log.Debug("request accepted")

	run := func() {
		res := d.h.Handle(line)
		var op, target string
		if res.Request != nil {
			op, target = res.Request.Op.String(), res.Request.Target
		}
		d.bus.Publish(event.NewRequestCompletedEvent(seq, line, op, target, string(res.Outcome), res.Err, res.Duration))
	}

	if !d.cfg.Join {
		d.wg.Go(run)
		return
	}
	var one conc.WaitGroup
	one.Go(run)
	if r := one.WaitAndRecover(); r != nil {
		log.Error("handler panicked", "panic", fmt.Sprint(r.Value))
	}
}

// audit appends "[<ctime>] <line>" to the audit log under its lock.
func (d *Dispatcher) audit(line string) error {
	lk, err := d.reg.LockFor(d.cfg.AuditLog)
	if err != nil {
		return fmt.Errorf("lock %s: %w", d.cfg.AuditLog, err)
	}
	lk.Acquire()
	defer func() { _ = lk.Release() }()

	entry := "[" + d.now().Format(AuditTimeFormat) + "] " + line
	return d.store.AppendLine(d.cfg.AuditLog, entry)
}

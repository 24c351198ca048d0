package handler

import (
	"math/rand/v2"
	"time"

	"github.com/Iron-Ham/filesrv/internal/config"
	"github.com/Iron-Ham/filesrv/internal/errors"
	"github.com/Iron-Ham/filesrv/internal/filelock"
	"github.com/Iron-Ham/filesrv/internal/logging"
	"github.com/Iron-Ham/filesrv/internal/request"
	"github.com/Iron-Ham/filesrv/internal/store"
)

// Markers recorded in place of file contents.
const (
	MarkerMissing      = "FILE DNE"
	MarkerAlreadyEmpty = "FILE ALREADY EMPTY"
)

// Stage is a step of the per-request state machine.
type Stage int

const (
	StageParse Stage = iota // includes validation
	StageAcquire
	StageExecute
	StageRelease
	StageReport
)

func (s Stage) String() string {
	switch s {
	case StageParse:
		return "parse"
	case StageAcquire:
		return "acquire"
	case StageExecute:
		return "execute"
	case StageRelease:
		return "release"
	case StageReport:
		return "report"
	default:
		return "unknown"
	}
}

// Outcome summarizes what a request did.
type Outcome string

const (
	OutcomeWritten      Outcome = "written"
	OutcomeRead         Outcome = "read"
	OutcomeMissing      Outcome = "missing"
	OutcomeEmptied      Outcome = "emptied"
	OutcomeAlreadyEmpty Outcome = "already-empty"
	OutcomeRejected     Outcome = "rejected" // failed PARSE or VALIDATE
	OutcomeFailed       Outcome = "failed"   // failed after acquiring locks
)

// Result is the REPORT of one request.
type Result struct {
	Raw      string
	Request  *request.Request // nil when rejected
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// OK reports whether the request completed without error.
func (r Result) OK() bool {
	return r.Err == nil
}

// Config holds the handler's policy.
type Config struct {
	Limits      request.Limits
	ReadOutput  string
	EmptyOutput string

	// Instant skips every delay below.
	Instant            bool
	WritePerChar       time.Duration
	EmptyMin, EmptyMax time.Duration
	ArrivalShort       time.Duration
	ArrivalLong        time.Duration
	ArrivalLongPercent int
}

// ConfigFrom derives a handler Config from the server configuration.
func ConfigFrom(c *config.Config) Config {
	emptyMin, emptyMax := c.Delay.EmptyRange()
	short, long := c.Delay.Arrival()
	return Config{
		Limits: request.Limits{
			MaxTarget:  c.Server.MaxTarget,
			MaxPayload: c.Server.MaxPayload,
			Reserved:   c.Server.Reserved(),
		},
		ReadOutput:         c.Server.ReadOutput,
		EmptyOutput:        c.Server.EmptyOutput,
		Instant:            c.Delay.Instant,
		WritePerChar:       c.Delay.WritePerChar(),
		EmptyMin:           emptyMin,
		EmptyMax:           emptyMax,
		ArrivalShort:       short,
		ArrivalLong:        long,
		ArrivalLongPercent: c.Delay.ArrivalLongPercent,
	}
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *logging.Logger) Option {
	return func(h *Handler) { h.log = l.WithComponent("handler") }
}

// WithSleeper replaces time.Sleep for the simulated delays.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(h *Handler) { h.sleep = sleep }
}

// WithRandom replaces the source of the random delays. intN must return a
// value in [0, n) and be safe for concurrent use.
func WithRandom(intN func(n int) int) Option {
	return func(h *Handler) { h.intN = intN }
}

// WithTrace registers a callback run as a request enters each stage. req is
// nil during StageParse and for rejected requests.
func WithTrace(fn func(stage Stage, req *request.Request)) Option {
	return func(h *Handler) { h.trace = fn }
}

// Handler runs requests against a lock registry and a store. One Handler
// serves any number of concurrent requests.
type Handler struct {
	reg   *filelock.Registry
	store *store.Store
	cfg   Config
	log   *logging.Logger
	sleep func(time.Duration)
	intN  func(int) int
	trace func(Stage, *request.Request)
}

// New returns a Handler. The output identifiers in cfg must also be listed in
// cfg.Limits.Reserved so that no request can target them.
func New(reg *filelock.Registry, st *store.Store, cfg Config, opts ...Option) *Handler {
	h := &Handler{
		reg:   reg,
		store: st,
		cfg:   cfg,
		log:   logging.NopLogger(),
		sleep: time.Sleep,
		intN:  rand.IntN,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle parses raw and performs it. Every lock taken is released before
// Handle returns; failures are reported in the Result, never panicked.
func (h *Handler) Handle(raw string) Result {
	start := time.Now()
	res := Result{Raw: raw}

	h.enter(StageParse, nil)
	req, err := request.Parse(raw, h.cfg.Limits)
	if err != nil {
		res.Outcome = OutcomeRejected
		res.Err = err
		return h.report(res, start)
	}
	res.Request = req

	h.arrive()

	switch req.Op {
	case request.OpWrite:
		res.Outcome, res.Err = h.write(req)
	case request.OpRead:
		res.Outcome, res.Err = h.read(req)
	case request.OpEmpty:
		res.Outcome, res.Err = h.empty(req)
	}
	if res.Err != nil {
		res.Outcome = OutcomeFailed
	}
	return h.report(res, start)
}

func (h *Handler) report(res Result, start time.Time) Result {
	res.Duration = time.Since(start)
	h.enter(StageReport, res.Request)

	log := h.log.With("line", res.Raw, "outcome", string(res.Outcome), "duration_ms", res.Duration.Milliseconds())
	if res.Request != nil {
		log = log.WithResource(res.Request.Target)
	}
	switch {
	case res.Err == nil:
		log.Info("request completed")
	case errors.SeverityOf(res.Err) == errors.SeverityError:
		log.Error("request failed", "kind", errors.KindOf(res.Err).String(), "error", res.Err.Error())
	default:
		log.Warn("request rejected", "kind", errors.KindOf(res.Err).String(), "error", res.Err.Error())
	}
	return res
}

func (h *Handler) enter(stage Stage, req *request.Request) {
	if h.trace != nil {
		h.trace(stage, req)
	}
}

func (h *Handler) write(req *request.Request) (Outcome, error) {
	locks, err := h.acquire(req)
	if err != nil {
		return "", err
	}
	defer locks.releaseAll()

	h.enter(StageExecute, req)
	if err := h.store.AppendLine(req.Target, req.Payload); err != nil {
		return "", unavailable(req, err)
	}
	h.delay(h.cfg.WritePerChar * time.Duration(len(req.Payload)))
	return OutcomeWritten, nil
}

func (h *Handler) read(req *request.Request) (Outcome, error) {
	locks, err := h.acquire(req, h.cfg.ReadOutput)
	if err != nil {
		return "", err
	}
	defer locks.releaseAll()

	h.enter(StageExecute, req)
	exists, err := h.store.Exists(req.Target)
	if err != nil {
		return "", unavailable(req, err)
	}
	if !exists {
		if err := h.store.AppendLine(h.cfg.ReadOutput, req.Raw+": "+MarkerMissing); err != nil {
			return "", unavailable(req, err)
		}
		return OutcomeMissing, nil
	}
	if _, err := h.store.AppendRecord(h.cfg.ReadOutput, req.Raw+": ", req.Target); err != nil {
		return "", unavailable(req, err)
	}
	return OutcomeRead, nil
}

// empty records the target's contents into the empty output, drops the
// output lock, then truncates and waits with only the target lock held.
// If the record step fails the target is left untouched.
func (h *Handler) empty(req *request.Request) (Outcome, error) {
	locks, err := h.acquire(req, h.cfg.EmptyOutput)
	if err != nil {
		return "", err
	}
	defer locks.releaseAll()

	h.enter(StageExecute, req)
	exists, err := h.store.Exists(req.Target)
	if err != nil {
		return "", unavailable(req, err)
	}
	var size int64
	if exists {
		if size, err = h.store.Size(req.Target); err != nil {
			return "", unavailable(req, err)
		}
	}

	if size == 0 {
		err = h.store.AppendLine(h.cfg.EmptyOutput, req.Raw+": "+MarkerAlreadyEmpty)
	} else {
		_, err = h.store.AppendRecord(h.cfg.EmptyOutput, req.Raw+": ", req.Target)
	}
	if err != nil {
		return "", unavailable(req, err)
	}
	locks.releaseOutput()

	if !exists {
		return OutcomeAlreadyEmpty, nil
	}
	if err := h.store.Truncate(req.Target); err != nil {
		return "", unavailable(req, err)
	}
	h.delay(h.randomBetween(h.cfg.EmptyMin, h.cfg.EmptyMax))
	if size == 0 {
		return OutcomeAlreadyEmpty, nil
	}
	return OutcomeEmptied, nil
}

// arrive waits before ACQUIRE: usually the short delay, ArrivalLongPercent
// of the time the long one.
func (h *Handler) arrive() {
	if h.cfg.Instant {
		return
	}
	d := h.cfg.ArrivalShort
	if h.intN(100) < h.cfg.ArrivalLongPercent {
		d = h.cfg.ArrivalLong
	}
	h.delay(d)
}

// randomBetween returns a whole number of seconds in [lo, hi].
func (h *Handler) randomBetween(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	span := int((hi - lo) / time.Second)
	return lo + time.Duration(h.intN(span+1))*time.Second
}

func (h *Handler) delay(d time.Duration) {
	if h.cfg.Instant || d <= 0 {
		return
	}
	h.sleep(d)
}

func unavailable(req *request.Request, cause error) error {
	return errors.NewRequestError(errors.KindResourceUnavailable, req.Raw).
		WithTarget(req.Target).
		WithCause(cause)
}

// lockErr reports a registry failure, such as a closed registry, for id.
func lockErr(req *request.Request, id string, cause error) error {
	return errors.NewRequestError(errors.KindResourceUnavailable, req.Raw).
		WithTarget(req.Target).
		WithDetail("lock %s", id).
		WithCause(cause)
}

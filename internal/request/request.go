// Package request parses and validates control-stream command lines.
//
// A line has the form
//
//	<operation> <target> [payload]
//
// where operation is read, write or empty, target is a path-like identifier
// and payload, legal only for write, is everything after the second space,
// taken verbatim. Parse returns a fully validated, immutable [Request] or a
// [*errors.RequestError]; a malformed line never reaches the locking stage.
package request

import (
	"path"
	"strings"

	"github.com/Iron-Ham/filesrv/internal/errors"
)

// Op is the kind of operation a request performs.
type Op int

const (
	OpInvalid Op = iota
	OpRead
	OpWrite
	OpEmpty
)

// String returns the command token for the operation.
func (o Op) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpEmpty:
		return "empty"
	default:
		return "invalid"
	}
}

// ParseOp maps a command token to its Op. Unrecognized tokens return OpInvalid.
func ParseOp(token string) Op {
	switch token {
	case "read":
		return OpRead
	case "write":
		return OpWrite
	case "empty":
		return OpEmpty
	default:
		return OpInvalid
	}
}

// Default bounds, in bytes.
const (
	DefaultMaxTarget  = 50
	DefaultMaxPayload = 50
)

// Limits bounds what Parse accepts.
type Limits struct {
	MaxTarget  int
	MaxPayload int
	// Reserved lists identifiers of shared output resources. A request may
	// never target one of them.
	Reserved []string
	// Rotated lists identifiers of size-rotated files. Each is reserved
	// together with its backups, "<id>.N" and "<id>.N.gz".
	Rotated []string
}

// DefaultLimits returns the default bounds with the given reserved identifiers.
func DefaultLimits(reserved ...string) Limits {
	return Limits{
		MaxTarget:  DefaultMaxTarget,
		MaxPayload: DefaultMaxPayload,
		Reserved:   reserved,
	}
}

// Request is one parsed command. It is never modified after Parse returns.
type Request struct {
	Op      Op
	Target  string // Cleaned identifier used as the lock key
	Payload string // Write text; empty for read and empty
	Raw     string // Original command line, echoed into shared outputs
}

// Parse splits line into operation, target and payload, then validates the
// result against lim.
func Parse(line string, lim Limits) (*Request, error) {
	// Leading spaces before the operation and the target are separators,
	// not part of either token.
	token, rest, _ := strings.Cut(strings.TrimLeft(line, " "), " ")
	target, payload, _ := strings.Cut(strings.TrimLeft(rest, " "), " ")

	if target == "" {
		return nil, errors.NewRequestError(errors.KindMalformedRequest, line).
			WithDetail("missing target")
	}
	if lim.MaxTarget > 0 && len(target) > lim.MaxTarget {
		return nil, errors.NewRequestError(errors.KindMalformedRequest, line).
			WithDetail("target is %d bytes, limit %d", len(target), lim.MaxTarget)
	}

	op := ParseOp(token)
	if op == OpInvalid {
		return nil, errors.NewRequestError(errors.KindUnknownOperation, line).
			WithTarget(target).
			WithDetail("%q", token)
	}

	if payload != "" {
		if op != OpWrite {
			return nil, errors.NewRequestError(errors.KindUnexpectedPayload, line).
				WithTarget(target).
				WithDetail("%s takes no payload", op)
		}
		if lim.MaxPayload > 0 && len(payload) > lim.MaxPayload {
			return nil, errors.NewRequestError(errors.KindPayloadTooLong, line).
				WithTarget(target).
				WithDetail("%d bytes, limit %d", len(payload), lim.MaxPayload)
		}
	}

	if escapes(target) {
		return nil, errors.NewRequestError(errors.KindMalformedRequest, line).
			WithTarget(target).
			WithDetail("target escapes the work directory")
	}
	key := Canonical(target)
	if key == "" {
		return nil, errors.NewRequestError(errors.KindMalformedRequest, line).
			WithTarget(target).
			WithDetail("target names the work directory")
	}
	for _, r := range lim.Reserved {
		if key == Canonical(r) {
			return nil, errors.NewRequestError(errors.KindSelfReferentialOperation, line).
				WithTarget(target).
				WithDetail("%s is a shared output", r)
		}
	}
	for _, r := range lim.Rotated {
		if isRotation(key, Canonical(r)) {
			return nil, errors.NewRequestError(errors.KindSelfReferentialOperation, line).
				WithTarget(target).
				WithDetail("%s is a server log", r)
		}
	}

	return &Request{
		Op:      op,
		Target:  key,
		Payload: payload,
		Raw:     line,
	}, nil
}

// Canonical returns the lock key for an identifier. Identifiers resolve
// against the work directory whether or not they start with "/", so "a.txt",
// "./a.txt" and "/a.txt" all name one file and share one key.
func Canonical(id string) string {
	return strings.TrimPrefix(path.Clean("/"+id), "/")
}

// escapes reports whether a relative identifier climbs above its root.
func escapes(id string) bool {
	c := path.Clean(id)
	return c == ".." || strings.HasPrefix(c, "../")
}

// isRotation reports whether key is base or one of its numbered backups.
func isRotation(key, base string) bool {
	if key == base {
		return true
	}
	rest, ok := strings.CutPrefix(key, base+".")
	if !ok {
		return false
	}
	rest = strings.TrimSuffix(rest, ".gz")
	if rest == "" {
		return false
	}
	for _, c := range rest {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

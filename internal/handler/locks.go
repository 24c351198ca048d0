package handler

import (
	"github.com/Iron-Ham/filesrv/internal/filelock"
	"github.com/Iron-Ham/filesrv/internal/request"
)

// heldLocks is the stack of locks one request holds, in acquisition order.
type heldLocks struct {
	h     *Handler
	req   *request.Request
	stack []*filelock.Handle
}

// acquire takes the lock on req.Target and then the lock on each shared
// output, in that order. Every handler goes through here, so the target
// always precedes the output in any wait-for chain. Parse guarantees a
// target never names an output, so no request can wait on a lock it holds.
//
// On error nothing is left held.
func (h *Handler) acquire(req *request.Request, outputs ...string) (*heldLocks, error) {
	h.enter(StageAcquire, req)

	held := &heldLocks{h: h, req: req}
	for _, id := range append([]string{req.Target}, outputs...) {
		lk, err := h.reg.LockFor(id)
		if err != nil {
			held.releaseAll()
			return nil, lockErr(req, id, err)
		}
		lk.Acquire()
		held.stack = append(held.stack, lk)
	}
	return held, nil
}

// releaseOutput releases the most recent lock if more than the target's is
// held, leaving the target locked.
func (l *heldLocks) releaseOutput() {
	if len(l.stack) < 2 {
		return
	}
	l.pop()
}

// releaseAll releases every remaining lock in reverse acquisition order.
// Calling it again is a no-op.
func (l *heldLocks) releaseAll() {
	if len(l.stack) == 0 {
		return
	}
	l.h.enter(StageRelease, l.req)
	for len(l.stack) > 0 {
		l.pop()
	}
}

func (l *heldLocks) pop() {
	top := l.stack[len(l.stack)-1]
	l.stack = l.stack[:len(l.stack)-1]
	if err := top.Release(); err != nil {
		// Only reachable through a bookkeeping bug; keep unwinding.
		l.h.log.WithResource(top.ID()).Error("release failed", "error", err.Error())
	}
}

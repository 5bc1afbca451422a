package chat

import (
	"context"
	"errors"
	"sync/atomic"
)

type AbortState int32

const (
	StateIdle AbortState = iota
	StateArmed
	StateFired
)

type AbortCause int32

const (
	CauseNone AbortCause = iota
	CauseClientGone
	CauseResponseClosed
	CauseUpstream
)

var (
	ErrClientGone     = errors.New("client disconnected")
	ErrResponseClosed = errors.New("response stream closed")
	ErrUpstreamFailed = errors.New("upstream failed")
)

func (c AbortCause) err() error {
	switch c {
	case CauseClientGone:
		return ErrClientGone
	case CauseResponseClosed:
		return ErrResponseClosed
	default:
		return ErrUpstreamFailed
	}
}

func (c AbortCause) String() string {
	switch c {
	case CauseClientGone:
		return "client_gone"
	case CauseResponseClosed:
		return "response_closed"
	case CauseUpstream:
		return "upstream"
	default:
		return "none"
	}
}

// AbortCoordinator owns the one cancellation token for an upstream call.
// It moves Idle -> Armed -> Fired; only the first Fire has any effect.
type AbortCoordinator struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	armed  atomic.Bool
	cause  atomic.Int32
	stop   func() bool
}

// NewAbortCoordinator derives the upstream context from parent. Pass a
// parent that the client cannot cancel directly (context.WithoutCancel) and
// hand the request context to Arm, so every cancellation carries a cause.
func NewAbortCoordinator(parent context.Context) *AbortCoordinator {
	ctx, cancel := context.WithCancelCause(parent)
	return &AbortCoordinator{ctx: ctx, cancel: cancel}
}

// Arm starts watching clientCtx. Calling it twice is a no-op.
func (a *AbortCoordinator) Arm(clientCtx context.Context) {
	if !a.armed.CompareAndSwap(false, true) {
		return
	}
	a.stop = context.AfterFunc(clientCtx, func() {
		a.Fire(CauseClientGone)
	})
}

// Fire cancels the upstream context. It reports whether this call was the
// one that fired.
func (a *AbortCoordinator) Fire(cause AbortCause) bool {
	if cause == CauseNone {
		cause = CauseUpstream
	}
	if !a.cause.CompareAndSwap(int32(CauseNone), int32(cause)) {
		return false
	}
	a.cancel(cause.err())
	return true
}

func (a *AbortCoordinator) Context() context.Context {
	return a.ctx
}

func (a *AbortCoordinator) State() AbortState {
	switch {
	case a.Cause() != CauseNone:
		return StateFired
	case a.armed.Load():
		return StateArmed
	default:
		return StateIdle
	}
}

func (a *AbortCoordinator) Cause() AbortCause {
	return AbortCause(a.cause.Load())
}

// ClientGone reports whether the client side ended the exchange, either by
// disconnecting or by a failed write. No frames can reach it in that case.
func (a *AbortCoordinator) ClientGone() bool {
	switch a.Cause() {
	case CauseClientGone, CauseResponseClosed:
		return true
	default:
		return false
	}
}

// Release detaches the request watcher and cancels the derived context.
// It does not count as firing.
func (a *AbortCoordinator) Release() {
	if a.stop != nil {
		a.stop()
	}
	a.cancel(nil)
}

// Package push implements the push engine: type identity/coercion
// checking, current-value update, FIFO fan-out to registered handlers, and
// recursive delivery to downstream observations, all under a
// single-threaded cooperative-execution discipline (no concurrent pushes;
// a handler that synchronously pushes back into the resource it was
// invoked for is deferred to the next turn instead of recursing).
package push

import (
	"github.com/jtchitty/legatoDataHub/internal/ipcerr"
	"github.com/jtchitty/legatoDataHub/internal/sample"
	"github.com/jtchitty/legatoDataHub/internal/tree"
)

// ObservationAppender is implemented by package observation. The push
// engine calls it once per downstream observation, before recursing into
// the observation itself, so the buffer sees the value at the same point
// the observation's own handlers do.
type ObservationAppender interface {
	AppendObservation(entry *tree.Entry, s sample.Sample)
}

type deferredPush struct {
	entry        *tree.Entry
	declaredType sample.Type
	s            sample.Sample
}

// Engine must be driven by a single logical executor: it keeps no lock of
// its own, because its reentrancy guard depends on being called back
// synchronously, on the same goroutine, by a handler it is in the middle
// of invoking. Callers that expose Push to
// multiple goroutines (e.g. several transport connections) are expected to
// serialize them upstream -- the hub facade does this by holding the tree's
// lock across the whole operation.
type Engine struct {
	appender ObservationAppender
	inFlight map[*tree.Entry]bool
	deferred []deferredPush
	// running is true for the whole duration of the outermost Push call,
	// including any nested dispatch it triggers (downstream observations,
	// or a handler calling Push back in). Only the outermost call drains
	// the deferred queue, once its own fan-out has fully settled.
	running bool
}

// NewEngine creates a push engine. appender may be nil if observation
// support isn't wired up (e.g. in tests of the push mechanics alone).
func NewEngine(appender ObservationAppender) *Engine {
	return &Engine{
		appender: appender,
		inFlight: make(map[*tree.Entry]bool),
	}
}

// Push delivers s, declared as declaredType, to entry: identity/coercion
// check, current-value update, handler fan-out, and downstream recursion
// into attached observations.
func (e *Engine) Push(entry *tree.Entry, declaredType sample.Type, s sample.Sample) error {
	outermost := !e.running
	if outermost {
		e.running = true
	}
	err := e.dispatch(entry, declaredType, s)
	if outermost {
		e.drainDeferred()
		e.running = false
	}
	return err
}

func (e *Engine) dispatch(entry *tree.Entry, declaredType sample.Type, s sample.Sample) error {
	if e.inFlight[entry] {
		// A handler invoked from within this resource's own fan-out is
		// trying to push back into the same resource synchronously; break
		// the cycle by deferring it instead of recursing.
		e.deferred = append(e.deferred, deferredPush{entry: entry, declaredType: declaredType, s: s})
		return nil
	}
	e.inFlight[entry] = true
	defer delete(e.inFlight, entry)
	return e.deliverOne(entry, declaredType, s)
}

func (e *Engine) drainDeferred() {
	for len(e.deferred) > 0 {
		next := e.deferred[0]
		e.deferred = e.deferred[1:]
		e.dispatch(next.entry, next.declaredType, next.s)
	}
}

func (e *Engine) deliverOne(entry *tree.Entry, declaredType sample.Type, s sample.Sample) error {
	actual := declaredType
	if entry.Kind() == tree.KindInput || entry.Kind() == tree.KindOutput {
		if declaredType != entry.DataType() {
			// The only implicit conversion is any type -> json.
			// bool<->numeric and numeric<->string are not implicit and are
			// contract violations.
			if entry.DataType() != sample.JSON {
				return ipcerr.Kill("push type mismatch on " + entry.Path())
			}
			converted, err := s.AsJSON()
			if err != nil {
				return ipcerr.Kill("push json coercion failed on " + entry.Path() + ": " + err.Error())
			}
			s = converted
			actual = sample.JSON
		}
	} else {
		actual = s.Type()
	}

	entry.SetCurrentValue(s)

	for _, h := range entry.HandlersInOrder() {
		if h.DataType == actual || h.DataType == sample.Trigger {
			deliverSafely(h.Deliver, s)
		}
	}

	for _, obs := range entry.BoundObservations() {
		if e.appender != nil {
			e.appender.AppendObservation(obs, s)
		}
		e.dispatch(obs, actual, s)
	}
	return nil
}

// deliverSafely isolates a handler callback so that one handler panicking
// doesn't prevent the remaining handlers in the fan-out from receiving the
// sample.
func deliverSafely(deliver func(sample.Sample), s sample.Sample) {
	defer func() { _ = recover() }()
	deliver(s)
}

package la

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

/*
World is a group of ranks that operate on shared matrices and vectors.

Every operation that creates, assembles, combines, extracts from or destroys
a Mat or Vec is collective: each rank of the world must make the same call in
the same order. The last rank to arrive executes the operation while the
others wait for it. A rank that arrives with a different call, or a rank that
leaves Run while others still wait, aborts the world so that nobody blocks
forever.

Value insertion (AddValue) and reads of assembled objects are local and do not
synchronize.
*/
type World struct {
	size      int
	comms     []*Comm
	mu        sync.Mutex
	ops       map[uint64]*collectiveOp
	exited    int
	nextID    atomic.Uint64
	abort     chan struct{}
	abortOnce sync.Once
	abortErr  error
}

type collectiveOp struct {
	sig     string
	arrived int
	done    chan struct{}
	result  any
	err     error
}

func NewWorld(size int) (w *World, err error) {
	if size < 1 {
		err = fmt.Errorf("%w: world size must be positive, have %d", ErrDimension, size)
		return
	}
	w = &World{
		size:  size,
		comms: make([]*Comm, size),
		ops:   make(map[uint64]*collectiveOp),
		abort: make(chan struct{}),
	}
	for rank := 0; rank < size; rank++ {
		w.comms[rank] = &Comm{world: w, rank: rank}
	}
	return
}

// NewSerialComm returns the only rank of a single rank world.
func NewSerialComm() *Comm {
	w, _ := NewWorld(1)
	return w.Comm(0)
}

func (w *World) Size() int { return w.size }

func (w *World) Comm(rank int) *Comm { return w.comms[rank] }

// Abort releases every rank waiting in a collective call. The first cause wins
// and an aborted world cannot be used again.
func (w *World) Abort(cause error) {
	w.abortOnce.Do(func() {
		w.abortErr = cause
		close(w.abort)
	})
}

// Err returns the abort cause, or nil while the world is healthy.
func (w *World) Err() error {
	select {
	case <-w.abort:
		return w.abortErr
	default:
		return nil
	}
}

// Run executes fn once per rank, each on its own goroutine, and returns the
// first error. A failing rank or a cancelled ctx aborts the world.
func (w *World) Run(ctx context.Context, fn func(ctx context.Context, c *Comm) error) error {
	var (
		g, gctx = errgroup.WithContext(ctx)
		stop    = make(chan struct{})
		watched = make(chan struct{})
	)
	w.mu.Lock()
	w.exited = 0
	w.mu.Unlock()
	go func() {
		defer close(watched)
		select {
		case <-ctx.Done():
			w.Abort(fmt.Errorf("%w: %v", ErrAborted, context.Cause(ctx)))
		case <-stop:
		}
	}()
	for rank := 0; rank < w.size; rank++ {
		c := w.comms[rank]
		g.Go(func() error {
			err := fn(gctx, c)
			if err != nil {
				w.Abort(err)
			}
			w.rankExited(c.rank)
			return err
		})
	}
	err := g.Wait()
	close(stop)
	<-watched
	return err
}

func (w *World) rankExited(rank int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.exited++
	if len(w.ops) != 0 {
		w.Abort(fmt.Errorf("%w: rank %d exited with a collective call pending",
			ErrCollectiveMismatch, rank))
	}
}

// Comm is one rank's handle on a World.
type Comm struct {
	world *World
	rank  int
	seq   uint64
}

func (c *Comm) Rank() int { return c.rank }

func (c *Comm) Size() int { return c.world.size }

func (c *Comm) World() *World { return c.world }

func (c *Comm) Barrier() (err error) {
	_, err = c.collective("Barrier", nil)
	return
}

func (c *Comm) collective(sig string, fn func() (any, error)) (result any, err error) {
	var (
		w  = c.world
		op *collectiveOp
		ok bool
	)
	c.seq++
	w.mu.Lock()
	if cause := w.Err(); cause != nil {
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrAborted, cause)
	}
	if w.exited != 0 {
		w.mu.Unlock()
		err = fmt.Errorf("%w: rank %d called %s after another rank exited",
			ErrCollectiveMismatch, c.rank, sig)
		w.Abort(err)
		return
	}
	if op, ok = w.ops[c.seq]; !ok {
		op = &collectiveOp{sig: sig, done: make(chan struct{})}
		w.ops[c.seq] = op
	}
	if op.sig != sig {
		w.mu.Unlock()
		err = fmt.Errorf("%w: rank %d called %s, expected %s",
			ErrCollectiveMismatch, c.rank, sig, op.sig)
		w.Abort(err)
		return
	}
	op.arrived++
	if op.arrived == w.size {
		delete(w.ops, c.seq)
		w.mu.Unlock()
		if fn != nil {
			op.result, op.err = fn()
		}
		close(op.done)
		return op.result, op.err
	}
	w.mu.Unlock()
	select {
	case <-op.done:
		return op.result, op.err
	case <-w.abort:
		return nil, fmt.Errorf("%w: %v", ErrAborted, w.abortErr)
	}
}

// Package work distributes slicing and polygon jobs over a pool of workers. Every worker is a goroutine that owns its own polygon engine and slicing session. Jobs and their replies are exchanged as codec records, matched by sequence number.
package work

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/tdewolff/slicer"
	"github.com/tdewolff/slicer/clip"
	"github.com/tdewolff/slicer/codec"
)

var (
	ErrCancelled      = errors.New("cancelled operation")
	ErrUnknownCommand = errors.New("invalid command")
	ErrPoolClosed     = errors.New("pool closed")
)

// Request is a job sent to a worker. Buffers lists the packed buffers of Data that are handed over rather than copied.
type Request struct {
	Seq     uint64
	Task    string
	Time    time.Time
	Data    codec.Record
	Buffers []any
}

// Reply is a message from a worker about a job. A job yields zero or more partial replies followed by one reply with Done set, which carries Err if the job failed.
type Reply struct {
	Seq  uint64
	Task string
	Done bool
	Data codec.Record
	Err  error
}

// Options configures a pool.
type Options struct {
	Workers  int                // number of workers, min(4, NumCPU-1) when zero
	Wasm     []byte             // compiled polygon engine for the workers, the in-process engine when nil
	Handlers map[string]Handler // additional commands
}

// DefaultWorkers returns the default number of workers.
func DefaultWorkers() int {
	return max(1, min(4, runtime.NumCPU()-1))
}

type job struct {
	req      Request
	affinity int // index of the worker that must run the job, or -1
	call     *Call
}

// Pool dispatches jobs to its workers. Jobs wait in a FIFO queue until a worker is idle. A pool also runs operations itself when they are too small to be worth distributing, using its own bridge.
type Pool struct {
	opt      Options
	handlers map[string]Handler
	bridge   *clip.Bridge

	mu      sync.Mutex
	seq     uint64
	queue   []*job
	pending map[uint64]*job
	workers []*worker
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closed  bool
}

// New starts a pool of workers.
func New(ctx context.Context, opt Options) (*Pool, error) {
	if opt.Workers <= 0 {
		opt.Workers = DefaultWorkers()
	}
	p := &Pool{
		opt:      opt,
		handlers: map[string]Handler{},
		bridge:   clip.NewBridge(clip.NewHostEngine()),
		pending:  map[uint64]*job{},
	}
	for task, h := range commands {
		p.handlers[task] = h
	}
	for task, h := range opt.Handlers {
		p.handlers[task] = h
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.start(ctx); err != nil {
		return nil, err
	}
	slicer.Logger().Info("pool started", "workers", len(p.workers))
	return p, nil
}

// start spawns the workers and labels them. The caller holds the lock.
func (p *Pool) start(ctx context.Context) error {
	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	workers := make([]*worker, 0, p.opt.Workers)
	for i := 0; i < p.opt.Workers; i++ {
		engine := clip.Engine(clip.NewHostEngine())
		if p.opt.Wasm != nil {
			var err error
			if engine, err = clip.NewWasmEngine(wctx, p.opt.Wasm); err != nil {
				for _, w := range workers {
					w.Bridge.Close(wctx)
				}
				cancel()
				return fmt.Errorf("worker %d: %w", i, err)
			}
		}
		workers = append(workers, newWorker(p, i, clip.NewBridge(engine)))
	}

	p.workers, p.cancel = workers, cancel
	for _, w := range workers {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.run(wctx)
		}()
	}
	for i := range workers {
		p.enqueue(p.newJob("label", codec.Record{"name": fmt.Sprintf("#%d", i)}, nil, i))
	}
	return nil
}

// stop terminates the workers and fails all pending jobs with err. The caller holds the lock.
func (p *Pool) stop(err error) {
	p.cancel()
	for _, w := range p.workers {
		close(w.in)
	}
	p.workers = nil
	for seq, j := range p.pending {
		j.call.push(Reply{Seq: seq, Task: j.req.Task, Done: true, Err: err})
	}
	p.pending = map[uint64]*job{}
	p.queue = nil
}

// Restart terminates all workers and spawns new ones. Every job that has not finished fails with ErrCancelled. When the new workers cannot be started the pool is closed.
func (p *Pool) Restart(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	n := len(p.pending)
	p.stop(ErrCancelled)
	if err := p.start(ctx); err != nil {
		p.closed = true
		if errClose := p.bridge.Close(context.WithoutCancel(ctx)); errClose != nil {
			slicer.Logger().Warn("close engine", "err", errClose)
		}
		slicer.Logger().Error("pool restart failed", "err", err)
		return err
	}
	slicer.Logger().Info("pool restarted", "cancelled", n)
	return nil
}

// Close terminates all workers and waits for them to exit. Every job that has not finished fails with ErrCancelled.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.stop(ErrCancelled)
	p.mu.Unlock()

	p.wg.Wait()
	return p.bridge.Close(context.Background())
}

// Workers returns the number of workers.
func (p *Pool) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Pending returns the number of jobs that are queued or running.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *Pool) newJob(task string, data codec.Record, buffers []any, affinity int) *job {
	p.seq++
	return &job{
		req:      Request{Seq: p.seq, Task: task, Time: time.Now(), Data: data, Buffers: buffers},
		affinity: affinity,
		call:     newCall(p, p.seq),
	}
}

// enqueue adds jobs to the queue and dispatches. The caller holds the lock.
func (p *Pool) enqueue(jobs ...*job) {
	for _, j := range jobs {
		p.pending[j.req.Seq] = j
	}
	p.queue = append(p.queue, jobs...)
	p.dispatch()
}

// dispatch assigns queued jobs to idle workers until either runs out. The caller holds the lock.
func (p *Pool) dispatch() {
	for {
		i, w := p.next()
		if w == nil {
			return
		}
		j := p.queue[i]
		p.queue = append(p.queue[:i], p.queue[i+1:]...)
		w.job = j
		w.in <- j.req
	}
}

// next picks the first queued job bound to an idle worker, or else the first unbound job together with the first idle worker.
func (p *Pool) next() (int, *worker) {
	for i, j := range p.queue {
		if 0 <= j.affinity && j.affinity < len(p.workers) && p.workers[j.affinity].job == nil {
			return i, p.workers[j.affinity]
		}
	}
	for i, j := range p.queue {
		if j.affinity < 0 {
			for _, w := range p.workers {
				if w.job == nil {
					return i, w
				}
			}
			break
		}
	}
	return -1, nil
}

// deliver routes a reply of worker w to the caller of its job.
func (p *Pool) deliver(w *worker, r Reply) {
	p.mu.Lock()
	defer p.mu.Unlock()
	j, ok := p.pending[r.Seq]
	if r.Done {
		delete(p.pending, r.Seq)
		if w.job != nil && w.job.req.Seq == r.Seq {
			w.job = nil
		}
	}
	if ok {
		j.call.push(r)
	} else {
		slicer.Logger().Warn("unmatched reply", "worker", w.Name, "seq", r.Seq, "task", r.Task)
	}
	if r.Done {
		p.dispatch()
	}
}

// abandon forgets a job whose caller stopped waiting. A running job still occupies its worker until it is done.
func (p *Pool) abandon(seq uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pending, seq)
	for i, j := range p.queue {
		if j.req.Seq == seq {
			p.queue = append(p.queue[:i], p.queue[i+1:]...)
			break
		}
	}
}

// Go queues a job and returns a call to wait for its replies.
func (p *Pool) Go(task string, data codec.Record, buffers []any) (*Call, error) {
	return p.goOn(-1, task, data, buffers)
}

func (p *Pool) goOn(affinity int, task string, data codec.Record, buffers []any) (*Call, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	j := p.newJob(task, data, buffers, affinity)
	p.enqueue(j)
	return j.call, nil
}

// Do runs a job and returns the data of its final reply. Partial replies are passed to each, which may be nil.
func (p *Pool) Do(ctx context.Context, task string, data codec.Record, buffers []any, each func(codec.Record)) (codec.Record, error) {
	call, err := p.Go(task, data, buffers)
	if err != nil {
		return nil, err
	}
	return call.Wait(ctx, each)
}

// Broadcast runs a job on every worker and waits for all of them.
func (p *Pool) Broadcast(ctx context.Context, task string, data codec.Record) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	calls := make([]*Call, len(p.workers))
	jobs := make([]*job, len(p.workers))
	for i := range p.workers {
		jobs[i] = p.newJob(task, data, nil, i)
		calls[i] = jobs[i].call
	}
	p.enqueue(jobs...)
	p.mu.Unlock()

	var errs []error
	for _, call := range calls {
		if _, err := call.Wait(ctx, nil); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

////////////////////////////////////////////////////////////////

// Call collects the replies of a queued job.
type Call struct {
	Seq uint64

	p       *Pool
	mu      sync.Mutex
	replies []Reply
	notify  chan struct{}
}

func newCall(p *Pool, seq uint64) *Call {
	return &Call{Seq: seq, p: p, notify: make(chan struct{}, 1)}
}

func (c *Call) push(r Reply) {
	c.mu.Lock()
	c.replies = append(c.replies, r)
	c.mu.Unlock()
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Next blocks until the next reply arrives. When ctx is done the job is abandoned.
func (c *Call) Next(ctx context.Context) (Reply, error) {
	for {
		c.mu.Lock()
		if 0 < len(c.replies) {
			r := c.replies[0]
			c.replies = c.replies[1:]
			c.mu.Unlock()
			return r, nil
		}
		c.mu.Unlock()

		select {
		case <-c.notify:
		case <-ctx.Done():
			c.p.abandon(c.Seq)
			return Reply{}, ctx.Err()
		}
	}
}

// Wait blocks until the job is done and returns the data of its final reply. Partial replies are passed to each, which may be nil.
func (c *Call) Wait(ctx context.Context, each func(codec.Record)) (codec.Record, error) {
	for {
		r, err := c.Next(ctx)
		if err != nil {
			return nil, err
		} else if !r.Done {
			if each != nil {
				each(r.Data)
			}
			continue
		} else if r.Err != nil {
			return nil, fmt.Errorf("%s: %w", r.Task, r.Err)
		}
		return r.Data, nil
	}
}

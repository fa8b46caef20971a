package storage

import (
	"context"
	"time"

	"github.com/go-logr/logr"
)

// Reclaimer periodically frees delta-chain entries that no active
// transaction's snapshot can still need: a delta is freed only after
// every transaction that could observe it has ended. It never touches a
// vertex or edge record
// itself, only the deltas linked from it — live records are freed by
// ordinary Go garbage collection once nothing (including a by-then-empty
// delta chain) references them anymore.
type Reclaimer struct {
	engine *Engine
	period time.Duration
	log    logr.Logger

	stop chan struct{}
	done chan struct{}
}

func NewReclaimer(engine *Engine, period time.Duration, log logr.Logger) *Reclaimer {
	return &Reclaimer{engine: engine, period: period, log: log, stop: make(chan struct{}), done: make(chan struct{})}
}

// Run blocks, reclaiming on each tick until ctx is cancelled or Stop is
// called. Intended to be launched with `go reclaimer.Run(ctx)`.
func (r *Reclaimer) Run(ctx context.Context) {
	defer close(r.done)
	if r.period <= 0 {
		return
	}
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-ticker.C:
			n := r.ReclaimOnce()
			if n > 0 {
				r.log.V(2).Info("reclaimed deltas", "count", n)
			}
		}
	}
}

func (r *Reclaimer) Stop() {
	close(r.stop)
	<-r.done
}

// ReclaimOnce performs a single full pass and returns the number of
// deltas it freed. Safe to call directly (e.g. from a test or an admin
// command) without the background Run loop.
func (r *Reclaimer) ReclaimOnce() int {
	oldest := r.engine.OldestActiveStart()
	freed := 0
	for _, v := range r.engine.AllVertices() {
		freed += reclaimVertexChain(v, oldest)
	}
	for _, e := range r.engine.AllEdges() {
		freed += reclaimEdgeChain(e, oldest)
	}
	return freed
}

// reclaimVertexChain cuts v's delta chain at the first delta that is
// already committed at or before oldest, freeing that delta and every
// older one: every active transaction's snapshot starts at or after that
// commit, so no reconstruction walk applies any of them, while the newer
// deltas ahead of it stay linked. Returns the count of deltas freed.
func reclaimVertexChain(v *Vertex, oldest uint64) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	var prev *Delta
	freed := 0
	for d := v.deltaHead; d != nil; d = d.next {
		if d.committed && d.commitTS <= oldest {
			if prev == nil {
				v.deltaHead = nil
			} else {
				prev.next = nil
			}
			for cur := d; cur != nil; cur = cur.next {
				freed++
			}
			return freed
		}
		prev = d
	}
	return 0
}

func reclaimEdgeChain(e *Edge, oldest uint64) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	var prev *Delta
	freed := 0
	for d := e.deltaHead; d != nil; d = d.next {
		if d.committed && d.commitTS <= oldest {
			if prev == nil {
				e.deltaHead = nil
			} else {
				prev.next = nil
			}
			for cur := d; cur != nil; cur = cur.next {
				freed++
			}
			return freed
		}
		prev = d
	}
	return 0
}

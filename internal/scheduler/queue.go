package scheduler

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetwatch/monitor/internal/domain/device"
)

type jobKind int

const (
	jobPing jobKind = iota
	jobSNMP
)

type job struct {
	kind       jobKind
	deviceID   uuid.UUID
	ip         string
	items      []*device.MonitoringItem
	enqueuedAt time.Time
}

// jobQueue is a FIFO job queue with explicit backpressure: when full it
// drops the oldest queued ping job to make room rather than blocking the
// dispatcher, and never drops an SNMP job (spec §4.2).
type jobQueue struct {
	mu        sync.Mutex
	cond      *sync.Cond
	items     []job
	highWater int
	closed    bool
}

func newJobQueue(highWater int) *jobQueue {
	q := &jobQueue{highWater: highWater}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push enqueues a ping job, dropping the oldest queued ping job if the
// queue is over its high-water mark. Returns false if the job itself was
// dropped (queue full of SNMP work that cannot be displaced).
func (q *jobQueue) push(j job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	if len(q.items) > q.highWater {
		if idx := q.oldestPingIndex(); idx >= 0 {
			q.items = append(q.items[:idx], q.items[idx+1:]...)
		} else {
			return false
		}
	}
	q.items = append(q.items, j)
	q.cond.Signal()
	return true
}

// pushSNMP always enqueues, per spec §4.2 "never drop SNMP polls that were
// requested this cycle".
func (q *jobQueue) pushSNMP(j job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, j)
	q.cond.Signal()
}

func (q *jobQueue) oldestPingIndex() int {
	for i, it := range q.items {
		if it.kind == jobPing {
			return i
		}
	}
	return -1
}

// pop blocks until a job is available or the queue is closed and drained.
func (q *jobQueue) pop() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return job{}, false
	}
	j := q.items[0]
	q.items = q.items[1:]
	return j, true
}

func (q *jobQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// closeAndDrain stops accepting signals for new waits once the queue is
// empty, but lets already-queued jobs (including in-flight ones workers
// are actively running) complete first.
func (q *jobQueue) closeAndDrain() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

package engine

import (
	"crypto/sha256"
	"encoding/binary"
)

// WorkItem is a schedulable unit of work in the execution frontier: a
// node ready to spawn, along with its resolved flow input and support
// inputs. Unlike a reducer-based engine's WorkItem (which carries a
// full state snapshot), this engine's state lives in the OutputStore
// keyed by node id, so a WorkItem carries only what that one node needs
// to run.
type WorkItem struct {
	StepID   int
	OrderKey uint64

	NodeID        string
	FlowInput     any
	SupportInputs map[string][]ActionOutput

	Attempt      int
	ParentNodeID string
	EdgeIndex    int
}

// computeOrderKey derives a deterministic key from the parent node id
// and edge index a work item was pushed with. The ready queue is not
// sorted by it (see below).
func computeOrderKey(parentNodeID string, edgeIndex int) uint64 {
	h := sha256.New()
	h.Write([]byte(parentNodeID))
	edgeBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(edgeBytes, uint32(edgeIndex))
	h.Write(edgeBytes)
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

// runState's readyQueue is kept as a plain append-ordered slice rather
// than the teacher's heap+channel Frontier: edge evaluation and
// frontier-set updates all happen under Engine.Run's single-threaded
// completion loop, always iterating a node's outgoing connections in
// the same definition order, so FIFO append order is already
// deterministic run-to-run without a heap. OrderKey is kept on
// WorkItem as the edge-derived identity the teacher's scheduler used
// for cross-goroutine ordering; nothing here sorts by it. It is not
// unique: readyNode passes the last deciding parent and the number of
// activated incoming edges, so two targets readied by the same parent
// with the same activation count share a key.

// semaphore bounds in-flight node tasks to budget.max_concurrent_nodes.
type semaphore struct {
	ch chan struct{}
}

func newSemaphore(n int) *semaphore {
	return &semaphore{ch: make(chan struct{}, n)}
}

// tryAcquire attempts a non-blocking acquire, returning false if every
// permit is currently held. The ready-queue drain loop uses this rather
// than a blocking acquire so it never stalls the single-threaded
// completion loop on semaphore capacity — it simply leaves the item at
// the front of the queue and falls through to the select that awaits
// completions, which is where permits free up.
func (s *semaphore) tryAcquire() bool {
	select {
	case s.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *semaphore) release() {
	select {
	case <-s.ch:
	default:
	}
}

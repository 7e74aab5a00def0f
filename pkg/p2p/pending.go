package p2p

import (
	"sync"
	"time"

	"github.com/r3e-network/neo-go-core/pkg/core/transaction"
)

// pendingRequest tracks one outstanding block/transaction request: who we
// asked, when, who has already told us NotFound, and how
// many times we've retried against an alternate peer.
type pendingRequest struct {
	hash        transaction.Hash256
	peer        string
	issuedAt    time.Time
	failedPeers map[string]struct{}
	retryCount  int
}

// pendingSet is one of the two pending-request maps (blocks,
// transactions), each guarded by its own mutex to keep the hot path
// narrow.
type pendingSet struct {
	mu       sync.Mutex
	entries  map[transaction.Hash256]*pendingRequest
	timeout  time.Duration
	maxRetry int
}

func newPendingSet(timeout time.Duration, maxRetry int) *pendingSet {
	return &pendingSet{
		entries:  make(map[transaction.Hash256]*pendingRequest),
		timeout:  timeout,
		maxRetry: maxRetry,
	}
}

// Has reports whether hash has an unexpired pending request, the
// do-we-still-need-it test inventory handling runs.
func (s *pendingSet) Has(hash transaction.Hash256, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.entries[hash]
	if !ok {
		return false
	}
	if now.Sub(req.issuedAt) > s.timeout {
		delete(s.entries, hash)
		return false
	}
	return true
}

// Start records a fresh request to peer for hash, overwriting any prior
// (expired or not) entry.
func (s *pendingSet) Start(hash transaction.Hash256, peer string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[hash] = &pendingRequest{
		hash:        hash,
		peer:        peer,
		issuedAt:    now,
		failedPeers: make(map[string]struct{}),
	}
}

// requestOutcome tells the caller what to do after a NotFound/arrival.
type requestOutcome int

const (
	outcomeNone requestOutcome = iota
	outcomeRetry
	outcomeDropped
)

// Fail records peer as having replied NotFound for hash and reports
// whether a retry against readyPeers (excluding already-failed ones) is
// possible. The alternate peer is populated when outcomeRetry is
// returned.
func (s *pendingSet) Fail(hash transaction.Hash256, peer string, now time.Time, readyPeers []string) (requestOutcome, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.entries[hash]
	if !ok {
		return outcomeNone, ""
	}
	req.failedPeers[peer] = struct{}{}
	req.retryCount++
	if req.retryCount > s.maxRetry {
		delete(s.entries, hash)
		return outcomeDropped, ""
	}
	for _, candidate := range readyPeers {
		if candidate == peer {
			continue
		}
		if _, failed := req.failedPeers[candidate]; failed {
			continue
		}
		req.peer = candidate
		req.issuedAt = now
		return outcomeRetry, candidate
	}
	delete(s.entries, hash)
	return outcomeDropped, ""
}

// Complete removes hash's pending record once the item has arrived and
// been validated.
func (s *pendingSet) Complete(hash transaction.Hash256) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, hash)
}

// TimedOut returns a snapshot of every pending request that has gone
// silent past its timeout, without removing them — the caller decides
// whether to retry (via Fail, using req.peer as the "failing" peer) or
// drop, the same way an explicit NotFound does.
func (s *pendingSet) TimedOut(now time.Time) []pendingRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []pendingRequest
	for _, req := range s.entries {
		if now.Sub(req.issuedAt) > s.timeout {
			out = append(out, *req)
		}
	}
	return out
}

package p2p

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// getDataBurst/getDataRate bound how many items of an inbound GetData
// request one peer gets served per second ("per-peer
// outbound GetData shaping"). A peer that wants more than this has to ask
// again, same as it would after a NotFound.
const (
	getDataRate  = 64
	getDataBurst = 128
)

// limiterFor returns (creating if necessary) peerID's outbound GetData
// limiter. Limiters live in their own map under limitersMu, are created on
// the peer's first GetData, and are dropped when the peer disconnects.
func (h *Handler) limiterFor(peerID string) *rate.Limiter {
	h.limitersMu.Lock()
	defer h.limitersMu.Unlock()
	if h.limiters == nil {
		h.limiters = make(map[string]*rate.Limiter)
	}
	l, ok := h.limiters[peerID]
	if !ok {
		l = rate.NewLimiter(getDataRate, getDataBurst)
		h.limiters[peerID] = l
	}
	return l
}

func (h *Handler) dropLimiter(peerID string) {
	h.limitersMu.Lock()
	delete(h.limiters, peerID)
	h.limitersMu.Unlock()
}

// Run drives the handler's periodic background work — keepalive pings and
// expired-request sweeps — until ctx is cancelled. An errgroup.Group
// supervises the loops: any loop returning an error (there is currently
// only one, but the shape leaves room for more) cancels the group's
// context and Run returns that error.
func (h *Handler) Run(ctx context.Context, nonceSeed func() uint64) error {
	interval := h.cfg.Settings.ProtoTickInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				now := h.now()
				h.CheckKeepalive(now, nonceSeed)
				h.SweepExpiredRequests(now)
			}
		}
	})
	return g.Wait()
}

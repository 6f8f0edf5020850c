// Package reconcile consumes peer-sync notifications from the daemon and
// applies minimal, idempotent updates to the entity cache and the
// per-stream network status. One reconciler instance runs per document
// stream; the profile and post streams never cross-update each other.
package reconcile

import (
	"context"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/kukuri-social/kukuri/internal/daemon"
	"go.uber.org/zap"
)

// Source is the push side of the daemon connection.
type Source interface {
	Subscribe(stream string, fn func(daemon.Event)) (func(), error)
}

// Reconciler applies one stream's notifications. Entity updates only
// invalidate the cached entry; the next selector-driven read refetches
// lazily. A completed sync round additionally triggers a list refresh,
// since merged remote content may not be announced per entity.
type Reconciler struct {
	stream     string
	source     Source
	invalidate func(id string)
	refresh    func(ctx context.Context) error
	logger     *zap.Logger

	mu          sync.Mutex
	status      Status
	unsubscribe func()
	refreshCh   chan struct{}
	quit        chan struct{}
	wg          sync.WaitGroup
}

// New creates a reconciler for one stream. invalidate drops one cached
// entity by owner id; refresh reloads the stream's list-shaped view.
func New(
	stream string,
	source Source,
	invalidate func(id string),
	refresh func(ctx context.Context) error,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		stream:     stream,
		source:     source,
		invalidate: invalidate,
		refresh:    refresh,
		logger:     logger.Named("reconcile").With(zap.String("stream", stream)),
	}
}

// Start subscribes to the stream and launches the refresh worker. Calling
// Start on a running reconciler is a no-op, so re-entry from a remounted
// owner is safe: there is never more than one active subscription.
func (r *Reconciler) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.unsubscribe != nil {
		return nil
	}

	unsubscribe, err := r.source.Subscribe(r.stream, r.handle)
	if err != nil {
		return err
	}

	r.unsubscribe = unsubscribe
	r.refreshCh = make(chan struct{}, 1)
	r.quit = make(chan struct{})

	r.wg.Add(1)
	go r.refreshWorker(r.refreshCh, r.quit)

	r.logger.Info("Subscribed to document stream")

	return nil
}

// Stop tears the subscription down. Safe to call on every exit path and
// more than once; after Stop no handler of this reconciler runs again.
func (r *Reconciler) Stop() {
	r.mu.Lock()

	if r.unsubscribe == nil {
		r.mu.Unlock()
		return
	}

	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	close(r.quit)
	r.mu.Unlock()

	unsubscribe()
	r.wg.Wait()

	r.logger.Info("Unsubscribed from document stream")
}

// Status returns the stream's current connectivity signal.
func (r *Reconciler) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.status
}

// handle classifies one notification. It runs on the transport's reader
// goroutine and never blocks: cache invalidation is immediate, list
// refreshes are enqueued for the worker. Malformed payloads are logged
// and swallowed so a single bad notification cannot halt the
// subscription.
func (r *Reconciler) handle(ev daemon.Event) {
	switch ev.Name {
	case daemon.EventContentUpdated:
		var payload daemon.ContentPayload
		if err := sonic.Unmarshal(ev.Payload, &payload); err != nil {
			r.logger.Warn("Discarding malformed content event", zap.Error(err))
			return
		}

		if payload.Author == "" {
			r.logger.Warn("Discarding content event without author")
			return
		}

		// Lazy reconciliation: drop the entry, let the next read refetch.
		r.invalidate(payload.Author)
		r.logger.Debug("Invalidated entity from sync event",
			zap.String("type", payload.Type),
			zap.String("author", payload.Author))

	case daemon.EventContentReady:
		var payload daemon.ContentReadyPayload
		if err := sonic.Unmarshal(ev.Payload, &payload); err != nil {
			r.logger.Warn("Discarding malformed content-ready event", zap.Error(err))
			return
		}

		// Advisory: nothing local is keyed by content hash. Hook point for
		// content-addressed fetch if the daemon ever exposes the mapping.
		r.logger.Debug("Content ready", zap.String("hash", payload.Hash))

	case daemon.EventNeighborStatus:
		var payload daemon.NeighborPayload
		if err := sonic.Unmarshal(ev.Payload, &payload); err != nil {
			r.logger.Warn("Discarding malformed neighbor event", zap.Error(err))
			return
		}

		switch payload.Type {
		case daemon.NeighborUp:
			r.setStatus(StatusConnected)
		case daemon.NeighborDown:
			r.setStatus(StatusDisconnected)
		default:
			r.logger.Warn("Discarding neighbor event with unknown type",
				zap.String("type", payload.Type))
		}

	case daemon.EventSyncFinished:
		var payload daemon.SyncPayload
		if err := sonic.Unmarshal(ev.Payload, &payload); err != nil {
			r.logger.Warn("Discarding malformed sync event", zap.Error(err))
			return
		}

		r.setStatus(StatusConnected)
		r.enqueueRefresh()
		r.logger.Debug("Sync round finished", zap.String("origin", payload.Origin))

	default:
		r.logger.Warn("Discarding unrecognized event", zap.String("event", ev.Name))
	}
}

func (r *Reconciler) setStatus(status Status) {
	r.mu.Lock()
	changed := r.status != status
	r.status = status
	r.mu.Unlock()

	if changed {
		r.logger.Info("Network status changed", zap.Stringer("status", status))
	}
}

// enqueueRefresh signals the worker. Back-to-back sync completions
// coalesce into a single pending refresh.
func (r *Reconciler) enqueueRefresh() {
	r.mu.Lock()
	ch := r.refreshCh
	r.mu.Unlock()

	if ch == nil {
		return
	}

	select {
	case ch <- struct{}{}:
	default:
	}
}

// refreshWorker runs list refreshes off the reader goroutine. Failures
// are logged only: background reconciliation must never surface to the
// user, and a failed refresh leaves the cache exactly as it was.
func (r *Reconciler) refreshWorker(refreshCh <-chan struct{}, quit <-chan struct{}) {
	defer r.wg.Done()

	for {
		select {
		case <-quit:
			return
		case <-refreshCh:
			if r.refresh == nil {
				continue
			}

			if err := r.refresh(context.Background()); err != nil {
				r.logger.Warn("Post-sync refresh failed", zap.Error(err))
			}
		}
	}
}

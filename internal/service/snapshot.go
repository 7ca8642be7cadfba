package service

import (
	"context"
	"log"
	"time"

	"github.com/Dimagious/jeopardy-game-sub000/internal/cache"
	"github.com/Dimagious/jeopardy-game-sub000/internal/model"
	"github.com/Dimagious/jeopardy-game-sub000/internal/repository"
)

// SnapshotWriter drains session snapshots to Mongo and Redis on a dedicated
// goroutine so persistence never runs under a session lock. Enqueue drops
// rather than blocks when the writer falls behind; a later snapshot of the
// same session supersedes a dropped one.
type SnapshotWriter struct {
	repo  repository.SessionRepo
	cache cache.SessionCache
	pins  cache.PinIndex

	ch   chan *model.Session
	done chan struct{}
}

// NewSnapshotWriter starts the writer goroutine.
func NewSnapshotWriter(repo repository.SessionRepo, sessionCache cache.SessionCache, pins cache.PinIndex) *SnapshotWriter {
	w := &SnapshotWriter{
		repo:  repo,
		cache: sessionCache,
		pins:  pins,
		ch:    make(chan *model.Session, 256),
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

// Enqueue implements SessionSink.
func (w *SnapshotWriter) Enqueue(session *model.Session) {
	select {
	case w.ch <- session:
	default:
	}
}

// InvalidatePin implements SessionSink. Runs synchronously: the PIN index
// must go stale the moment a session stops, not when the queue drains.
func (w *SnapshotWriter) InvalidatePin(pin string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.pins.Delete(ctx, pin); err != nil {
		log.Printf("snapshot: invalidate pin %s: %v", pin, err)
	}
}

// Close stops the writer after draining queued snapshots.
func (w *SnapshotWriter) Close() {
	close(w.ch)
	<-w.done
}

func (w *SnapshotWriter) run() {
	defer close(w.done)
	for session := range w.ch {
		w.write(session)
	}
}

func (w *SnapshotWriter) write(session *model.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.repo.Save(ctx, session); err != nil {
		log.Printf("snapshot: save session %s: %v", session.ID, err)
	}
	if err := w.cache.Set(ctx, session); err != nil {
		log.Printf("snapshot: cache session %s: %v", session.ID, err)
	}
	if session.IsActive {
		if err := w.pins.Set(ctx, session.Pin, session.ID); err != nil {
			log.Printf("snapshot: index pin %s: %v", session.Pin, err)
		}
	}
}

// Copyright 2026 The Gatehouse Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package decisionlog

import (
	"context"
	"crypto/rand"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Service decouples decision recording from the evaluation path: Record never
// blocks, records are written by a background goroutine, and the buffer drops
// under pressure rather than stalling a permission check.
type Service struct {
	sink Sink
	ch   chan *Record
	wg   sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
	dropped int64
}

// NewService creates a decision log service with the given buffer capacity
func NewService(sink Sink, buffer int) *Service {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Service{
		sink: sink,
		ch:   make(chan *Record, buffer),
	}
}

// Start launches the background writer. It returns immediately; the writer
// stops and flushes when Close is called.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for rec := range s.ch {
			if err := s.sink.Write(ctx, rec); err != nil {
				slog.WarnContext(ctx, "failed to write decision record",
					slog.String("component", "decisionlog"),
					slog.String("error", err.Error()),
				)
			}
		}
	}()
}

// Record enqueues a decision record without blocking. Records are dropped
// when the buffer is full or the service has been closed; the decision
// itself has already been returned to the caller and is never affected.
func (s *Service) Record(rec *Record) {
	if rec.ID == "" {
		rec.ID = ulid.MustNew(ulid.Timestamp(rec.CheckedAt), rand.Reader).String()
	}

	// The send must share the lock with Close: once Close closes the
	// channel, an unguarded send would panic.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.dropped++
		return
	}
	select {
	case s.ch <- rec:
	default:
		s.dropped++
	}
}

// Dropped reports how many records were discarded due to a full buffer
func (s *Service) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close stops the writer after draining buffered records. Later Record calls
// count as dropped; closing twice is a no-op.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	started := s.started
	s.started = false
	close(s.ch)
	s.mu.Unlock()

	if started {
		s.wg.Wait()
	}
}

// Prune removes records older than the retention window
func (s *Service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	return s.sink.Prune(ctx, time.Now().Add(-retention))
}

// SlogSink is a sink that only logs records; useful when no durable store is
// configured.
type SlogSink struct{}

// Write logs the record at debug level
func (SlogSink) Write(ctx context.Context, rec *Record) error {
	slog.DebugContext(ctx, "permission_decision",
		slog.String("component", "decisionlog"),
		slog.String("user_id", rec.UserID),
		slog.String("profile", rec.Profile),
		slog.String("operation", rec.Operation),
		slog.String("object", rec.Object),
		slog.String("organization_id", rec.OrganizationID),
		slog.Bool("allowed", rec.Allowed),
		slog.String("reason", rec.Reason),
	)
	return nil
}

// Prune is a no-op for the log-only sink
func (SlogSink) Prune(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

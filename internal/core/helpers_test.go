package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"mortuary/internal/infra/persistence/memory"
	"mortuary/pkg/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 2, 10, 15, 30, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) { c.Set(c.Now().Add(d)) }

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%08d-0000-4000-8000-000000000000", n)
	}
}

func newTestService(t *testing.T, opts ...Option) (*Service, *memory.Store, *fakeClock) {
	t.Helper()
	store := memory.NewStore()
	clock := newFakeClock()
	base := []Option{WithClock(clock.Now), WithLocation(time.UTC), WithIDGenerator(sequentialIDs())}
	svc := NewService(store, append(base, opts...)...)
	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return svc, store, clock
}

func janeDoe() RecordInput {
	return RecordInput{
		DeceasedName:    "Jane Doe",
		BodyTagNo:       "B-102",
		DodDate:         "2024-03-01",
		StorageLocation: "Drawer 4",
	}
}

func mustCreate(t *testing.T, svc *Service, in RecordInput) domain.Record {
	t.Helper()
	rec, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return rec
}

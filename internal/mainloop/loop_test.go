package mainloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestPostRunsInOrder(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	var mu sync.Mutex
	var got []int
	for i := 0; i < 50; i++ {
		i := i
		l.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	if err := l.Call(ctx, func() error { return nil }); err != nil {
		t.Fatalf("Call: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 50 {
		t.Fatalf("expected 50 callbacks, got %d", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("position %d expected %d got %d", i, i, v)
		}
	}
}

func TestPostFromLoopDoesNotBlock(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	err := l.Call(ctx, func() error {
		for i := 0; i < 10; i++ {
			l.Post(func() {})
		}
		return errors.New("done")
	})
	if err == nil || err.Error() != "done" {
		t.Fatalf("expected error from callback, got %v", err)
	}
}

func TestCallAfterStopFails(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(finished)
	}()
	cancel()
	<-finished

	callCtx, callCancel := context.WithTimeout(context.Background(), time.Second)
	defer callCancel()
	if err := l.Call(callCtx, func() error { return nil }); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

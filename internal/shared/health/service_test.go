package health

import (
	"context"
	"errors"
	"testing"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestCheck(t *testing.T) {
	ctx := context.Background()

	if got := NewService(nil).Check(ctx); !got.OK || got.Database != "memory" {
		t.Fatalf("unexpected memory status %+v", got)
	}
	up := NewService(pingerFunc(func(context.Context) error { return nil }))
	if got := up.Check(ctx); !got.OK || got.Database != "ok" {
		t.Fatalf("unexpected up status %+v", got)
	}
	down := NewService(pingerFunc(func(context.Context) error { return errors.New("refused") }))
	if got := down.Check(ctx); got.OK || got.Database != "unavailable" {
		t.Fatalf("unexpected down status %+v", got)
	}
}

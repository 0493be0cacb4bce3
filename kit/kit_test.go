package kit

import (
	"context"
	"errors"
	"testing"
)

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}
	ep := func(ctx context.Context, req any) (any, error) {
		order = append(order, "endpoint")
		return req, nil
	}

	chained := Chain(ep, mw("outer"), mw("inner"))
	if _, err := chained(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}

	want := []string{"outer", "inner", "endpoint"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestChain_ErrorPropagates(t *testing.T) {
	sentinel := errors.New("nope")
	ep := func(ctx context.Context, req any) (any, error) { return nil, sentinel }
	noop := func(next Endpoint) Endpoint { return next }

	if _, err := Chain(ep, noop)(context.Background(), nil); !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want sentinel", err)
	}
}

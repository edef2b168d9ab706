package gallery

import (
	"context"
	"errors"
	"log/slog"
)

type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusEmpty   Status = "empty"
	StatusFailed  Status = "failed"
)

// ErrViewClosed reports that the view owning a fetch went away before the
// fetch returned; its result was dropped.
var ErrViewClosed = errors.New("view closed before fetch completed")

// Feed is what a gallery view renders: a loading indicator until the fetch
// returns, then items, an empty notice or an error message.
type Feed[T any] struct {
	Status Status `json:"status"`
	Items  []T    `json:"items"`
	Error  string `json:"error,omitempty"`
}

func Loading[T any]() Feed[T] {
	return Feed[T]{Status: StatusLoading, Items: []T{}}
}

// Load runs fetch within the view's context. Fetch errors become a failed
// feed carrying failMessage; a view that is gone by the time fetch returns
// gets ErrViewClosed and the result is discarded.
func Load[T any](ctx context.Context, fetch func(context.Context) ([]T, error), failMessage string) (Feed[T], error) {
	items, err := fetch(ctx)
	if ctx.Err() != nil {
		return Loading[T](), ErrViewClosed
	}
	if err != nil {
		slog.Error("gallery fetch failed", "error", err)
		return Feed[T]{Status: StatusFailed, Items: []T{}, Error: failMessage}, nil
	}
	if len(items) == 0 {
		return Feed[T]{Status: StatusEmpty, Items: []T{}}, nil
	}
	return Feed[T]{Status: StatusReady, Items: items}, nil
}

// Filter keeps the items matching keep, recomputing the status.
func (f Feed[T]) Filter(keep func(T) bool) Feed[T] {
	if f.Status != StatusReady {
		return f
	}
	out := make([]T, 0, len(f.Items))
	for _, item := range f.Items {
		if keep(item) {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return Feed[T]{Status: StatusEmpty, Items: out}
	}
	return Feed[T]{Status: StatusReady, Items: out}
}

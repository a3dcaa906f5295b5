// Package throttle paces Web API requests so a run stays under the rate limit.
package throttle

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"
)

// Throttle spaces requests evenly at limitPerMinute. A non-positive limit
// never blocks.
type Throttle struct {
	limiter *rate.Limiter
}

func New(limitPerMinute int) *Throttle {
	if limitPerMinute <= 0 {
		return &Throttle{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Limit(float64(limitPerMinute)/60), 1)}
}

// Wait blocks until a request may be made. It fails without waiting when ctx
// is done or its deadline comes before the next slot.
func (t *Throttle) Wait(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("catalog throttle: %w", err)
	}
	return nil
}

type transport struct {
	next     http.RoundTripper
	throttle *Throttle
}

// Transport returns a round tripper that waits on a throttle allowing
// limitPerMinute requests before handing each one to next. Every page of a
// paginated listing is a separate request and takes its own slot. A nil next
// means http.DefaultTransport; a non-positive limit returns next unchanged.
func Transport(next http.RoundTripper, limitPerMinute int) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if limitPerMinute <= 0 {
		return next
	}
	return &transport{next: next, throttle: New(limitPerMinute)}
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.throttle.Wait(req.Context()); err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}
	return t.next.RoundTrip(req)
}

package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/yanisfaquir/weatherboard/internal/models"
)

// inFlightList is one remote list call that later identical callers wait on.
type inFlightList struct {
	done    chan struct{}
	records []models.WeatherRecord
	err     error
}

// listCoalescer shares one remote round trip among concurrent identical list
// calls. The first caller executes; the rest wait for its result up to the
// configured timeout. Sequential callers are unaffected.
type listCoalescer struct {
	mu       sync.Mutex
	inFlight map[string]*inFlightList
	timeout  time.Duration
}

func newListCoalescer(timeout time.Duration) *listCoalescer {
	return &listCoalescer{
		inFlight: make(map[string]*inFlightList),
		timeout:  timeout,
	}
}

// GetOrDo executes fn for key unless an identical call is already in flight,
// in which case it waits for that call's result. Waiters respect ctx and the
// coalescer timeout; the executing caller always runs fn to completion so a
// terminal outcome is guaranteed.
func (c *listCoalescer) GetOrDo(ctx context.Context, key string, fn func() ([]models.WeatherRecord, error)) ([]models.WeatherRecord, error) {
	c.mu.Lock()
	if req, ok := c.inFlight[key]; ok {
		c.mu.Unlock()
		waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		select {
		case <-req.done:
			return req.records, req.err
		case <-waitCtx.Done():
			return nil, waitCtx.Err()
		}
	}

	req := &inFlightList{done: make(chan struct{})}
	c.inFlight[key] = req
	c.mu.Unlock()

	req.records, req.err = fn()
	close(req.done)

	c.mu.Lock()
	delete(c.inFlight, key)
	c.mu.Unlock()

	return req.records, req.err
}

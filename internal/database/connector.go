// Package database caches one process-wide database handle.
//
// The handle is created lazily, pinged before every reuse and rebuilt after a
// failed ping, so a process that outlives its database connection recovers on
// the next request instead of restarting.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrConnect is wrapped by every error returned when a handle cannot be established.
var ErrConnect = errors.New("database connection failed")

// Driver knows how to open, check and close a handle of type T.
type Driver[T any] struct {
	Dial  func(ctx context.Context) (T, error)
	Ping  func(ctx context.Context, conn T) error
	Close func(ctx context.Context, conn T) error
}

// Connector guards a single handle of type T.
type Connector[T any] struct {
	name   string
	driver Driver[T]
	logger *slog.Logger

	// dialing is a one-slot semaphore so waiters can give up on their own context.
	dialing chan struct{}

	mu        sync.Mutex
	conn      T
	connected bool
	gen       uint64
}

// NewConnector creates a Connector. Nothing is dialed until EnsureConnected is called.
func NewConnector[T any](name string, driver Driver[T], logger *slog.Logger) *Connector[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector[T]{
		name:    name,
		driver:  driver,
		logger:  logger,
		dialing: make(chan struct{}, 1),
	}
}

// EnsureConnected returns a live handle, dialing a new one when there is no
// cached handle or the cached one fails its ping. It is safe to call from
// concurrent requests; pings run unlocked and at most one dial is in flight.
func (c *Connector[T]) EnsureConnected(ctx context.Context) (T, error) {
	if conn, gen, ok := c.cached(); ok {
		err := c.driver.Ping(ctx, conn)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			// Only this caller ran out of time; keep the shared handle.
			var zero T
			return zero, fmt.Errorf("%w: %s: %v", ErrConnect, c.name, err)
		}
		c.logger.WarnContext(ctx, "cached database connection is unhealthy, reconnecting",
			slog.String("database", c.name),
			slog.Any("error", err),
		)
		c.invalidate(ctx, gen)
	}
	return c.dial(ctx)
}

func (c *Connector[T]) dial(ctx context.Context) (T, error) {
	var zero T

	select {
	case c.dialing <- struct{}{}:
	case <-ctx.Done():
		return zero, fmt.Errorf("%w: %s: %v", ErrConnect, c.name, ctx.Err())
	}
	defer func() { <-c.dialing }()

	// Someone else may have connected while we waited for the slot.
	if conn, _, ok := c.cached(); ok {
		return conn, nil
	}

	conn, err := c.driver.Dial(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "database dial failed",
			slog.String("database", c.name),
			slog.Any("error", err),
		)
		return zero, fmt.Errorf("%w: %s: %v", ErrConnect, c.name, err)
	}

	if err := c.driver.Ping(ctx, conn); err != nil {
		c.logger.ErrorContext(ctx, "database ping after dial failed",
			slog.String("database", c.name),
			slog.Any("error", err),
		)
		c.closeConn(ctx, conn)
		return zero, fmt.Errorf("%w: %s: %v", ErrConnect, c.name, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.gen++
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "database connected", slog.String("database", c.name))
	return conn, nil
}

// Handle returns the cached handle without pinging it, dialing only when
// nothing is cached yet. Store operations use it after a request has already
// passed EnsureConnected.
func (c *Connector[T]) Handle(ctx context.Context) (T, error) {
	if conn, _, ok := c.cached(); ok {
		return conn, nil
	}
	return c.EnsureConnected(ctx)
}

// Connected reports whether a handle is currently cached.
func (c *Connector[T]) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Warm tries to establish the first connection, backing off exponentially
// until maxElapsed has passed or ctx is done.
func (c *Connector[T]) Warm(ctx context.Context, maxElapsed time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = maxElapsed

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		_, err := c.EnsureConnected(ctx)
		if err != nil {
			c.logger.WarnContext(ctx, "database warmup attempt failed",
				slog.String("database", c.name),
				slog.Int("attempt", attempt),
			)
		}
		return err
	}, backoff.WithContext(b, ctx))
}

// Close releases the cached handle. The Connector may be reused afterwards.
func (c *Connector[T]) Close(ctx context.Context) error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	conn := c.conn
	var zero T
	c.conn = zero
	c.connected = false
	c.mu.Unlock()

	if c.driver.Close == nil {
		return nil
	}
	return c.driver.Close(ctx, conn)
}

func (c *Connector[T]) cached() (T, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn, c.gen, c.connected
}

// invalidate drops the cached handle if it is still generation gen, so a
// handle dialed by a concurrent request is not thrown away.
func (c *Connector[T]) invalidate(ctx context.Context, gen uint64) {
	c.mu.Lock()
	if !c.connected || c.gen != gen {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	var zero T
	c.conn = zero
	c.connected = false
	c.mu.Unlock()

	c.closeConn(ctx, conn)
}

func (c *Connector[T]) closeConn(ctx context.Context, conn T) {
	if c.driver.Close == nil {
		return
	}
	if err := c.driver.Close(ctx, conn); err != nil {
		c.logger.WarnContext(ctx, "closing database connection failed",
			slog.String("database", c.name),
			slog.Any("error", err),
		)
	}
}

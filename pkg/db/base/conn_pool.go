package base

import (
	"context"
	"database/sql"
	"sync"

	"go.uber.org/zap"

	"github.com/quartzdata/quartz/pkg/errors"
)

// probeQuery is the trivial round trip used to verify a cached connection is
// still alive before it is handed out or returned.
const probeQuery = "SELECT 1"

// ConnPool is a bounded mutex-guarded cache of live connections. Creating a
// fresh authenticated session is the dominant latency cost for some backends,
// so reuse amortizes it, but a stale session is never silently reused: every
// connection is probed before checkout and before return. The capacity bound
// is enforced at insertion; an exhausted cache transparently creates a new
// connection.
type ConnPool struct {
	db       *sql.DB
	capacity int
	logger   *zap.Logger

	mu     sync.Mutex
	idle   []*sql.Conn
	closed bool
}

// NewConnPool creates a pool caching up to capacity live connections drawn
// from db.
func NewConnPool(db *sql.DB, capacity int, logger *zap.Logger) *ConnPool {
	if capacity < 0 {
		capacity = 0
	}
	return &ConnPool{
		db:       db,
		capacity: capacity,
		logger:   logger.With(zap.String("component", "conn_pool")),
	}
}

// Acquire returns a live connection: a probed cached one when available,
// otherwise a freshly created one. Cached connections failing the probe are
// discarded and the next entry is tried.
func (p *ConnPool) Acquire(ctx context.Context) (*sql.Conn, error) {
	for {
		conn := p.pop()
		if conn == nil {
			break
		}
		if err := p.probe(ctx, conn); err != nil {
			p.logger.Debug("discarding stale pooled connection", zap.Error(err))
			_ = conn.Close()
			continue
		}
		p.logger.Debug("reused pooled connection")
		return conn, nil
	}

	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create connection")
	}
	p.logger.Debug("created new connection")
	return conn, nil
}

// Release probes the connection and returns it to the cache when healthy and
// there is room; otherwise the connection is closed. Safe to call with nil.
func (p *ConnPool) Release(ctx context.Context, conn *sql.Conn) {
	if conn == nil {
		return
	}
	if err := p.probe(ctx, conn); err != nil {
		p.logger.Debug("dropping unhealthy connection on release", zap.Error(err))
		_ = conn.Close()
		return
	}

	p.mu.Lock()
	if !p.closed && len(p.idle) < p.capacity {
		p.idle = append(p.idle, conn)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	_ = conn.Close()
}

// Size returns the number of cached idle connections.
func (p *ConnPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// Close discards all cached connections and closes the underlying database
// handle. The pool is unusable afterwards.
func (p *ConnPool) Close() error {
	p.mu.Lock()
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, conn := range idle {
		_ = conn.Close()
	}
	return p.db.Close()
}

func (p *ConnPool) pop() *sql.Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.idle) == 0 {
		return nil
	}
	conn := p.idle[len(p.idle)-1]
	p.idle = p.idle[:len(p.idle)-1]
	return conn
}

func (p *ConnPool) probe(ctx context.Context, conn *sql.Conn) error {
	_, err := conn.ExecContext(ctx, probeQuery)
	return err
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/domain"
)

// ErrLockTimeout is returned by lock functions when the server reports that
// the lock wait timed out.
var ErrLockTimeout = errors.New("timed out waiting for the advisory lock")

// LockFunc takes or releases a lock on a reserved connection.
type LockFunc func(ctx context.Context, conn *sql.Conn) error

// SessionLock holds a session scoped advisory lock. The lock lives on one
// reserved connection until Release.
type SessionLock struct {
	mu   sync.Mutex
	conn *sql.Conn
}

// Acquire reserves a connection of p and runs acquire on it, bounded by the
// configured lock timeout. Acquiring a held lock is a no-op.
func (l *SessionLock) Acquire(ctx context.Context, p *Pool, acquire LockFunc) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return nil
	}

	conn, err := p.Conn(ctx)
	if err != nil {
		return p.MapError("acquire lock", err)
	}

	lockCtx, cancel := context.WithTimeout(ctx, p.config.LockTimeout)
	defer cancel()

	if err := acquire(lockCtx, conn); err != nil {
		conn.Close()
		if errors.Is(err, ErrLockTimeout) || errors.Is(lockCtx.Err(), context.DeadlineExceeded) {
			return domain.NewDatabaseLockAcquisitionError(p.info, err)
		}
		return p.MapError("acquire lock", err)
	}
	l.conn = conn
	return nil
}

// Release runs release on the reserved connection and returns it to the pool.
func (l *SessionLock) Release(ctx context.Context, release LockFunc) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}

	err := release(ctx, l.conn)
	closeErr := l.conn.Close()
	l.conn = nil
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return closeErr
}

// Held reports whether the lock is held.
func (l *SessionLock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn != nil
}

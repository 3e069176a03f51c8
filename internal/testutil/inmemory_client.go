package testutil

import (
	"context"
	"sync"
	"time"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
)

type inMemoryTxKey struct{}

type inMemoryTx struct {
	held []string
}

// InMemoryClient implements postgres.IClient. Locks are keyed and held until
// the outermost WithTx returns, mirroring transaction scoped advisory locks.
type InMemoryClient struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
	txs   int
}

func NewInMemoryClient() *InMemoryClient {
	return &InMemoryClient{
		locks: make(map[string]chan struct{}),
	}
}

func (c *InMemoryClient) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(inMemoryTxKey{}).(*inMemoryTx); ok {
		return fn(ctx)
	}

	tx := &inMemoryTx{}
	c.mu.Lock()
	c.txs++
	c.mu.Unlock()

	defer func() {
		for _, key := range tx.held {
			<-c.lock(key)
		}
	}()
	return fn(context.WithValue(ctx, inMemoryTxKey{}, tx))
}

func (c *InMemoryClient) LockKey(ctx context.Context, req types.LockRequest) error {
	tx, ok := ctx.Value(inMemoryTxKey{}).(*inMemoryTx)
	if !ok {
		return ierr.NewError("advisory lock requested outside a transaction").
			Mark(ierr.ErrInternal)
	}

	if req.GetTimeout() <= 0 {
		select {
		case c.lock(req.Key) <- struct{}{}:
			tx.held = append(tx.held, req.Key)
			return nil
		default:
			return ierr.NewErrorf("lock %s is already held", req.Key).
				Mark(ierr.ErrAlreadyExists)
		}
	}

	timer := time.NewTimer(req.GetTimeout())
	defer timer.Stop()

	select {
	case c.lock(req.Key) <- struct{}{}:
		tx.held = append(tx.held, req.Key)
		return nil
	case <-timer.C:
		return ierr.NewErrorf("lock %s is already held", req.Key).
			Mark(ierr.ErrAlreadyExists)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TxCount reports how many top level transactions were started
func (c *InMemoryClient) TxCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txs
}

func (c *InMemoryClient) lock(key string) chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		c.locks[key] = ch
	}
	return ch
}

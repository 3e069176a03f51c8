package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryClient_LockKey(t *testing.T) {
	ctx := context.Background()
	client := NewInMemoryClient()
	req := types.SubscriptionLockRequest(ctx, "sub_1")

	t.Run("lock outside transaction", func(t *testing.T) {
		err := client.LockKey(ctx, req)
		assert.Error(t, err)
	})

	t.Run("held lock fails fast for a second transaction", func(t *testing.T) {
		acquired := make(chan struct{})
		release := make(chan struct{})
		done := make(chan error, 1)

		go func() {
			done <- client.WithTx(ctx, func(ctx context.Context) error {
				if err := client.LockKey(ctx, req); err != nil {
					return err
				}
				close(acquired)
				<-release
				return nil
			})
		}()
		<-acquired

		err := client.WithTx(ctx, func(ctx context.Context) error {
			return client.LockKey(ctx, types.LockRequest{Key: req.Key, Timeout: lo.ToPtr(time.Duration(0))})
		})
		require.Error(t, err)
		assert.True(t, ierr.IsAlreadyExists(err))

		close(release)
		require.NoError(t, <-done)

		err = client.WithTx(ctx, func(ctx context.Context) error {
			return client.LockKey(ctx, req)
		})
		assert.NoError(t, err)
	})

	t.Run("serializes critical sections", func(t *testing.T) {
		var (
			inside  int32
			maxSeen int32
			wg      sync.WaitGroup
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = client.WithTx(ctx, func(ctx context.Context) error {
					if err := client.LockKey(ctx, req); err != nil {
						return err
					}
					n := atomic.AddInt32(&inside, 1)
					if n > atomic.LoadInt32(&maxSeen) {
						atomic.StoreInt32(&maxSeen, n)
					}
					time.Sleep(time.Millisecond)
					atomic.AddInt32(&inside, -1)
					return nil
				})
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), maxSeen)
	})
}

func TestInMemoryStore_Paginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{3, 4}, paginate(items, 2, 2))
	assert.Equal(t, []int{5}, paginate(items, 2, 4))
	assert.Empty(t, paginate(items, 2, 10))
}

package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/safar/go-shop-orders/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counters is a compare-and-swap stock table keyed by Target.String().
type counters struct {
	mu    sync.Mutex
	stock map[string]int
	fail  error
}

func (c *counters) key(t Target) string {
	t.Quantity = 0
	return t.String()
}

func (c *counters) DecrementStock(_ context.Context, t Target) (int, bool, error) {
	if c.fail != nil {
		return 0, false, c.fail
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	k := c.key(t)
	if c.stock[k] < t.Quantity {
		return 0, false, nil
	}
	c.stock[k] -= t.Quantity
	return c.stock[k], true, nil
}

func (c *counters) RestockStock(_ context.Context, t Target) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stock[c.key(t)] += t.Quantity
	return nil
}

func TestCommitAllMatched(t *testing.T) {
	id := uuid.New()
	c := &counters{stock: map[string]int{}}
	small := Target{Kind: TargetSize, ProductID: id, Key: "S"}
	plain := Target{Kind: TargetPlain, ProductID: uuid.New()}
	c.stock[c.key(small)] = 2
	c.stock[c.key(plain)] = 10

	small.Quantity = 2
	plain.Quantity = 1
	res, err := Commit(context.Background(), c, []Target{small, plain})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Matched)
	assert.Equal(t, 0, c.stock[c.key(small)])
	assert.Len(t, res.Low(3), 1)
	assert.Nil(t, res.Low(0))
}

func TestCommitPartialOversell(t *testing.T) {
	c := &counters{stock: map[string]int{}}
	a := Target{Kind: TargetPlain, ProductID: uuid.New(), Quantity: 1}
	b := Target{Kind: TargetVariant, ProductID: uuid.New(), Key: "Red", Quantity: 3}
	c.stock[c.key(a)] = 5
	c.stock[c.key(b)] = 2

	res, err := Commit(context.Background(), c, []Target{a, b})
	require.Error(t, err)
	assert.Equal(t, apperr.CodePartialOversell, apperr.CodeOf(err))
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 2, res.Submitted)
	assert.Equal(t, []Target{b}, res.Lost)
}

func TestCommitStorageError(t *testing.T) {
	c := &counters{fail: errors.New("connection reset")}
	_, err := Commit(context.Background(), c, []Target{{Kind: TargetPlain, ProductID: uuid.New(), Quantity: 1}})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInternal, apperr.CodeOf(err))
}

func TestCommitNoOversellUnderConcurrency(t *testing.T) {
	const (
		stock    = 7
		quantity = 2
		buyers   = 20
	)
	c := &counters{stock: map[string]int{}}
	target := Target{Kind: TargetPlain, ProductID: uuid.New(), Quantity: quantity}
	c.stock[c.key(target)] = stock

	var wg sync.WaitGroup
	var mu sync.Mutex
	committed := 0
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := Commit(context.Background(), c, []Target{target}); err == nil {
				mu.Lock()
				committed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, stock/quantity, committed)
	assert.Equal(t, stock-committed*quantity, c.stock[c.key(target)])
}

func TestRestock(t *testing.T) {
	c := &counters{stock: map[string]int{}}
	target := Target{Kind: TargetSize, ProductID: uuid.New(), Key: "M", Quantity: 3}

	require.NoError(t, Restock(context.Background(), c, []Target{target}))
	assert.Equal(t, 3, c.stock[c.key(target)])
}

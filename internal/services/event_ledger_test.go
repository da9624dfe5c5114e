package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisEventLedger(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	ledger := NewRedisEventLedger(client, time.Hour)

	claimed, err := ledger.Claim(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = ledger.Claim(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, claimed)

	assert.True(t, mr.Exists("eshop:webhook:event:evt_1"))
	assert.Equal(t, time.Hour, mr.TTL("eshop:webhook:event:evt_1"))

	require.NoError(t, ledger.Release(ctx, "evt_1"))
	claimed, err = ledger.Claim(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, claimed)

	// Releasing an unknown id is not an error.
	assert.NoError(t, ledger.Release(ctx, "evt_unknown"))
}

func TestRedisEventLedgerExpires(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	ledger := NewRedisEventLedger(client, time.Minute)

	_, err := ledger.Claim(ctx, "evt_1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	claimed, err := ledger.Claim(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestWebhookFailsOpenWhenLedgerIsDown(t *testing.T) {
	mr, client := newTestRedis(t)
	f := newWebhookFixture(t, NewRedisEventLedger(client, time.Hour))
	mr.Close()

	payload, sig := signedEvent(t, "evt_1", EventCheckoutSessionCompleted, sessionObject("cs_test_1", 2750, f.user.ID))
	result, err := f.svc.HandleEvent(context.Background(), payload, sig)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, result.Outcome)

	// Without the ledger, the session id still prevents a second order.
	result, err = f.svc.HandleEvent(context.Background(), payload, sig)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, result.Outcome)
	assert.Equal(t, int64(1), f.countOrders(t))
}

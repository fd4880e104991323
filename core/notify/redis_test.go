package notify

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisBridge(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newSide := func() *Broker {
		broker := NewBroker(zap.NewNop())
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		bridge := NewRedisBridge(client, "events", broker, zap.NewNop())
		require.NoError(t, bridge.Start(ctx))
		return broker
	}

	writer := newSide()
	reader := newSide()

	remote, cancelRemote := reader.Subscribe("acc@a", "home")
	defer cancelRemote()
	local, cancelLocal := writer.Subscribe("acc@a", "home")
	defer cancelLocal()

	writer.Publish(Event{Account: "acc@a", Bucket: "home", Kind: EventCommit})

	ev := receive(t, remote)
	assert.Equal(t, EventCommit, ev.Kind)
	assert.Equal(t, writer.ID(), ev.Origin)

	// The writer sees its own event once, not again through Redis.
	receive(t, local)
	assertEmpty(t, local)
}

func TestRedisBridge_StartFails(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	client := redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1})
	defer client.Close()

	bridge := NewRedisBridge(client, "events", NewBroker(nil), nil)
	assert.Error(t, bridge.Start(context.Background()))
}

func TestConfig_Enabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{RedisAddr: "localhost:6379"}.Enabled())
	assert.Equal(t, "localhost:6379", NewRedisClient(Config{RedisAddr: "localhost:6379"}).Options().Addr)
}

package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/live-raffle-monitor/internal/monitor/publisher"
	"github.com/radieske/live-raffle-monitor/pkg/contracts/events"
)

func setupQueue(t *testing.T) (*Server, *publisher.UDPPublisher) {
	t.Helper()
	srv, err := Listen("127.0.0.1:0", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	pub, err := publisher.NewUDPPublisher(srv.Addr(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { pub.Close() })

	return srv, pub
}

func TestPublishRoundtrip(t *testing.T) {
	srv, pub := setupQueue(t)

	env, err := events.NewEnvelope(events.KindTVCheck, 42, map[string]any{"real_roomid": float64(42)})
	require.NoError(t, err)
	pub.Publish(env)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := srv.Get(ctx)
	require.NoError(t, err)

	assert.Equal(t, events.KindTVCheck, got.Kind)
	assert.Equal(t, int64(42), got.RoomID)
	assert.Equal(t, float64(42), got.Payload["real_roomid"])
}

func TestGetNowaitEmpty(t *testing.T) {
	srv, _ := setupQueue(t)
	_, ok := srv.GetNowait()
	assert.False(t, ok)
	assert.Equal(t, 0, srv.Size())
}

func TestMalformedDatagramIsDropped(t *testing.T) {
	srv, pub := setupQueue(t)

	dropped := make(chan struct{}, 1)
	srv.OnDropped = func() { dropped <- struct{}{} }

	// envelope inválido forjado direto no socket: kind desconhecido
	env := events.EventEnvelope{Kind: "??", RoomID: 1}
	pub.Publish(env)

	select {
	case <-dropped:
	case <-time.After(2 * time.Second):
		t.Fatal("datagrama inválido não foi descartado")
	}
	assert.Equal(t, 0, srv.Size())
}

func TestGetHonorsContextCancel(t *testing.T) {
	srv, _ := setupQueue(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := srv.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSizeAndOrder(t *testing.T) {
	srv, pub := setupQueue(t)

	for i := int64(1); i <= 3; i++ {
		env, err := events.NewEnvelope(events.KindDanmaku, i, nil)
		require.NoError(t, err)
		pub.Publish(env)
	}

	require.Eventually(t, func() bool { return srv.Size() == 3 }, 2*time.Second, 10*time.Millisecond)

	for i := int64(1); i <= 3; i++ {
		env, ok := srv.GetNowait()
		require.True(t, ok)
		assert.Equal(t, i, env.RoomID)
	}
}

package handler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/live-raffle-monitor/internal/bili"
	"github.com/radieske/live-raffle-monitor/internal/processor/cache"
	"github.com/radieske/live-raffle-monitor/pkg/contracts/events"
)

type fakeRepo struct {
	guards    []events.GuardRecord
	announced []events.RaffleRecord
	finalized []events.RaffleRecord
}

func (f *fakeRepo) UpsertGuard(_ context.Context, g events.GuardRecord) error {
	f.guards = append(f.guards, g)
	return nil
}

func (f *fakeRepo) InsertAnnounced(_ context.Context, r events.RaffleRecord) error {
	f.announced = append(f.announced, r)
	return nil
}

func (f *fakeRepo) FinalizeRaffle(_ context.Context, r events.RaffleRecord) error {
	f.finalized = append(f.finalized, r)
	return nil
}

type fakeFeed struct {
	msgs []events.BroadcastMessage
}

func (f *fakeFeed) Append(_ context.Context, msg events.BroadcastMessage) error {
	f.msgs = append(f.msgs, msg)
	return nil
}

type fakeChecker struct {
	guards []map[string]any
	gifts  []map[string]any
	errs   []error // consumidos na ordem; nil depois de esgotados
	calls  int
}

func (f *fakeChecker) LotteryCheck(_ context.Context, _ int64) ([]map[string]any, []map[string]any, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, nil, err
		}
	}
	return f.guards, f.gifts, nil
}

type fixture struct {
	h    *Handlers
	repo *fakeRepo
	feed *fakeFeed
	api  *fakeChecker
	now  time.Time
}

func setupHandlers(t *testing.T) *fixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	dedup := cache.NewDedup(client)
	fx := &fixture{
		repo: &fakeRepo{},
		feed: &fakeFeed{},
		api:  &fakeChecker{},
		now:  time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
	fx.h = &Handlers{
		Log:   zap.NewNop(),
		Dedup: dedup,
		State: cache.NewState(dedup),
		Repo:  fx.repo,
		Feed:  fx.feed,
		API:   fx.api,
		Now:   func() time.Time { return fx.now },
	}
	fx.h.Init()
	return fx
}

func guardEnvelope(roomID, raffleID int64) events.EventEnvelope {
	return events.EventEnvelope{
		Kind:   events.KindGuard,
		RoomID: roomID,
		Payload: map[string]any{
			"data": map[string]any{
				"lottery": map[string]any{
					"id":             float64(raffleID),
					"privilege_type": float64(1),
					"time":           float64(3600),
					"sender": map[string]any{
						"uid":   float64(777),
						"uname": "船长大人",
						"face":  "http://i0.example/face.jpg",
					},
				},
			},
		},
	}
}

func TestGuardDuplicateDeliveryIsIdempotent(t *testing.T) {
	fx := setupHandlers(t)
	ctx := context.Background()

	env := guardEnvelope(42, 1001)
	for i := 0; i < 4; i++ {
		require.NoError(t, fx.h.Handle(ctx, env))
	}

	require.Len(t, fx.repo.guards, 1, "só o primeiro writer produz efeito")
	require.Len(t, fx.feed.msgs, 1)

	g := fx.repo.guards[0]
	assert.Equal(t, int64(1001), g.RaffleID)
	assert.Equal(t, "舰长", g.GiftName)
	assert.Equal(t, fx.now.Add(time.Hour), g.ExpireTime)
	assert.Equal(t, "船长大人", g.Sender.Name)

	msg := fx.feed.msgs[0]
	assert.Equal(t, "guard", msg.RaffleType)
	assert.Equal(t, int64(42), msg.RealRoomID)
}

func TestGuardUnknownTierName(t *testing.T) {
	fx := setupHandlers(t)
	env := guardEnvelope(42, 1002)
	lottery := env.Payload["data"].(map[string]any)["lottery"].(map[string]any)
	lottery["privilege_type"] = float64(9)

	require.NoError(t, fx.h.Handle(context.Background(), env))
	require.Len(t, fx.repo.guards, 1)
	assert.Equal(t, "guard_9", fx.repo.guards[0].GiftName)
}

func tvGift(raffleID int64) map[string]any {
	return map[string]any{
		"raffleId":   float64(raffleID),
		"type":       "small_tv",
		"thank_text": "感谢首席大佬赠送的小电视飞船",
		"time":       float64(600),
		"time_wait":  float64(30),
		"max_time":   float64(1200),
		"from_user": map[string]any{
			"uname": "首席大佬",
			"face":  "http://i0.example/sender.jpg",
		},
	}
}

func resultEnvelope(roomID, raffleID int64) events.EventEnvelope {
	return events.EventEnvelope{
		Kind:   events.KindRaffleResult,
		RoomID: roomID,
		Payload: map[string]any{
			"cmd": "TV_END",
			"data": map[string]any{
				"raffleId": float64(raffleID),
				"type":     "small_tv",
				"from":     "首席大佬",
				"fromFace": "http://i0.example/sender.jpg",
				"giftName": "辣条",
				"uname":    "欧皇本皇",
				"win": map[string]any{
					"face":    "http://i0.example/winner.jpg",
					"giftNum": float64(20),
				},
			},
		},
	}
}

func TestAnnounceThenResultMergesWithoutOverwrite(t *testing.T) {
	fx := setupHandlers(t)
	ctx := context.Background()

	announce := events.EventEnvelope{
		Kind:    events.KindRaffleStart,
		RoomID:  42,
		Payload: map[string]any{"data": tvGift(7001)},
	}
	require.NoError(t, fx.h.Handle(ctx, announce))
	require.Len(t, fx.repo.announced, 1)

	announceTime := fx.now
	fx.now = fx.now.Add(10 * time.Minute) // o resultado chega depois

	require.NoError(t, fx.h.Handle(ctx, resultEnvelope(42, 7001)))
	require.Len(t, fx.repo.finalized, 1)

	rec := fx.repo.finalized[0]
	// campos do anúncio preservados
	assert.Equal(t, "小电视飞船", rec.GiftName)
	assert.Equal(t, announceTime, rec.CreatedTime)
	assert.Equal(t, announceTime.Add(600*time.Second), rec.ExpireTime)
	// campos do resultado adicionados
	assert.Equal(t, "辣条", rec.PrizeGiftName)
	assert.Equal(t, int64(20), rec.PrizeCount)
	require.NotNil(t, rec.Winner)
	assert.Equal(t, "欧皇本皇", rec.Winner.Name)
	assert.NotEmpty(t, rec.ResultRaw)
}

func TestResultWithoutAnnounceSynthesizesRecord(t *testing.T) {
	fx := setupHandlers(t)
	ctx := context.Background()

	// o cache código->nome foi populado por um anúncio de outra sala
	require.NoError(t, fx.h.State.SetGiftName(ctx, "small_tv", "小电视飞船"))

	require.NoError(t, fx.h.Handle(ctx, resultEnvelope(42, 7002)))
	require.Len(t, fx.repo.finalized, 1)

	rec := fx.repo.finalized[0]
	assert.Equal(t, fx.now.Add(-180*time.Second), rec.CreatedTime, "anúncio estimado recuando o offset fixo")
	assert.Equal(t, fx.now, rec.ExpireTime)
	assert.Equal(t, "小电视飞船", rec.GiftName, "nome vem do cache de código")
	assert.Equal(t, int64(42), rec.RoomID)
	assert.Equal(t, "辣条", rec.PrizeGiftName)
	assert.Equal(t, int64(20), rec.PrizeCount)
}

func TestAnnounceCachesGiftTypeName(t *testing.T) {
	fx := setupHandlers(t)
	ctx := context.Background()

	require.NoError(t, fx.h.Handle(ctx, events.EventEnvelope{
		Kind:    events.KindRaffleStart,
		RoomID:  42,
		Payload: map[string]any{"data": tvGift(7003)},
	}))

	name, err := fx.h.State.GiftName(ctx, "small_tv")
	require.NoError(t, err)
	assert.Equal(t, "小电视飞船", name)

	rooms, err := fx.h.State.InLotteryRooms(ctx)
	require.NoError(t, err)
	assert.True(t, rooms[42], "sala marcada como em sorteio")
}

func TestStormDecomposesCompositeID(t *testing.T) {
	fx := setupHandlers(t)
	ctx := context.Background()

	env := events.EventEnvelope{
		Kind:   events.KindStorm,
		RoomID: 42,
		Payload: map[string]any{
			"data": map[string]any{
				"39": map[string]any{"id": float64(39000001000123)},
			},
		},
	}
	require.NoError(t, fx.h.Handle(ctx, env))
	require.NoError(t, fx.h.Handle(ctx, env)) // duplicata: no-op

	require.Len(t, fx.repo.guards, 1)
	assert.Equal(t, int64(39000001), fx.repo.guards[0].RaffleID, "id interno por divisão inteira")
	assert.Equal(t, "节奏风暴", fx.repo.guards[0].GiftName)
	assert.Equal(t, "&__STORM_SENDER__", fx.repo.guards[0].Sender.Name)

	require.Len(t, fx.feed.msgs, 1)
	assert.Equal(t, int64(39000001000123), fx.feed.msgs[0].RaffleID, "broadcast carrega o id composto")
}

func TestPKBroadcastOnly(t *testing.T) {
	fx := setupHandlers(t)
	ctx := context.Background()

	env := events.EventEnvelope{
		Kind:    events.KindPK,
		RoomID:  42,
		Payload: map[string]any{"data": map[string]any{"id": float64(333)}},
	}
	require.NoError(t, fx.h.Handle(ctx, env))
	require.NoError(t, fx.h.Handle(ctx, env))

	assert.Empty(t, fx.repo.guards)
	assert.Empty(t, fx.repo.announced)
	require.Len(t, fx.feed.msgs, 1)
	assert.Equal(t, "pk", fx.feed.msgs[0].RaffleType)
	assert.Equal(t, "PK", fx.feed.msgs[0].GiftName)
}

func TestAnchorAwardAndStart(t *testing.T) {
	fx := setupHandlers(t)
	ctx := context.Background()

	award := events.EventEnvelope{
		Kind:   events.KindAnchor,
		RoomID: 42,
		Payload: map[string]any{
			"cmd":  "ANCHOR_LOT_AWARD",
			"data": map[string]any{"id": float64(808), "award_name": "定制抱枕"},
		},
	}
	// award é upsert puro: duas entregas, zero broadcast
	require.NoError(t, fx.h.Handle(ctx, award))
	require.NoError(t, fx.h.Handle(ctx, award))
	assert.Empty(t, fx.feed.msgs)

	start := events.EventEnvelope{
		Kind:   events.KindAnchor,
		RoomID: 42,
		Payload: map[string]any{
			"cmd": "ANCHOR_LOT_START",
			"data": map[string]any{
				"id":            float64(808),
				"room_id":       float64(42),
				"award_name":    "定制抱枕",
				"award_num":     float64(1),
				"gift_name":     "",
				"gift_num":      float64(0),
				"gift_price":    float64(0),
				"join_type":     float64(0),
				"require_type":  float64(1),
				"require_value": float64(0),
				"require_text":  "关注主播",
			},
		},
	}
	require.NoError(t, fx.h.Handle(ctx, start))
	require.NoError(t, fx.h.Handle(ctx, start)) // dedup A$room$id

	require.Len(t, fx.feed.msgs, 1)
	msg := fx.feed.msgs[0]
	assert.Equal(t, "anchor", msg.RaffleType)
	assert.Equal(t, "天选时刻", msg.GiftName)
	assert.Equal(t, "1-0:关注主播", msg.Extra["require"])
	assert.Equal(t, "1*定制抱枕", msg.Extra["award"])
}

func TestCheckRetriesOnceOnEmptyList(t *testing.T) {
	fx := setupHandlers(t)
	fx.api.errs = []error{bili.ErrEmptyList}
	fx.api.guards = []map[string]any{{
		"id":             float64(2002),
		"privilege_type": float64(2),
		"time":           float64(7200),
		"sender":         map[string]any{"uid": float64(9), "uname": "提督大人", "face": ""},
	}}
	fx.api.gifts = []map[string]any{tvGift(7004)}

	env := events.EventEnvelope{Kind: events.KindTVCheck, RoomID: 42}
	require.NoError(t, fx.h.Handle(context.Background(), env))

	assert.Equal(t, 2, fx.api.calls, "lista vazia transitória: exatamente um retry")
	require.Len(t, fx.repo.guards, 1)
	assert.Equal(t, "提督", fx.repo.guards[0].GiftName)
	require.Len(t, fx.repo.announced, 1)
	assert.Equal(t, "小电视飞船", fx.repo.announced[0].GiftName)
}

func TestCheckDoesNotRetryOtherErrors(t *testing.T) {
	fx := setupHandlers(t)
	boom := errors.New("api http 500")
	fx.api.errs = []error{boom}

	env := events.EventEnvelope{Kind: events.KindGuardCheck, RoomID: 42}
	err := fx.h.Handle(context.Background(), env)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, fx.api.calls)
}

type fakeNotifier struct {
	texts []string
}

func (f *fakeNotifier) Notify(_ context.Context, text string) error {
	f.texts = append(f.texts, text)
	return nil
}

func danmakuEnvelope(text string) events.EventEnvelope {
	return events.EventEnvelope{
		Kind:   events.KindDanmaku,
		RoomID: 42,
		Payload: map[string]any{
			"info": []any{
				nil,
				text,
				[]any{float64(777), "某观众", float64(0)},
				[]any{float64(21), "粉丝团"},
				[]any{float64(40)},
			},
		},
	}
}

func TestDanmakuPassthroughFiltersSpam(t *testing.T) {
	fx := setupHandlers(t)
	sink := &fakeNotifier{}
	fx.h.Notifier = sink

	require.NoError(t, fx.h.Handle(context.Background(), danmakuEnvelope("666")))
	assert.Empty(t, sink.texts, "corpo ignorável não é repassado")

	require.NoError(t, fx.h.Handle(context.Background(), danmakuEnvelope("主播今天抽什么")))
	require.Len(t, sink.texts, 1)
	assert.Contains(t, sink.texts[0], "主播今天抽什么")
	assert.Contains(t, sink.texts[0], "某观众")
}

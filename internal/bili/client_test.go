package bili

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCookie string

func (c staticCookie) Cookie(_ context.Context) string { return string(c) }

func TestGetLiveRooms(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/room/v1/area/getRoomList", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("parent_area_id"))
		w.Write([]byte(`{"code":0,"data":{"list":[{"roomid":42},{"roomid":99}]}}`))
	}))
	defer srv.Close()

	rooms, err := NewClient(srv.URL, nil).GetLiveRooms(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{42, 99}, rooms)
}

func TestLotteryCheckSplitsGuardAndGift(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cookie-do-pool", r.Header.Get("Cookie"))
		w.Write([]byte(`{"code":0,"data":{
			"guard":[{"id":1001,"privilege_type":1}],
			"gift":[{"raffleId":7001,"type":"small_tv"}]
		}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, staticCookie("cookie-do-pool"))
	guards, gifts, err := client.LotteryCheck(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, guards, 1)
	assert.Equal(t, float64(1001), guards[0]["id"])
	require.Len(t, gifts, 1)
	assert.Equal(t, "small_tv", gifts[0]["type"])
}

func TestLotteryCheckMapsEmptyListMarker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"code":-1,"message":"Empty raffle_id_list"}`))
	}))
	defer srv.Close()

	_, _, err := NewClient(srv.URL, nil).LotteryCheck(context.Background(), 42)
	assert.ErrorIs(t, err, ErrEmptyList)
}

func TestAPICodeErrorIsNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"code":65531,"message":"rate limited"}`))
	}))
	defer srv.Close()

	_, _, err := NewClient(srv.URL, nil).LotteryCheck(context.Background(), 42)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyList)
	assert.Contains(t, err.Error(), "65531")
}

func TestGetGuardList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"code":0,"data":{"rooms":[
			{"roomid":42,"sign":"3:舰长x12"},
			{"roomid":99,"sign":"1:提督x2"}
		]}}`))
	}))
	defer srv.Close()

	rooms, err := NewClient(srv.URL, nil).GetGuardList(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{42: "3:舰长x12", 99: "1:提督x2"}, rooms)
}

func TestHTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).GetGuardList(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

package bili

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrEmptyList marca a condição transitória em que o upstream reporta lista
// de sorteios vazia logo após o aviso. O chamador tenta de novo uma única vez.
var ErrEmptyList = errors.New("empty raffle_id_list")

// CookieSource fornece um cookie do pool para chamadas autenticadas.
// Retorno vazio significa chamada anônima.
type CookieSource interface {
	Cookie(ctx context.Context) string
}

// Client chama a API HTTP da plataforma: descoberta de salas ao vivo,
// consulta autoritativa de sorteios/guards e a lista global de guards.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Cookies CookieSource
}

// NewClient monta o client com timeout curto; chamadas lentas aqui seguram
// um worker inteiro do processor.
func NewClient(base string, cookies CookieSource) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		Cookies: cookies,
	}
}

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	if c.Cookies != nil {
		if cookie := c.Cookies.Cookie(ctx); cookie != "" {
			req.Header.Set("Cookie", cookie)
		}
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("api http %d: %s", res.StatusCode, path)
	}

	var r apiResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return fmt.Errorf("decode api response: %w", err)
	}
	if r.Code != 0 {
		return fmt.Errorf("api code %d: %s", r.Code, r.Message)
	}
	return json.Unmarshal(r.Data, out)
}

// GetLiveRooms retorna os ids das salas atualmente ao vivo em uma categoria.
func (c *Client) GetLiveRooms(ctx context.Context, areaID int) ([]int64, error) {
	var data struct {
		List []struct {
			RoomID int64 `json:"roomid"`
		} `json:"list"`
	}
	path := fmt.Sprintf("/room/v1/area/getRoomList?parent_area_id=%d&page=1&page_size=30&sort_type=online", areaID)
	if err := c.getJSON(ctx, path, &data); err != nil {
		return nil, err
	}
	rooms := make([]int64, 0, len(data.List))
	for _, item := range data.List {
		rooms = append(rooms, item.RoomID)
	}
	return rooms, nil
}

// LotteryCheck consulta o estado autoritativo de sorteios de uma sala.
// Retorna as listas de guards e de presentes (tv) ativas no momento; o aviso
// no stream só diz *que* algo aconteceu, o detalhe vem sempre daqui.
func (c *Client) LotteryCheck(ctx context.Context, roomID int64) (guards, gifts []map[string]any, err error) {
	var data struct {
		Guard []map[string]any `json:"guard"`
		Gift  []map[string]any `json:"gift"`
	}
	path := fmt.Sprintf("/xlive/lottery-interface/v1/lottery/Check?roomid=%d", roomID)
	if err := c.getJSON(ctx, path, &data); err != nil {
		if isEmptyListErr(err) {
			return nil, nil, ErrEmptyList
		}
		return nil, nil, err
	}
	return data.Guard, data.Gift, nil
}

// isEmptyListErr detecta o marcador que o upstream coloca na mensagem de erro
func isEmptyListErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "Empty raffle_id_list")
}

// GetGuardList busca a lista global de salas com guards e a característica
// de cada uma (usada pelo scanner para detectar salas novas/alteradas).
func (c *Client) GetGuardList(ctx context.Context) (map[int64]string, error) {
	var data struct {
		Rooms []struct {
			RoomID int64  `json:"roomid"`
			Sign   string `json:"sign"`
		} `json:"rooms"`
	}
	if err := c.getJSON(ctx, "/guard/list", &data); err != nil {
		return nil, err
	}
	out := make(map[int64]string, len(data.Rooms))
	for _, r := range data.Rooms {
		out[r.RoomID] = r.Sign
	}
	return out, nil
}

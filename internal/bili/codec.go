package bili

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Framing do protocolo de chat: header fixo de 16 bytes seguido do corpo.
// Ver 2 indica corpo zlib contendo um lote de frames concatenados.
const (
	headerLen = 16

	opHeartbeat      = 2
	opHeartbeatReply = 3
	opDanmaku        = 5
	opJoinRoom       = 7
	opJoinReply      = 8

	verPlain      = 1
	verCompressed = 2
)

// Danmaku é um frame de chat decodificado. Cmd vazio em frames de controle
// (heartbeat reply, join reply), que o consumidor ignora.
type Danmaku map[string]any

// Cmd retorna o comando do frame ("NOTICE_MSG", "GUARD_MSG", ...).
func (d Danmaku) Cmd() string {
	cmd, _ := d["cmd"].(string)
	return cmd
}

// Codec encapsula o encode/decode do protocolo de chat. O resto do sistema
// só depende deste contrato: decodificar frames em eventos e gerar os
// pacotes de heartbeat e de subscribe.
type Codec struct{}

// NewCodec retorna o codec do protocolo de chat.
func NewCodec() *Codec { return &Codec{} }

func encodeFrame(op uint32, body []byte) []byte {
	buf := make([]byte, headerLen+len(body))
	binary.BigEndian.PutUint32(buf[0:4], uint32(headerLen+len(body)))
	binary.BigEndian.PutUint16(buf[4:6], headerLen)
	binary.BigEndian.PutUint16(buf[6:8], verPlain)
	binary.BigEndian.PutUint32(buf[8:12], op)
	binary.BigEndian.PutUint32(buf[12:16], 1)
	copy(buf[headerLen:], body)
	return buf
}

// HeartbeatFrame gera o pacote de keep-alive enviado a cada conexão aberta.
func (c *Codec) HeartbeatFrame() []byte {
	return encodeFrame(opHeartbeat, nil)
}

// JoinFrame gera o pacote de subscribe para uma sala.
func (c *Codec) JoinFrame(roomID int64) []byte {
	body, _ := json.Marshal(map[string]any{"roomid": roomID})
	return encodeFrame(opJoinRoom, body)
}

// Parse decodifica uma mensagem crua do stream em zero ou mais danmakus.
// Frames de controle são descartados; um corpo comprimido é expandido e
// re-parseado. Um frame individual malformado invalida só a mensagem atual.
func (c *Codec) Parse(raw []byte) ([]Danmaku, error) {
	var out []Danmaku
	for len(raw) > 0 {
		if len(raw) < headerLen {
			return out, fmt.Errorf("short frame: %d bytes", len(raw))
		}
		packLen := binary.BigEndian.Uint32(raw[0:4])
		ver := binary.BigEndian.Uint16(raw[6:8])
		op := binary.BigEndian.Uint32(raw[8:12])
		if packLen < headerLen || int(packLen) > len(raw) {
			return out, fmt.Errorf("bad frame length: %d", packLen)
		}
		body := raw[headerLen:packLen]

		switch {
		case ver == verCompressed:
			inner, err := inflate(body)
			if err != nil {
				return out, fmt.Errorf("inflate frame: %w", err)
			}
			batch, err := c.Parse(inner)
			out = append(out, batch...)
			if err != nil {
				return out, err
			}
		case op == opDanmaku:
			var d Danmaku
			if err := json.Unmarshal(body, &d); err != nil {
				return out, fmt.Errorf("decode danmaku: %w", err)
			}
			out = append(out, d)
		default:
			// heartbeat reply / join reply: sem payload útil
		}

		raw = raw[packLen:]
	}
	return out, nil
}

func inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

package publisher

import (
	"fmt"
	"net"

	"go.uber.org/zap"

	"github.com/radieske/live-raffle-monitor/pkg/contracts/events"
)

// UDPPublisher é o lado produtor da fila inter-processos: serializa um
// envelope e dispara um único datagrama no endereço fixo do processor.
// Fire-and-forget por contrato: erro de envio é logado, nunca propagado
// como falha do monitor.
type UDPPublisher struct {
	conn *net.UDPConn
	log  *zap.Logger
}

// NewUDPPublisher resolve o destino e abre o socket de envio.
func NewUDPPublisher(addr string, log *zap.Logger) (*UDPPublisher, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve queue addr: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("dial queue: %w", err)
	}
	return &UDPPublisher{conn: conn, log: log}, nil
}

// Publish envia o envelope em um datagrama. Best effort: perda é aceitável.
func (p *UDPPublisher) Publish(env events.EventEnvelope) {
	data, err := env.Encode()
	if err != nil {
		p.log.Error("encode envelope", zap.Error(err))
		return
	}
	if _, err := p.conn.Write(data); err != nil {
		p.log.Warn("queue send failed",
			zap.String("kind", string(env.Kind)),
			zap.Int64("room_id", env.RoomID),
			zap.Error(err),
		)
	}
}

// Close fecha o socket de envio.
func (p *UDPPublisher) Close() error {
	return p.conn.Close()
}

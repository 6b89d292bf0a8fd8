package queue

import (
	"context"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/radieske/live-raffle-monitor/pkg/contracts/events"
)

// Server é o lado consumidor da fila inter-processos: um socket UDP que
// bufferiza datagramas em uma fila em memória sem limite. O transporte é
// estritamente best-effort — sem entrega garantida, sem ordem, sem ack.
// O consumidor precisa tolerar perdas e duplicatas por contrato.
type Server struct {
	log  *zap.Logger
	conn *net.UDPConn

	mu      sync.Mutex
	pending []events.EventEnvelope
	notify  chan struct{}

	// OnDropped conta datagramas indecodificáveis (métrica opcional)
	OnDropped func()
}

// Listen abre o socket no endereço da fila e começa a bufferizar datagramas.
func Listen(addr string, log *zap.Logger) (*Server, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve queue addr: %w", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen queue: %w", err)
	}

	s := &Server{
		log:    log,
		conn:   conn,
		notify: make(chan struct{}, 1),
	}
	go s.readLoop()
	return s, nil
}

func (s *Server) readLoop() {
	buf := make([]byte, 64*1024) // limite prático de um datagrama
	for {
		n, _, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			// socket fechado: encerra o loop
			return
		}

		env, err := events.DecodeEnvelope(buf[:n])
		if err != nil {
			s.log.Warn("queue datagram dropped", zap.Error(err))
			if s.OnDropped != nil {
				s.OnDropped()
			}
			continue
		}

		s.mu.Lock()
		s.pending = append(s.pending, env)
		s.mu.Unlock()

		select {
		case s.notify <- struct{}{}:
		default:
		}
	}
}

// Addr retorna o endereço local do socket (porta resolvida).
func (s *Server) Addr() string {
	return s.conn.LocalAddr().String()
}

// Size retorna quantos envelopes estão bufferizados agora. O receive loop
// usa esse snapshot para limitar o tamanho do lote de cada ciclo.
func (s *Server) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// GetNowait remove e retorna o próximo envelope sem bloquear.
func (s *Server) GetNowait() (events.EventEnvelope, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return events.EventEnvelope{}, false
	}
	env := s.pending[0]
	s.pending = s.pending[1:]
	return env, true
}

// Get bloqueia até o próximo envelope chegar ou o contexto ser cancelado.
func (s *Server) Get(ctx context.Context) (events.EventEnvelope, error) {
	for {
		if env, ok := s.GetNowait(); ok {
			return env, nil
		}
		select {
		case <-ctx.Done():
			return events.EventEnvelope{}, ctx.Err()
		case <-s.notify:
		}
	}
}

// Close fecha o socket; envelopes já bufferizados continuam disponíveis.
func (s *Server) Close() error {
	return s.conn.Close()
}

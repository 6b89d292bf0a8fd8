package monitor

import (
	"sync"

	"github.com/gorilla/websocket"
)

// RoomSet é o conjunto de salas atualmente vigiadas pela frota. Todas as
// mutações são operações atômicas de passo único — nunca read-modify-write
// atravessando I/O — para dois slots não escolherem a mesma sala.
type RoomSet struct {
	mu    sync.Mutex
	rooms map[int64]bool
}

// NewRoomSet cria o conjunto vazio.
func NewRoomSet() *RoomSet {
	return &RoomSet{rooms: map[int64]bool{}}
}

// Claim tenta reservar a sala nova e, no mesmo passo, libera a anterior do
// slot. Retorna false se outra conexão já vigia a sala nova.
func (s *RoomSet) Claim(newRoom, oldRoom int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rooms[newRoom] {
		return false
	}
	s.rooms[newRoom] = true
	delete(s.rooms, oldRoom)
	return true
}

// Release devolve a sala ao pool (slot encerrando sem substituta).
func (s *RoomSet) Release(roomID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
}

// Contains informa se a sala está vigiada agora.
func (s *RoomSet) Contains(roomID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[roomID]
}

// Len retorna o tamanho atual do conjunto.
func (s *RoomSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// ConnSet é o conjunto de conexões abertas, usado só pelo heartbeat.
// A remoção é responsabilidade exclusiva do loop de consumo do slot; o
// heartbeat pula conexão fechada mas nunca remove, evitando corrida entre
// dois componentes mutando a mesma membership.
type ConnSet struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

// NewConnSet cria o conjunto vazio.
func NewConnSet() *ConnSet {
	return &ConnSet{conns: map[*websocket.Conn]bool{}}
}

// Add registra a conexão recém-aberta.
func (s *ConnSet) Add(c *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c] = true
}

// Remove tira a conexão do conjunto (chamado só pelo teardown do slot).
func (s *ConnSet) Remove(c *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}

// Snapshot copia as conexões atuais para iteração fora do lock.
func (s *ConnSet) Snapshot() []*websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		out = append(out, c)
	}
	return out
}

// Len retorna o número de conexões registradas.
func (s *ConnSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

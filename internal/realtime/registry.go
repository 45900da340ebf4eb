package realtime

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Conn es un canal duplex vivo hacia un cliente. *websocket.Conn lo implementa.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Registry mantiene las conexiones vivas por usuario y hace entrega best-effort.
// Es un componente inyectado con lifecycle propio (New/Shutdown), nunca un
// singleton de paquete. La entrega es at-most-once por conexión: no hay retry
// ni cola; la durabilidad es trabajo del notification service.
type Registry struct {
	mu    sync.RWMutex
	conns map[string][]*liveConn
	log   zerolog.Logger
}

// liveConn serializa los writes a una conexión. El mutex por conexión es el
// único punto de serialización de entrega: preserva el orden de envío por
// conexión sin retener el lock del registry durante I/O.
type liveConn struct {
	mu     sync.Mutex
	userID string
	conn   Conn
}

func (c *liveConn) send(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(ev)
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		conns: make(map[string][]*liveConn),
		log:   log,
	}
}

// Connect registra una conexión nueva del usuario. Si es la primera, se
// anuncia presence_update online al resto de usuarios conectados.
func (r *Registry) Connect(userID string, conn Conn) {
	lc := &liveConn{userID: userID, conn: conn}

	r.mu.Lock()
	r.conns[userID] = append(r.conns[userID], lc)
	first := len(r.conns[userID]) == 1
	r.mu.Unlock()

	r.log.Debug().Str("user_id", userID).Bool("first", first).Msg("realtime connect")

	if first {
		r.broadcastExcept(userID, presenceEvent(userID, true))
	}
}

// Disconnect remueve la conexión. Si el usuario queda sin conexiones se borra
// su entrada y se anuncia presence_update offline.
func (r *Registry) Disconnect(userID string, conn Conn) {
	if r.removeConn(userID, conn) {
		r.broadcastExcept(userID, presenceEvent(userID, false))
	}
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

func (r *Registry) OnlineUserIDs() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.conns))
	for id := range r.conns {
		out = append(out, id)
	}
	r.mu.RUnlock()

	sort.Strings(out)
	return out
}

// SendToUser entrega el evento a cada conexión viva del usuario. Una conexión
// que falla se descarta como muerta y no aborta la entrega al resto.
func (r *Registry) SendToUser(userID string, ev Event) {
	r.mu.RLock()
	targets := append([]*liveConn(nil), r.conns[userID]...)
	r.mu.RUnlock()

	r.deliver(targets, ev)
}

// Broadcast entrega a todos los usuarios conectados, con el mismo manejo de
// fallas por conexión. No se garantiza orden entre usuarios distintos.
func (r *Registry) Broadcast(ev Event) {
	r.deliver(r.snapshot(""), ev)
}

func (r *Registry) broadcastExcept(userID string, ev Event) {
	r.deliver(r.snapshot(userID), ev)
}

// Shutdown cierra todas las conexiones y vacía el registry.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	all := r.conns
	r.conns = make(map[string][]*liveConn)
	r.mu.Unlock()

	for _, list := range all {
		for _, lc := range list {
			_ = lc.conn.Close()
		}
	}
}

func (r *Registry) snapshot(exceptUserID string) []*liveConn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*liveConn, 0)
	for id, list := range r.conns {
		if id == exceptUserID {
			continue
		}
		out = append(out, list...)
	}
	return out
}

func (r *Registry) deliver(targets []*liveConn, ev Event) {
	var wentOffline []string

	for _, lc := range targets {
		if err := lc.send(ev); err != nil {
			r.log.Debug().Str("user_id", lc.userID).Err(err).Msg("dropping dead connection")
			if r.removeConn(lc.userID, lc.conn) {
				wentOffline = append(wentOffline, lc.userID)
			}
			_ = lc.conn.Close()
		}
	}

	for _, id := range wentOffline {
		r.broadcastExcept(id, presenceEvent(id, false))
	}
}

// removeConn saca la conexión del registry. Devuelve true si el usuario quedó
// offline (última conexión removida).
func (r *Registry) removeConn(userID string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.conns[userID]
	kept := list[:0]
	removed := false
	for _, lc := range list {
		if !removed && lc.conn == conn {
			removed = true
			continue
		}
		kept = append(kept, lc)
	}

	if !removed {
		return false
	}
	if len(kept) == 0 {
		delete(r.conns, userID)
		return true
	}
	r.conns[userID] = kept
	return false
}

func presenceEvent(userID string, online bool) Event {
	return NewEvent("presence_update", map[string]any{
		"user_id": userID,
		"online":  online,
	})
}

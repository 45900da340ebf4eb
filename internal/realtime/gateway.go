package realtime

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"petsy-backend/internal/middleware"
)

// ConversationDirectory expone la membresía de una conversación.
// Lo implementa el servicio de conversations; se declara acá para no
// acoplar el gateway al dominio de chat.
type ConversationDirectory interface {
	Participants(ctx context.Context, conversationID string) ([]string, error)
}

// Gateway es el endpoint WebSocket: registra la conexión en el registry y
// releva solo los dos mensajes de baja latencia del cliente (typing, read).
// Toda mutación de workflow va por HTTP, nunca por este canal.
type Gateway struct {
	registry *Registry
	convs    ConversationDirectory
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewGateway(registry *Registry, convs ConversationDirectory, log zerolog.Logger) *Gateway {
	return &Gateway{
		registry: registry,
		convs:    convs,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// clientMessage es el contrato client -> server.
type clientMessage struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
}

func (g *Gateway) Handle() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		userID := claims.UserID

		conn, err := g.upgrader.Upgrade(w, r, nil)
		if err != nil {
			g.log.Debug().Err(err).Msg("websocket upgrade failed")
			return
		}

		// Snapshot inicial de presencia, escrito ANTES de registrar la
		// conexión: una vez en el registry todo write pasa por el mutex de
		// liveConn, y ningún push puede llegarle al cliente antes del
		// connected. Escribir después de Connect sería un segundo writer
		// concurrente sobre el mismo *websocket.Conn.
		online := g.registry.OnlineUserIDs()
		self := false
		for _, id := range online {
			if id == userID {
				self = true
				break
			}
		}
		if !self {
			online = append(online, userID)
			sort.Strings(online)
		}
		if err := conn.WriteJSON(NewEvent("connected", map[string]any{
			"user_id":      userID,
			"online_users": online,
		})); err != nil {
			_ = conn.Close()
			return
		}

		g.registry.Connect(userID, conn)

		defer func() {
			g.registry.Disconnect(userID, conn)
			_ = conn.Close()
		}()

		for {
			var msg clientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}

			switch msg.Type {
			case "typing":
				g.relay(r.Context(), userID, msg.ConversationID, "typing")
			case "read":
				g.relay(r.Context(), userID, msg.ConversationID, "messages_read")
			default:
				g.log.Debug().Str("type", msg.Type).Msg("ignoring websocket message")
			}
		}
	}
}

// relay reenvía typing/read al otro participante, previa verificación de
// membresía (mismo criterio que los guards de workflow: sin membresía no
// pasa nada, ni siquiera un error que delate existencia).
func (g *Gateway) relay(ctx context.Context, senderID, conversationID, eventType string) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return
	}

	participants, err := g.convs.Participants(ctx, conversationID)
	if err != nil {
		return
	}

	member := false
	for _, p := range participants {
		if p == senderID {
			member = true
			break
		}
	}
	if !member {
		return
	}

	ev := NewEvent(eventType, map[string]any{
		"conversation_id": conversationID,
		"user_id":         senderID,
	})
	for _, p := range participants {
		if p == senderID {
			continue
		}
		g.registry.SendToUser(p, ev)
	}
}

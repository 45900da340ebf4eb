package conversations

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"petsy-backend/internal/middleware"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/conversations", func(cr chi.Router) {
		cr.Post("/", startConversationHandler(svc))
		cr.Get("/", listConversationsHandler(svc))
		cr.Get("/{conversationID}/messages", listMessagesHandler(svc))
		cr.Post("/{conversationID}/messages", sendMessageHandler(svc))
	})
}

type startConversationRequest struct {
	ParticipantID string `json:"participant_id"`
}

type conversationResponse struct {
	ID             string     `json:"id"`
	ParticipantIDs []string   `json:"participant_ids"`
	LastMessage    string     `json:"last_message,omitempty"`
	LastMessageAt  *time.Time `json:"last_message_at,omitempty"`
	UnreadCount    int        `json:"unread_count"`
	CreatedAt      time.Time  `json:"created_at"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

type messageResponse struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

func startConversationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req startConversationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		c, err := svc.Start(r.Context(), claims.UserID, req.ParticipantID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		writeJSON(w, http.StatusCreated, conversationResponse{
			ID:             c.ID,
			ParticipantIDs: c.ParticipantIDs,
			LastMessage:    c.LastMessage,
			LastMessageAt:  c.LastMessageAt,
			CreatedAt:      c.CreatedAt,
		})
	}
}

func listConversationsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListMine(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]conversationResponse, 0, len(items))
		for _, s := range items {
			out = append(out, conversationResponse{
				ID:             s.Conversation.ID,
				ParticipantIDs: s.Conversation.ParticipantIDs,
				LastMessage:    s.Conversation.LastMessage,
				LastMessageAt:  s.Conversation.LastMessageAt,
				UnreadCount:    s.UnreadCount,
				CreatedAt:      s.Conversation.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func listMessagesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
				limit = n
			}
		}

		items, err := svc.Messages(r.Context(), chi.URLParam(r, "conversationID"), claims.UserID, limit)
		if err != nil {
			http.Error(w, "conversation not found", http.StatusNotFound)
			return
		}

		out := make([]messageResponse, 0, len(items))
		for _, m := range items {
			out = append(out, toMessageResponse(m))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func sendMessageHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req sendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		m, err := svc.Send(r.Context(), chi.URLParam(r, "conversationID"), claims.UserID, req.Content)
		if err != nil {
			switch err {
			case ErrInvalidInput:
				http.Error(w, err.Error(), http.StatusBadRequest)
			case ErrNotFound:
				http.Error(w, "conversation not found", http.StatusNotFound)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusCreated, toMessageResponse(m))
	}
}

func toMessageResponse(m Message) messageResponse {
	return messageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		IsRead:         m.IsRead,
		CreatedAt:      m.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

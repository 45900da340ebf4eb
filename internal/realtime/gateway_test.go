package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"petsy-backend/internal/middleware"
)

type nopConvs struct{}

func (nopConvs) Participants(ctx context.Context, conversationID string) ([]string, error) {
	return nil, nil
}

func newGatewayServer(t *testing.T) (*httptest.Server, *Registry) {
	t.Helper()

	reg := NewRegistry(zerolog.Nop())
	t.Cleanup(reg.Shutdown)

	gw := NewGateway(reg, nopConvs{}, zerolog.Nop())
	srv := httptest.NewServer(middleware.AuthContext(nil)(gw.Handle()))
	t.Cleanup(srv.Close)

	return srv, reg
}

func dialAs(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()

	header := http.Header{}
	header.Set("X-Debug-User-ID", userID)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	if err != nil {
		t.Fatalf("dial %s: %v", userID, err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

// La primera frame de toda conexión es el snapshot connected, incluso con
// entregas concurrentes al mismo usuario (segunda pestaña conectándose
// mientras le llueven pushes). Solo el registry escribe sobre una conexión
// registrada; el snapshot va antes del registro.
func TestGateway_ConnectedSnapshotIsAlwaysFirst(t *testing.T) {
	srv, reg := newGatewayServer(t)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				reg.SendToUser("u1", NewEvent("ping", nil))
			}
		}
	}()

	for i := 0; i < 50; i++ {
		conn := dialAs(t, srv, "u1")

		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("dial %d: read first frame: %v", i, err)
		}
		if ev.Type != "connected" {
			t.Fatalf("dial %d: expected connected first, got %s", i, ev.Type)
		}

		// El snapshot incluye al propio usuario como online.
		found := false
		if ids, ok := ev.Payload["online_users"].([]any); ok {
			for _, id := range ids {
				if id == "u1" {
					found = true
					break
				}
			}
		}
		if !found {
			t.Fatalf("dial %d: expected u1 in online_users, got %v", i, ev.Payload["online_users"])
		}

		_ = conn.Close()
	}

	close(stop)
	wg.Wait()
}

func TestGateway_RejectsAnonymous(t *testing.T) {
	srv, _ := newGatewayServer(t)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err == nil {
		t.Fatalf("expected dial failure without identity")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 on anonymous dial")
	}
}

package router

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	// Sin verifier: modo dev con X-Debug-User-ID; sin DB: repos in-memory.
	h := NewRouter(Options{Log: zerolog.Nop()})
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

func doReq(t *testing.T, ts *httptest.Server, method, path, userID, role string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if userID != "" {
		req.Header.Set("X-Debug-User-ID", userID)
	}
	if role != "" {
		req.Header.Set("X-Debug-User-Role", role)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, out
}

func decode(t *testing.T, raw []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("unmarshal %q: %v", string(raw), err)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doReq(t, ts, http.MethodGet, "/health", "", "", nil)
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("expected 200 ok, got %d %q", resp.StatusCode, string(body))
	}
}

func TestCareRequestLifecycle_EndToEnd(t *testing.T) {
	ts := newTestServer(t)

	// El dueño registra su mascota.
	resp, body := doReq(t, ts, http.MethodPost, "/pets", "owner-1", "user", map[string]any{
		"name": "Rocky", "species": "dog",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create pet: expected 201, got %d %s", resp.StatusCode, string(body))
	}
	var pet struct {
		ID string `json:"id"`
	}
	decode(t, body, &pet)

	// Crea el care request.
	resp, body = doReq(t, ts, http.MethodPost, "/care-requests", "owner-1", "user", map[string]any{
		"pet_id": pet.ID, "title": "Limping after the park",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create care request: expected 201, got %d %s", resp.StatusCode, string(body))
	}
	var cr struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decode(t, body, &cr)
	if cr.Status != "pending" {
		t.Fatalf("expected pending, got %s", cr.Status)
	}

	// El vet lo ve en su inbox.
	resp, body = doReq(t, ts, http.MethodGet, "/vet/care-requests", "vet-1", "vet", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("inbox: expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), cr.ID) {
		t.Fatalf("expected request %s in provider inbox", cr.ID)
	}

	// Un user común no pasa el gate del inbox.
	resp, _ = doReq(t, ts, http.MethodGet, "/vet/care-requests", "someone", "user", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("inbox as user: expected 403, got %d", resp.StatusCode)
	}

	// accept -> start -> complete con diagnosis/prescription.
	for _, step := range []map[string]any{
		{"action": "accept"},
		{"action": "start"},
		{"action": "complete", "diagnosis": "Sprained paw", "prescription": "Rest for a week"},
	} {
		resp, body = doReq(t, ts, http.MethodPut, "/vet/care-requests/"+cr.ID, "vet-1", "vet", step)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%v: expected 200, got %d %s", step["action"], resp.StatusCode, string(body))
		}
	}

	// Desde completed no hay edges salientes.
	resp, body = doReq(t, ts, http.MethodPut, "/vet/care-requests/"+cr.ID, "vet-1", "vet", map[string]any{"action": "start"})
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(string(body), "Invalid transition") {
		t.Fatalf("expected 400 Invalid transition, got %d %s", resp.StatusCode, string(body))
	}

	// El dueño ve el resultado con diagnóstico.
	resp, body = doReq(t, ts, http.MethodGet, "/care-requests/"+cr.ID, "owner-1", "user", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	var final struct {
		Status    string `json:"status"`
		Diagnosis string `json:"diagnosis"`
	}
	decode(t, body, &final)
	if final.Status != "completed" || final.Diagnosis != "Sprained paw" {
		t.Fatalf("expected completed with diagnosis, got %+v", final)
	}

	// El historial clínico de la mascota tiene el record derivado.
	resp, body = doReq(t, ts, http.MethodGet, "/pets/"+pet.ID+"/health-records", "owner-1", "user", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health records: expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "Sprained paw") || !strings.Contains(string(body), "Rest for a week") {
		t.Fatalf("expected derived record with diagnosis and prescription, got %s", string(body))
	}

	// Timeline completo: create + accept + start + complete.
	resp, body = doReq(t, ts, http.MethodGet, "/care-requests/"+cr.ID+"/timeline", "owner-1", "user", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("timeline: expected 200, got %d", resp.StatusCode)
	}
	var events []struct {
		Action string `json:"action"`
		Status string `json:"status"`
	}
	decode(t, body, &events)
	if len(events) != 4 {
		t.Fatalf("expected 4 timeline events, got %d", len(events))
	}
	if events[3].Status != "completed" {
		t.Fatalf("expected last event completed, got %s", events[3].Status)
	}

	// El dueño recibió las 3 notificaciones durables del provider.
	resp, body = doReq(t, ts, http.MethodGet, "/notifications", "owner-1", "user", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("notifications: expected 200, got %d", resp.StatusCode)
	}
	var notifs []struct {
		Type string `json:"type"`
	}
	decode(t, body, &notifs)
	if len(notifs) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(notifs))
	}

	// Para un extraño el request no existe: mismo 404 que un id inventado.
	resp, _ = doReq(t, ts, http.MethodGet, "/care-requests/"+cr.ID, "stranger", "user", nil)
	other, _ := doReq(t, ts, http.MethodGet, "/care-requests/nope", "stranger", "user", nil)
	if resp.StatusCode != http.StatusNotFound || other.StatusCode != http.StatusNotFound {
		t.Fatalf("expected indistinguishable 404s, got %d and %d", resp.StatusCode, other.StatusCode)
	}
}

func TestOrderFulfillment_EndToEnd(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doReq(t, ts, http.MethodPost, "/orders", "buyer-1", "user", map[string]any{
		"items": []map[string]any{
			{"product_id": "p1", "name": "Cat tree", "price": 80.0, "quantity": 1, "seller_user_id": "seller-a"},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create order: expected 201, got %d %s", resp.StatusCode, string(body))
	}
	var order struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decode(t, body, &order)
	if order.Status != "confirmed" {
		t.Fatalf("expected confirmed at birth, got %s", order.Status)
	}

	// Otro seller no puede tocar la orden: 403 plano.
	resp, _ = doReq(t, ts, http.MethodPut, "/orders/sales/"+order.ID+"/status", "seller-b", "market_owner",
		map[string]any{"to_status": "shipped"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign seller: expected 403, got %d", resp.StatusCode)
	}

	// El dueño de la venta la despacha.
	resp, body = doReq(t, ts, http.MethodPut, "/orders/sales/"+order.ID+"/status", "seller-a", "market_owner",
		map[string]any{"to_status": "shipped"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ship: expected 200, got %d %s", resp.StatusCode, string(body))
	}

	// Después del envío el buyer ya no cancela.
	resp, body = doReq(t, ts, http.MethodPut, "/orders/"+order.ID+"/cancel", "buyer-1", "user", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("cancel after ship: expected 400, got %d %s", resp.StatusCode, string(body))
	}

	// Vista admin: lista completa para admin, 403 para el resto.
	resp, _ = doReq(t, ts, http.MethodGet, "/admin/orders", "admin-1", "admin", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin list: expected 200, got %d", resp.StatusCode)
	}
	resp, _ = doReq(t, ts, http.MethodGet, "/admin/orders", "seller-a", "market_owner", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("admin list as seller: expected 403, got %d", resp.StatusCode)
	}
}

func TestAppointmentPaymentFlow_EndToEnd(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doReq(t, ts, http.MethodPost, "/pets", "owner-2", "user", map[string]any{
		"name": "Misha", "species": "cat",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create pet: expected 201, got %d", resp.StatusCode)
	}
	var pet struct {
		ID string `json:"id"`
	}
	decode(t, body, &pet)

	resp, body = doReq(t, ts, http.MethodPost, "/appointments", "owner-2", "user", map[string]any{
		"pet_id":       pet.ID,
		"provider_id":  "clinic-1",
		"service_type": "checkup",
		"scheduled_at": time.Now().Add(72 * time.Hour).Format(time.RFC3339),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("book: expected 201, got %d %s", resp.StatusCode, string(body))
	}
	var appt struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decode(t, body, &appt)
	if appt.Status != "pending" {
		t.Fatalf("expected pending, got %s", appt.Status)
	}

	// Un pago exitoso confirma la cita automáticamente.
	resp, body = doReq(t, ts, http.MethodPost, "/payments", "owner-2", "user", map[string]any{
		"appointment_id": appt.ID,
		"amount":         30.0,
		"method":         "cash_on_delivery",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("payment: expected 201, got %d %s", resp.StatusCode, string(body))
	}
	var payment struct {
		Status string `json:"status"`
	}
	decode(t, body, &payment)
	if payment.Status != "succeeded" {
		t.Fatalf("expected succeeded payment, got %s", payment.Status)
	}

	resp, body = doReq(t, ts, http.MethodGet, "/appointments/"+appt.ID, "owner-2", "user", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get appointment: expected 200, got %d", resp.StatusCode)
	}
	var confirmed struct {
		Status string `json:"status"`
	}
	decode(t, body, &confirmed)
	if confirmed.Status != "confirmed" {
		t.Fatalf("expected confirmed after payment, got %s", confirmed.Status)
	}

	// La clínica cierra la cita.
	resp, body = doReq(t, ts, http.MethodPut, "/vet/appointments/"+appt.ID, "clinic-1", "clinic",
		map[string]any{"action": "complete"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d %s", resp.StatusCode, string(body))
	}
}

func TestWebsocketGateway_PresenceAndTyping(t *testing.T) {
	ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	dial := func(userID string) *websocket.Conn {
		t.Helper()
		header := http.Header{}
		header.Set("X-Debug-User-ID", userID)
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
		if err != nil {
			t.Fatalf("dial %s: %v", userID, err)
		}
		t.Cleanup(func() { _ = conn.Close() })
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		return conn
	}

	readEvent := func(conn *websocket.Conn) map[string]any {
		t.Helper()
		var ev map[string]any
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read event: %v", err)
		}
		return ev
	}

	// Sin identidad no hay upgrade.
	if _, resp, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil {
		t.Fatalf("expected dial failure without identity")
	} else if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 on anonymous dial")
	}

	alice := dial("alice")
	welcome := readEvent(alice)
	if welcome["type"] != "connected" {
		t.Fatalf("expected connected snapshot first, got %v", welcome["type"])
	}

	// Bob entra: alice ve el presence_update.
	bob := dial("bob")
	_ = readEvent(bob) // connected

	ev := readEvent(alice)
	if ev["type"] != "presence_update" {
		t.Fatalf("expected presence_update, got %v", ev["type"])
	}
	payload, _ := ev["payload"].(map[string]any)
	if payload["user_id"] != "bob" || payload["online"] != true {
		t.Fatalf("expected bob online, got %v", payload)
	}

	// Hilo por HTTP y typing por el gateway.
	resp, body := doReq(t, ts, http.MethodPost, "/conversations", "alice", "user", map[string]any{
		"participant_id": "bob",
	})
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		t.Fatalf("start conversation: got %d %s", resp.StatusCode, string(body))
	}
	var conv struct {
		ID string `json:"id"`
	}
	decode(t, body, &conv)

	if err := alice.WriteJSON(map[string]any{"type": "typing", "conversation_id": conv.ID}); err != nil {
		t.Fatalf("write typing: %v", err)
	}

	typing := readEvent(bob)
	if typing["type"] != "typing" {
		t.Fatalf("expected typing relay, got %v", typing["type"])
	}
	tp, _ := typing["payload"].(map[string]any)
	if tp["user_id"] != "alice" || tp["conversation_id"] != conv.ID {
		t.Fatalf("unexpected typing payload %v", tp)
	}
}

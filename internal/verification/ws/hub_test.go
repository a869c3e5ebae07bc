package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

func dialAdmin(t *testing.T, srv *httptest.Server, id, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"X-Admin-Id": {id}})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitConnected(t *testing.T, hub *AdminHub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Connected() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d connections, have %d", n, hub.Connected())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev envelope
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return ev
}

func TestAdminHubEmitBroadcasts(t *testing.T) {
	hub := NewAdminHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	a := dialAdmin(t, srv, "admin-1", "")
	b := dialAdmin(t, srv, "admin-2", "")
	waitConnected(t, hub, 2)

	if err := hub.Emit(context.Background(), "payment.verified", map[string]string{"invoice_id": "INV-1"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	for _, conn := range []*websocket.Conn{a, b} {
		if ev := readEvent(t, conn); ev.Name != "payment.verified" {
			t.Fatalf("unexpected event %+v", ev)
		}
	}
}

func TestAdminHubRejectsMissingID(t *testing.T) {
	hub := NewAdminHub(nil)
	rec := httptest.NewRecorder()
	hub.ServeWS(rec, httptest.NewRequest(http.MethodGet, "/admin/ws", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAdminHubIgnoresQueryID(t *testing.T) {
	hub := NewAdminHub(nil)
	rec := httptest.NewRecorder()
	hub.ServeWS(rec, httptest.NewRequest(http.MethodGet, "/admin/ws?admin_id=admin-1", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", rec.Code)
	}

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()
	first := dialAdmin(t, srv, "admin-1", "")
	dialAdmin(t, srv, "admin-2", "?admin_id=admin-1")
	waitConnected(t, hub, 2)

	if err := hub.Emit(context.Background(), "payment.verified", nil); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if ev := readEvent(t, first); ev.Name != "payment.verified" {
		t.Fatalf("first admin lost its socket: %+v", ev)
	}
}

func TestAdminHubRelay(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	hub := NewAdminHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()
	conn := dialAdmin(t, srv, "admin-1", "")
	waitConnected(t, hub, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Relay(ctx, rdb, "smartduka:events")

	deadline := time.Now().Add(2 * time.Second)
	for {
		n, err := rdb.PubSubNumSub(ctx, "smartduka:events").Result()
		if err == nil && n["smartduka:events"] > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("relay did not subscribe")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := rdb.Publish(ctx, "smartduka:events", `{"event":"payment.rejected","payload":{}}`).Err(); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if ev := readEvent(t, conn); ev.Name != "payment.rejected" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// wsServer accepts one websocket, sends msgs and then waits for the
// client to close. It reports the upgrade's Authorization header and the
// close status the client sent.
type wsServer struct {
	*httptest.Server
	auth   chan string
	closed chan websocket.StatusCode
}

func newWSServer(t *testing.T, msgs ...string) *wsServer {
	t.Helper()
	s := &wsServer{
		auth:   make(chan string, 1),
		closed: make(chan websocket.StatusCode, 1),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.auth <- r.Header.Get("Authorization")
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		for _, m := range msgs {
			if err := c.Write(r.Context(), websocket.MessageText, []byte(m)); err != nil {
				return
			}
		}
		_, _, err = c.Read(r.Context())
		s.closed <- websocket.CloseStatus(err)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *wsServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestWebsocketDialer_ReadAndClose(t *testing.T) {
	srv := newWSServer(t, `{"type":"ping"}`, `{"type":"test_status","running":true}`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d := WebsocketDialer{Header: http.Header{"Authorization": []string{"Bearer tok"}}}
	conn, err := d.Dial(ctx, srv.wsURL())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	if got := <-srv.auth; got != "Bearer tok" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer tok")
	}

	for _, want := range []string{`{"type":"ping"}`, `{"type":"test_status","running":true}`} {
		data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if string(data) != want {
			t.Errorf("Read = %s, want %s", data, want)
		}
	}

	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case code := <-srv.closed:
		if code != websocket.StatusNormalClosure {
			t.Errorf("server saw close status %v, want normal closure", code)
		}
	case <-ctx.Done():
		t.Fatal("server never saw the close")
	}
}

func TestWebsocketDialer_NoHeader(t *testing.T) {
	srv := newWSServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := WebsocketDialer{}.Dial(ctx, srv.wsURL())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if got := <-srv.auth; got != "" {
		t.Errorf("Authorization = %q, want none", got)
	}
}

func TestWebsocketDialer_ReadHonoursContext(t *testing.T) {
	srv := newWSServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := WebsocketDialer{}.Dial(ctx, srv.wsURL())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	readCtx, readCancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer readCancel()
	if _, err := conn.Read(readCtx); err == nil {
		t.Fatal("Read returned without a message or an error")
	}
	if readCtx.Err() == nil {
		t.Error("Read returned before its context expired")
	}
}

func TestWebsocketDialer_RejectedUpgrade(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := (WebsocketDialer{}).Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")); err == nil {
		t.Fatal("expected dial error for a rejected upgrade")
	}
}

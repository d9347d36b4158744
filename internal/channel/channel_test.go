package channel

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func waitForState(t *testing.T, ch *Channel, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ch.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Channel never reached state %s, stuck at %s", want, ch.State())
}

func TestChannelOpensAndDeliversMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"stream_started"}`))
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	received := make(chan []byte, 1)
	ch := New(Config{
		Name:           "streaming",
		URL:            wsURL(server),
		InitialBackoff: 10 * time.Millisecond,
	}, Callbacks{
		OnMessage: func(data []byte) {
			select {
			case received <- data:
			default:
			}
		},
	}, zap.NewNop())
	defer ch.Close()

	ch.Connect()
	waitForState(t, ch, StateOpen, 2*time.Second)

	select {
	case data := <-received:
		if !strings.Contains(string(data), "stream_started") {
			t.Errorf("Unexpected payload: %s", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Inbound message was never delivered")
	}
}

func TestOnOpenHookCanSendImmediately(t *testing.T) {
	got := make(chan []byte, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case got <- msg:
		default:
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	var ch *Channel
	ch = New(Config{
		Name:           "streaming",
		URL:            wsURL(server),
		InitialBackoff: 10 * time.Millisecond,
	}, Callbacks{
		OnOpen: func() {
			if err := ch.Send(map[string]string{"type": "start_stream"}); err != nil {
				t.Errorf("Send from the open hook should work: %v", err)
			}
		},
	}, zap.NewNop())
	defer ch.Close()

	ch.Connect()

	select {
	case msg := <-got:
		if !strings.Contains(string(msg), "start_stream") {
			t.Errorf("Expected start_stream as first message, got %s", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Server never received the open-hook message")
	}
}

func TestReconnectsOncePerClosure(t *testing.T) {
	var dials int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n := atomic.AddInt32(&dials, 1)
		if n == 1 {
			// Drop the first connection to force a reconnect.
			conn.Close()
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ch := New(Config{
		Name:           "conversational",
		URL:            wsURL(server),
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
	}, Callbacks{}, zap.NewNop())
	defer ch.Close()

	ch.Connect()
	waitForState(t, ch, StateOpen, 2*time.Second)

	// The first dial died and both pumps observed it; a single replacement
	// connection is expected, not one per pump.
	time.Sleep(200 * time.Millisecond)
	if n := atomic.LoadInt32(&dials); n != 2 {
		t.Errorf("Expected exactly 2 dials (original plus one reconnect), got %d", n)
	}
}

func TestGivesUpWhenBackoffBudgetExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := wsURL(server)
	server.Close() // nothing is listening anymore

	var mu sync.Mutex
	var states []State
	ch := New(Config{
		Name:           "conversational",
		URL:            url,
		DialTimeout:    50 * time.Millisecond,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
		MaxElapsedTime: 100 * time.Millisecond,
	}, Callbacks{
		OnState: func(s State) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		},
	}, zap.NewNop())
	defer ch.Close()

	ch.Connect()
	waitForState(t, ch, StateGivenUp, 5*time.Second)

	mu.Lock()
	defer mu.Unlock()
	sawErrored := false
	for _, s := range states {
		if s == StateErrored {
			sawErrored = true
		}
	}
	if !sawErrored {
		t.Error("Failed dials should surface as errored transitions before giving up")
	}
	if states[len(states)-1] != StateGivenUp {
		t.Errorf("Terminal state should be given_up, got %s", states[len(states)-1])
	}
}

func TestSendWhileNotOpen(t *testing.T) {
	ch := New(Config{Name: "conversational", URL: "ws://127.0.0.1:1/ws"}, Callbacks{}, zap.NewNop())

	if err := ch.Send(map[string]string{"type": "audio"}); err != ErrNotOpen {
		t.Errorf("Expected ErrNotOpen, got %v", err)
	}
}

func TestCloseStopsReconnecting(t *testing.T) {
	var dials int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		atomic.AddInt32(&dials, 1)
		conn.Close()
	}))
	defer server.Close()

	ch := New(Config{
		Name:           "conversational",
		URL:            wsURL(server),
		InitialBackoff: 20 * time.Millisecond,
	}, Callbacks{}, zap.NewNop())

	ch.Connect()
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&dials) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ch.Close()
	waitForState(t, ch, StateClosed, 2*time.Second)

	before := atomic.LoadInt32(&dials)
	time.Sleep(150 * time.Millisecond)
	if after := atomic.LoadInt32(&dials); after != before {
		t.Errorf("Closed channel kept dialing: %d -> %d", before, after)
	}
}

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/clewhq/clew/internal/agent"
	"github.com/clewhq/clew/internal/tool"
	"github.com/clewhq/clew/internal/transcript"
)

// memStore is an in-memory transcript.Store for handler tests.
type memStore struct {
	entries map[string][]transcript.Entry
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string][]transcript.Entry)}
}

func (m *memStore) Append(_ context.Context, e transcript.Entry) error {
	e.Seq = int64(len(m.entries[e.SessionID]) + 1)
	e.CreatedAt = time.Now()
	m.entries[e.SessionID] = append(m.entries[e.SessionID], e)
	return nil
}

func (m *memStore) Entries(_ context.Context, sessionID string) ([]transcript.Entry, error) {
	return m.entries[sessionID], nil
}

func (m *memStore) Recent(_ context.Context, sessionID string, n int) ([]transcript.Entry, error) {
	all := m.entries[sessionID]
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}

func (m *memStore) Sessions(context.Context) ([]transcript.SessionInfo, error) {
	var infos []transcript.SessionInfo
	for id, entries := range m.entries {
		infos = append(infos, transcript.SessionInfo{SessionID: id, Entries: len(entries)})
	}
	return infos, nil
}

func (m *memStore) Close() error { return nil }

func newTestGateway(t *testing.T, store transcript.Store) (*Gateway, *httptest.Server) {
	t.Helper()

	reg := tool.NewRegistry(nil)
	g := New(Config{AuthToken: "secret"}, Deps{Registry: reg, Store: store})
	g.startedAt = time.Now()

	srv := httptest.NewServer(g.buildRouter())
	t.Cleanup(srv.Close)
	return g, srv
}

func get(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestGateway_HealthIsPublic(t *testing.T) {
	t.Parallel()

	_, srv := newTestGateway(t, nil)
	resp := get(t, srv.URL+"/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" {
		t.Errorf("health = %+v", body)
	}
}

func TestGateway_AuthRequired(t *testing.T) {
	t.Parallel()

	_, srv := newTestGateway(t, nil)

	if resp := get(t, srv.URL+"/status", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", resp.StatusCode)
	}
	if resp := get(t, srv.URL+"/status", "wrong"); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", resp.StatusCode)
	}
	if resp := get(t, srv.URL+"/status", "secret"); resp.StatusCode != http.StatusOK {
		t.Errorf("good token: status = %d, want 200", resp.StatusCode)
	}
}

func TestGateway_ListSessions(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	if err := store.Append(context.Background(), transcript.Entry{SessionID: "s1", Kind: transcript.KindContent, Text: "hi"}); err != nil {
		t.Fatal(err)
	}
	_, srv := newTestGateway(t, store)

	resp := get(t, srv.URL+"/api/sessions", "secret")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var infos []transcript.SessionInfo
	if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 || infos[0].SessionID != "s1" {
		t.Errorf("sessions = %+v", infos)
	}
}

func TestGateway_GetSession(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	if err := store.Append(context.Background(), transcript.Entry{SessionID: "s1", Kind: transcript.KindContent, Text: "hi"}); err != nil {
		t.Fatal(err)
	}
	_, srv := newTestGateway(t, store)

	resp := get(t, srv.URL+"/api/sessions/s1", "secret")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	if resp := get(t, srv.URL+"/api/sessions/nope", "secret"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing session: status = %d, want 404", resp.StatusCode)
	}
}

func TestGateway_ListTools(t *testing.T) {
	t.Parallel()

	g, srv := newTestGateway(t, nil)
	_ = g

	resp := get(t, srv.URL+"/api/tools", "secret")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestGateway_EventStream(t *testing.T) {
	t.Parallel()

	g, srv := newTestGateway(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + srv.URL[len("http"):] + "/ws/events"
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer secret"}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Publish after the subscription is live; retry briefly since the
	// handler subscribes asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	go func() {
		for time.Now().Before(deadline) {
			g.Hub().Publish(agent.Event{Type: agent.EventContent, Text: "hello"})
			time.Sleep(10 * time.Millisecond)
		}
	}()

	_, payload, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev wsEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != "content" || ev.Text != "hello" {
		t.Errorf("event = %+v", ev)
	}
}

func TestEventHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	t.Parallel()

	hub := NewEventHub()
	ch := hub.subscribe()
	defer hub.unsubscribe(ch)

	// Fill the buffer past capacity; Publish must not block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			hub.Publish(agent.Event{Type: agent.EventContent, Text: "x"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestEventHub_PublishError(t *testing.T) {
	t.Parallel()

	hub := NewEventHub()
	ch := hub.subscribe()
	defer hub.unsubscribe(ch)

	hub.Publish(agent.Event{Type: agent.EventError, Err: errors.New("stream broke")})

	select {
	case payload := <-ch:
		var ev wsEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			t.Fatal(err)
		}
		if ev.Type != "error" || ev.Error != "stream broke" {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

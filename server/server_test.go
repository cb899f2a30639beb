package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/planfinder/internal/models"
	"github.com/xhad/planfinder/pkg/index"
	"github.com/xhad/planfinder/pkg/tools"
	"github.com/xhad/planfinder/server"
)

type fakeIndex struct {
	plans []models.Plan
	err   error
}

func (f *fakeIndex) FindSimilar(_ context.Context, query string, k int) ([]models.Match, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Match
	for _, p := range f.plans {
		if len(out) == k {
			break
		}
		d := 1.0
		if strings.Contains(strings.ToLower(p.Text), strings.ToLower(query)) {
			d = 0
		}
		out = append(out, models.Match{Plan: p, Distance: d})
	}
	return out, nil
}

func (f *fakeIndex) Size() int { return len(f.plans) }

func newServer(t *testing.T, ix *fakeIndex) *httptest.Server {
	t.Helper()
	registry := tools.NewDefaultRegistry(tools.Deps{Finder: ix})
	srv := httptest.NewServer(server.NewWSServer(server.Config{}, ix, registry).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var hello server.Message
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, server.TypeStatus, hello.Type)
	assert.Equal(t, "connected", hello.Content)
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, msg server.Message) server.Message {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
	var reply server.Message
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

var plans = []models.Plan{
	{Position: 0, Text: "Plan A: save 10% monthly"},
	{Position: 1, Text: "Plan B: invest in index funds"},
}

func TestPlanMessage(t *testing.T) {
	conn := dial(t, newServer(t, &fakeIndex{plans: plans}))

	reply := roundTrip(t, conn, server.Message{ID: "1", Type: server.TypePlan, Content: "save", TopK: 2})
	assert.Equal(t, "1", reply.ID)
	assert.Equal(t, server.TypePlan, reply.Type)
	assert.Equal(t, "Most similar plan: Plan A: save 10% monthly", reply.Content)

	data, ok := reply.Data.([]any)
	require.True(t, ok)
	assert.Len(t, data, 2)
}

func TestPlanMessageError(t *testing.T) {
	conn := dial(t, newServer(t, &fakeIndex{err: index.ErrEmptyIndex}))

	reply := roundTrip(t, conn, server.Message{ID: "2", Type: server.TypePlan, Content: "save"})
	assert.Equal(t, server.TypeError, reply.Type)
	assert.Equal(t, "Error finding similar plan: "+index.ErrEmptyIndex.Error(), reply.Content)
}

func TestToolMessage(t *testing.T) {
	conn := dial(t, newServer(t, &fakeIndex{plans: plans}))

	reply := roundTrip(t, conn, server.Message{
		ID:   "3",
		Type: server.TypeTool,
		Tool: "find_similar_plan",
		Args: json.RawMessage(`{"query":"invest"}`),
	})
	assert.Equal(t, server.TypeTool, reply.Type)
	assert.Equal(t, "find_similar_plan", reply.Tool)
	assert.Equal(t, "Most similar plan: Plan A: save 10% monthly", reply.Content)

	reply = roundTrip(t, conn, server.Message{ID: "4", Type: server.TypeTool, Tool: "get_eth_balance"})
	assert.Equal(t, `Error: unknown tool "get_eth_balance"`, reply.Content)
}

func TestInvalidMessages(t *testing.T) {
	conn := dial(t, newServer(t, &fakeIndex{plans: plans}))

	reply := roundTrip(t, conn, server.Message{ID: "5", Type: "chat"})
	assert.Equal(t, server.TypeError, reply.Type)
	assert.Equal(t, "5", reply.ID)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	var bad server.Message
	require.NoError(t, conn.ReadJSON(&bad))
	assert.Equal(t, server.TypeError, bad.Type)
	assert.Contains(t, bad.Content, "invalid message")
}

func TestHealth(t *testing.T) {
	srv := newServer(t, &fakeIndex{plans: plans})
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	empty := newServer(t, &fakeIndex{})
	resp, err = http.Get(empty.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestToolsEndpoint(t *testing.T) {
	srv := newServer(t, &fakeIndex{plans: plans})
	resp, err := http.Get(srv.URL + "/tools")
	require.NoError(t, err)
	defer resp.Body.Close()

	var schemas []tools.Schema
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&schemas))
	require.Len(t, schemas, 1)
	assert.Equal(t, "find_similar_plan", schemas[0].Name)
}

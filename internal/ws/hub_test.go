package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/propgate/propgate/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *Hub, query string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.Handle))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) *Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(payload, &env))
	return &env
}

func TestHubBroadcastsAccountState(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "")

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	result := &model.RuleEvaluationResult{
		AccountID:        "a1",
		Timestamp:        time.Now().UTC(),
		OverallRiskLevel: model.StatusCaution,
		RuleStates:       map[string]model.RuleState{},
		MaxAllowedRisk:   map[string]decimal.Decimal{},
	}
	hub.BroadcastAccountState("a1", result)

	env := readEnvelope(t, conn)
	require.Equal(t, MsgAccountState, env.Type)
	require.Equal(t, "a1", env.AccountID)
}

func TestHubFiltersByAccount(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "?accounts=a2")

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	result := &model.RuleEvaluationResult{AccountID: "a1", Timestamp: time.Now().UTC()}
	hub.BroadcastAccountState("a1", result)
	result2 := &model.RuleEvaluationResult{AccountID: "a2", Timestamp: time.Now().UTC()}
	hub.BroadcastAccountState("a2", result2)

	// Only the subscribed account comes through.
	env := readEnvelope(t, conn)
	require.Equal(t, "a2", env.AccountID)
}

func TestHubBroadcastsGroupRisk(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "?groups=g1")

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.BroadcastGroupRisk(&model.GroupRiskEvaluation{
		GroupID:       "g1",
		GroupName:     "desk",
		OverallStatus: string(model.StatusSafe),
		Timestamp:     time.Now().UTC(),
	})

	env := readEnvelope(t, conn)
	require.Equal(t, MsgGroupRisk, env.Type)
	require.Equal(t, "g1", env.GroupID)
}

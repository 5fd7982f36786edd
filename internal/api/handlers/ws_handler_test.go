package handlers

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/legalmatch/internal/models"
	"github.com/yoockh/legalmatch/internal/services"
)

type wsFrame struct {
	Type    string                      `json:"type"`
	Phase   string                      `json:"phase"`
	Results []models.LawyerSearchResult `json:"results"`
	Query   string                      `json:"last_query"`
	Code    string                      `json:"code"`
	Error   string                      `json:"error"`
}

func dialSearchWS(t *testing.T, svc *fakeSearch) *websocket.Conn {
	t.Helper()
	log, _ := test.NewNullLogger()
	r := gin.New()
	r.GET("/ws/search", NewWSHandler(svc, nil, time.Second, log).SearchWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/search"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f wsFrame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestWSHandler_SearchFlow(t *testing.T) {
	svc := &fakeSearch{resp: &services.SearchResponse{
		Query:   "tax",
		Results: []models.LawyerSearchResult{{ID: "a", Similarity: 0.9}},
		Count:   1,
	}}
	conn := dialSearchWS(t, svc)

	assert.Equal(t, "idle", readFrame(t, conn).Phase)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "search", "query": "tax"}))
	f := readFrame(t, conn)
	assert.Equal(t, "state", f.Type)
	assert.Equal(t, "loading", f.Phase)
	assert.Equal(t, "tax", f.Query)

	f = readFrame(t, conn)
	assert.Equal(t, "populated", f.Phase)
	require.Len(t, f.Results, 1)
	assert.Equal(t, "a", f.Results[0].ID)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "clear"}))
	f = readFrame(t, conn)
	assert.Equal(t, "idle", f.Phase)
	assert.Empty(t, f.Results)
}

func TestWSHandler_BadMessages(t *testing.T) {
	conn := dialSearchWS(t, &fakeSearch{})
	readFrame(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	f := readFrame(t, conn)
	assert.Equal(t, "error", f.Type)
	assert.Equal(t, "INVALID_ARGUMENT", f.Code)
	assert.Equal(t, "invalid json", f.Error)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "shout"}))
	f = readFrame(t, conn)
	assert.Equal(t, "unknown message type", f.Error)
}

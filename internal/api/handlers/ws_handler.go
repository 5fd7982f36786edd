package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/legalmatch/internal/searchclient"
	"github.com/yoockh/legalmatch/internal/utils"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 25 * time.Second
)

// WSHandler drives one searchclient.Client per connection so a browser can
// type ahead and receive only the state of its latest query.
type WSHandler struct {
	searcher searchclient.Searcher
	lister   searchclient.Lister
	timeout  time.Duration
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

func NewWSHandler(searcher searchclient.Searcher, lister searchclient.Lister, timeout time.Duration, log logrus.FieldLogger) *WSHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &WSHandler{
		searcher: searcher,
		lister:   lister,
		timeout:  timeout,
		log:      log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // same policy as the CORS "*" on search
		},
	}
}

type wsClientMsg struct {
	Type    string `json:"type"` // search | clear | mode
	Query   string `json:"query"`
	Limit   int    `json:"limit"`
	Enabled bool   `json:"enabled"`
}

type wsStateMsg struct {
	Type  string             `json:"type"`
	Phase searchclient.Phase `json:"phase"`
	searchclient.State
}

type wsNotifyMsg struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Kind    searchclient.Kind `json:"kind"`
}

type wsErrorMsg struct {
	Type    string     `json:"type"`
	Code    utils.Code `json:"code"`
	Message string     `json:"error"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteJSON(v)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.c.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

func (h *WSHandler) SearchWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := h.log.WithField("request_id", c.GetString("request_id"))

	client := searchclient.New(h.searcher, searchclient.Options{
		Timeout: h.timeout,
		Enabled: true,
		Lister:  h.lister,
		Notifier: searchclient.NotifierFunc(func(msg string, kind searchclient.Kind) {
			_ = wc.writeJSON(wsNotifyMsg{Type: "notify", Message: msg, Kind: kind})
		}),
		OnChange: func(st searchclient.State) {
			_ = wc.writeJSON(wsStateMsg{Type: "state", Phase: st.Phase(), State: st})
		},
	})
	defer client.Clear()

	go func() {
		t := time.NewTicker(wsPingInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := wc.ping(); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	st := client.State()
	_ = wc.writeJSON(wsStateMsg{Type: "state", Phase: st.Phase(), State: st})

	for {
		_, data, rerr := conn.ReadMessage()
		if rerr != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		var msg wsClientMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = wc.writeJSON(wsErrorMsg{Type: "error", Code: utils.CodeInvalidArgument, Message: "invalid json"})
			continue
		}

		switch msg.Type {
		case "search":
			// issued in arrival order, awaited in the background
			done := client.SearchAsync(ctx, msg.Query, msg.Limit)
			go func() {
				if err := <-done; err != nil && !errors.Is(err, searchclient.ErrSuperseded) {
					log.WithError(err).Debug("ws search failed")
				}
			}()
		case "clear":
			client.Clear()
		case "mode":
			_ = client.SetEnabledAsync(ctx, msg.Enabled)
		default:
			_ = wc.writeJSON(wsErrorMsg{Type: "error", Code: utils.CodeInvalidArgument, Message: "unknown message type"})
		}
	}
}

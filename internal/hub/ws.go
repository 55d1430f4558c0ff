package hub

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/seojin-dev/chessroom/internal/obslog"
)

const writeTimeout = 5 * time.Second

// wsConn adapts a websocket connection to the Conn interface. Writes are
// serialized with a mutex because broadcasts arrive from other
// connections' read loops.
type wsConn struct {
	mu sync.Mutex
	c  *websocket.Conn
}

func (w *wsConn) Send(ctx context.Context, v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, w.c, v)
}

func (w *wsConn) Close(reason string) {
	_ = w.c.Close(websocket.StatusNormalClosure, reason)
}

// Handler upgrades HTTP requests to websocket sessions and pumps inbound
// frames through the dispatcher. Messages from one connection are handled
// strictly in arrival order.
type Handler struct {
	dispatcher *Dispatcher
	origins    []string
}

func NewHandler(d *Dispatcher, allowedOrigins []string) *Handler {
	return &Handler{dispatcher: d, origins: allowedOrigins}
}

// acceptOptions builds the origin policy: with nothing configured only
// same-origin browsers are accepted; a literal "*" entry is the explicit
// opt-in to skip origin verification entirely.
func (h *Handler) acceptOptions() *websocket.AcceptOptions {
	opts := &websocket.AcceptOptions{}
	for _, o := range h.origins {
		if o == "*" {
			opts.InsecureSkipVerify = true
			return opts
		}
	}
	opts.OriginPatterns = h.origins
	return opts
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, h.acceptOptions())
	if err != nil {
		obslog.L().Warn("websocket accept failed", zap.Error(err))
		return
	}
	conn := &wsConn{c: c}
	ctx := r.Context()

	s := h.dispatcher.HandleConnect(ctx, conn)
	obslog.L().Info("client connected", zap.String("player", s.PlayerID))
	defer func() {
		h.dispatcher.HandleDisconnect(context.WithoutCancel(ctx), conn)
		_ = c.CloseNow()
	}()

	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			obslog.L().Info("client disconnected",
				zap.String("player", s.PlayerID),
				zap.Error(err))
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		h.dispatcher.Dispatch(ctx, conn, data)
	}
}

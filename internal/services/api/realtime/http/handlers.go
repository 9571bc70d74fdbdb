// Package http provides the websocket transport for change streams
package http

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	backend "backplane/internal/backend/domain"
	"backplane/internal/modkit/httpkit"
	"backplane/internal/platform/logger"
	pnet "backplane/internal/platform/net"
	phttp "backplane/internal/platform/net/http"
)

const (
	// sendBuffer bounds how far a slow client may lag before frames drop
	sendBuffer = 64

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// the API is origin-agnostic; CORS policy lives on the JSON surface
	CheckOrigin: func(*stdhttp.Request) bool { return true },
}

// Register mounts the change stream endpoint on the given router
func Register(r httpkit.Router, rt backend.RealtimePort) {
	h := &handlers{rt: rt, log: logger.Named("realtime")}
	r.Handle("/{entityType}", stdhttp.HandlerFunc(h.stream))
}

type handlers struct {
	rt  backend.RealtimePort
	log *logger.Logger
}

// stream upgrades to a websocket and forwards change events for one entity
// type as JSON frames. The subscription is registered before the upgrade
// handshake completes, so a mutation racing the connect is never lost; the
// optional ?filter=field=op.value expression is validated but delivery may be
// wider than it narrows
func (h *handlers) stream(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	entityType := chi.URLParam(r, "entityType")
	filter := r.URL.Query().Get("filter")

	events := make(chan backend.ChangeEvent, sendBuffer)
	unsub, err := h.rt.SubscribeTable(entityType, filter, func(ev backend.ChangeEvent) {
		select {
		case events <- ev:
		default:
			// slow consumer; dropping beats blocking the mutation path
			h.log.Warn().Str("entity_type", entityType).Msg("change stream buffer full, dropping event")
		}
	})
	if err != nil {
		status, body := pnet.Error(err, pnet.RequestID(r.Context()))
		phttp.JSON(w, status, body)
		return
	}
	defer unsub()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the handshake error
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	h.log.Info().Str("entity_type", entityType).Str("remote", conn.RemoteAddr().String()).Msg("change stream opened")

	// reader exists only to surface the close handshake
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case ev := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.log.Debug().Err(err).Msg("change stream write failed")
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			h.log.Info().Str("entity_type", entityType).Msg("change stream closed")
			return
		case <-r.Context().Done():
			return
		}
	}
}

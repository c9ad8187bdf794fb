package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/tutoria-backend/internal/model"
	"github.com/stemsi/tutoria-backend/internal/service"
	ws "github.com/stemsi/tutoria-backend/internal/websocket"
)

// seatRefreshInterval re-reads availability in case a pub/sub message was missed.
const seatRefreshInterval = 30 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// SeatStreamHandler pushes live seat snapshots of one class over WebSocket.
type SeatStreamHandler struct {
	availabilityService *service.AvailabilityService
	log                 zerolog.Logger
	upgrader            websocket.Upgrader
}

// NewSeatStreamHandler creates a new SeatStreamHandler.
func NewSeatStreamHandler(availabilityService *service.AvailabilityService, log zerolog.Logger, allowedOrigins []string) *SeatStreamHandler {
	return &SeatStreamHandler{
		availabilityService: availabilityService,
		log:                 log.With().Str("component", "seat_stream_handler").Logger(),
		upgrader:            buildUpgrader(allowedOrigins),
	}
}

// StreamSeats godoc
// WS /ws/v1/classes/:id/seats
// Sends the current snapshot, then one snapshot per committed change.
// Clients may send {"action":"ping"} to keep the stream open.
func (h *SeatStreamHandler) StreamSeats(c *gin.Context) {
	classID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	initial, err := h.availabilityService.Get(ctx, classID)
	if err != nil {
		failService(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("class_id", classID.String()).Logger()
	wsLog.Debug().Msg("Seat stream opened")

	var updates <-chan *redis.Message
	if sub := h.availabilityService.Subscribe(ctx, classID); sub != nil {
		defer sub.Close()
		updates = sub.Channel()
	}

	if err := ws.WriteSnapshot(conn, *initial); err != nil {
		return
	}

	pings, closed := h.readLoop(conn, wsLog)
	refresh := time.NewTicker(seatRefreshInterval)
	defer refresh.Stop()

	for {
		select {
		case <-closed:
			wsLog.Debug().Msg("Seat stream closed")
			return

		case <-pings:
			if err := ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}); err != nil {
				return
			}

		case msg, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			var a model.ClassAvailability
			if err := json.Unmarshal([]byte(msg.Payload), &a); err != nil {
				wsLog.Warn().Err(err).Msg("Invalid seat snapshot payload")
				continue
			}
			if err := ws.WriteSnapshot(conn, a); err != nil {
				return
			}

		case <-refresh.C:
			a, err := h.availabilityService.Get(ctx, classID)
			if err != nil {
				ws.WriteError(conn, err.Error())
				return
			}
			if err := ws.WriteSnapshot(conn, *a); err != nil {
				return
			}
		}
	}
}

// readLoop owns all reads on conn. Writes stay on the caller's goroutine.
func (h *SeatStreamHandler) readLoop(conn *websocket.Conn, wsLog zerolog.Logger) (<-chan struct{}, <-chan struct{}) {
	pings := make(chan struct{}, 1)
	closed := make(chan struct{})

	go func() {
		defer close(closed)
		for {
			var msg ws.RequestEnvelope
			if err := ws.ReadJSON(conn, &msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsLog.Warn().Err(err).Msg("Unexpected close")
				}
				return
			}
			if msg.Action == ws.ActionPing {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()
	return pings, closed
}

package http

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/shrimpsizemoose/trekker/logger"

	"cie-scoring-service/internal/app"
	"cie-scoring-service/internal/domain"
)

// FeedHandler streams ResultsRecomputed events of one subject over a websocket.
type FeedHandler struct {
	engine   *app.Engine
	feed     *app.ResultFeed
	upgrader websocket.Upgrader
}

func NewFeedHandler(engine *app.Engine, feed *app.ResultFeed) *FeedHandler {
	return &FeedHandler{
		engine: engine,
		feed:   feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type subscribedPayload struct {
	SubjectID    string              `json:"subjectId"`
	Distribution domain.Distribution `json:"distribution"`
}

// ServeWS upgrades the request and pushes a "recomputed" message per event
// until the client goes away. The first message is "subscribed" with the
// subject's current distribution.
func (h *FeedHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	subjectID := r.URL.Query().Get("subjectId")
	if subjectID == "" {
		http.Error(w, "missing subjectId", http.StatusBadRequest)
		return
	}
	dist, err := h.engine.GetScoreDistribution(r.Context(), subjectID)
	if err != nil {
		status, body := errorResponse(err)
		http.Error(w, body.Message, status)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, cancel := h.feed.Subscribe(r.Context(), subjectID)
	defer cancel()

	if err := conn.WriteJSON(outboundMessage[subscribedPayload]{
		Type:    "subscribed",
		Payload: subscribedPayload{SubjectID: subjectID, Distribution: dist},
	}); err != nil {
		return
	}

	// the client never sends anything meaningful; reading only detects close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage[domain.ResultsRecomputed]{Type: "recomputed", Payload: event}); err != nil {
				logger.Debug.Printf("ws write error: %v", err)
				return
			}
		case <-closed:
			return
		}
	}
}

package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"remindme-service/internal/app"
	"remindme-service/internal/domain"
	"remindme-service/internal/quiz"
)

// DeliverySource fans out fired notifications.
type DeliverySource interface {
	Subscribe() (<-chan domain.Delivery, func())
}

type WSHandler struct {
	service    *app.QuizService
	deliveries DeliverySource
	log        *slog.Logger
	upgrader   websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, deliveries DeliverySource, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service:    service,
		deliveries: deliveries,
		log:        logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Choice string `json:"choice"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

const (
	msgStart        = "start"
	msgAnswer       = "answer"
	msgRestart      = "restart"
	msgClose        = "close"
	msgRefresh      = "refresh"
	msgState        = "state"
	msgNotification = "notification"
	msgError        = "error"
)

// ServeWS upgrades HTTP requests to websockets and wires them into the quiz
// use cases. State changes reach the client through the session
// subscription; direct replies are only sent for errors.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("playerId")
	if playerID == "" {
		http.Error(w, "missing playerId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	updates, cancel, err := h.service.Subscribe(ctx, playerID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: msgError, Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer func() {
		// unsubscribe first so Leave sees no watchers and can drop the session
		cancel()
		h.service.Leave(context.WithoutCancel(ctx), playerID)
	}()

	var deliveries <-chan domain.Delivery
	if h.deliveries != nil {
		ch, stop := h.deliveries.Subscribe()
		defer stop()
		deliveries = ch
	}

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	forwardDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Warn("ws write error", "player", playerID, "err", err)
				return
			}
		}
	}()

	go func() {
		defer close(forwardDone)
		for {
			var msg outboundMessage[any]
			select {
			case view, ok := <-updates:
				if !ok {
					return
				}
				msg = outboundMessage[any]{Type: msgState, Payload: view}
			case del, ok := <-deliveries:
				if !ok {
					deliveries = nil
					continue
				}
				msg = outboundMessage[any]{Type: msgNotification, Payload: del}
			case <-closeSignals:
				return
			}
			select {
			case send <- msg:
			case <-closeSignals:
				return
			}
		}
	}()

	h.log.Info("player connected", "player", playerID)
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		reply := func(msg outboundMessage[any]) {
			select {
			case send <- msg:
			case <-writerDone:
			}
		}
		if err := h.dispatch(ctx, playerID, inbound, reply); err != nil {
			reply(outboundMessage[any]{Type: msgError, Payload: errorPayload{Message: err.Error()}})
		}
	}
	h.log.Info("player disconnected", "player", playerID)

	close(closeSignals)
	<-forwardDone
	close(send)
	<-writerDone
}

type wsError string

func (e wsError) Error() string { return string(e) }

const (
	errInvalidAnswer  = wsError("invalid answer payload")
	errUnsupportedMsg = wsError("unsupported message type")
)

// dispatch applies one inbound command. Refresh replies with the current
// state since an unchanged roster broadcasts nothing.
func (h *WSHandler) dispatch(ctx context.Context, playerID string, in inboundMessage, reply func(outboundMessage[any])) error {
	var err error
	switch in.Type {
	case msgStart:
		_, err = h.service.Start(ctx, playerID)
	case msgAnswer:
		var payload answerPayload
		if len(in.Payload) == 0 || json.Unmarshal(in.Payload, &payload) != nil {
			return errInvalidAnswer
		}
		_, err = h.service.Answer(ctx, playerID, payload.Choice)
	case msgRestart:
		_, err = h.service.Restart(ctx, playerID)
	case msgClose:
		_, err = h.service.Close(ctx, playerID)
	case msgRefresh:
		var view quiz.View
		if view, err = h.service.Refresh(ctx, playerID); err == nil {
			reply(outboundMessage[any]{Type: msgState, Payload: view})
		}
	default:
		return errUnsupportedMsg
	}
	return err
}

// Package line connects the relay to the LINE Messaging API: it receives
// webhook callbacks and sends replies.
package line

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/linerelay/linerelay/internal/config"
	"github.com/linerelay/linerelay/internal/relay"
)

const signatureHeader = "X-Line-Signature"

const webhookMaxBodyBytes int64 = 1 << 20 // 1 MiB

type inboundSink interface {
	Enqueue(in relay.InboundText) error
}

// WebhookHandler receives LINE webhook callbacks and queues text messages.
type WebhookHandler struct {
	logger *slog.Logger
	secret string
	path   string
	sink   inboundSink
}

// NewWebhookHandler creates the callback handler for the given channel secret.
func NewWebhookHandler(log *slog.Logger, channelSecret, path string, sink inboundSink) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(path) == "" {
		path = config.DefaultCallbackPath
	}
	return &WebhookHandler{
		logger: log.With(slog.String("handler", "line_webhook")),
		secret: channelSecret,
		path:   path,
		sink:   sink,
	}
}

// NewWebhookServerHandler is a DI-friendly constructor for fx.
func NewWebhookServerHandler(log *slog.Logger, cfg config.Config, pool *relay.Pool) *WebhookHandler {
	return NewWebhookHandler(log, cfg.Line.ChannelSecret, cfg.Line.CallbackPath, pool)
}

// Register registers the callback routes.
func (h *WebhookHandler) Register(e *echo.Echo) {
	e.GET(h.path, h.HandleProbe)
	e.POST(h.path, h.Handle)
}

// HandleProbe responds to health/probe requests on the callback URL.
func (h *WebhookHandler) HandleProbe(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Handle verifies the signature, then queues every text message event for the
// relay. The AI round trip happens on the relay workers, not on this request.
func (h *WebhookHandler) Handle(c echo.Context) error {
	if h.sink == nil || strings.TrimSpace(h.secret) == "" {
		return echo.NewHTTPError(http.StatusInternalServerError, "line webhook dependencies not configured")
	}
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, webhookMaxBodyBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
	}
	if int64(len(payload)) > webhookMaxBodyBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("payload too large: max %d bytes", webhookMaxBodyBytes))
	}
	signature := c.Request().Header.Get(signatureHeader)
	if signature == "" || !webhook.ValidateSignature(h.secret, signature, payload) {
		h.logger.Error("invalid signature")
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid signature")
	}

	var cb webhook.CallbackRequest
	if err := json.Unmarshal(payload, &cb); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid line webhook payload: %v", err))
	}

	queued := 0
	for _, event := range cb.Events {
		in, ok := inboundFromEvent(event)
		if !ok {
			continue
		}
		if err := h.sink.Enqueue(in); err != nil {
			h.logger.Error("enqueue message failed",
				slog.String("conversation_id", in.Key()),
				slog.Any("error", err),
			)
			continue
		}
		queued++
	}
	h.logger.Info("webhook handled successfully", slog.Int("events", len(cb.Events)), slog.Int("queued", queued))
	return c.JSON(http.StatusOK, map[string]string{"message": "OK"})
}

// inboundFromEvent extracts a text message event. Other events and message
// types are ignored.
func inboundFromEvent(event webhook.EventInterface) (relay.InboundText, bool) {
	var me webhook.MessageEvent
	switch e := event.(type) {
	case webhook.MessageEvent:
		me = e
	case *webhook.MessageEvent:
		if e == nil {
			return relay.InboundText{}, false
		}
		me = *e
	default:
		return relay.InboundText{}, false
	}

	var text string
	switch m := me.Message.(type) {
	case webhook.TextMessageContent:
		text = m.Text
	case *webhook.TextMessageContent:
		if m == nil {
			return relay.InboundText{}, false
		}
		text = m.Text
	default:
		return relay.InboundText{}, false
	}
	if strings.TrimSpace(text) == "" || strings.TrimSpace(me.ReplyToken) == "" {
		return relay.InboundText{}, false
	}

	userID, conversationID := resolveSource(me.Source)
	in := relay.InboundText{
		ReplyToken:     me.ReplyToken,
		UserID:         userID,
		ConversationID: conversationID,
		Text:           text,
	}
	if me.Timestamp > 0 {
		in.ReceivedAt = time.UnixMilli(me.Timestamp)
	}
	return in, true
}

// resolveSource returns the sender and the conversation key. Group and room
// keys include the sender so each member keeps a separate chat context.
func resolveSource(source webhook.SourceInterface) (userID, conversationID string) {
	switch s := source.(type) {
	case webhook.UserSource:
		return s.UserId, s.UserId
	case *webhook.UserSource:
		if s != nil {
			return s.UserId, s.UserId
		}
	case webhook.GroupSource:
		return s.UserId, joinKey("group", s.GroupId, s.UserId)
	case *webhook.GroupSource:
		if s != nil {
			return s.UserId, joinKey("group", s.GroupId, s.UserId)
		}
	case webhook.RoomSource:
		return s.UserId, joinKey("room", s.RoomId, s.UserId)
	case *webhook.RoomSource:
		if s != nil {
			return s.UserId, joinKey("room", s.RoomId, s.UserId)
		}
	}
	return "", ""
}

func joinKey(kind, id, userID string) string {
	parts := []string{kind, id}
	if strings.TrimSpace(userID) != "" {
		parts = append(parts, userID)
	}
	return strings.Join(parts, ":")
}

package line

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"github.com/linerelay/linerelay/internal/flex"
)

const (
	maxTextRunes        = 5000
	maxMessagesPerReply = 5
	apiTimeout          = 30 * time.Second
)

var errEmptyMessage = errors.New("line: message text is empty")

type replyAPI interface {
	ReplyMessage(ctx context.Context, req *messaging_api.ReplyMessageRequest) error
}

type sdkReplyAPI struct {
	api *messaging_api.MessagingApiAPI
}

func (s sdkReplyAPI) ReplyMessage(ctx context.Context, req *messaging_api.ReplyMessageRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.api.ReplyMessage(req)
	return err
}

// NewMessagingAPI creates the LINE Messaging API client.
func NewMessagingAPI(channelAccessToken string) (*messaging_api.MessagingApiAPI, error) {
	if strings.TrimSpace(channelAccessToken) == "" {
		return nil, fmt.Errorf("line channel access token is required")
	}
	return messaging_api.NewMessagingApiAPI(
		channelAccessToken,
		messaging_api.WithHTTPClient(&http.Client{Timeout: apiTimeout}),
	)
}

// Dispatcher sends replies through the LINE Messaging API.
type Dispatcher struct {
	api    replyAPI
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher on top of the SDK client.
func NewDispatcher(log *slog.Logger, api *messaging_api.MessagingApiAPI) *Dispatcher {
	return newDispatcher(log, sdkReplyAPI{api: api})
}

func newDispatcher(log *slog.Logger, api replyAPI) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		api:    api,
		logger: log.With(slog.String("component", "line_dispatcher")),
	}
}

// Reply sends msg for replyToken. A card the SDK cannot decode is sent as the
// plain text it was rendered from.
func (d *Dispatcher) Reply(ctx context.Context, replyToken string, msg flex.Message) error {
	replyToken = strings.TrimSpace(replyToken)
	if replyToken == "" {
		return fmt.Errorf("line reply token is required")
	}
	if msg == nil {
		return fmt.Errorf("line reply message is required")
	}
	messages, err := d.buildMessages(msg)
	if err != nil {
		d.logger.Error("build reply failed", slog.Any("error", err))
		return err
	}
	if err := d.api.ReplyMessage(ctx, &messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   messages,
	}); err != nil {
		d.logger.Error("reply failed", slog.Any("error", err))
		return fmt.Errorf("line reply failed: %w", err)
	}
	d.logger.Info("reply success", slog.Int("messages", len(messages)))
	return nil
}

func (d *Dispatcher) buildMessages(msg flex.Message) ([]messaging_api.MessageInterface, error) {
	switch m := msg.(type) {
	case flex.FlexMessage:
		container, err := toFlexContainer(m.Contents)
		if err != nil {
			d.logger.Warn("flex container rejected, sending plain text", slog.Any("error", err))
			return textMessages(m.Source)
		}
		return []messaging_api.MessageInterface{
			messaging_api.FlexMessage{AltText: m.AltText, Contents: container},
		}, nil
	case flex.TextMessage:
		return textMessages(m.Text)
	default:
		return nil, fmt.Errorf("line: unsupported message type %T", msg)
	}
}

func toFlexContainer(b flex.Bubble) (messaging_api.FlexContainerInterface, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return messaging_api.UnmarshalFlexContainer(raw)
}

// textMessages splits text into as many text messages as one reply allows.
// Text beyond that is dropped.
func textMessages(text string) ([]messaging_api.MessageInterface, error) {
	chunks := splitText(text, maxTextRunes, maxMessagesPerReply)
	if len(chunks) == 0 {
		return nil, errEmptyMessage
	}
	out := make([]messaging_api.MessageInterface, 0, len(chunks))
	for _, chunk := range chunks {
		out = append(out, messaging_api.TextMessage{Text: chunk})
	}
	return out, nil
}

func splitText(text string, size, limit int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= size {
		return []string{text}
	}
	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes) && len(chunks) < limit; start += size {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// Package relay wires an inbound chat message through the assistant, the
// card converter and the reply dispatcher.
package relay

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/linerelay/linerelay/internal/flex"
)

// InboundText is a text message received from the messaging provider.
type InboundText struct {
	ReplyToken     string
	UserID         string
	ConversationID string
	Text           string
	ReceivedAt     time.Time
}

// Key returns the conversation the message belongs to.
func (m InboundText) Key() string {
	if strings.TrimSpace(m.ConversationID) != "" {
		return m.ConversationID
	}
	return m.UserID
}

type asker interface {
	Ask(ctx context.Context, conversationID, question string) (string, error)
}

type converter interface {
	Convert(md string) flex.Message
}

// Dispatcher sends a reply message for a reply token.
type Dispatcher interface {
	Reply(ctx context.Context, replyToken string, msg flex.Message) error
}

// Relay answers inbound text messages.
type Relay struct {
	assistant  asker
	converter  converter
	dispatcher Dispatcher
	logger     *slog.Logger
}

func NewRelay(log *slog.Logger, assistant asker, conv converter, dispatcher Dispatcher) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{
		assistant:  assistant,
		converter:  conv,
		dispatcher: dispatcher,
		logger:     log.With(slog.String("service", "relay")),
	}
}

// Handle asks the assistant and replies. Assistant failures are answered with
// the fallback text it returns, always as plain text. Dispatch errors are
// logged and returned; they are not retried.
func (r *Relay) Handle(ctx context.Context, in InboundText) error {
	question := strings.TrimSpace(in.Text)
	if question == "" {
		return nil
	}
	log := r.logger.With(slog.String("conversation_id", in.Key()))
	log.Info("received message", slog.String("user_id", in.UserID), slog.Int("length", len(question)))

	answer, err := r.assistant.Ask(ctx, in.Key(), question)
	var msg flex.Message
	if err != nil {
		log.Warn("assistant failed, replying with fallback text", slog.Any("error", err))
		msg = flex.TextMessage{Text: answer}
	} else {
		msg = r.converter.Convert(answer)
	}

	if err := r.dispatcher.Reply(ctx, in.ReplyToken, msg); err != nil {
		log.Error("reply failed", slog.Any("error", err))
		return err
	}
	log.Info("reply sent", slog.Bool("card", isCard(msg)))
	return nil
}

func isCard(msg flex.Message) bool {
	_, ok := msg.(flex.FlexMessage)
	return ok
}

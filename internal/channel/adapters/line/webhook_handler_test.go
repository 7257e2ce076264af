package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/linerelay/linerelay/internal/relay"
)

const testSecret = "channel-secret"

type fakeSink struct {
	items []relay.InboundText
	err   error
}

func (s *fakeSink) Enqueue(in relay.InboundText) error {
	if s.err != nil {
		return s.err
	}
	s.items = append(s.items, in)
	return nil
}

func sign(body string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func newCallbackContext(body, signature string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

const userTextBody = `{"destination":"Ubot","events":[{"type":"message","mode":"active","timestamp":1700000000000,"source":{"type":"user","userId":"U123"},"webhookEventId":"01H","deliveryContext":{"isRedelivery":false},"replyToken":"reply-1","message":{"type":"text","id":"m1","quoteToken":"q1","text":"こんにちは"}}]}`

func TestWebhookHandler_TextMessageQueued(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	h := NewWebhookHandler(nil, testSecret, "", sink)
	c, rec := newCallbackContext(userTextBody, sign(userTextBody))

	if err := h.Handle(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"message":"OK"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if len(sink.items) != 1 {
		t.Fatalf("expected one queued message, got %d", len(sink.items))
	}
	got := sink.items[0]
	if got.ReplyToken != "reply-1" || got.UserID != "U123" || got.Key() != "U123" || got.Text != "こんにちは" {
		t.Fatalf("unexpected inbound: %#v", got)
	}
	if got.ReceivedAt.UnixMilli() != 1700000000000 {
		t.Fatalf("unexpected timestamp: %v", got.ReceivedAt)
	}
}

func TestWebhookHandler_InvalidSignature(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	h := NewWebhookHandler(nil, testSecret, "", sink)

	for _, signature := range []string{"", "bm90LWEtc2lnbmF0dXJl"} {
		c, _ := newCallbackContext(userTextBody, signature)
		err := h.Handle(c)
		var he *echo.HTTPError
		if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for signature %q, got %v", signature, err)
		}
	}
	if len(sink.items) != 0 {
		t.Fatalf("nothing must be queued on invalid signature")
	}
}

func TestWebhookHandler_IgnoresNonTextEvents(t *testing.T) {
	t.Parallel()

	body := `{"destination":"Ubot","events":[` +
		`{"type":"follow","mode":"active","timestamp":1,"source":{"type":"user","userId":"U1"},"webhookEventId":"e1","deliveryContext":{"isRedelivery":false},"replyToken":"r1"},` +
		`{"type":"message","mode":"active","timestamp":1,"source":{"type":"user","userId":"U1"},"webhookEventId":"e2","deliveryContext":{"isRedelivery":false},"replyToken":"r2","message":{"type":"sticker","id":"s1","packageId":"1","stickerId":"1","stickerResourceType":"STATIC"}}` +
		`]}`
	sink := &fakeSink{}
	h := NewWebhookHandler(nil, testSecret, "", sink)
	c, rec := newCallbackContext(body, sign(body))
	if err := h.Handle(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK || len(sink.items) != 0 {
		t.Fatalf("expected ok with nothing queued, got %d / %d", rec.Code, len(sink.items))
	}
}

func TestWebhookHandler_GroupConversationKey(t *testing.T) {
	t.Parallel()

	body := `{"destination":"Ubot","events":[{"type":"message","mode":"active","timestamp":1,"source":{"type":"group","groupId":"G9","userId":"U5"},"webhookEventId":"e","deliveryContext":{"isRedelivery":false},"replyToken":"r","message":{"type":"text","id":"m","quoteToken":"q","text":"hi"}}]}`
	sink := &fakeSink{}
	h := NewWebhookHandler(nil, testSecret, "", sink)
	c, _ := newCallbackContext(body, sign(body))
	if err := h.Handle(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.items) != 1 || sink.items[0].Key() != "group:G9:U5" {
		t.Fatalf("unexpected inbound: %#v", sink.items)
	}
}

func TestWebhookHandler_QueueFullStillAcknowledges(t *testing.T) {
	t.Parallel()

	h := NewWebhookHandler(nil, testSecret, "", &fakeSink{err: relay.ErrQueueFull})
	c, rec := newCallbackContext(userTextBody, sign(userTextBody))
	if err := h.Handle(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", rec.Code)
	}
}

func TestWebhookHandler_MalformedPayload(t *testing.T) {
	t.Parallel()

	body := `{"events":`
	h := NewWebhookHandler(nil, testSecret, "", &fakeSink{})
	c, _ := newCallbackContext(body, sign(body))
	var he *echo.HTTPError
	if err := h.Handle(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestWebhookHandler_NotConfigured(t *testing.T) {
	t.Parallel()

	h := NewWebhookHandler(nil, "", "", nil)
	c, _ := newCallbackContext(userTextBody, sign(userTextBody))
	var he *echo.HTTPError
	if err := h.Handle(c); !errors.As(err, &he) || he.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %v", err)
	}
}

func TestWebhookHandler_Probe(t *testing.T) {
	t.Parallel()

	h := NewWebhookHandler(nil, testSecret, "", &fakeSink{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/callback", nil)
	rec := httptest.NewRecorder()
	if err := h.HandleProbe(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != "ok" {
		t.Fatalf("unexpected probe response: %q", rec.Body.String())
	}
}

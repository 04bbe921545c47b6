// Package notify formats message digests and delivers them to Slack, either
// to the fixed incoming webhook or to a caller-supplied response URL.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/wadigest/wadigest/internal/extract"
	"github.com/wadigest/wadigest/internal/faults"
)

const (
	botUsername = "WhatsApp Bot"
	botIcon     = ":speech_balloon:"

	colorOK     = "#36a64f"
	colorEmpty  = "#ff9500"
	colorDanger = "danger"
)

// Digest renders the message list for one contact and day. An empty list
// yields a fixed "no messages" sentence rather than an empty payload.
func Digest(contact, humanDate string, msgs []extract.Message) string {
	if len(msgs) == 0 {
		return fmt.Sprintf("No se encontraron mensajes de %s para %s 📭", contact, humanDate)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📱 *Mensajes de %s* - %s\n\n", contact, humanDate)
	for _, m := range msgs {
		fmt.Fprintf(&sb, "*%s*\n%s\n\n", m.Time, m.Text)
	}
	return sb.String()
}

// ErrorNotice renders an error for the fixed webhook, visually distinct from
// digests.
func ErrorNotice(err error) string {
	return fmt.Sprintf("🚨 *Error en WhatsApp Bot*\n```%s```", err.Error())
}

// Ack is the fixed-shape payload returned to the caller before any slow work
// begins.
func Ack(contact, userName string, now time.Time) *slack.WebhookMessage {
	return &slack.WebhookMessage{
		ResponseType: slack.ResponseTypeInChannel,
		Text:         fmt.Sprintf("🔍 Buscando mensajes de %s... esto puede tomar unos segundos.", contact),
		Attachments: []slack.Attachment{{
			Color: colorOK,
			Text:  "Solicitado por @" + userName,
			Ts:    jsonTs(now),
		}},
	}
}

// Result is the terminal success payload for a slash-command run. An empty
// day stays in_channel, with the empty-day accent color.
func Result(contact, humanDate string, msgs []extract.Message, userName string, now time.Time) *slack.WebhookMessage {
	color := colorOK
	if len(msgs) == 0 {
		color = colorEmpty
	}
	return &slack.WebhookMessage{
		ResponseType: slack.ResponseTypeInChannel,
		Text:         Digest(contact, humanDate, msgs),
		Attachments: []slack.Attachment{{
			Color: color,
			Text:  "✅ Búsqueda completada • Solicitado por @" + userName,
			Ts:    jsonTs(now),
		}},
	}
}

// Failure is the terminal error payload for a slash-command run, delivered
// ephemerally to the requester only.
func Failure(err error, userName string, now time.Time) *slack.WebhookMessage {
	return &slack.WebhookMessage{
		ResponseType: slack.ResponseTypeEphemeral,
		Text:         "❌ Error procesando la búsqueda: " + err.Error(),
		Attachments: []slack.Attachment{{
			Color: colorDanger,
			Text:  "Solicitado por @" + userName,
			Ts:    jsonTs(now),
		}},
	}
}

// Notifier delivers payloads over HTTP.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
}

// Option is a functional option for configuring the Notifier.
type Option func(*Notifier)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) {
		n.httpClient = c
	}
}

// New creates a Notifier bound to the fixed incoming-webhook URL.
func New(webhookURL string, opts ...Option) *Notifier {
	n := &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Post sends text to the fixed webhook destination under the bot identity.
func (n *Notifier) Post(ctx context.Context, text string) error {
	msg := &slack.WebhookMessage{
		Text:      text,
		Username:  botUsername,
		IconEmoji: botIcon,
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, n.webhookURL, n.httpClient, msg); err != nil {
		return faults.Wrap(faults.KindDeliveryFailure, "posting to webhook", err)
	}
	return nil
}

// Respond delivers a payload to a caller-supplied response URL. Failures are
// wrapped as DELIVERY_FAILURE; callers log them and move on — the original
// request has already been acknowledged.
func (n *Notifier) Respond(ctx context.Context, responseURL string, msg *slack.WebhookMessage) error {
	if err := slack.PostWebhookCustomHTTPContext(ctx, responseURL, n.httpClient, msg); err != nil {
		return faults.Wrap(faults.KindDeliveryFailure, "posting to response_url", err)
	}
	return nil
}

func jsonTs(t time.Time) json.Number {
	return json.Number(strconv.FormatInt(t.Unix(), 10))
}

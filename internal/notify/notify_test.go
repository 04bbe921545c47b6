package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadigest/wadigest/internal/extract"
	"github.com/wadigest/wadigest/internal/faults"
)

var sampleMsgs = []extract.Message{
	{Time: "09:00", Text: "Hola", Date: "14/02/2024"},
	{Time: "09:05", Text: "¿Vienes?", Date: "14/02/2024"},
}

func TestDigest(t *testing.T) {
	got := Digest("Anafre", "Miércoles, 14 de febrero de 2024", sampleMsgs)

	assert.Contains(t, got, "*Mensajes de Anafre*")
	assert.Contains(t, got, "Miércoles, 14 de febrero de 2024")
	assert.Contains(t, got, "*09:00*\nHola")
	assert.Contains(t, got, "*09:05*\n¿Vienes?")
	// ordering: first message appears before the second
	assert.Less(t, strings.Index(got, "Hola"), strings.Index(got, "¿Vienes?"))
}

func TestDigest_EmptyDay(t *testing.T) {
	got := Digest("Anafre", "hoy", nil)
	assert.Equal(t, "No se encontraron mensajes de Anafre para hoy 📭", got)
}

func TestPayloadShapes(t *testing.T) {
	now := time.Unix(1700000000, 0)

	ack := Ack("Anafre", "pablo", now)
	assert.Equal(t, "in_channel", ack.ResponseType)
	require.Len(t, ack.Attachments, 1)
	assert.Equal(t, json.Number("1700000000"), ack.Attachments[0].Ts)

	res := Result("Anafre", "hoy", sampleMsgs, "pablo", now)
	assert.Equal(t, "in_channel", res.ResponseType)
	assert.Equal(t, colorOK, res.Attachments[0].Color)

	empty := Result("Anafre", "hoy", nil, "pablo", now)
	assert.Equal(t, "in_channel", empty.ResponseType)
	assert.Equal(t, colorEmpty, empty.Attachments[0].Color)

	fail := Failure(assertErr{}, "pablo", now)
	assert.Equal(t, "ephemeral", fail.ResponseType)
	assert.Contains(t, fail.Text, "❌")
	assert.Equal(t, colorDanger, fail.Attachments[0].Color)
}

type assertErr struct{}

func (assertErr) Error() string { return "CONTACT_NOT_FOUND: contact \"Anafre\" not found" }

func TestPost_SendsWebhookPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	n := New(srv.URL)
	require.NoError(t, n.Post(context.Background(), "hola equipo"))

	assert.Equal(t, "hola equipo", got["text"])
	assert.Equal(t, "WhatsApp Bot", got["username"])
	assert.Equal(t, ":speech_balloon:", got["icon_emoji"])
}

func TestPost_Non2xxIsDeliveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	n := New(srv.URL)
	err := n.Post(context.Background(), "hola")
	require.Error(t, err)
	assert.Equal(t, faults.KindDeliveryFailure, faults.Kind(err))
}

func TestRespond_DeliversResponseType(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	n := New("http://unused.invalid")
	msg := Failure(assertErr{}, "pablo", time.Now())
	require.NoError(t, n.Respond(context.Background(), srv.URL, msg))

	assert.Equal(t, "ephemeral", got["response_type"])
}

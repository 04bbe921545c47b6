package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func separator(label string) string {
	return fmt.Sprintf(`<div data-testid="date-separator">%s</div>`, label)
}

func message(time, text string) string {
	var sb strings.Builder
	sb.WriteString(`<div data-testid="msg-container">`)
	if text != "" {
		sb.WriteString(fmt.Sprintf(`<span data-testid="msg-text">%s</span>`, text))
	}
	if time != "" {
		sb.WriteString(fmt.Sprintf(`<span data-testid="msg-time">%s</span>`, time))
	}
	sb.WriteString(`</div>`)
	return sb.String()
}

func inlineDated(date, time, text string) string {
	return fmt.Sprintf(`<div data-testid="msg-container"><span data-testid="date-trans">%s</span><span data-testid="msg-text">%s</span><span data-testid="msg-time">%s</span></div>`,
		date, text, time)
}

func view(parts ...string) []byte {
	return []byte("<html><body><div id=\"main\">" + strings.Join(parts, "") + "</div></body></html>")
}

func TestExtract_FiltersByDateCursor(t *testing.T) {
	html := view(
		separator("13/02/2024"),
		message("22:10", "hasta mañana"),
		separator("14/02/2024"),
		message("09:00", "Hola"),
		message("09:05", "¿Vienes?"),
		separator("15/02/2024"),
		message("08:00", "otro día"),
	)

	got, err := Extract(html, "14/02/2024")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Message{Time: "09:00", Text: "Hola", Date: "14/02/2024"}, got[0])
	assert.Equal(t, Message{Time: "09:05", Text: "¿Vienes?", Date: "14/02/2024"}, got[1])
}

func TestExtract_AbsentDateYieldsEmpty(t *testing.T) {
	html := view(
		separator("13/02/2024"),
		message("22:10", "hasta mañana"),
	)

	got, err := Extract(html, "01/01/2020")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExtract_SkipsMessagesWithoutBody(t *testing.T) {
	html := view(
		separator("14/02/2024"),
		message("09:00", "Hola"),
		message("09:01", ""), // media-only row, no text body
		message("09:05", "¿Vienes?"),
	)

	got, err := Extract(html, "14/02/2024")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Hola", got[0].Text)
	assert.Equal(t, "¿Vienes?", got[1].Text)
}

func TestExtract_ContinuationInheritsPriorSeparator(t *testing.T) {
	html := view(
		separator("14/02/2024"),
		message("09:00", "primero"),
		message("", "continuación sin fecha"),
		separator("15/02/2024"),
		message("10:00", "fuera de rango"),
	)

	got, err := Extract(html, "14/02/2024")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "continuación sin fecha", got[1].Text)
	assert.Equal(t, "14/02/2024", got[1].Date)
}

func TestExtract_InlineDateAdvancesCursor(t *testing.T) {
	html := view(
		inlineDated("13/02/2024", "23:59", "ayer"),
		inlineDated("14/02/2024", "09:00", "hoy"),
		message("09:05", "sigue hoy"),
	)

	got, err := Extract(html, "14/02/2024")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "hoy", got[0].Text)
	assert.Equal(t, "sigue hoy", got[1].Text)
}

func TestExtract_EmptyViewIsNotAnError(t *testing.T) {
	got, err := Extract(view(), "14/02/2024")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

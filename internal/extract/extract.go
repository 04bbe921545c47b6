// Package extract scans a rendered conversation snapshot for the messages of
// one calendar day. It is pure data processing over an HTML snapshot; the
// browser boundary only supplies the bytes.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Message is one extracted message. Ordering follows appearance in the
// conversation view, which is chronological ascending. Duplicates are kept.
type Message struct {
	Time string `json:"time"`
	Text string `json:"text"`
	Date string `json:"date"`
}

// Selectors for the structures WhatsApp Web renders inside a conversation
// panel. These track the client's DOM and break silently if it changes.
const (
	selSeparator  = `div[data-testid="date-separator"]`
	selMessage    = `div[data-testid="msg-container"]`
	selInlineDate = `[data-testid="date-trans"]`
	selText       = `[data-testid="msg-text"]`
	selTime       = `[data-testid="msg-time"]`
)

// Extract returns the messages rendered under targetLabel, in document order.
//
// A current-date cursor advances on every date separator and on every inline
// per-message date label; a message is included iff the cursor equals
// targetLabel when the message is reached, so continuation messages without
// their own label inherit the preceding separator's date. Messages with an
// empty text body are skipped. An absent targetLabel yields an empty slice,
// not an error. Only what is already rendered in the viewport is scanned; no
// scrolling happens here.
func Extract(html []byte, targetLabel string) ([]Message, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing conversation snapshot: %w", err)
	}

	messages := []Message{}
	var cursor string

	doc.Find(selSeparator + ", " + selMessage).Each(func(_ int, s *goquery.Selection) {
		if s.Is(selSeparator) {
			if label := strings.TrimSpace(s.Text()); label != "" {
				cursor = label
			}
			return
		}

		if label := strings.TrimSpace(s.Find(selInlineDate).First().Text()); label != "" {
			cursor = label
		}
		if cursor != targetLabel {
			return
		}

		text := strings.TrimSpace(s.Find(selText).First().Text())
		if text == "" {
			return
		}

		messages = append(messages, Message{
			Time: strings.TrimSpace(s.Find(selTime).First().Text()),
			Text: text,
			Date: cursor,
		})
	})

	return messages, nil
}

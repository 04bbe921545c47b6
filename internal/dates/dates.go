// Package dates normalizes user-supplied date arguments and renders the
// display labels WhatsApp Web uses for its in-conversation date separators.
package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	fullDateRe  = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)
	shortDateRe = regexp.MustCompile(`^\d{1,2}/\d{1,2}$`)

	weekdayTitle = cases.Title(language.Spanish)
)

// Spanish month and weekday names as the es-MX locale renders them.
var (
	monthNames = [...]string{
		"enero", "febrero", "marzo", "abril", "mayo", "junio",
		"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
	}
	weekdayNames = [...]string{
		"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado",
	}
)

// Normalize resolves a raw date argument into a calendar date in loc.
//
// Recognized forms (case-insensitive, trimmed): "" (today), "ayer" or
// "yesterday" (now minus one day), DD/MM/YYYY, and DD/MM in now's year.
// Anything else deliberately falls back to today rather than erroring: a
// slash-command typo degrades to the most useful default. Both the scheduled
// and the on-demand entry points share this policy.
func Normalize(raw string, now time.Time, loc *time.Location) time.Time {
	now = now.In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	text := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case text == "":
		return today
	case text == "ayer" || text == "yesterday":
		return today.AddDate(0, 0, -1)
	case fullDateRe.MatchString(text):
		parts := strings.Split(text, "/")
		day, _ := strconv.Atoi(parts[0])
		month, _ := strconv.Atoi(parts[1])
		year, _ := strconv.Atoi(parts[2])
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	case shortDateRe.MatchString(text):
		parts := strings.Split(text, "/")
		day, _ := strconv.Atoi(parts[0])
		month, _ := strconv.Atoi(parts[1])
		return time.Date(now.Year(), time.Month(month), day, 0, 0, 0, 0, loc)
	default:
		return today
	}
}

// SeparatorLabel renders the zero-padded DD/MM/YYYY form that WhatsApp Web
// shows in es-MX date separators. This is an external-format dependency: if
// the client changes its separator rendering, this is the one place to fix.
func SeparatorLabel(t time.Time) string {
	return t.Format("02/01/2006")
}

// HumanLabel renders the long es-MX form used in digest headers, e.g.
// "Miércoles, 14 de febrero de 2024".
func HumanLabel(t time.Time) string {
	weekday := weekdayTitle.String(weekdayNames[t.Weekday()])
	return fmt.Sprintf("%s, %d de %s de %d", weekday, t.Day(), monthNames[t.Month()-1], t.Year())
}

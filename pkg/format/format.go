// Package format renders items for display: sizes, relative dates, file
// categories.
package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB", "TB", "PB", "EB"}

// Bytes formats a size with 1024-based units and at most two decimals,
// trailing zeros dropped: "0 Bytes", "512 Bytes", "1.5 KB", "2 GB".
func Bytes(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	v := float64(n)
	i := 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

// RelativeDate describes t relative to now: "Today" on the same calendar
// day, then "Yesterday", "N days ago", weeks, months (30 days) and years
// (365 days). The zero time is "Unknown date".
func RelativeDate(t, now time.Time) string {
	if t.IsZero() {
		return "Unknown date"
	}
	t = t.In(now.Location())
	ty, tm, td := t.Date()
	ny, nm, nd := now.Date()
	if ty == ny && tm == nm && td == nd {
		return "Today"
	}

	d := now.Sub(t)
	if d < 0 {
		d = -d
	}
	days := int(d / (24 * time.Hour))
	switch {
	case days <= 1:
		return "Yesterday"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	case days < 30:
		return plural(days/7, "week")
	case days < 365:
		return plural(days/30, "month")
	default:
		return plural(days/365, "year")
	}
}

func plural(n int, unit string) string {
	if n > 1 {
		return fmt.Sprintf("%d %ss ago", n, unit)
	}
	return fmt.Sprintf("%d %s ago", n, unit)
}

// Category is the display category of a mime type.
type Category string

const (
	Image        Category = "image"
	Video        Category = "video"
	Audio        Category = "audio"
	PDF          Category = "pdf"
	Document     Category = "document"
	Spreadsheet  Category = "spreadsheet"
	Presentation Category = "presentation"
	Text         Category = "text"
	Archive      Category = "archive"
	Other        Category = "other"
)

// CategoryOf maps a mime type to its category. Rules are checked in order,
// so "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
// is a document.
func CategoryOf(mime string) Category {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return Image
	case strings.HasPrefix(mime, "video/"):
		return Video
	case strings.HasPrefix(mime, "audio/"):
		return Audio
	case mime == "application/pdf":
		return PDF
	case strings.Contains(mime, "document") || strings.Contains(mime, "word"):
		return Document
	case strings.Contains(mime, "spreadsheet") || strings.Contains(mime, "excel"):
		return Spreadsheet
	case strings.Contains(mime, "presentation") || strings.Contains(mime, "powerpoint"):
		return Presentation
	case strings.HasPrefix(mime, "text/") || mime == "application/json":
		return Text
	case strings.Contains(mime, "zip") || strings.Contains(mime, "rar") || strings.Contains(mime, "7z"):
		return Archive
	}
	return Other
}

// CanPreview reports whether the mime type has an inline preview.
func CanPreview(mime string) bool {
	switch CategoryOf(mime) {
	case Image, Video, Audio, PDF, Text:
		return true
	}
	return false
}

// Truncate shortens s to max runes followed by "...".
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max < 0 {
		max = 0
	}
	return string(r[:max]) + "..."
}

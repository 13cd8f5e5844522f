package application

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatPrice renders USD amounts with thousands separators. Amounts below one
// keep 4 to 8 decimals so small-cap coins stay readable.
func FormatPrice(v float64) string {
	if math.Abs(v) >= 1 {
		return printer.Sprintf("%.2f", v)
	}
	s := strconv.FormatFloat(v, 'f', 8, 64)
	dot := strings.IndexByte(s, '.')
	for len(s)-dot-1 > 4 && strings.HasSuffix(s, "0") {
		s = s[:len(s)-1]
	}
	return s
}

// FormatChange renders a 24h percentage change with a direction marker.
func FormatChange(change float64) string {
	if change >= 0 {
		return fmt.Sprintf("🟢 +%.2f%%", change)
	}
	return fmt.Sprintf("🔴 %.2f%%", change)
}

// FormatRate renders a success rate, or na when there is no data.
func FormatRate(rate float64, ok bool, na string) string {
	if !ok {
		return na
	}
	return fmt.Sprintf("%.1f%%", rate)
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04 UTC")
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "[", "\\[", "`", "\\`")

// escapeMarkdown escapes user supplied text for the legacy Markdown dialect.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// preview cuts s to n runes, appending an ellipsis when truncated.
func preview(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "…"
}

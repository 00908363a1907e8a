package workflow

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/henrymedina447/sbs-suptech-etl-v2/blockgraph"
)

var datePattern = regexp.MustCompile(`\b(\d{2}/\d{2}/\d{4})\b`)

// RefineDate returns the first dd/mm/yyyy date found in s, or "".
func RefineDate(s string) string {
	m := datePattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}

var months = map[string]int{
	"enero":      1,
	"febrero":    2,
	"marzo":      3,
	"abril":      4,
	"mayo":       5,
	"junio":      6,
	"julio":      7,
	"agosto":     8,
	"septiembre": 9,
	"setiembre":  9,
	"octubre":    10,
	"noviembre":  11,
	"diciembre":  12,
}

// RefineMonth maps a Spanish month name to its number, or "" when unknown.
func RefineMonth(name string) string {
	n, ok := months[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return ""
	}
	return strconv.Itoa(n)
}

// RefineYear returns year trimmed when it is exactly four digits, or "".
func RefineYear(year string) string {
	y := strings.TrimSpace(year)
	if len(y) != 4 {
		return ""
	}
	for _, c := range y {
		if c < '0' || c > '9' {
			return ""
		}
	}
	return y
}

// ComposeText joins page texts with a blank line. total holds the first
// firstPages pages, llm holds all of them.
func ComposeText(pages []blockgraph.PageText, firstPages int) (total, llm string) {
	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Text
	}
	head := texts
	if firstPages > 0 && len(head) > firstPages {
		head = head[:firstPages]
	}
	return strings.Join(head, "\n\n"), strings.Join(texts, "\n\n")
}

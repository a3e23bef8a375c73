package preprocessor

import (
	"strings"
	"time"

	"github.com/noa10/mataresit-sub011/internal/domain/search/intent"
	"github.com/noa10/mataresit-sub011/internal/domain/search/query"
)

var systemPrompt = `You analyse search queries over a personal archive of receipts, ` +
	`claims and business records. Reply with a single JSON object and nothing else:
{"expanded_query": string, "intent": one of [` + intentList() + `],
 "confidence": number 0..1,
 "entities": {"merchants": [], "dates": [], "categories": [], "amounts": [], "time_ranges": [], "currencies": []},
 "classification": {"complexity": "simple|moderate|complex", "specificity": "general|specific", "analysis_type": string},
 "currency": ISO 4217 code or ""}`

func intentList() string {
	names := make([]string, len(intent.All))
	for i, v := range intent.All {
		names[i] = string(v)
	}
	return strings.Join(names, ", ")
}

func buildPrompt(q query.Query, now time.Time) string {
	var b strings.Builder
	b.WriteString("Today is ")
	b.WriteString(now.Format(time.DateOnly))
	b.WriteString(".\n")
	if p := q.Profile(); p.Currency != "" || p.Locale != "" {
		b.WriteString("User currency: ")
		b.WriteString(p.Currency)
		b.WriteString(", locale: ")
		b.WriteString(p.Locale)
		b.WriteString(".\n")
	}
	if h := q.History(); len(h) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, t := range h {
			b.WriteString(t.Role)
			b.WriteString(": ")
			b.WriteString(t.Content)
			b.WriteString("\n")
		}
	}
	b.WriteString("Query: ")
	b.WriteString(q.Text())
	return b.String()
}

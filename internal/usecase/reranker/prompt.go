package reranker

import (
	"fmt"
	"strings"

	"github.com/noa10/mataresit-sub011/internal/domain/search/ranking"
)

const systemPrompt = `You re-rank search results from a personal receipts archive.
Given a query and numbered results, order the results from most to least relevant to the query.
Respond with JSON only:
{"order": [<result numbers, most relevant first>], "confidence": "low" | "medium" | "high"}
Use "high" only when the query clearly identifies the best results.`

const maxSnippet = 200

func buildPrompt(text string, head []ranking.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\nResults:\n", text)
	for i := range head {
		c := &head[i].Candidate
		fmt.Fprintf(&b, "%d. [%s] %s", i+1, c.SourceType, oneLine(c.Title))
		if m := c.Merchant(); m != "" && m != c.Title {
			fmt.Fprintf(&b, " | merchant: %s", oneLine(m))
		}
		if amt, ok := c.Amount(); ok {
			fmt.Fprintf(&b, " | total: %.2f", amt)
		}
		if d := c.EntityDate(); !d.IsZero() {
			fmt.Fprintf(&b, " | date: %s", d.Format("2006-01-02"))
		}
		if desc := oneLine(c.Description); desc != "" {
			if r := []rune(desc); len(r) > maxSnippet {
				desc = string(r[:maxSnippet]) + "..."
			}
			fmt.Fprintf(&b, " | %s", desc)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func oneLine(s string) string { return strings.Join(strings.Fields(s), " ") }

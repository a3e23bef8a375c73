// Package answer renders a compiled result page as text plus presentation descriptors.
package answer

import (
	"fmt"
	"strings"

	"github.com/noa10/mataresit-sub011/internal/domain/pipeline"
	"github.com/noa10/mataresit-sub011/internal/domain/search/candidate"
	"github.com/noa10/mataresit-sub011/internal/domain/search/intent"
	"github.com/noa10/mataresit-sub011/internal/domain/search/ranking"
)

// Descriptor kinds.
const (
	KindReceiptCard      = "receipt_card"
	KindFinancialSummary = "financial_summary"
	KindListItem         = "list_item"
)

// Assemble builds the answer for results shown for query q under intent in. total is the
// number of matches before pagination.
func Assemble(in intent.Intent, q string, results []ranking.Result, total int) pipeline.Answer {
	if len(results) == 0 {
		return pipeline.Answer{
			Text:        noResults(in, q),
			Descriptors: []pipeline.Descriptor{},
		}
	}

	var kind, text string
	switch in {
	case intent.FinancialAnalysis, intent.DataAnalysis:
		kind = KindFinancialSummary
		text = financialHeadline(results)
	case intent.DocumentRetrieval, intent.GeneralSearch:
		kind = KindReceiptCard
		text = fmt.Sprintf("Found %d %s matching %q.", total, plural(total, "result", "results"), q)
		if q == "" {
			text = fmt.Sprintf("Found %d %s for your filters.", total, plural(total, "result", "results"))
		}
	case intent.Summarization, intent.Comparison:
		kind = KindListItem
		text = fmt.Sprintf("Here are the top %d of %d %s for %q.",
			len(results), total, plural(total, "match", "matches"), q)
	case intent.HelpGuidance, intent.Conversational:
		kind = KindListItem
		text = conversational(q, total)
	default:
		kind = KindListItem
		text = conversational(q, total)
	}

	ds := make([]pipeline.Descriptor, len(results))
	for i := range results {
		ds[i] = describe(kind, &results[i].Candidate)
	}
	return pipeline.Answer{Text: text, Descriptors: ds}
}

func describe(kind string, c *candidate.Candidate) pipeline.Descriptor {
	d := pipeline.Descriptor{Kind: kind, SourceID: c.SourceID, Title: c.Title}
	fields := map[string]any{}
	switch kind {
	case KindReceiptCard:
		if m := c.Merchant(); m != "" {
			fields["merchant"] = m
		}
		if amt, ok := c.Amount(); ok {
			fields["total"] = amt
		}
		if cur, ok := c.Metadata[candidate.MetaCurrency].(string); ok && cur != "" {
			fields["currency"] = cur
		}
		if date := c.EntityDate(); !date.IsZero() {
			fields["date"] = date.Format("2006-01-02")
		}
	case KindFinancialSummary:
		for _, k := range []string{candidate.MetaTotal, candidate.MetaCurrency, candidate.MetaCategory, "count"} {
			if v, ok := c.Metadata[k]; ok {
				fields[k] = v
			}
		}
	default:
		if c.Description != "" {
			fields["description"] = c.Description
		}
		fields["source_type"] = c.SourceType
	}
	if len(fields) > 0 {
		d.Fields = fields
	}
	return d
}

func financialHeadline(results []ranking.Result) string {
	byCurrency := map[string]float64{}
	var currencies []string
	for i := range results {
		c := &results[i].Candidate
		amt, ok := c.Amount()
		if !ok {
			continue
		}
		cur, _ := c.Metadata[candidate.MetaCurrency].(string)
		if _, seen := byCurrency[cur]; !seen {
			currencies = append(currencies, cur)
		}
		byCurrency[cur] += amt
	}
	if len(currencies) == 0 {
		return fmt.Sprintf("Found %d spending %s.", len(results), plural(len(results), "group", "groups"))
	}
	parts := make([]string, len(currencies))
	for i, cur := range currencies {
		parts[i] = strings.TrimSpace(fmt.Sprintf("%s %.2f", cur, byCurrency[cur]))
	}
	return fmt.Sprintf("Total spending across %d %s: %s.",
		len(results), plural(len(results), "group", "groups"), strings.Join(parts, ", "))
}

func conversational(q string, total int) string {
	if q == "" {
		return fmt.Sprintf("I found %d %s for your filters.", total, plural(total, "item", "items"))
	}
	return fmt.Sprintf("I found %d %s related to %q.", total, plural(total, "item", "items"), q)
}

func noResults(in intent.Intent, q string) string {
	if in == intent.FinancialAnalysis || in == intent.DataAnalysis {
		return "No spending matched those criteria."
	}
	if q == "" {
		return "No items matched your filters."
	}
	return fmt.Sprintf("No results found for %q.", q)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

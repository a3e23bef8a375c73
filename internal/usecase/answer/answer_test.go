package answer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noa10/mataresit-sub011/internal/domain/search/candidate"
	"github.com/noa10/mataresit-sub011/internal/domain/search/intent"
	"github.com/noa10/mataresit-sub011/internal/domain/search/ranking"
)

func receipts() []ranking.Result {
	return []ranking.Result{{
		Candidate: candidate.Candidate{
			SourceType: "receipt", SourceID: "r1", Title: "Starbucks",
			Metadata: map[string]any{
				candidate.MetaMerchant: "Starbucks", candidate.MetaTotal: 18.5,
				candidate.MetaCurrency: "MYR", candidate.MetaEntityDate: "2026-03-12",
			},
		},
		Position: 1,
	}}
}

func TestAssemble_ReceiptCards(t *testing.T) {
	a := Assemble(intent.DocumentRetrieval, "starbucks", receipts(), 3)

	assert.Equal(t, `Found 3 results matching "starbucks".`, a.Text)
	require.Len(t, a.Descriptors, 1)
	d := a.Descriptors[0]
	assert.Equal(t, KindReceiptCard, d.Kind)
	assert.Equal(t, "r1", d.SourceID)
	assert.Equal(t, 18.5, d.Fields["total"])
	assert.Equal(t, "2026-03-12", d.Fields["date"])
}

func TestAssemble_FinancialSummary(t *testing.T) {
	rows := []ranking.Result{
		{Candidate: candidate.Candidate{SourceID: "category:dining:MYR", Title: "dining",
			Metadata: map[string]any{candidate.MetaTotal: 120.0, candidate.MetaCurrency: "MYR", "count": 4}}},
		{Candidate: candidate.Candidate{SourceID: "category:fuel:MYR", Title: "fuel",
			Metadata: map[string]any{candidate.MetaTotal: 80.0, candidate.MetaCurrency: "MYR", "count": 2}}},
	}

	a := Assemble(intent.FinancialAnalysis, "spending by category", rows, 2)

	assert.Equal(t, "Total spending across 2 groups: MYR 200.00.", a.Text)
	assert.Equal(t, KindFinancialSummary, a.Descriptors[0].Kind)
	assert.Equal(t, 4, a.Descriptors[0].Fields["count"])
}

func TestAssemble_UnknownIntentIsConversational(t *testing.T) {
	a := Assemble(intent.Intent("brand_new"), "hello", receipts(), 1)
	assert.Equal(t, `I found 1 item related to "hello".`, a.Text)
	assert.Equal(t, KindListItem, a.Descriptors[0].Kind)
}

func TestAssemble_NoResults(t *testing.T) {
	a := Assemble(intent.GeneralSearch, "unicorn", nil, 0)
	assert.Equal(t, `No results found for "unicorn".`, a.Text)
	assert.NotNil(t, a.Descriptors)
	assert.Empty(t, a.Descriptors)

	assert.Equal(t, "No items matched your filters.", Assemble(intent.GeneralSearch, "", nil, 0).Text)
}

func TestAssemble_FiltersOnly(t *testing.T) {
	a := Assemble(intent.GeneralSearch, "", receipts(), 1)
	assert.Equal(t, "Found 1 result for your filters.", a.Text)
}

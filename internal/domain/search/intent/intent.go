package intent

// Intent is the classified purpose of a query.
type Intent string

// Intent constants.
const (
	FinancialAnalysis Intent = "financial_analysis"
	DocumentRetrieval Intent = "document_retrieval"
	Summarization     Intent = "summarization"
	Comparison        Intent = "comparison"
	HelpGuidance      Intent = "help_guidance"
	Conversational    Intent = "conversational"
	DataAnalysis      Intent = "data_analysis"
	// GeneralSearch is used when classification is unavailable.
	GeneralSearch Intent = "general_search"
)

// All lists every supported intent.
var All = []Intent{
	FinancialAnalysis, DocumentRetrieval, Summarization, Comparison,
	HelpGuidance, Conversational, DataAnalysis, GeneralSearch,
}

// IsValid checks if the intent is one of the supported values.
func (i Intent) IsValid() bool {
	switch i {
	case FinancialAnalysis, DocumentRetrieval, Summarization, Comparison,
		HelpGuidance, Conversational, DataAnalysis, GeneralSearch:
		return true
	}
	return false
}

// Parse converts a model-supplied label into an Intent, falling back to GeneralSearch.
func Parse(s string) Intent {
	i := Intent(s)
	if i.IsValid() {
		return i
	}
	return GeneralSearch
}

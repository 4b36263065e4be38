package domain

// PageContent is one extractive answer or segment from an indexed document.
type PageContent struct {
	PageNumber string `json:"page_number"`
	Content    string `json:"content"`
}

// SearchHit is one document in a query response.
type SearchHit struct {
	Title             string        `json:"title"`
	URI               string        `json:"uri"`
	ExtractiveAnswers []PageContent `json:"extractive_answers"`
}

// Citation locates a summary span in its source document.
type Citation struct {
	StartIndex int64  `json:"start_index"`
	EndIndex   int64  `json:"end_index"`
	Source     string `json:"source"`
}

// QueryAnswer is the assembled conversational search response.
type QueryAnswer struct {
	Summary   string      `json:"summary"`
	Results   []SearchHit `json:"results"`
	Citations []Citation  `json:"citations"`
}

// DocumentExcerpt is one title+content slice fed to mind map synthesis.
type DocumentExcerpt struct {
	Title   string
	Content string
}

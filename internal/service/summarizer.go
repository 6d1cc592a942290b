package service

// Summarizer 對辯論發言產生摘要，實作可替換
type Summarizer interface {
	Summarize(content string) (string, error)
}

// PassthroughSummarizer 尚未接上 AI 摘要服務前的替身，直接加前綴回傳原文
type PassthroughSummarizer struct{}

func (PassthroughSummarizer) Summarize(content string) (string, error) {
	return "[AI 摘要] " + content, nil
}

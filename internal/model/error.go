package model

// AppError is the error payload carried by every typed error in this
// program. Stage names the pipeline step that failed; Line/Snippet point at
// the offending input when the failure is data-driven.
type AppError struct {
	Code    string
	Message string
	Stage   string

	URL     string
	Line    int    // 1-based; 0 means "not set"
	Snippet string // <= 200 chars
	Hint    string
}

package llm

import "context"

// GeneratedCode is one parsed model reply: a Python script plus the model's
// own view of what it does and needs. Dependencies is advisory only; the
// engine re-derives the real list from the source.
type GeneratedCode struct {
	Code         string   `json:"code"`
	Explanation  string   `json:"explanation"`
	Dependencies []string `json:"dependencies"`
}

// FixRequest carries everything the model needs to repair a failing script.
type FixRequest struct {
	// Request is the original natural-language request, so the fix stays
	// anchored to what the user actually asked for.
	Request string

	// Source is the script that failed.
	Source string

	// ErrorSummary is the verbatim failure evidence: captured stderr plus
	// a timeout or exit-code note.
	ErrorSummary string

	// Attempt is the 1-based repair attempt number.
	Attempt int
}

// Client defines the standard interface for any code-generation backend.
type Client interface {
	GenerateCode(ctx context.Context, request string) (*GeneratedCode, error)
	FixCode(ctx context.Context, req FixRequest) (*GeneratedCode, error)
}

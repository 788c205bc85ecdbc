package llm

import (
	"context"
)

// Repairer adapts a Client to the engine's repair port. It carries the
// original user request so repair prompts stay anchored to it, and counts
// attempts so the model knows how deep into the budget it is.
//
// A Repairer belongs to a single session; create one per run. It is not safe
// for concurrent use.
type Repairer struct {
	client  Client
	request string
	attempt int
}

// NewRepairer creates a per-session repair adapter.
func NewRepairer(client Client, request string) *Repairer {
	return &Repairer{client: client, request: request}
}

// Fix requests a corrected script for a failed execution.
func (r *Repairer) Fix(ctx context.Context, source, errorSummary string) (string, string, error) {
	r.attempt++
	generated, err := r.client.FixCode(ctx, FixRequest{
		Request:      r.request,
		Source:       source,
		ErrorSummary: errorSummary,
		Attempt:      r.attempt,
	})
	if err != nil {
		return "", "", err
	}
	return generated.Code, generated.Explanation, nil
}

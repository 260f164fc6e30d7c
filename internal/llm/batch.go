package llm

import (
	"context"

	"golang.org/x/sync/errgroup"

	"sonagent/internal/logging"
)

// batchConcurrency bounds how many generations a batch runs at once so a
// large batch cannot starve interactive requests on the model server.
const batchConcurrency = 4

// BatchInput is one unit of work for BatchGenerate.
type BatchInput struct {
	SystemPrompt string
	UserInput    string
	History      []Message
	Options      GenerateOptions
}

// BatchGenerate runs the inputs through Generate with bounded concurrency
// and returns the replies in input order. Per-input model failures degrade
// to the canned fallback reply exactly as Generate does; the returned error
// is non-nil only when the context is cancelled.
func (h *Handler) BatchGenerate(ctx context.Context, inputs []BatchInput) ([]string, error) {
	outputs := make([]string, len(inputs))
	if len(inputs) == 0 {
		return outputs, nil
	}

	logging.ModelDebug("[Handler] batch generate: %d inputs", len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, in := range inputs {
		g.Go(func() error {
			reply, err := h.Generate(ctx, in.SystemPrompt, in.UserInput, in.History, in.Options)
			if err != nil {
				return err
			}
			outputs[i] = reply
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

package service

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/chatkb/chatkb/internal/ai"
)

// IntentDetector is notified after an ingestion run completes so downstream
// intent detection can rebuild its view of the knowledge base. The call is
// fire-and-forget: failures are logged and swallowed, never surfaced to the
// pipeline.
type IntentDetector interface {
	OnIngestionComplete(ctx context.Context, chatbotID string) error
}

type noopIntentDetector struct{}

func NewNoopIntentDetector() IntentDetector {
	return noopIntentDetector{}
}

func (noopIntentDetector) OnIngestionComplete(ctx context.Context, chatbotID string) error {
	return nil
}

type llmIntentDetector struct {
	gen ai.IGenerator
}

func NewLLMIntentDetector(gen ai.IGenerator) IntentDetector {
	if gen == nil {
		return NewNoopIntentDetector()
	}
	return &llmIntentDetector{gen: gen}
}

func (d *llmIntentDetector) OnIngestionComplete(ctx context.Context, chatbotID string) error {
	prompt := fmt.Sprintf(`The knowledge base for chatbot %s was just re-indexed.
Acknowledge that the intent catalogue for this chatbot should be refreshed.
Reply with OK.`, chatbotID)
	_, err := d.gen.Generate(ctx, prompt)
	return err
}

// notifyIntent runs the hook in the background; crawl and ingest outcomes
// must never depend on it.
func notifyIntent(detector IntentDetector, chatbotID string) {
	if detector == nil {
		return
	}
	go func() {
		ctx := context.Background()
		if err := detector.OnIngestionComplete(ctx, chatbotID); err != nil {
			logutil.GetLogger(ctx).Warn("intent detection hook failed",
				zap.String("chatbot_id", chatbotID), zap.Error(err))
		}
	}()
}

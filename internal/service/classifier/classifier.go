package classifier

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mailtoys/pkg/metrics"
)

// EmailInput is what the classifier sees of an email.
type EmailInput struct {
	Subject string
	From    string
	Body    string
	SentAt  time.Time
}

// ToyDetection is one classified action pattern found in an email.
type ToyDetection struct {
	ToyType         string         `json:"toy_type"`
	DetectionData   map[string]any `json:"detection_data"`
	ConfidenceScore float64        `json:"confidence_score"`
}

// Classifier tries the LLM first and falls back to the keyword rules when no
// API key is configured or the LLM call fails in any way, including returning
// something that does not parse as JSON.
type Classifier struct {
	llm    *LLMClient
	logger *zap.Logger
}

func New(llm *LLMClient, logger *zap.Logger) *Classifier {
	return &Classifier{llm: llm, logger: logger}
}

// Classify returns zero or more detections for the email. It never returns an
// error: classification degrades to the rules path rather than failing the
// webhook item.
func (c *Classifier) Classify(ctx context.Context, email EmailInput) []ToyDetection {
	if c.llm == nil || !c.llm.Enabled() {
		return c.classifyWithRules(email)
	}

	start := time.Now()
	detections, err := c.llm.Analyze(ctx, email)
	if err != nil {
		c.logger.Warn("LLM analysis failed, falling back to keyword rules",
			zap.String("subject", email.Subject),
			zap.Error(err),
		)
		return c.classifyWithRules(email)
	}

	metrics.RecordClassifyLatency("llm", time.Since(start))
	return detections
}

func (c *Classifier) classifyWithRules(email EmailInput) []ToyDetection {
	start := time.Now()
	detections := MatchRules(email)
	metrics.RecordClassifyLatency("rules", time.Since(start))
	return detections
}

package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"groupwarden.app/warden/common/logger"
	"groupwarden.app/warden/core/config"
	"groupwarden.app/warden/internal/model"
	"groupwarden.app/warden/internal/service"
)

// Classifier asks an OpenAI-compatible model whether a message is spam for
// its group context. Classification is best-effort: transport or parse
// failures degrade to a low-confidence non-spam verdict rather than an
// error, so a flaky provider never blocks moderation.
type Classifier struct {
	client openai.Client
	model  string
}

var _ service.Classifier = (*Classifier)(nil)

func NewClassifier(cfg config.ClassifierConfig) *Classifier {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	m := cfg.Model
	if m == "" {
		m = "gpt-4o-mini"
	}

	return &Classifier{
		client: openai.NewClient(opts...),
		model:  m,
	}
}

func (c *Classifier) Classify(ctx context.Context, bundle *service.ContextBundle) (model.Verdict, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "warden.llm.classifier"})

	prompt := buildPrompt(bundle)
	slog.DebugContext(ctx, "classify prompt built", "prompt", logger.Truncate(prompt, 500))

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You output only JSON objects."),
			openai.UserMessage(prompt),
		},
		Temperature:         openai.Float(0.1),
		MaxCompletionTokens: openai.Int(256),
	})
	if err != nil {
		slog.ErrorContext(ctx, "classification request failed", "error", err)
		return model.Verdict{Spam: false, Confidence: 0.5, Reason: "classifier unavailable"}, nil
	}
	if len(resp.Choices) == 0 {
		return model.Verdict{Spam: false, Confidence: 0.5, Reason: "classifier returned no choices"}, nil
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	slog.DebugContext(ctx, "classification completed",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"output", logger.Truncate(content, 500))

	return parseVerdict(content), nil
}

// parseVerdict decodes the model's JSON output, falling back to a keyword
// heuristic when the output isn't valid JSON.
func parseVerdict(content string) model.Verdict {
	var raw struct {
		Spam       bool     `json:"spam"`
		Confidence float64  `json:"confidence"`
		Reason     string   `json:"reason"`
		Categories []string `json:"categories"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &raw); err == nil {
		conf := raw.Confidence
		if conf == 0 {
			conf = 0.5
		}
		return model.Verdict{
			Spam:       raw.Spam,
			Confidence: conf,
			Reason:     raw.Reason,
			Categories: raw.Categories,
		}
	}

	lowered := strings.ToLower(content)
	isSpam := strings.Contains(lowered, "spam") && !strings.Contains(lowered, "not")
	conf := 0.4
	if isSpam {
		conf = 0.7
	}
	return model.Verdict{Spam: isSpam, Confidence: conf, Reason: content}
}

// stripCodeFence unwraps a ```json fenced block if the model added one.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

package llm

import (
	"fmt"
	"strings"

	"groupwarden.app/warden/internal/model"
	"groupwarden.app/warden/internal/service"
)

const systemPrompt = `You are an intelligent, context-aware spam detection model for group chats.
Decide whether the user's new message is SPAM or NOT_SPAM based on group rules, context,
and user behavior.`

const decisionRules = `SPAM indicators include promotions, flooding, harmful/malicious content, scams, NSFW.
NOT_SPAM includes greetings, relevant discussions, reactions, or consistent content.
Tone sensitivity: friendly, neutral, strict.

Compare message with group purpose and history; apply rules and tone; if unsure and harmless, prefer NOT_SPAM.
Return a JSON object with fields: spam, confidence, reason, categories.`

const fewShotExamples = `EXAMPLE 1:
Message: "Buy cheap crypto bots here! DM me!"
-> {"spam": true, "confidence": 0.95, "reason": "Unsolicited promotional message unrelated to group topic.", "categories": ["promo","off-topic"]}

EXAMPLE 2:
Message: "Hey, what's up everyone?"
-> {"spam": false, "confidence": 0.97, "reason": "Casual greeting relevant to group conversation.", "categories": []}`

const (
	promptRecentLimit   = 5
	promptEnrichedLimit = 3
)

// buildPrompt renders a context bundle into the classification prompt.
func buildPrompt(bundle *service.ContextBundle) string {
	description := bundle.GroupDescription
	if description == "" {
		description = "No group description available."
	}

	tone := "neutral"
	rules := "No explicit spam rules provided."
	sensitivity := "medium"
	threshold := 0.7
	if cfg := bundle.GroupConfig; cfg != nil {
		if cfg.Personality != "" {
			tone = cfg.Personality
		}
		if cfg.SpamRules != "" {
			rules = cfg.SpamRules
		}
		if cfg.SpamSensitivity != "" {
			sensitivity = cfg.SpamSensitivity
		}
		if cfg.SpamConfidenceThreshold > 0 {
			threshold = cfg.SpamConfidenceThreshold
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", systemPrompt)
	fmt.Fprintf(&b, "Group Description:\n%s\n\n", description)
	fmt.Fprintf(&b, "Group Config:\n- Personality (Tone): %s\n- Spam Sensitivity: %s\n- Confidence Threshold: %.2f\n\n", tone, sensitivity, threshold)
	fmt.Fprintf(&b, "Spam Rules:\n%s\n\n", rules)
	fmt.Fprintf(&b, "Recent Group Messages (most recent first):\n%s\n\n", formatRecent(bundle.RecentGroupMessages, promptRecentLimit))
	fmt.Fprintf(&b, "Recent User Messages in this group:\n%s\n\n", formatRecent(bundle.RecentUserMessages, promptRecentLimit))
	fmt.Fprintf(&b, "Recent Enriched Summaries:\n%s\n\n", formatEnriched(bundle.RecentUserEnriched, promptEnrichedLimit))
	fmt.Fprintf(&b, "User Behavioral Scores:\n- within_group_frequency_score: %.4f\n- across_groups_frequency_score: %.4f\n\n",
		bundle.Frequency.WithinGroup, bundle.Frequency.AcrossGroups)
	fmt.Fprintf(&b, "New Message to Evaluate:\n%s\n\n", bundle.NewMessage.Text)
	fmt.Fprintf(&b, "%s\n\n%s", decisionRules, fewShotExamples)
	return b.String()
}

// formatRecent renders the newest limit messages as prompt lines, skipping
// entries without text.
func formatRecent(msgs []model.CachedMessage, limit int) string {
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	var lines []string
	for _, m := range msgs {
		if m.Text == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("- [%s] %s", timestampOrUnknown(m.CreatedAt), m.Text))
	}
	if len(lines) == 0 {
		return "None"
	}
	return strings.Join(lines, "\n")
}

func formatEnriched(items []model.EnrichedSummary, limit int) string {
	if len(items) == 0 {
		return "None"
	}
	if len(items) > limit {
		items = items[len(items)-limit:]
	}

	lines := make([]string, len(items))
	for i, e := range items {
		lines[i] = fmt.Sprintf("- [%s] %s", timestampOrUnknown(e.CreatedAt), e.Summary)
	}
	return strings.Join(lines, "\n")
}

func timestampOrUnknown(ts string) string {
	if ts == "" {
		return "unknown"
	}
	return ts
}

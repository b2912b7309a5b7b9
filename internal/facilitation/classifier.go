package facilitation

import (
	"context"
	"fmt"
	"strings"

	"eva/internal/llm"
)

// ClassificationPrompt captures the instructions sent to the configured LLM
// when extracting blockers, action items, and rambling signals from one
// finalized transcript segment. Update this text centrally so every call
// stays in sync.
const ClassificationPrompt = `You are a scrum master assistant analyzing one finalized segment of a standup transcript.

Identify, if present:

- "blockers": impediments preventing progress. Each has "description", "owner" (the speaker unless another person is clearly responsible), and "severity" (low, medium, high).

- "actions": concrete follow-up work someone committed to. Each has "description", "owner", optional "deadline", and "priority" (low, medium, high).

- "rambling": true only when the segment clearly drifts off the sprint goal into unrelated territory (tangents, anecdotes, scope creep). Staying on topic is never rambling.

- "goal_progress": one short sentence on progress toward the sprint goal, or an empty string when the segment says nothing about it.

Most segments contain no blockers and no actions. Do not invent findings.

You must respond ONLY with a JSON object like:
{"blockers": [], "actions": [], "rambling": false, "goal_progress": ""}

The sprint goal and segment follow:`

// BlockerFinding is the classifier's structured description of a blocker.
type BlockerFinding struct {
	Description string `json:"description"`
	Owner       string `json:"owner"`
	Severity    string `json:"severity"`
}

// ActionFinding is the classifier's structured description of an action item.
type ActionFinding struct {
	Description string `json:"description"`
	Owner       string `json:"owner"`
	Deadline    string `json:"deadline"`
	Priority    string `json:"priority"`
}

// Findings is the validated output of one classification call. The
// classifier's structure is authoritative: the engine tags and appends, it
// never re-derives categories from content.
type Findings struct {
	Blockers     []BlockerFinding `json:"blockers"`
	Actions      []ActionFinding  `json:"actions"`
	Rambling     bool             `json:"rambling"`
	GoalProgress string           `json:"goal_progress"`
}

// Classifier extracts structured findings from one finalized segment.
// Implementations may take unbounded-but-finite time and fail; the engine
// recovers from failures without halting the session.
type Classifier interface {
	Classify(ctx context.Context, segmentText, sprintGoal string) (Findings, error)
}

// LLMClassifier backs the Classifier contract with the chat completion
// capability.
type LLMClassifier struct {
	client *llm.Client
}

// NewLLMClassifier wraps an LLM client as a segment classifier.
func NewLLMClassifier(client *llm.Client) *LLMClassifier {
	return &LLMClassifier{client: client}
}

// Classify sends the segment and sprint goal to the model and validates the
// returned structure.
func (c *LLMClassifier) Classify(ctx context.Context, segmentText, sprintGoal string) (Findings, error) {
	var empty Findings
	if c == nil || c.client == nil {
		return empty, fmt.Errorf("facilitation classify: no client configured")
	}
	contextText := fmt.Sprintf("Sprint goal: %s\n\nSegment: %s", orUnset(sprintGoal), segmentText)
	content, err := c.client.CompleteJSON(ctx, ClassificationPrompt, contextText)
	if err != nil {
		return empty, fmt.Errorf("facilitation classify: %w", err)
	}
	var parsed Findings
	if err := llm.DecodeJSON(content, &parsed); err != nil {
		return empty, fmt.Errorf("facilitation classify: parse payload: %w", err)
	}
	return sanitizeFindings(parsed), nil
}

func sanitizeFindings(f Findings) Findings {
	blockers := f.Blockers[:0]
	for _, b := range f.Blockers {
		b.Description = strings.TrimSpace(b.Description)
		if b.Description == "" {
			continue
		}
		b.Owner = strings.TrimSpace(b.Owner)
		blockers = append(blockers, b)
	}
	f.Blockers = blockers

	actions := f.Actions[:0]
	for _, a := range f.Actions {
		a.Description = strings.TrimSpace(a.Description)
		if a.Description == "" {
			continue
		}
		a.Owner = strings.TrimSpace(a.Owner)
		a.Deadline = strings.TrimSpace(a.Deadline)
		actions = append(actions, a)
	}
	f.Actions = actions
	f.GoalProgress = strings.TrimSpace(f.GoalProgress)
	return f
}

func orUnset(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(not set)"
	}
	return value
}

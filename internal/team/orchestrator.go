package team

import (
	"context"
	"fmt"

	"eva/internal/llm"
)

// OrchestrationPrompt captures the instructions sent to the configured LLM
// when the orchestrator classifies meeting content into specialist tasks.
const OrchestrationPrompt = `You are EVA, the orchestrator of a meeting agent team. Classify the given meeting content into zero or more tasks for specialist agents.

Available specialists:

- "sop": writes standard operating procedures. Delegate when the content describes a repeatable process, workflow, or how-to worth documenting.

- "cro": writes customer outcome documents. Delegate when the content describes a customer result, commitment, or deliverable.

- "scrum": tracks facilitation concerns. Delegate when the content raises blockers, follow-ups, or team-process issues.

Most content yields no tasks. Create a task only when a specialist could produce something useful from it.

You must respond ONLY with a JSON object like:
{"tasks": [{"agent": "sop", "description": "Document the deploy rollback procedure discussed", "priority": "medium"}]}

Valid priorities: low, medium, high, urgent. The content follows:`

// TaskSpec is the orchestrator's structured request for one specialist task.
type TaskSpec struct {
	Agent       string `json:"agent"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// Orchestrator classifies meeting content into specialist tasks.
// Implementations may take unbounded-but-finite time and fail; the
// coordinator recovers from failures without halting the session.
type Orchestrator interface {
	ClassifyContent(ctx context.Context, content string) ([]TaskSpec, error)
}

// LLMOrchestrator backs the Orchestrator contract with the chat completion
// capability.
type LLMOrchestrator struct {
	client *llm.Client
}

// NewLLMOrchestrator wraps an LLM client as the orchestrator classifier.
func NewLLMOrchestrator(client *llm.Client) *LLMOrchestrator {
	return &LLMOrchestrator{client: client}
}

// ClassifyContent sends content to the model and validates the returned
// task specs. Specs naming unknown agents or the orchestrator itself are
// dropped, not errors.
func (o *LLMOrchestrator) ClassifyContent(ctx context.Context, content string) ([]TaskSpec, error) {
	if o == nil || o.client == nil {
		return nil, fmt.Errorf("team classify: no client configured")
	}
	raw, err := o.client.CompleteJSON(ctx, OrchestrationPrompt, content)
	if err != nil {
		return nil, fmt.Errorf("team classify: %w", err)
	}
	var parsed struct {
		Tasks []TaskSpec `json:"tasks"`
	}
	if err := llm.DecodeJSON(raw, &parsed); err != nil {
		return nil, fmt.Errorf("team classify: parse payload: %w", err)
	}
	specs := parsed.Tasks[:0]
	for _, spec := range parsed.Tasks {
		spec.Agent = NormalizeAgent(spec.Agent)
		if spec.Agent == "" || spec.Agent == AgentEva || spec.Description == "" {
			continue
		}
		spec.Priority = normalizeTaskPriority(spec.Priority)
		specs = append(specs, spec)
	}
	return specs, nil
}

package team

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"eva/internal/config"
	"eva/internal/llm"
)

func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"message": map[string]any{"content": content},
				},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
}

func newTestLLMClient(url string) *llm.Client {
	return llm.NewClient(config.LLM{APIKey: "test", BaseURL: url, Model: "demo-model"})
}

func TestOrchestratorClassifyContent(t *testing.T) {
	server := completionServer(t, `{"tasks":[
		{"agent":"SOP","description":"Document the rollback procedure","priority":"high"},
		{"agent":"eva","description":"never dispatched to the orchestrator","priority":"low"},
		{"agent":"intern","description":"unknown agent dropped","priority":"low"},
		{"agent":"cro","description":"Write the renewal outcome doc","priority":"nonsense"}
	]}`)
	defer server.Close()

	orch := NewLLMOrchestrator(newTestLLMClient(server.URL))
	specs, err := orch.ClassifyContent(context.Background(), "We agreed on a rollback procedure and a renewal commitment")
	if err != nil {
		t.Fatalf("ClassifyContent: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("got %d specs, want 2: %+v", len(specs), specs)
	}
	if specs[0].Agent != AgentSOP || specs[0].Priority != "high" {
		t.Fatalf("first spec = %+v", specs[0])
	}
	if specs[1].Agent != AgentCRO || specs[1].Priority != "medium" {
		t.Fatalf("second spec not normalized: %+v", specs[1])
	}
}

func TestOrchestratorClassifyContentCodeFence(t *testing.T) {
	server := completionServer(t, "```json\n{\"tasks\":[]}\n```")
	defer server.Close()

	orch := NewLLMOrchestrator(newTestLLMClient(server.URL))
	specs, err := orch.ClassifyContent(context.Background(), "Nothing actionable was said")
	if err != nil {
		t.Fatalf("ClassifyContent: %v", err)
	}
	if len(specs) != 0 {
		t.Fatalf("got %d specs, want 0", len(specs))
	}
}

func TestWorkerExecute(t *testing.T) {
	server := completionServer(t, `{"result":"1. Stop the deploy\n2. Revert the release"}`)
	defer server.Close()

	worker := NewLLMWorker(newTestLLMClient(server.URL))
	result, err := worker.Execute(context.Background(), Task{AgentType: AgentSOP, Description: "Document the rollback"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result == "" || result[0] != '1' {
		t.Fatalf("unexpected result: %q", result)
	}
}

func TestWorkerExecuteRejectsUnknownAgentAndEmptyResult(t *testing.T) {
	server := completionServer(t, `{"result":""}`)
	defer server.Close()

	worker := NewLLMWorker(newTestLLMClient(server.URL))
	if _, err := worker.Execute(context.Background(), Task{AgentType: "intern", Description: "x"}); err == nil {
		t.Fatal("expected unknown agent error")
	}
	if _, err := worker.Execute(context.Background(), Task{AgentType: AgentCRO, Description: "x"}); err == nil {
		t.Fatal("expected empty result error")
	}
}

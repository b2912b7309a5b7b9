package team

import (
	"strings"
	"time"
)

// Agent type identifiers. The orchestrator role is "eva"; the rest are
// specialists.
const (
	AgentEva   = "eva"
	AgentSOP   = "sop"
	AgentCRO   = "cro"
	AgentScrum = "scrum"
)

// KnownAgents lists every agent type the coordinator can run.
var KnownAgents = []string{AgentEva, AgentSOP, AgentCRO, AgentScrum}

// AgentState describes what an agent is currently doing.
type AgentState string

const (
	AgentIdle      AgentState = "idle"
	AgentWorking   AgentState = "working"
	AgentCompleted AgentState = "completed"
	AgentError     AgentState = "error"
)

// AgentStatus is the live status of one agent. Mutated only by that agent's
// own activity or status reports.
type AgentStatus struct {
	AgentType      string     `json:"agentType"`
	Status         AgentState `json:"status"`
	CurrentTask    string     `json:"currentTask,omitempty"`
	LastActivityAt time.Time  `json:"lastActivityAt"`
}

// TaskStatus is the lifecycle state of an agent task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskAssigned   TaskStatus = "assigned"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

var taskStatusRank = map[TaskStatus]int{
	TaskPending:    0,
	TaskAssigned:   1,
	TaskInProgress: 2,
	TaskCompleted:  3,
	TaskFailed:     3,
}

// ValidTransition reports whether a task may move from one status to
// another. Transitions are strictly monotonic: nothing regresses to pending,
// and completed/failed are terminal.
func ValidTransition(from, to TaskStatus) bool {
	fromRank, ok := taskStatusRank[from]
	if !ok {
		return false
	}
	toRank, ok := taskStatusRank[to]
	if !ok {
		return false
	}
	if from == TaskCompleted || from == TaskFailed {
		return false
	}
	if to == TaskPending {
		return false
	}
	return toRank > fromRank
}

// Task is one unit of delegated work.
type Task struct {
	ID          string     `json:"id"`
	AgentType   string     `json:"agentType"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Result      string     `json:"result,omitempty"`
	Priority    string     `json:"priority"`
	AssignedBy  string     `json:"assignedBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Message types carried on the inter-agent bus.
const (
	MessageDelegateTask = "delegate_task"
	MessageStatusUpdate = "status_update"
	MessageTaskComplete = "task_complete"
	MessageFinding      = "finding"
	MessageAlert        = "alert"
	MessageContextShare = "context_share"
)

// BroadcastTarget addresses every agent on the bus.
const BroadcastTarget = "all"

// Message is one append-only bus entry. Never mutated after creation.
type Message struct {
	ID          string            `json:"id"`
	FromAgent   string            `json:"fromAgent"`
	ToAgent     string            `json:"toAgent"`
	MessageType string            `json:"messageType"`
	Content     string            `json:"content"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// NormalizeAgent lowercases and trims an agent type, returning "" for
// unknown agents.
func NormalizeAgent(value string) string {
	agent := strings.ToLower(strings.TrimSpace(value))
	for _, known := range KnownAgents {
		if agent == known {
			return agent
		}
	}
	return ""
}

func normalizeTaskPriority(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "low":
		return "low"
	case "high":
		return "high"
	case "urgent":
		return "urgent"
	default:
		return "medium"
	}
}

package team

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"eva/internal/config"
	"eva/internal/logging"
	"eva/internal/protocol"
)

// ErrTeamActive is returned when team_start arrives for a meeting that
// already has an active team session.
var ErrTeamActive = errors.New("team: session already active")

// ErrNoTeam is returned when a command requires an active team session.
var ErrNoTeam = errors.New("team: no active session")

// ErrUnknownTask is returned for task operations on unknown task IDs.
var ErrUnknownTask = errors.New("team: unknown task")

// ErrInvalidTransition is returned when a task status change would regress.
var ErrInvalidTransition = errors.New("team: invalid task transition")

// Coordinator manages one meeting's agent team: the roster, the task ledger,
// and the inter-agent message bus. Like the facilitation engine it is not
// safe for concurrent use; every call happens on the meeting's serial lane.
type Coordinator struct {
	logger *slog.Logger
	cfg    config.Team

	now   func() time.Time
	newID func() string

	active bool
	epoch  uint64
	roster []string
	agents map[string]*AgentStatus

	tasks     []*Task
	tasksByID map[string]*Task
	queues    map[string][]*Task

	messages []Message
	report   string
}

// NewCoordinator constructs an inactive coordinator.
func NewCoordinator(cfg config.Team, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		logger: logging.NewComponentLogger(logger, "team"),
		cfg:    cfg,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Active reports whether a team session is running.
func (c *Coordinator) Active() bool { return c.active }

// Epoch identifies the current team session generation. Asynchronous results
// from an older epoch are discarded.
func (c *Coordinator) Epoch() uint64 { return c.epoch }

// Report returns the coordinated report produced by the last Stop, or "".
func (c *Coordinator) Report() string { return c.report }

// Start activates a team session with the given roster. The orchestrator is
// always part of the roster; unknown agent names are skipped. An empty or
// all-unknown roster falls back to the configured default.
func (c *Coordinator) Start(agents []string) ([]any, error) {
	if c.active {
		return nil, ErrTeamActive
	}
	roster := normalizeRoster(agents)
	if len(roster) <= 1 {
		roster = normalizeRoster(c.cfg.DefaultAgents)
	}

	c.active = true
	c.epoch++
	c.roster = roster
	c.agents = make(map[string]*AgentStatus, len(roster))
	now := c.now()
	for _, agent := range roster {
		c.agents[agent] = &AgentStatus{AgentType: agent, Status: AgentIdle, LastActivityAt: now}
	}
	c.tasks = nil
	c.tasksByID = make(map[string]*Task)
	c.queues = make(map[string][]*Task)
	c.messages = nil
	c.report = ""

	c.logger.Info("team session started", logging.String("agents", strings.Join(roster, ",")))

	return []any{
		protocol.TeamStarted{Type: protocol.TypeTeamStarted, Agents: roster},
		c.statusEvent(),
	}, nil
}

// Stop deactivates the session, aggregates completed task results and bus
// traffic into the coordinated report, and clears every agent's current task.
func (c *Coordinator) Stop() (string, []any, error) {
	if !c.active {
		return "", nil, ErrNoTeam
	}

	c.report = c.buildReport()
	c.active = false
	c.epoch++
	for _, status := range c.agents {
		status.CurrentTask = ""
	}
	c.queues = make(map[string][]*Task)

	c.logger.Info("team session ended",
		logging.Int("tasks", len(c.tasks)),
		logging.Int("messages", len(c.messages)))

	return c.report, []any{
		protocol.TeamStopped{Type: protocol.TypeTeamStopped, Report: c.report},
	}, nil
}

// ApplyClassification applies an asynchronous orchestrator result: each spec
// becomes a task created pending and, when its target agent is free,
// immediately assigned. Newly assigned tasks are returned for dispatch.
// Results from a stale epoch are discarded.
func (c *Coordinator) ApplyClassification(epoch uint64, specs []TaskSpec) ([]Task, []any) {
	if !c.active || epoch != c.epoch {
		return nil, nil
	}

	var (
		dispatch []Task
		events   []any
	)
	for _, spec := range specs {
		agent := NormalizeAgent(spec.Agent)
		if agent == "" || agent == AgentEva {
			continue
		}
		if _, ok := c.agents[agent]; !ok {
			continue
		}
		task := &Task{
			ID:          c.newID(),
			AgentType:   agent,
			Description: spec.Description,
			Status:      TaskPending,
			Priority:    normalizeTaskPriority(spec.Priority),
			AssignedBy:  AgentEva,
			CreatedAt:   c.now(),
		}
		c.tasks = append(c.tasks, task)
		c.tasksByID[task.ID] = task

		if c.agents[agent].Status == AgentWorking {
			c.queues[agent] = append(c.queues[agent], task)
			events = append(events, taskEvent(*task))
			continue
		}
		assigned, assignEvents := c.assign(task)
		dispatch = append(dispatch, assigned)
		events = append(events, assignEvents...)
	}
	if len(events) > 0 {
		events = append(events, c.statusEvent())
	}
	return dispatch, events
}

// StartTask marks an assigned task as in progress.
func (c *Coordinator) StartTask(epoch uint64, taskID string) ([]any, error) {
	if !c.active || epoch != c.epoch {
		return nil, ErrNoTeam
	}
	task, ok := c.tasksByID[taskID]
	if !ok {
		return nil, ErrUnknownTask
	}
	if err := c.transition(task, TaskInProgress); err != nil {
		return nil, err
	}
	return []any{taskEvent(*task)}, nil
}

// CompleteTask finishes a task with its result, publishes task_complete to
// every agent, and assigns the next queued task for the now-free agent, if
// any. Newly assigned tasks are returned for dispatch.
func (c *Coordinator) CompleteTask(epoch uint64, taskID, result string) ([]Task, []any, error) {
	if !c.active || epoch != c.epoch {
		return nil, nil, ErrNoTeam
	}
	task, ok := c.tasksByID[taskID]
	if !ok {
		return nil, nil, ErrUnknownTask
	}
	if err := c.transition(task, TaskCompleted); err != nil {
		return nil, nil, err
	}
	task.Result = result
	completedAt := c.now()
	task.CompletedAt = &completedAt

	events := []any{taskEvent(*task)}
	events = append(events, c.publish(task.AgentType, BroadcastTarget, MessageTaskComplete,
		fmt.Sprintf("Completed: %s", task.Description), map[string]string{"taskId": task.ID})...)

	c.setAgentState(task.AgentType, AgentCompleted, "")
	dispatch, next := c.assignNext(task.AgentType)
	events = append(events, next...)
	events = append(events, c.statusEvent())
	return dispatch, events, nil
}

// FailTask marks a task failed, publishes an alert, and assigns the next
// queued task for the agent, if any.
func (c *Coordinator) FailTask(epoch uint64, taskID, reason string) ([]Task, []any, error) {
	if !c.active || epoch != c.epoch {
		return nil, nil, ErrNoTeam
	}
	task, ok := c.tasksByID[taskID]
	if !ok {
		return nil, nil, ErrUnknownTask
	}
	if err := c.transition(task, TaskFailed); err != nil {
		return nil, nil, err
	}
	task.Result = reason

	events := []any{taskEvent(*task)}
	events = append(events, c.publish(task.AgentType, BroadcastTarget, MessageAlert,
		fmt.Sprintf("Task failed: %s (%s)", task.Description, reason), map[string]string{"taskId": task.ID})...)

	c.setAgentState(task.AgentType, AgentError, "")
	dispatch, next := c.assignNext(task.AgentType)
	events = append(events, next...)
	events = append(events, c.statusEvent())
	return dispatch, events, nil
}

// ShareFinding broadcasts a finding or context message to every agent so no
// specialist has to re-derive it.
func (c *Coordinator) ShareFinding(fromAgent, messageType, content string) []any {
	if !c.active {
		return nil
	}
	if messageType != MessageFinding && messageType != MessageContextShare {
		messageType = MessageFinding
	}
	from := NormalizeAgent(fromAgent)
	if from == "" {
		from = AgentEva
	}
	return c.publish(from, BroadcastTarget, messageType, content, nil)
}

// Snapshot returns a full team_state payload for (re)joining clients.
func (c *Coordinator) Snapshot() protocol.TeamState {
	return protocol.TeamState{
		Type:     protocol.TypeTeamState,
		IsActive: c.active,
		Agents:   protocol.Marshal(c.agentList()),
	}
}

// TasksSnapshot returns the full task ledger payload.
func (c *Coordinator) TasksSnapshot() protocol.TeamTasks {
	return protocol.TeamTasks{
		Type:  protocol.TypeTeamTasks,
		Tasks: protocol.Marshal(c.Tasks()),
	}
}

// Tasks returns a copy of the task ledger.
func (c *Coordinator) Tasks() []Task {
	tasks := make([]Task, 0, len(c.tasks))
	for _, task := range c.tasks {
		tasks = append(tasks, *task)
	}
	return tasks
}

// Messages returns a copy of the bus history.
func (c *Coordinator) Messages() []Message {
	return append([]Message(nil), c.messages...)
}

func (c *Coordinator) assign(task *Task) (Task, []any) {
	// Transition cannot fail here: tasks only reach assign while pending.
	_ = c.transition(task, TaskAssigned)
	c.setAgentState(task.AgentType, AgentWorking, task.Description)

	events := []any{taskEvent(*task)}
	events = append(events, c.publish(AgentEva, task.AgentType, MessageDelegateTask,
		task.Description, map[string]string{"taskId": task.ID, "priority": task.Priority})...)
	return *task, events
}

func (c *Coordinator) assignNext(agent string) ([]Task, []any) {
	queue := c.queues[agent]
	if len(queue) == 0 {
		return nil, nil
	}
	next := queue[0]
	c.queues[agent] = queue[1:]
	assigned, events := c.assign(next)
	return []Task{assigned}, events
}

func (c *Coordinator) transition(task *Task, to TaskStatus) error {
	if !ValidTransition(task.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, task.Status, to)
	}
	task.Status = to
	return nil
}

func (c *Coordinator) setAgentState(agent string, state AgentState, currentTask string) {
	status, ok := c.agents[agent]
	if !ok {
		return
	}
	status.Status = state
	status.CurrentTask = currentTask
	status.LastActivityAt = c.now()
}

func (c *Coordinator) publish(from, to, messageType, content string, metadata map[string]string) []any {
	msg := Message{
		ID:          c.newID(),
		FromAgent:   from,
		ToAgent:     to,
		MessageType: messageType,
		Content:     content,
		Metadata:    metadata,
		CreatedAt:   c.now(),
	}
	if c.cfg.BusCapacity > 0 && len(c.messages) == c.cfg.BusCapacity {
		copy(c.messages, c.messages[1:])
		c.messages = c.messages[:c.cfg.BusCapacity-1]
	}
	c.messages = append(c.messages, msg)
	return []any{protocol.TeamAgentMessage{
		Type:    protocol.TypeTeamAgentMessage,
		Message: protocol.Marshal(msg),
	}}
}

func (c *Coordinator) statusEvent() protocol.TeamStatus {
	status := "inactive"
	if c.active {
		status = "active"
	}
	return protocol.TeamStatus{
		Type:   protocol.TypeTeamStatus,
		Status: status,
		Agents: protocol.Marshal(c.agentList()),
	}
}

func (c *Coordinator) agentList() []AgentStatus {
	agents := make([]AgentStatus, 0, len(c.agents))
	for _, status := range c.agents {
		agents = append(agents, *status)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].AgentType < agents[j].AgentType })
	return agents
}

func (c *Coordinator) buildReport() string {
	var b strings.Builder
	b.WriteString("Coordinated Report\n")

	var completed []*Task
	for _, task := range c.tasks {
		if task.Status == TaskCompleted {
			completed = append(completed, task)
		}
	}
	fmt.Fprintf(&b, "\nCompleted tasks (%d):\n", len(completed))
	for _, task := range completed {
		fmt.Fprintf(&b, "- [%s] %s\n  %s\n", task.AgentType, task.Description, task.Result)
	}

	fmt.Fprintf(&b, "\nAgent activity (%d messages):\n", len(c.messages))
	for _, msg := range c.messages {
		fmt.Fprintf(&b, "- %s %s -> %s: %s\n", msg.MessageType, msg.FromAgent, msg.ToAgent, msg.Content)
	}
	return b.String()
}

func taskEvent(task Task) protocol.TeamTaskUpdate {
	return protocol.TeamTaskUpdate{
		Type: protocol.TypeTeamTaskUpdate,
		Task: protocol.Marshal(task),
	}
}

func normalizeRoster(agents []string) []string {
	seen := make(map[string]struct{})
	roster := make([]string, 0, len(agents)+1)
	add := func(agent string) {
		if _, ok := seen[agent]; ok {
			return
		}
		seen[agent] = struct{}{}
		roster = append(roster, agent)
	}
	add(AgentEva)
	for _, raw := range agents {
		if agent := NormalizeAgent(raw); agent != "" {
			add(agent)
		}
	}
	return roster
}

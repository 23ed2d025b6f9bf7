package runtime_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mahi1722/ticketflow/internal/decision"
	"github.com/mahi1722/ticketflow/internal/runtime"
	"github.com/mahi1722/ticketflow/pkg/adapters/memory"
	"github.com/mahi1722/ticketflow/pkg/catalogue"
	"github.com/mahi1722/ticketflow/pkg/domain"
	"github.com/mahi1722/ticketflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalogue = `
workflows:
  DirectoryUserCreation:
    description: Create a directory user.
    category: ad_agent
    actions: [parse, check_exists, create, notify]
  LicenseCheck:
    description: Check a collaboration license.
    category: m365_agent
    actions: [check_license]
tools:
  parse: {script: Parse-Request}
  check_exists: {script: Test-User}
  create: {script: New-User}
  notify: {script: Send-Notification}
  check_license: {script: Get-License}
`

var (
	directoryActions = []string{"parse", "check_exists", "create", "notify"}
	fixedNow         = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
)

type fixture struct {
	store   ports.CheckpointStore
	maker   *memory.DecisionMaker
	runner  *memory.ActionRunner
	tickets *memory.TicketStore
	deps    runtime.Dependencies
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat, err := catalogue.Parse([]byte(testCatalogue), "yaml")
	require.NoError(t, err)
	reg, err := cat.Registry()
	require.NoError(t, err)

	f := &fixture{
		store:   memory.NewStore(),
		maker:   memory.NewDecisionMaker(),
		runner:  memory.NewActionRunner(),
		tickets: memory.NewTicketStore(),
	}
	adapter, err := decision.New(f.maker, cat, reg)
	require.NoError(t, err)

	f.deps = runtime.Dependencies{
		Store:     f.store,
		Decisions: adapter,
		Runner:    f.runner,
		Tickets:   f.tickets,
		Catalogue: cat,
		Registry:  reg,
	}
	return f
}

func (f *fixture) engine(t *testing.T, opts ...runtime.Option) *runtime.Engine {
	t.Helper()
	opts = append([]runtime.Option{runtime.WithClock(func() time.Time { return fixedNow })}, opts...)
	e, err := runtime.NewEngine(f.deps, opts...)
	require.NoError(t, err)
	return e
}

func workflowResponse(flow string, actions []string, vars map[string]any) string {
	b, _ := json.Marshal(map[string]any{"flow_name": flow, "actions_list": actions, "additional_variables": vars})
	return string(b)
}

func nextResponse(next string, list []string, vars map[string]any, note string) string {
	b, _ := json.Marshal(map[string]any{
		"next_action":          next,
		"updated_actions_list": list,
		"additional_variables": vars,
		"worknote_content":     note,
	})
	return string(b)
}

// scriptDirectoryFlow queues the decisions of a full DirectoryUserCreation run.
func scriptDirectoryFlow(m *memory.DecisionMaker) {
	m.Queue(domain.DecisionWorkflow,
		workflowResponse("DirectoryUserCreation", directoryActions, map[string]any{"username": "jdoe"}))
	m.Queue(domain.DecisionNextAction,
		nextResponse("check_exists", directoryActions, map[string]any{"display_name": "John Doe"}, "Request parsed."),
		nextResponse("create", directoryActions, map[string]any{"user_exists": false}, "User jdoe does not exist."),
		nextResponse("notify", directoryActions, nil, "User jdoe created."),
		nextResponse("", directoryActions, nil, "Requester notified."),
	)
}

func ticket() domain.Ticket {
	return domain.Ticket{Number: "SCTASK100", ShortDescription: "Create user jdoe"}
}

func start(t *testing.T, e *runtime.Engine, ctx context.Context) (*domain.State, error) {
	t.Helper()
	tk := ticket()
	id := domain.InstanceIDFor(tk)
	return e.Run(ctx, domain.NewState(id, tk), id)
}

func TestEngine_DirectoryUserCreation(t *testing.T) {
	f := newFixture(t)
	scriptDirectoryFlow(f.maker)

	final, err := start(t, f.engine(t), context.Background())
	require.NoError(t, err)

	assert.True(t, final.Terminated())
	assert.Empty(t, final.PendingNode)
	assert.False(t, final.ErrorOccurred)
	assert.False(t, final.NextAction)
	assert.Equal(t, "DirectoryUserCreation", final.FlowName)
	assert.Equal(t, -1, final.ActionIndex)
	assert.Equal(t, 9, final.Transitions)
	assert.Equal(t, fixedNow, final.UpdatedAt)
	assert.Equal(t, map[string]any{
		"username":     "jdoe",
		"display_name": "John Doe",
		"user_exists":  false,
	}, final.AdditionalVariables)

	require.Len(t, final.ExecutionLog, 5)
	for i, action := range directoryActions {
		assert.Equal(t, action, final.ExecutionLog[i].Action)
		assert.False(t, final.ExecutionLog[i].Error)
	}
	assert.Equal(t, domain.StepRecord{Action: domain.NodeSupervisor, Description: domain.CompletionDescription}, final.ExecutionLog[4])

	invocations := f.runner.Invocations()
	require.Len(t, invocations, 4)
	assert.Equal(t, "Parse-Request", invocations[0].Script)
	assert.Equal(t, "jdoe", invocations[0].Variables["username"])
	assert.Equal(t, false, invocations[2].Variables["user_exists"])
	assert.NotEqual(t, invocations[0].IdempotencyKey, invocations[1].IdempotencyKey)

	state, ok := f.tickets.State("SCTASK100")
	require.True(t, ok)
	assert.Equal(t, domain.TicketStateResolved, state)
	assert.Equal(t, []string{"Request parsed.", "User jdoe does not exist.", "User jdoe created.", "Requester notified."},
		f.tickets.Notes("SCTASK100"))
	_, reassigned := f.tickets.Group("SCTASK100")
	assert.False(t, reassigned)

	stored, err := f.store.Load(context.Background(), final.InstanceID)
	require.NoError(t, err)
	assert.Equal(t, final, stored)
}

func TestEngine_ActionErrorEscalates(t *testing.T) {
	f := newFixture(t)
	scriptDirectoryFlow(f.maker)
	f.runner.SetResult("create", domain.ActionResult{Status: domain.ActionError, ErrorMessage: "duplicate name"})

	final, err := start(t, f.engine(t), context.Background())
	require.NoError(t, err)

	assert.True(t, final.Terminated())
	assert.True(t, final.ErrorOccurred)
	assert.Equal(t, "duplicate name", final.ErrorMessage)
	assert.Equal(t, domain.DefaultReassignmentGroup, final.ReassignmentGroup)
	assert.Equal(t, domain.DefaultReassignmentGroup, final.Ticket.AssignmentGroup)
	assert.Empty(t, final.WorknoteContent)

	require.Len(t, final.ExecutionLog, 3)
	last := final.ExecutionLog[2]
	assert.Equal(t, "create", last.Action)
	assert.True(t, last.Error)

	assert.Len(t, f.runner.Invocations(), 3, "notify must never run")
	assert.Contains(t, f.tickets.Notes("SCTASK100"), "Error in create: duplicate name")
	group, ok := f.tickets.Group("SCTASK100")
	require.True(t, ok)
	assert.Equal(t, domain.DefaultReassignmentGroup, group)
	_, resolved := f.tickets.State("SCTASK100")
	assert.False(t, resolved)
}

func TestEngine_UnparseableWorkflowSelection(t *testing.T) {
	f := newFixture(t)
	f.maker.Queue(domain.DecisionWorkflow, "This looks like a directory request to me.")

	final, err := start(t, f.engine(t), context.Background())
	require.NoError(t, err)

	assert.True(t, final.Terminated())
	assert.True(t, final.ErrorOccurred)
	assert.Contains(t, final.ErrorMessage, "Failed to parse model response")
	assert.Equal(t, domain.DefaultReassignmentGroup, final.ReassignmentGroup)
	assert.Empty(t, final.FlowName)
	assert.Empty(t, final.ExecutionLog)
	assert.Equal(t, 1, final.Transitions)
	assert.Empty(t, f.runner.Invocations())

	group, ok := f.tickets.Group("SCTASK100")
	require.True(t, ok)
	assert.Equal(t, domain.DefaultReassignmentGroup, group)
}

func TestEngine_WorkflowSelectionMissingFlowName(t *testing.T) {
	f := newFixture(t)
	f.maker.Queue(domain.DecisionWorkflow, `{"actions_list":["parse"],"additional_variables":{}}`)

	final, err := start(t, f.engine(t), context.Background())
	require.NoError(t, err)

	assert.True(t, final.Terminated())
	assert.True(t, final.ErrorOccurred)
	assert.Contains(t, final.ErrorMessage, "Failed to parse model response")
	assert.Contains(t, final.ErrorMessage, "flow_name")
	assert.Empty(t, final.FlowName)
	assert.Empty(t, f.runner.Invocations())

	notes := f.tickets.Notes("SCTASK100")
	require.NotEmpty(t, notes)
	assert.Contains(t, notes[len(notes)-1], "flow_name")
}

func TestEngine_ResumeAfterInterruption(t *testing.T) {
	reference := newFixture(t)
	scriptDirectoryFlow(reference.maker)
	want, err := start(t, reference.engine(t), context.Background())
	require.NoError(t, err)

	f := newFixture(t)
	scriptDirectoryFlow(f.maker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	actions := 0
	interrupting := f.engine(t, runtime.WithHooks(domain.LifecycleHooks{
		OnCheckpoint: func(ctx context.Context, e *domain.CheckpointEvent) {
			if e.Node != domain.NodeSupervisor {
				actions++
				if actions == 2 {
					cancel()
				}
			}
		},
	}))

	partial, err := start(t, interrupting, ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, partial.ExecutionLog, 2)
	assert.Equal(t, domain.NodeSupervisor, partial.PendingNode)

	stored, err := f.store.Load(context.Background(), partial.InstanceID)
	require.NoError(t, err)
	assert.Equal(t, partial, stored)

	// A later request for the same ticket resumes instead of starting over.
	other := domain.Ticket{Number: "SCTASK100", ShortDescription: "a different payload"}
	got, err := f.engine(t).Run(context.Background(), domain.NewState(partial.InstanceID, other), partial.InstanceID)
	require.NoError(t, err)

	assert.Equal(t, want, got)
	assert.Len(t, f.runner.Invocations(), 4, "completed steps are not replayed")

	wantKeys := reference.runner.Invocations()
	for i, inv := range f.runner.Invocations() {
		assert.Equal(t, wantKeys[i].IdempotencyKey, inv.IdempotencyKey)
	}
}

func TestEngine_TerminatedInstanceIsImmutable(t *testing.T) {
	f := newFixture(t)
	scriptDirectoryFlow(f.maker)
	e := f.engine(t)

	first, err := start(t, e, context.Background())
	require.NoError(t, err)
	requests := len(f.maker.Requests())

	again, err := start(t, e, context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Len(t, f.maker.Requests(), requests)
	assert.Len(t, f.runner.Invocations(), 4)
}

func TestEngine_RecursionLimit(t *testing.T) {
	f := newFixture(t)
	scriptDirectoryFlow(f.maker)

	partial, err := start(t, f.engine(t, runtime.WithRecursionLimit(3)), context.Background())
	var limitErr *domain.WorkflowLimitExceededError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 3, limitErr.Limit)
	assert.Equal(t, "task_SCTASK100", limitErr.InstanceID)
	assert.Equal(t, 3, partial.Transitions)

	// The limit applies per invocation, so the next run finishes the work.
	final, err := start(t, f.engine(t), context.Background())
	require.NoError(t, err)
	assert.True(t, final.Terminated())
	assert.Equal(t, 9, final.Transitions)
}

func TestEngine_DefaultRecursionLimit(t *testing.T) {
	assert.Equal(t, 100, runtime.DefaultRecursionLimit)
}

func TestEngine_NextActionDecisionFailure(t *testing.T) {
	f := newFixture(t)
	f.maker.Queue(domain.DecisionWorkflow, workflowResponse("DirectoryUserCreation", directoryActions, nil))
	f.maker.Queue(domain.DecisionNextAction, `{"next_action": "check_exists"}`)

	final, err := start(t, f.engine(t), context.Background())
	require.NoError(t, err)

	assert.True(t, final.ErrorOccurred)
	assert.Contains(t, final.ErrorMessage, "Agent execution error:")
	assert.Equal(t, domain.DefaultReassignmentGroup, final.ReassignmentGroup)
	assert.Empty(t, final.ExecutionLog)
	assert.Empty(t, f.runner.Invocations())
}

func TestEngine_UnknownActionEscalates(t *testing.T) {
	f := newFixture(t)
	f.maker.Queue(domain.DecisionWorkflow, workflowResponse("DirectoryUserCreation", []string{"format_disk"}, nil))
	f.maker.Queue(domain.DecisionNextAction, nextResponse("", []string{"format_disk"}, nil, ""))

	final, err := start(t, f.engine(t), context.Background())
	require.NoError(t, err)

	assert.True(t, final.ErrorOccurred)
	assert.Equal(t, "unknown action: format_disk", final.ErrorMessage)
	require.Len(t, final.ExecutionLog, 1)
	assert.True(t, final.ExecutionLog[0].Error)
	assert.Empty(t, f.runner.Invocations())
}

func TestEngine_UnsupportedWorkflowEscalates(t *testing.T) {
	f := newFixture(t)
	f.maker.Queue(domain.DecisionWorkflow, workflowResponse("PrinterRepair", []string{"parse"}, nil))

	final, err := start(t, f.engine(t), context.Background())
	require.NoError(t, err)

	assert.True(t, final.ErrorOccurred)
	assert.Equal(t, "unsupported workflow: PrinterRepair", final.ErrorMessage)
	assert.Empty(t, final.FlowName)
	assert.Contains(t, f.tickets.Notes("SCTASK100"), "unsupported workflow: PrinterRepair")
}

func TestEngine_RunnerUnavailable(t *testing.T) {
	f := newFixture(t)
	scriptDirectoryFlow(f.maker)
	f.runner.Err = errors.New("connection refused")

	final, err := start(t, f.engine(t), context.Background())
	require.NoError(t, err)

	assert.True(t, final.ErrorOccurred)
	assert.Equal(t, "Error executing Parse-Request: connection refused", final.ErrorMessage)
	require.Len(t, final.ExecutionLog, 1)
	assert.True(t, final.ExecutionLog[0].Error)
}

func TestEngine_CollaboratorCategoryRouting(t *testing.T) {
	f := newFixture(t)
	f.maker.Queue(domain.DecisionWorkflow, workflowResponse("LicenseCheck", []string{"check_license"}, nil))
	f.maker.Queue(domain.DecisionNextAction, nextResponse("", []string{"check_license"}, nil, "License present."))

	var visited []string
	e := f.engine(t, runtime.WithHooks(domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, ev *domain.NodeEvent) { visited = append(visited, ev.Node) },
	}))

	final, err := start(t, e, context.Background())
	require.NoError(t, err)
	assert.False(t, final.ErrorOccurred)
	assert.Equal(t, []string{"supervisor", "m365_agent", "supervisor"}, visited)
}

type flakyTickets struct{}

func (flakyTickets) PostWorkNote(context.Context, string, string) error { return errors.New("503") }
func (flakyTickets) SetState(context.Context, string, domain.TicketState) error {
	return errors.New("503")
}
func (flakyTickets) Reassign(context.Context, string, string) error { return errors.New("503") }

func TestEngine_TicketStoreFailuresAreNotFatal(t *testing.T) {
	f := newFixture(t)
	scriptDirectoryFlow(f.maker)
	f.deps.Tickets = flakyTickets{}

	final, err := start(t, f.engine(t), context.Background())
	require.NoError(t, err)
	assert.True(t, final.Terminated())
	assert.False(t, final.ErrorOccurred)
	assert.Empty(t, final.WorknoteContent)
}

type failingStore struct {
	ports.CheckpointStore
	saves     int
	failAfter int
}

func (s *failingStore) Save(ctx context.Context, id string, state *domain.State) error {
	s.saves++
	if s.saves > s.failAfter {
		return errors.New("disk full")
	}
	return s.CheckpointStore.Save(ctx, id, state)
}

func TestEngine_CheckpointFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	scriptDirectoryFlow(f.maker)
	f.deps.Store = &failingStore{CheckpointStore: f.store, failAfter: 2}

	partial, err := start(t, f.engine(t), context.Background())
	var cpErr *domain.CheckpointError
	require.ErrorAs(t, err, &cpErr)
	assert.Equal(t, "save", cpErr.Op)
	assert.Contains(t, err.Error(), "disk full")

	// The returned state is the last one that was persisted.
	assert.Equal(t, 1, partial.Transitions)
	stored, err := f.store.Load(context.Background(), partial.InstanceID)
	require.NoError(t, err)
	assert.Equal(t, partial, stored)
}

func TestEngine_CancelledBeforeFirstNode(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state, err := start(t, f.engine(t), ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.NodeSupervisor, state.PendingNode)
	assert.Equal(t, 0, state.Transitions)

	_, err = f.store.Load(context.Background(), state.InstanceID)
	assert.NoError(t, err, "the initial snapshot is persisted immediately")
}

func TestEngine_UnknownInstanceWithoutInitialState(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine(t).Run(context.Background(), nil, "task_missing")
	assert.ErrorIs(t, err, domain.ErrInstanceNotFound)
}

func TestEngine_HooksAndArchive(t *testing.T) {
	f := newFixture(t)
	scriptDirectoryFlow(f.maker)
	archive := memory.NewStore()

	var (
		actions     []string
		checkpoints int
		terminal    *domain.TerminalEvent
		runIDs      = map[string]bool{}
	)
	e := f.engine(t, runtime.WithArchive(archive), runtime.WithHooks(domain.LifecycleHooks{
		OnAction: func(ctx context.Context, ev *domain.ActionEvent) {
			actions = append(actions, ev.Action)
			runIDs[ev.RunID] = true
		},
		OnCheckpoint: func(ctx context.Context, ev *domain.CheckpointEvent) {
			checkpoints++
			require.NotNil(t, ev.Diff)
		},
		OnTerminal: func(ctx context.Context, ev *domain.TerminalEvent) { terminal = ev },
	}))

	final, err := start(t, e, context.Background())
	require.NoError(t, err)

	assert.Equal(t, directoryActions, actions)
	assert.Len(t, runIDs, 1)
	assert.Equal(t, 9, checkpoints)
	require.NotNil(t, terminal)
	assert.Equal(t, "DirectoryUserCreation", terminal.Flow)
	assert.False(t, terminal.Escalated)
	assert.Equal(t, 5, terminal.Steps)
	assert.Equal(t, final.InstanceID, terminal.InstanceID)

	archived, err := archive.Load(context.Background(), final.InstanceID)
	require.NoError(t, err)
	assert.Equal(t, final, archived)
}

func TestEngine_ReassignmentGroupOption(t *testing.T) {
	f := newFixture(t)
	f.maker.Queue(domain.DecisionWorkflow, "not json")

	final, err := start(t, f.engine(t, runtime.WithReassignmentGroup("Identity Team")), context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Identity Team", final.ReassignmentGroup)
	assert.Equal(t, "Identity Team", final.Ticket.AssignmentGroup)
}

func TestNewEngine_MissingDependencies(t *testing.T) {
	_, err := runtime.NewEngine(runtime.Dependencies{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Store")
}

func TestEngine_Topology(t *testing.T) {
	f := newFixture(t)
	nodes, edges := f.engine(t).Topology()

	assert.Equal(t, []string{"supervisor", "ad_agent", "m365_agent", "END"}, nodes)
	assert.Contains(t, edges, runtime.Edge{From: "supervisor", To: "END"})
	assert.Contains(t, edges, runtime.Edge{From: "ad_agent", To: "supervisor"})
	assert.Contains(t, edges, runtime.Edge{From: "supervisor", To: "m365_agent"})
	assert.Len(t, edges, 5)
}

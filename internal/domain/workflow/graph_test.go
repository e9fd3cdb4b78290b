package workflow

import (
	"strings"
	"testing"
)

func testEdges() map[Stage][]Stage {
	return map[Stage][]Stage{
		"draft":    {"review", StageCancelled},
		"review":   {"approval", "draft"},
		"approval": {StageCompleted, StageRejected},
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		expected bool
	}{
		{StatusActive, false},
		{StatusCompleted, true},
		{StatusRejected, true},
		{StatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.expected {
				t.Errorf("Status.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestNewGraph_Valid(t *testing.T) {
	g, err := NewGraph("test_process", "draft", testEdges())
	if err != nil {
		t.Fatalf("NewGraph() error = %v", err)
	}

	if g.Type() != "test_process" {
		t.Errorf("Type() = %v, want test_process", g.Type())
	}
	if g.Start() != "draft" {
		t.Errorf("Start() = %v, want draft", g.Start())
	}
}

func TestNewGraph_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		start   Stage
		edges   map[Stage][]Stage
		wantErr string
	}{
		{
			name:    "start stage missing",
			start:   "nowhere",
			edges:   testEdges(),
			wantErr: "no outgoing transitions",
		},
		{
			name:  "edge to undeclared non-terminal stage",
			start: "draft",
			edges: map[Stage][]Stage{
				"draft": {"limbo"},
			},
			wantErr: "undeclared stage",
		},
		{
			name:  "terminal stage with outgoing edges",
			start: "draft",
			edges: map[Stage][]Stage{
				"draft":        {StageCompleted},
				StageCompleted: {"draft"},
			},
			wantErr: "must not have outgoing transitions",
		},
		{
			name:  "empty transition set",
			start: "draft",
			edges: map[Stage][]Stage{
				"draft": {"review"},
				"review": {},
			},
			wantErr: "empty transition set",
		},
		{
			name:  "duplicate transition",
			start: "draft",
			edges: map[Stage][]Stage{
				"draft": {StageCompleted, StageCompleted},
			},
			wantErr: "duplicate transition",
		},
		{
			name:  "unreachable stage",
			start: "draft",
			edges: map[Stage][]Stage{
				"draft":  {StageCompleted},
				"island": {StageRejected},
			},
			wantErr: "unreachable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGraph("test_process", tt.start, tt.edges)
			if err == nil {
				t.Fatal("NewGraph() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("NewGraph() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestGraph_Allows(t *testing.T) {
	g := MustNewGraph("test_process", "draft", testEdges())

	tests := []struct {
		name     string
		from     Stage
		to       Stage
		expected bool
	}{
		{"declared edge", "draft", "review", true},
		{"rework edge", "review", "draft", true},
		{"terminal edge", "approval", StageCompleted, true},
		{"absent edge", "draft", "approval", false},
		{"reversed edge", "approval", "review", false},
		{"out of terminal", StageCompleted, "draft", false},
		{"unknown stage", "limbo", "draft", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Allows(tt.from, tt.to); got != tt.expected {
				t.Errorf("Allows(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestGraph_OutcomeOf(t *testing.T) {
	g := MustNewGraph("test_process", "draft", testEdges())

	tests := []struct {
		stage    Stage
		expected Status
	}{
		{"draft", StatusActive},
		{"review", StatusActive},
		{StageCompleted, StatusCompleted},
		{StageRejected, StatusRejected},
		{StageCancelled, StatusCancelled},
	}

	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			if got := g.OutcomeOf(tt.stage); got != tt.expected {
				t.Errorf("OutcomeOf(%s) = %v, want %v", tt.stage, got, tt.expected)
			}
		})
	}
}

func TestGraph_IsTerminal(t *testing.T) {
	g := MustNewGraph("test_process", "draft", testEdges())

	if g.IsTerminal("draft") {
		t.Error("IsTerminal(draft) = true, want false")
	}
	if !g.IsTerminal(StageCompleted) {
		t.Error("IsTerminal(completed) = false, want true")
	}
}

func TestGraph_TargetsIsolated(t *testing.T) {
	g := MustNewGraph("test_process", "draft", testEdges())

	targets := g.Targets("draft")
	if len(targets) != 2 {
		t.Fatalf("Targets(draft) returned %d stages, want 2", len(targets))
	}

	// Mutating the returned slice must not affect the graph.
	targets[0] = "mutated"
	if !g.Allows("draft", "review") {
		t.Error("graph edges were mutated through Targets() result")
	}
}

func TestGraph_Stages(t *testing.T) {
	g := MustNewGraph("test_process", "draft", testEdges())

	stages := g.Stages()
	want := map[Stage]bool{
		"draft": true, "review": true, "approval": true,
		StageCompleted: true, StageRejected: true, StageCancelled: true,
	}
	if len(stages) != len(want) {
		t.Fatalf("Stages() returned %d stages, want %d", len(stages), len(want))
	}
	for _, s := range stages {
		if !want[s] {
			t.Errorf("Stages() returned unexpected stage %s", s)
		}
	}
}

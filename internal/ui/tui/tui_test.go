package tui

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/imamik/kubejoin/internal/bootstrap"
	"github.com/imamik/kubejoin/internal/provisioning"
)

type fakeSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (f *fakeSender) Send(msg tea.Msg) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{30 * time.Second, "30s"},
		{90 * time.Second, "1m30s"},
		{3600 * time.Second, "1h0m"},
		{3661 * time.Second, "1h1m"},
	}
	for _, tt := range tests {
		got := formatDuration(tt.d)
		if got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestModelUpdatePhase(t *testing.T) {
	m := NewBootstrapModel("demo", "demo-control-plane")

	m.updatePhase(PhaseMsg{Phase: "dependencies"})
	if len(m.Phases) != 1 || !m.Phases[0].Active {
		t.Fatalf("expected dependencies to be active, got %+v", m.Phases)
	}

	m.updatePhase(PhaseMsg{Phase: "dependencies", Done: true})
	if !m.Phases[0].Done || m.Phases[0].Active {
		t.Errorf("expected dependencies to be done, got %+v", m.Phases[0])
	}

	m.updatePhase(PhaseMsg{Phase: "kubeadm-init"})
	m.updatePhase(PhaseMsg{Phase: "api-ready"})
	if !m.Phases[1].Done {
		t.Error("starting a later phase should complete earlier ones")
	}

	m.updatePhase(PhaseMsg{Phase: "api-ready", Done: true, Err: errors.New("timeout")})
	if m.Phases[2].Err == nil || m.Phases[2].Active {
		t.Errorf("expected api-ready to be failed, got %+v", m.Phases[2])
	}
}

func TestModelUpdateNodes(t *testing.T) {
	var m tea.Model = NewBootstrapModel("demo", "cp")

	m, _ = m.Update(NodeStateMsg{Node: "cp", State: string(bootstrap.StateInitialized)})
	m, _ = m.Update(NodeStateMsg{Node: "w0", State: string(bootstrap.StateJoinRequested)})
	m, _ = m.Update(JoinAttemptMsg{Node: "w0", Message: "attempt 1 failed: connection refused"})
	m, _ = m.Update(JoinAttemptMsg{Node: "w0", Message: "attempt 2 failed: connection refused"})
	m, _ = m.Update(NodeStateMsg{Node: "w1", State: string(bootstrap.StateJoined)})

	model := m.(Model)
	if len(model.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(model.Nodes))
	}
	if model.Nodes[1].Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", model.Nodes[1].Attempts)
	}

	joined, total := joinedWorkers(model)
	if joined != 1 || total != 2 {
		t.Errorf("expected 1/2 workers joined, got %d/%d", joined, total)
	}
}

func TestModelUpdate_Logs(t *testing.T) {
	var m tea.Model = NewBootstrapModel("demo", "cp")
	for i := range maxLogLines + 3 {
		m, _ = m.Update(LogMsg{Line: strings.Repeat("x", i)})
	}
	if got := len(m.(Model).Logs); got != maxLogLines {
		t.Errorf("expected %d log lines, got %d", maxLogLines, got)
	}
}

func TestModelUpdate_Quit(t *testing.T) {
	m := NewBootstrapModel("demo", "cp")

	next, cmd := m.Update(ErrMsg{Err: errors.New("control plane failed")})
	if cmd == nil {
		t.Fatal("expected quit command on error")
	}
	if next.(Model).Err == nil {
		t.Error("expected error to be recorded")
	}

	next, cmd = m.Update(DoneMsg{})
	if cmd == nil || !next.(Model).Done {
		t.Error("expected done model and quit command")
	}
}

func TestCalculateProgress(t *testing.T) {
	m := NewBootstrapModel("demo", "cp")
	if p := calculateProgress(m); p != 0 {
		t.Errorf("expected 0, got %v", p)
	}

	m.Phases = []PhaseRow{{Name: "a", Done: true}, {Name: "b", Done: true}}
	m.Nodes = []NodeRow{
		{Name: "cp", State: string(bootstrap.StateInitialized)},
		{Name: "w0", State: string(bootstrap.StateJoined)},
		{Name: "w1", State: string(bootstrap.StateJoinRequested)},
	}
	if p := calculateProgress(m); p < 0.69 || p > 0.71 {
		t.Errorf("expected ~0.7, got %v", p)
	}

	m.Done = true
	if p := calculateProgress(m); p != 1.0 {
		t.Errorf("expected 1.0, got %v", p)
	}
}

func TestRenderView(t *testing.T) {
	m := NewBootstrapModel("demo", "demo-control-plane")
	m.Phases = []PhaseRow{{Name: "kubeadm-init", Done: true}, {Name: "api-ready", Active: true}}
	m.Nodes = []NodeRow{
		{Name: "demo-control-plane", State: string(bootstrap.StateProvisioning), Since: time.Now()},
		{Name: "demo-worker-0", State: string(bootstrap.StateJoinFailed), LastError: "join authentication failed", Since: time.Now()},
	}

	out := renderView(m)
	for _, want := range []string{"kubejoin: demo", "api-ready", "demo-worker-0", "JoinFailed", "join authentication failed", "0/1 workers joined"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}
}

func TestObserver(t *testing.T) {
	s := &fakeSender{}
	var obs provisioning.Observer = NewObserver(s)
	obs = obs.WithFields(map[string]string{"cluster": "demo"})

	provisioning.LogPhaseStart(obs, "kubeadm-init")
	provisioning.LogPhaseFailed(obs, "kubeadm-init", errors.New("port in use"))
	provisioning.LogNodeState(obs, "w0", "Joined")
	provisioning.LogJoinAttempt(obs, "w1", 1, errors.New("refused"), time.Second)
	provisioning.LogCredentialRevoked(obs, "s3://bucket/demo/join-credential.json")
	obs.Printf("plain %d", 1)

	if len(s.msgs) != 6 {
		t.Fatalf("expected 6 messages, got %d: %#v", len(s.msgs), s.msgs)
	}
	if msg, ok := s.msgs[0].(PhaseMsg); !ok || msg.Phase != "kubeadm-init" || msg.Done {
		t.Errorf("unexpected start message %#v", s.msgs[0])
	}
	if msg, ok := s.msgs[1].(PhaseMsg); !ok || msg.Err == nil || !strings.Contains(msg.Err.Error(), "port in use") {
		t.Errorf("unexpected failure message %#v", s.msgs[1])
	}
	if msg, ok := s.msgs[2].(NodeStateMsg); !ok || msg.Node != "w0" || msg.State != "Joined" {
		t.Errorf("unexpected node message %#v", s.msgs[2])
	}
	if _, ok := s.msgs[3].(JoinAttemptMsg); !ok {
		t.Errorf("unexpected attempt message %#v", s.msgs[3])
	}
	if msg, ok := s.msgs[4].(LogMsg); !ok || !strings.Contains(msg.Line, "ref=s3://bucket/demo/join-credential.json") {
		t.Errorf("unexpected log message %#v", s.msgs[4])
	}
	if msg, ok := s.msgs[5].(LogMsg); !ok || msg.Line != "plain 1" {
		t.Errorf("unexpected printf message %#v", s.msgs[5])
	}
}

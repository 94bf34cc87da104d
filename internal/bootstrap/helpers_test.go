package bootstrap

import (
	"bytes"
	"log"
	"sync"
	"testing"

	"github.com/imamik/kubejoin/internal/config"
	"github.com/imamik/kubejoin/internal/credstore"
	"github.com/imamik/kubejoin/internal/provisioning"
	kjtest "github.com/imamik/kubejoin/internal/testing"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers and readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	cfg     *config.Config
	store   *credstore.MemoryStore
	cluster *kjtest.FakeCluster
	coord   *Coordinator
	logs    *syncBuffer
}

func newHarness(t *testing.T, cfg *config.Config, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		cfg:     cfg,
		store:   credstore.NewMemoryStore(),
		cluster: kjtest.NewFakeCluster(cfg.APIEndpoint()),
		logs:    &syncBuffer{},
	}
	observer := provisioning.NewConsoleObserverWithLogger(log.New(h.logs, "", 0))
	opts = append([]Option{WithObserver(observer), WithTimeouts(kjtest.FastTimeouts())}, opts...)
	h.coord = NewCoordinator(cfg, h.store, opts...)
	return h
}

func (h *harness) control() (*ClusterNode, *kjtest.FakeNode) {
	runner := h.cluster.ControlPlane(h.cfg.ControlPlane.Name)
	return &ClusterNode{
		Name:      h.cfg.ControlPlane.Name,
		Role:      RoleControlPlane,
		PrivateIP: h.cfg.ControlPlane.PrivateIP,
		PublicIP:  h.cfg.ControlPlane.Host,
		Runner:    runner,
	}, runner
}

func (h *harness) workers() ([]*ClusterNode, []*kjtest.FakeNode) {
	nodes := make([]*ClusterNode, 0, len(h.cfg.Workers.Nodes))
	runners := make([]*kjtest.FakeNode, 0, len(h.cfg.Workers.Nodes))
	for _, n := range h.cfg.Workers.Nodes {
		runner := h.cluster.Worker(n.Name)
		nodes = append(nodes, &ClusterNode{
			Name:      n.Name,
			Role:      RoleWorker,
			PrivateIP: n.PrivateIP,
			Runner:    runner,
		})
		runners = append(runners, runner)
	}
	return nodes, runners
}

func (h *harness) worker(name string) (*ClusterNode, *kjtest.FakeNode) {
	runner := h.cluster.Worker(name)
	return &ClusterNode{Name: name, Role: RoleWorker, Runner: runner}, runner
}

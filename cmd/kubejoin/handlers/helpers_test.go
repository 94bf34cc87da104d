package handlers

import (
	"bytes"
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/imamik/kubejoin/internal/bootstrap"
	"github.com/imamik/kubejoin/internal/config"
	"github.com/imamik/kubejoin/internal/credstore"
	"github.com/imamik/kubejoin/internal/provisioning"
	kjtest "github.com/imamik/kubejoin/internal/testing"

	"github.com/stretchr/testify/require"
)

// saveAndRestoreFactories saves all factory functions and restores them
// after the test.
func saveAndRestoreFactories(t *testing.T) {
	t.Helper()
	origFileExists := fileExists
	origLoadConfigFile := loadConfigFile
	origLoadTimeouts := loadTimeouts
	origNewStore := newStore
	origReadPrivateKey := readPrivateKey
	origNewRemoteRunner := newRemoteRunner
	origNewLocalRunner := newLocalRunner
	origNewFirewall := newFirewall
	origNewCAVerifier := newCAVerifier
	origNewObserver := newObserver
	origRunBootstrapTUI := runBootstrapTUI
	origIsInteractiveTTY := isInteractiveTTY
	origHostname := hostname
	origNow := now
	origNewClientFromFile := newClientFromFile
	origNewClientFromKubeconfig := newClientFromKubeconfig
	origRunWizard := runWizard
	origWriteConfig := writeConfig
	origListen := listen

	t.Cleanup(func() {
		fileExists = origFileExists
		loadConfigFile = origLoadConfigFile
		loadTimeouts = origLoadTimeouts
		newStore = origNewStore
		readPrivateKey = origReadPrivateKey
		newRemoteRunner = origNewRemoteRunner
		newLocalRunner = origNewLocalRunner
		newFirewall = origNewFirewall
		newCAVerifier = origNewCAVerifier
		newObserver = origNewObserver
		runBootstrapTUI = origRunBootstrapTUI
		isInteractiveTTY = origIsInteractiveTTY
		hostname = origHostname
		now = origNow
		newClientFromFile = origNewClientFromFile
		newClientFromKubeconfig = origNewClientFromKubeconfig
		runWizard = origRunWizard
		writeConfig = origWriteConfig
		listen = origListen
	})
}

// env wires the handlers to an in-memory cluster.
type env struct {
	cfg     *config.Config
	cluster *kjtest.FakeCluster
	store   *credstore.MemoryStore
	logs    *syncBuffer

	mu    sync.Mutex
	nodes map[string]*kjtest.FakeNode
}

// newEnv replaces every factory with fakes backed by one FakeCluster and one
// MemoryStore shared across handler calls.
func newEnv(t *testing.T, workers int) *env {
	t.Helper()
	saveAndRestoreFactories(t)

	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(keyPath, []byte("fake-key"), 0o600))

	cfg := kjtest.NewConfigBuilder().WithClusterName("demo").WithWorkers(workers).Build()
	cfg.SSH.PrivateKeyPath = keyPath
	cfg.CredentialStore = config.CredentialStoreConfig{
		Type: config.StoreS3,
		S3:   config.S3Config{Endpoint: "https://s3.example.test", Region: "eu-central", Bucket: "demo-join"},
	}

	e := &env{
		cfg:     cfg,
		cluster: kjtest.NewFakeCluster(cfg.APIEndpoint()),
		store:   credstore.NewMemoryStore(),
		logs:    &syncBuffer{},
		nodes:   make(map[string]*kjtest.FakeNode),
	}

	fileExists = func(string) bool { return true }
	loadConfigFile = func(string) (*config.Config, error) { return e.cfg, nil }
	loadTimeouts = kjtest.FastTimeouts
	newStore = func(config.CredentialStoreConfig) (credstore.Store, error) { return e.store, nil }
	newRemoteRunner = func(host string, _ config.SSHConfig, key []byte, _ *config.Timeouts) (bootstrap.Runner, error) {
		require.Equal(t, []byte("fake-key"), key)
		return e.nodeByHost(host), nil
	}
	newObserver = func() provisioning.Observer {
		return provisioning.NewConsoleObserverWithLogger(log.New(e.logs, "", 0))
	}
	isInteractiveTTY = func() bool { return false }
	return e
}

// nodeByHost returns the fake runner for a configured host, creating it once.
func (e *env) nodeByHost(host string) *kjtest.FakeNode {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n, ok := e.nodes[host]; ok {
		return n
	}
	var n *kjtest.FakeNode
	if host == e.cfg.ControlPlane.Host {
		n = e.cluster.ControlPlane(e.cfg.ControlPlane.Name)
	} else {
		for _, w := range e.cfg.Workers.Nodes {
			if w.Host == host {
				n = e.cluster.Worker(w.Name)
			}
		}
	}
	if n == nil {
		n = e.cluster.Worker(host)
	}
	e.nodes[host] = n
	return n
}

// syncBuffer is a bytes.Buffer safe for concurrent loggers.
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

// captureOutput captures stdout during f.
func captureOutput(f func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.String()
	}()

	f()

	w.Close()
	os.Stdout = old
	return <-done
}

// fakeVerifier is a CAVerifier returning a fixed error.
type fakeVerifier struct {
	err   error
	calls int
	mu    sync.Mutex
}

func (v *fakeVerifier) VerifyCA(_ context.Context, _, _ string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	return v.err
}

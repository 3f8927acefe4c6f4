package backend_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/ekisa-team/samplegen/internal/backend"
	"github.com/ekisa-team/samplegen/internal/backend/backendtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serverConfig(t *testing.T, model string) backend.ServerConfig {
	t.Helper()
	port, err := backend.FreePort()
	require.NoError(t, err)

	return backend.ServerConfig{
		Name:         "audiocraft",
		Port:         port,
		Args:         []string{"--model", model},
		ReadyTimeout: 2 * time.Second,
		PollInterval: 10 * time.Millisecond,
	}
}

func TestServerManager_StartStop(t *testing.T) {
	ms := &backendtest.ModelServer{Clip: backendtest.Tone(0.1)}
	spawner := &backendtest.HTTPSpawner{Handler: ms.Handler}
	sm := backend.NewServerManager(backend.WithSpawner(spawner))

	cfg := serverConfig(t, "/models/a")
	require.NoError(t, sm.StartServer(context.Background(), cfg))
	assert.Len(t, sm.Running(), 1)

	resp, err := http.Get(cfg.BaseURL() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Starting the same server again is a no-op.
	require.NoError(t, sm.StartServer(context.Background(), cfg))
	assert.Len(t, spawner.Spawned(), 1)

	require.NoError(t, sm.StopServer(cfg.Name, cfg.Port))
	assert.Empty(t, sm.Running())
	assert.Equal(t, []int{cfg.Port}, spawner.Stopped())

	assert.Error(t, sm.StopServer(cfg.Name, cfg.Port))
}

func TestServerManager_NotReady(t *testing.T) {
	ms := &backendtest.ModelServer{Unhealthy: true}
	spawner := &backendtest.HTTPSpawner{Handler: ms.Handler}
	sm := backend.NewServerManager(backend.WithSpawner(spawner))

	cfg := serverConfig(t, "/models/a")
	cfg.ReadyTimeout = 100 * time.Millisecond

	err := sm.StartServer(context.Background(), cfg)
	require.Error(t, err)
	assert.Empty(t, sm.Running())
	assert.Equal(t, []int{cfg.Port}, spawner.Stopped())
}

func TestServerManager_SpawnFailure(t *testing.T) {
	boom := errors.New("no such binary")
	spawner := &backendtest.HTTPSpawner{Fail: map[string]error{"/models/bad": boom}}
	sm := backend.NewServerManager(backend.WithSpawner(spawner))

	err := sm.StartServer(context.Background(), serverConfig(t, "/models/bad"))
	assert.ErrorIs(t, err, boom)
}

func TestServerManager_StopAll(t *testing.T) {
	ms := &backendtest.ModelServer{}
	spawner := &backendtest.HTTPSpawner{Handler: ms.Handler}
	sm := backend.NewServerManager(backend.WithSpawner(spawner))

	require.NoError(t, sm.StartServer(context.Background(), serverConfig(t, "/models/a")))
	require.NoError(t, sm.StartServer(context.Background(), serverConfig(t, "/models/b")))
	assert.Len(t, sm.Running(), 2)

	sm.StopAll()
	assert.Empty(t, sm.Running())
	assert.Len(t, spawner.Stopped(), 2)
}

func TestExecSpawner_MissingBinary(t *testing.T) {
	_, err := backend.ExecSpawner{}.Spawn(backend.ServerConfig{BinPath: "/definitely/not/here"})
	assert.Error(t, err)
}

// Copyright (c) 2025, the reelay contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package container

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	mu sync.Mutex

	removed []string
	created []createdContainer
	started []string

	createErr error
	startErr  error
}

type createdContainer struct {
	name       string
	config     *dockercontainer.Config
	hostConfig *dockercontainer.HostConfig
}

func (f *fakeEngine) ContainerRemove(_ context.Context, containerID string, _ dockercontainer.RemoveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, containerID)
	return errors.New("no such container")
}

func (f *fakeEngine) ContainerCreate(_ context.Context, config *dockercontainer.Config, hostConfig *dockercontainer.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, containerName string) (dockercontainer.CreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return dockercontainer.CreateResponse{}, f.createErr
	}
	f.created = append(f.created, createdContainer{name: containerName, config: config, hostConfig: hostConfig})
	return dockercontainer.CreateResponse{ID: "cid-" + containerName}, nil
}

func (f *fakeEngine) ContainerStart(_ context.Context, containerID string, _ dockercontainer.StartOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, containerID)
	return nil
}

func waitDone(t *testing.T, sess *Session) {
	t.Helper()
	select {
	case <-sess.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session launch did not complete")
	}
}

func testConfig() Config {
	return Config{
		Image:           "film-downloads",
		Network:         "reelay_default",
		RcloneConfigDir: "/srv/rclone",
	}
}

func TestStartSessionLaunchesWorker(t *testing.T) {
	engine := &fakeEngine{}
	m := NewManagerWithEngine(engine, testConfig(), zerolog.Nop())

	sess := m.StartSession("magnet:?xt=urn:btih:abc")
	waitDone(t, sess)

	assert.Equal(t, StateRunning, sess.State())
	assert.NoError(t, sess.Err())
	assert.Equal(t, "reelay_default", sess.NetworkName)

	require.Len(t, engine.created, 1)
	created := engine.created[0]

	assert.Equal(t, sess.ContainerName, created.name)
	assert.True(t, strings.HasPrefix(created.name, "reelay-dl-"))
	assert.Equal(t, "film-downloads", created.config.Image)
	assert.Contains(t, created.config.Env, "MAGNET=magnet:?xt=urn:btih:abc")
	assert.Contains(t, created.config.ExposedPorts, nat.Port("9000/tcp"))

	assert.Equal(t, dockercontainer.NetworkMode("reelay_default"), created.hostConfig.NetworkMode)
	assert.True(t, created.hostConfig.AutoRemove)
	assert.Equal(t, []string{"/srv/rclone:/home/media/.config/rclone"}, created.hostConfig.Binds)

	// Stale-name cleanup runs before create; its failure must not abort.
	assert.Equal(t, []string{sess.ContainerName}, engine.removed)
	assert.Equal(t, []string{"cid-" + sess.ContainerName}, engine.started)
}

func TestStartSessionWithoutRcloneDirSkipsBind(t *testing.T) {
	engine := &fakeEngine{}
	cfg := testConfig()
	cfg.RcloneConfigDir = ""
	m := NewManagerWithEngine(engine, cfg, zerolog.Nop())

	sess := m.StartSession("magnet:?xt=urn:btih:abc")
	waitDone(t, sess)

	require.Len(t, engine.created, 1)
	assert.Empty(t, engine.created[0].hostConfig.Binds)
}

func TestConcurrentSessionsGetDistinctContainers(t *testing.T) {
	engine := &fakeEngine{}
	m := NewManagerWithEngine(engine, testConfig(), zerolog.Nop())

	const n = 8
	sessions := make([]*Session, n)
	for i := range sessions {
		sessions[i] = m.StartSession("magnet:?xt=urn:btih:abc")
	}

	names := make(map[string]struct{}, n)
	ids := make(map[string]struct{}, n)
	for _, sess := range sessions {
		waitDone(t, sess)
		names[sess.ContainerName] = struct{}{}
		ids[sess.ID] = struct{}{}
	}

	assert.Len(t, names, n)
	assert.Len(t, ids, n)
	assert.Len(t, engine.created, n)
}

func TestLaunchFailureIsRecordedOnSession(t *testing.T) {
	tests := []struct {
		name   string
		engine *fakeEngine
	}{
		{name: "create_fails", engine: &fakeEngine{createErr: errors.New("no such image")}},
		{name: "start_fails", engine: &fakeEngine{startErr: errors.New("network not found")}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			m := NewManagerWithEngine(tt.engine, testConfig(), zerolog.Nop())

			sess := m.StartSession("magnet:?xt=urn:btih:abc")
			waitDone(t, sess)

			assert.Equal(t, StateFailed, sess.State())
			assert.Error(t, sess.Err())
		})
	}
}

func TestLookup(t *testing.T) {
	engine := &fakeEngine{}
	m := NewManagerWithEngine(engine, testConfig(), zerolog.Nop())

	sess := m.StartSession("magnet:?xt=urn:btih:abc")
	waitDone(t, sess)

	found, ok := m.Lookup(sess.ID)
	require.True(t, ok)
	assert.Same(t, sess, found)

	_, ok = m.Lookup("missing")
	assert.False(t, ok)
}

func TestContainerNameIsPureFunctionOfID(t *testing.T) {
	assert.Equal(t, "reelay-dl-1234", ContainerName("1234"))
	assert.Equal(t, ContainerName("x"), ContainerName("x"))
}

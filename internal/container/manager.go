// Copyright (c) 2025, the reelay contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package container launches and tracks the per-stream worker containers
// that download a magnet and serve its media over HTTP.
package container

import (
	"context"
	"sync"
	"time"

	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/rs/zerolog"

	"github.com/reelay/reelay/internal/metrics"
)

const (
	containerNamePrefix = "reelay-dl-"

	// streamerPort is the port the worker's HTTP streamer listens on inside
	// the container network.
	streamerPort = "9000/tcp"

	// rcloneMountPath is where the worker image expects its rclone config.
	rcloneMountPath = "/home/media/.config/rclone"

	launchTimeout = 60 * time.Second

	// sessionRetention is how long finished session records stay visible in
	// the registry for diagnostics after their launch attempt completes.
	sessionRetention = time.Hour
)

// ContainerName derives the worker container name for a session id. It is a
// pure function of the id so the stream proxy can address a worker without
// any shared state.
func ContainerName(id string) string {
	return containerNamePrefix + id
}

// Engine is the slice of the Docker API the manager needs. *client.Client
// satisfies it; tests substitute a fake.
type Engine interface {
	ContainerRemove(ctx context.Context, containerID string, options dockercontainer.RemoveOptions) error
	ContainerCreate(ctx context.Context, config *dockercontainer.Config, hostConfig *dockercontainer.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (dockercontainer.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options dockercontainer.StartOptions) error
}

type Config struct {
	Image           string
	Network         string
	RcloneConfigDir string
}

// Manager owns the session registry and launches one worker container per
// download request. Launches run in the background; failures are recorded on
// the session and logged, never returned to the caller.
type Manager struct {
	engine Engine
	cfg    Config
	log    zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager connects to the local Docker daemon using the standard
// environment configuration (DOCKER_HOST and friends).
func NewManager(cfg Config, logger zerolog.Logger) (*Manager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	return NewManagerWithEngine(cli, cfg, logger), nil
}

func NewManagerWithEngine(engine Engine, cfg Config, logger zerolog.Logger) *Manager {
	return &Manager{
		engine:   engine,
		cfg:      cfg,
		log:      logger.With().Str("module", "container").Logger(),
		sessions: make(map[string]*Session),
	}
}

// StartSession registers a new session for magnetURI and launches its worker
// container in the background. The returned session is immediately usable:
// its id and container name are final, and Done signals launch completion.
func (m *Manager) StartSession(magnetURI string) *Session {
	sess := newSession(uuid.NewString(), magnetURI, m.cfg.Network)

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	m.log.Info().Str("session", sess.ID).Str("container", sess.ContainerName).Msg("Launching streaming worker")
	go m.launch(sess)

	return sess
}

// Lookup returns the session for id if its record is still retained.
func (m *Manager) Lookup(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

func (m *Manager) launch(sess *Session) {
	defer close(sess.done)
	defer time.AfterFunc(sessionRetention, func() { m.remove(sess.ID) })

	ctx, cancel := context.WithTimeout(context.Background(), launchTimeout)
	defer cancel()

	sess.setState(StateStarting)

	// A stale container with the same name can only exist after an unclean
	// shutdown; remove it so the create below cannot collide.
	if err := m.engine.ContainerRemove(ctx, sess.ContainerName, dockercontainer.RemoveOptions{Force: true}); err != nil {
		m.log.Debug().Err(err).Str("container", sess.ContainerName).Msg("No stale container to remove")
	}

	containerCfg := &dockercontainer.Config{
		Image:        m.cfg.Image,
		Env:          []string{"MAGNET=" + sess.MagnetURI},
		ExposedPorts: nat.PortSet{streamerPort: struct{}{}},
	}

	hostCfg := &dockercontainer.HostConfig{
		NetworkMode: dockercontainer.NetworkMode(m.cfg.Network),
		AutoRemove:  true,
	}
	if m.cfg.RcloneConfigDir != "" {
		hostCfg.Binds = []string{m.cfg.RcloneConfigDir + ":" + rcloneMountPath}
	}

	created, err := m.engine.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, sess.ContainerName)
	if err != nil {
		m.log.Error().Err(err).Str("session", sess.ID).Str("image", m.cfg.Image).Msg("Failed to create worker container")
		sess.fail(err)
		metrics.SessionsLaunched.WithLabelValues("error").Inc()
		return
	}

	if err := m.engine.ContainerStart(ctx, created.ID, dockercontainer.StartOptions{}); err != nil {
		m.log.Error().Err(err).Str("session", sess.ID).Str("container", sess.ContainerName).Msg("Failed to start worker container")
		sess.fail(err)
		metrics.SessionsLaunched.WithLabelValues("error").Inc()
		return
	}

	sess.setState(StateRunning)
	metrics.SessionsLaunched.WithLabelValues("ok").Inc()
	m.log.Info().Str("session", sess.ID).Str("container", sess.ContainerName).Msg("Worker container running")
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

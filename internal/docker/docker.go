// Package docker starts one-shot build containers on a Docker engine.
package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
)

var errNoEngine = errors.New("docker engine not connected")

// RunSpec describes a one-shot container.
type RunSpec struct {
	Name    string
	Image   string
	Env     []string
	Labels  map[string]string
	Network string
}

// Engine runs containers through the Docker API.
type Engine struct {
	api *client.Client
}

// Connect builds an engine from the DOCKER_* environment. A non-empty host
// overrides DOCKER_HOST.
func Connect(host string) (*Engine, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	api, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("docker engine %q: %w", host, err)
	}
	return &Engine{api: api}, nil
}

// Close drops the API connection.
func (e *Engine) Close() error {
	if e == nil || e.api == nil {
		return nil
	}
	return e.api.Close()
}

// Run creates and starts a container that removes itself on exit. A missing
// image is pulled once before retrying the create. It returns the container id
// without waiting for the container to finish.
func (e *Engine) Run(ctx context.Context, spec RunSpec) (string, error) {
	if e == nil || e.api == nil {
		return "", errNoEngine
	}
	if strings.TrimSpace(spec.Image) == "" {
		return "", errors.New("container image cannot be empty")
	}
	cfg, hostCfg := containerConfig(spec)

	created, err := e.api.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	if errdefs.IsNotFound(err) {
		if err := e.pull(ctx, spec.Image); err != nil {
			return "", err
		}
		created, err = e.api.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	}
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	if err := e.api.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		_ = e.api.ContainerRemove(context.WithoutCancel(ctx), created.ID, container.RemoveOptions{Force: true})
		return "", fmt.Errorf("start container: %w", err)
	}
	return created.ID, nil
}

func containerConfig(spec RunSpec) (*container.Config, *container.HostConfig) {
	hostCfg := &container.HostConfig{AutoRemove: true}
	if spec.Network != "" {
		hostCfg.NetworkMode = container.NetworkMode(spec.Network)
	}
	return &container.Config{Image: spec.Image, Env: spec.Env, Labels: spec.Labels}, hostCfg
}

func (e *Engine) pull(ctx context.Context, ref string) error {
	progress, err := e.api.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	defer progress.Close()
	// The pull only completes once its progress stream is consumed.
	if _, err := io.Copy(io.Discard, progress); err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	return nil
}

// Package docker implements the provider capability against a local
// Docker daemon. It covers the kinds that have a sensible local
// analogue: networks become Docker networks, compute services become
// containers, and storage buckets become volumes. Everything else is
// rejected so a misconfigured run fails loudly instead of silently
// no-opping.
package docker

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/terrane-io/terrane/internal/ir"
	"github.com/terrane-io/terrane/internal/provider"
)

type Provider struct {
	client *client.Client
}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) ensureClient() error {
	if p.client != nil {
		return nil
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return err
	}
	p.client = cli
	return nil
}

func (p *Provider) Create(ctx context.Context, kind ir.Kind, spec map[string]any) (string, map[string]any, error) {
	if err := p.ensureClient(); err != nil {
		return "", nil, provider.NewFatal("failed to create Docker client", err)
	}

	switch kind {
	case ir.KindNetwork:
		return p.createNetwork(ctx, spec)
	case ir.KindComputeService:
		return p.createContainer(ctx, spec)
	case ir.KindStorageBucket:
		return p.createVolume(ctx, spec)
	}
	return "", nil, provider.NewFatal(fmt.Sprintf("kind %s is not supported by the docker provider", kind), nil)
}

// Update recreates the resource under the same name. Docker has no
// in-place mutation for the attributes we manage, so replace is the
// honest semantics.
func (p *Provider) Update(ctx context.Context, kind ir.Kind, providerID string, spec map[string]any) (map[string]any, error) {
	if err := p.ensureClient(); err != nil {
		return nil, provider.NewFatal("failed to create Docker client", err)
	}

	if err := p.Delete(ctx, kind, providerID); err != nil {
		return nil, err
	}
	_, attrs, err := p.Create(ctx, kind, spec)
	return attrs, err
}

func (p *Provider) Delete(ctx context.Context, kind ir.Kind, providerID string) error {
	if err := p.ensureClient(); err != nil {
		return provider.NewFatal("failed to create Docker client", err)
	}

	var err error
	switch kind {
	case ir.KindNetwork:
		err = p.client.NetworkRemove(ctx, providerID)
	case ir.KindComputeService:
		timeout := 10 // seconds
		_ = p.client.ContainerStop(ctx, providerID, container.StopOptions{Timeout: &timeout})
		err = p.client.ContainerRemove(ctx, providerID, container.RemoveOptions{Force: true})
	case ir.KindStorageBucket:
		err = p.client.VolumeRemove(ctx, providerID, true)
	default:
		return provider.NewFatal(fmt.Sprintf("kind %s is not supported by the docker provider", kind), nil)
	}
	if err != nil && !client.IsErrNotFound(err) {
		return classify(fmt.Sprintf("failed to delete %s %s", kind, providerID), err)
	}
	return nil
}

func (p *Provider) Read(ctx context.Context, kind ir.Kind, providerID string) (map[string]any, error) {
	if err := p.ensureClient(); err != nil {
		return nil, provider.NewFatal("failed to create Docker client", err)
	}

	switch kind {
	case ir.KindNetwork:
		info, err := p.client.NetworkInspect(ctx, providerID, network.InspectOptions{})
		if err != nil {
			if client.IsErrNotFound(err) {
				return nil, provider.ErrNotFound
			}
			return nil, classify("failed to inspect network", err)
		}
		attrs := map[string]any{"id": info.ID}
		if len(info.IPAM.Config) > 0 {
			attrs["cidr"] = info.IPAM.Config[0].Subnet
		}
		return attrs, nil

	case ir.KindComputeService:
		info, err := p.client.ContainerInspect(ctx, providerID)
		if err != nil {
			if client.IsErrNotFound(err) {
				return nil, provider.ErrNotFound
			}
			return nil, classify("failed to inspect container", err)
		}
		return map[string]any{
			"id":       info.ID,
			"dns":      strings.TrimPrefix(info.Name, "/"),
			"replicas": 1,
		}, nil

	case ir.KindStorageBucket:
		vol, err := p.client.VolumeInspect(ctx, providerID)
		if err != nil {
			if client.IsErrNotFound(err) {
				return nil, provider.ErrNotFound
			}
			return nil, classify("failed to inspect volume", err)
		}
		return map[string]any{"id": vol.Name, "domain": vol.Mountpoint}, nil
	}
	return nil, provider.NewFatal(fmt.Sprintf("kind %s is not supported by the docker provider", kind), nil)
}

func (p *Provider) createNetwork(ctx context.Context, spec map[string]any) (string, map[string]any, error) {
	name, err := specName(spec)
	if err != nil {
		return "", nil, err
	}

	opts := types.NetworkCreate{Driver: "bridge"}
	if cidr, ok := spec["cidr"].(string); ok && cidr != "" {
		opts.IPAM = &network.IPAM{
			Config: []network.IPAMConfig{{Subnet: cidr}},
		}
	}

	resp, err := p.client.NetworkCreate(ctx, name, opts)
	if err != nil {
		return "", nil, classify(fmt.Sprintf("failed to create network %s", name), err)
	}

	attrs := map[string]any{"id": resp.ID}
	if cidr, ok := spec["cidr"].(string); ok {
		attrs["cidr"] = cidr
	}
	return resp.ID, attrs, nil
}

func (p *Provider) createContainer(ctx context.Context, spec map[string]any) (string, map[string]any, error) {
	name, err := specName(spec)
	if err != nil {
		return "", nil, err
	}
	img, _ := spec["image"].(string)
	if img == "" {
		return "", nil, provider.NewFatal("compute-service requires an 'image' in its spec", nil)
	}

	reader, err := p.client.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return "", nil, classify(fmt.Sprintf("failed to pull image %s", img), err)
	}
	// Drain the pull stream so the daemon finishes the pull.
	io.Copy(io.Discard, reader)
	reader.Close()

	portBindings := nat.PortMap{}
	exposed := nat.PortSet{}
	if ports, ok := spec["ports"].(map[string]any); ok {
		for hostPort, containerPort := range ports {
			cp := nat.Port(fmt.Sprintf("%v/tcp", containerPort))
			exposed[cp] = struct{}{}
			portBindings[cp] = []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: hostPort}}
		}
	}

	cfg := &container.Config{
		Image:        img,
		Env:          envList(spec["env"]),
		ExposedPorts: exposed,
	}
	hostCfg := &container.HostConfig{PortBindings: portBindings}
	if netID, ok := spec["network"].(string); ok && netID != "" {
		hostCfg.NetworkMode = container.NetworkMode(netID)
	}

	resp, err := p.client.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	if err != nil {
		return "", nil, classify(fmt.Sprintf("failed to create container %s", name), err)
	}

	if err := p.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", nil, classify(fmt.Sprintf("failed to start container %s", name), err)
	}

	return resp.ID, map[string]any{
		"id":       resp.ID,
		"dns":      name,
		"replicas": 1,
	}, nil
}

func (p *Provider) createVolume(ctx context.Context, spec map[string]any) (string, map[string]any, error) {
	name, err := specName(spec)
	if err != nil {
		return "", nil, err
	}

	vol, err := p.client.VolumeCreate(ctx, volume.CreateOptions{Name: name})
	if err != nil {
		return "", nil, classify(fmt.Sprintf("failed to create volume %s", name), err)
	}
	return vol.Name, map[string]any{"id": vol.Name, "domain": vol.Mountpoint}, nil
}

func specName(spec map[string]any) (string, error) {
	name, _ := spec["name"].(string)
	if name == "" {
		return "", provider.NewFatal("docker provider requires a 'name' in the spec", nil)
	}
	return name, nil
}

func envList(v any) []string {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	env := make([]string, 0, len(m))
	for k, val := range m {
		env = append(env, fmt.Sprintf("%s=%v", k, val))
	}
	return env
}

// classify wraps a daemon error, marking it retryable when it looks
// like a transient transport or daemon hiccup rather than a bad
// request.
func classify(msg string, err error) error {
	s := strings.ToLower(err.Error())
	transient := strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "temporarily unavailable") ||
		strings.Contains(s, "i/o error") ||
		strings.Contains(s, "eof")
	if transient {
		return provider.NewRetryable(msg, err)
	}
	return provider.NewFatal(msg, err)
}

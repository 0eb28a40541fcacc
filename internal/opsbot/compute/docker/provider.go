// Package docker implements compute.Provider on the Docker Engine API,
// presenting labeled containers as VM-style instances.
package docker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	dockerclient "github.com/docker/docker/client"
	"github.com/google/uuid"

	"github.com/bdobrica/opsbot/common/retry"
	"github.com/bdobrica/opsbot/internal/opsbot/compute"
)

const (
	labelManagedBy = "opsbot.managed-by"
	labelOSName    = "opsbot.os-name"
	labelSize      = "opsbot.size"
	labelOwner     = "opsbot.owner"
	managedByValue = "opsbot"

	// DefaultNetwork is the bridge network instances are attached to.
	DefaultNetwork = "opsbot-net"

	// stopTimeout is how long to wait for graceful stop before SIGKILL.
	stopTimeout = 10 * time.Second
)

// Provider implements compute.Provider using the Docker Engine API.
type Provider struct {
	client  *dockerclient.Client
	network string
	retry   retry.Config
}

// Compile-time assertion that Provider satisfies compute.Provider.
var _ compute.Provider = (*Provider)(nil)

// New creates a Provider using DOCKER_HOST or the default socket, attaching
// instances to networkName (DefaultNetwork when empty).
func New(networkName string) (*Provider, error) {
	cli, err := dockerclient.NewClientWithOpts(
		dockerclient.FromEnv,
		dockerclient.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	if networkName == "" {
		networkName = DefaultNetwork
	}
	return &Provider{
		client:  cli,
		network: networkName,
		retry:   retry.DefaultConfig,
	}, nil
}

// EnsureNetwork creates the opsbot bridge network if it doesn't exist.
func (p *Provider) EnsureNetwork(ctx context.Context) error {
	nets, err := p.client.NetworkList(ctx, network.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", p.network)),
	})
	if err != nil {
		return fmt.Errorf("list networks: %w", err)
	}
	for _, n := range nets {
		if n.Name == p.network {
			return nil
		}
	}
	_, err = p.client.NetworkCreate(ctx, p.network, network.CreateOptions{
		Driver:     "bridge",
		Attachable: true,
		Labels:     map[string]string{labelManagedBy: managedByValue},
	})
	if err != nil {
		return fmt.Errorf("create network %q: %w", p.network, err)
	}
	return nil
}

// Create boots a new instance container from the given spec.
func (p *Provider) Create(ctx context.Context, spec compute.CreateSpec) (compute.Instance, error) {
	if spec.Image == "" {
		return compute.Instance{}, fmt.Errorf("spec.Image is required")
	}

	name := spec.Name
	if name == "" {
		name = generatedName(spec.OSName)
	}

	containerCfg := &container.Config{
		Image: spec.Image,
		Labels: map[string]string{
			labelManagedBy: managedByValue,
			labelOSName:    spec.OSName,
			labelSize:      spec.Size,
			labelOwner:     spec.Owner,
		},
	}
	hostCfg := &container.HostConfig{
		RestartPolicy: container.RestartPolicy{Name: "unless-stopped"},
	}
	networkCfg := &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			p.network: {},
		},
	}

	resp, err := p.client.ContainerCreate(ctx, containerCfg, hostCfg, networkCfg, nil, containerName(name))
	if err != nil {
		return compute.Instance{}, fmt.Errorf("create instance: %w", err)
	}

	if err := p.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// Best-effort cleanup so a half-created instance doesn't linger.
		_ = p.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return compute.Instance{}, fmt.Errorf("start instance: %w", err)
	}

	inspect, err := p.client.ContainerInspect(ctx, resp.ID)
	if err != nil {
		return compute.Instance{}, fmt.Errorf("inspect instance: %w", err)
	}

	return instanceFromInspect(inspect, p.network), nil
}

// List returns all opsbot-managed instances matching the filter.
func (p *Provider) List(ctx context.Context, filter compute.ListFilter) ([]compute.Instance, error) {
	var containers []types.Container
	err := retry.Do(ctx, p.retry, "docker.list", func() error {
		var listErr error
		containers, listErr = p.client.ContainerList(ctx, container.ListOptions{
			All: true,
			Filters: filters.NewArgs(
				filters.Arg("label", labelManagedBy+"="+managedByValue),
			),
		})
		return listErr
	})
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}

	instances := make([]compute.Instance, 0, len(containers))
	for _, c := range containers {
		inst := instanceFromSummary(c)
		if !filter.Matches(inst) {
			continue
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// Start starts a previously stopped instance.
func (p *Provider) Start(ctx context.Context, id string) error {
	if err := p.client.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		if dockerclient.IsErrNotFound(err) {
			return compute.ErrNotFound
		}
		return fmt.Errorf("start instance %s: %w", id, err)
	}
	return nil
}

// Stop gracefully stops an instance.
func (p *Provider) Stop(ctx context.Context, id string) error {
	timeout := int(stopTimeout.Seconds())
	if err := p.client.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		if dockerclient.IsErrNotFound(err) {
			return compute.ErrNotFound
		}
		return fmt.Errorf("stop instance %s: %w", id, err)
	}
	return nil
}

// Terminate stops and removes an instance entirely.
func (p *Provider) Terminate(ctx context.Context, id string) error {
	_ = p.Stop(ctx, id) // best-effort graceful stop first
	if err := p.client.ContainerRemove(ctx, id, container.RemoveOptions{
		Force:         true,
		RemoveVolumes: false,
	}); err != nil {
		if dockerclient.IsErrNotFound(err) {
			return compute.ErrNotFound
		}
		return fmt.Errorf("terminate instance %s: %w", id, err)
	}
	return nil
}

// --- helpers ---

// containerName prefixes instance names so unmanaged containers can never
// collide with opsbot's.
func containerName(name string) string {
	return "opsbot-" + name
}

// generatedName builds an instance name from the OS name and a short unique
// suffix, e.g. "fedora-3f2a1b".
func generatedName(osName string) string {
	if osName == "" {
		osName = "vm"
	}
	return fmt.Sprintf("%s-%s", osName, uuid.NewString()[:6])
}

// parseState maps Docker container states onto instance lifecycle states.
func parseState(s string) compute.InstanceState {
	switch strings.ToLower(s) {
	case "created":
		return compute.StatePending
	case "running", "restarting":
		return compute.StateRunning
	case "removing":
		return compute.StateStopping
	case "paused", "exited":
		return compute.StateStopped
	case "dead":
		return compute.StateTerminated
	default:
		return compute.StateUnknown
	}
}

func instanceFromSummary(c types.Container) compute.Instance {
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(strings.TrimPrefix(c.Names[0], "/"), "opsbot-")
	}
	return compute.Instance{
		ID:        c.ID,
		Name:      name,
		OSName:    c.Labels[labelOSName],
		Size:      c.Labels[labelSize],
		State:     parseState(c.State),
		CreatedAt: time.Unix(c.Created, 0),
	}
}

func instanceFromInspect(inspect types.ContainerJSON, networkName string) compute.Instance {
	inst := compute.Instance{
		ID:   inspect.ID,
		Name: strings.TrimPrefix(strings.TrimPrefix(inspect.Name, "/"), "opsbot-"),
	}
	if inspect.Config != nil {
		inst.OSName = inspect.Config.Labels[labelOSName]
		inst.Size = inspect.Config.Labels[labelSize]
	}
	if inspect.State != nil {
		inst.State = parseState(inspect.State.Status)
	}
	if created, err := time.Parse(time.RFC3339Nano, inspect.Created); err == nil {
		inst.CreatedAt = created
	}
	if nets := inspect.NetworkSettings; nets != nil {
		if ep, ok := nets.Networks[networkName]; ok {
			inst.Address = ep.IPAddress
		}
	}
	return inst
}

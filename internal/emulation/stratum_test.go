package emulation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"srv6lab/internal/logging"
	"srv6lab/internal/topology"
)

type fakeDocker struct {
	missingImage bool
	pulled       []string
	created      []*container.Config
	hostConfigs  []*container.HostConfig
	names        []string
	started      []string
	removed      []string
	removeErr    error
}

func (f *fakeDocker) ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error) {
	f.pulled = append(f.pulled, ref)
	f.missingImage = false
	return io.NopCloser(strings.NewReader(`{"status":"done"}`)), nil
}

func (f *fakeDocker) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error) {
	if f.missingImage {
		return container.CreateResponse{}, fmt.Errorf("no such image: %w", cerrdefs.ErrNotFound)
	}
	f.created = append(f.created, config)
	f.hostConfigs = append(f.hostConfigs, hostConfig)
	f.names = append(f.names, containerName)
	return container.CreateResponse{ID: "c-" + containerName}, nil
}

func (f *fakeDocker) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	f.started = append(f.started, containerID)
	return nil
}

func (f *fakeDocker) ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error) {
	return container.InspectResponse{
		ContainerJSONBase: &container.ContainerJSONBase{
			ID:    containerID,
			State: &container.State{Running: true, Pid: 4242},
		},
	}, nil
}

func (f *fakeDocker) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	f.removed = append(f.removed, containerID)
	return f.removeErr
}

func newStratum(t *testing.T, docker *fakeDocker) *StratumDevice {
	t.Helper()
	return &StratumDevice{
		Docker:       docker,
		Image:        "opennetworking/mn-stratum:latest",
		GRPCBasePort: 50001,
		StateDir:     t.TempDir(),
		Prefix:       "lab-",
		Logger:       logging.NewNop(),
	}
}

func stratumNode(name string, cpuPort int) topology.Node {
	return topology.Node{
		Name:   name,
		Role:   topology.RoleSwitch,
		Class:  topology.ClassStratumBmv2,
		Switch: &topology.SwitchConfig{CPUPort: cpuPort},
	}
}

func TestStratum_CreateAssignsEndpoints(t *testing.T) {
	d := newStratum(t, &fakeDocker{})

	h, err := d.Create(context.Background(), stratumNode("r3", 255), 2)
	require.NoError(t, err)

	assert.Equal(t, 50003, h.GRPCPort)
	assert.Equal(t, uint64(3), h.DeviceID)
	assert.Equal(t, "lab-r3", h.Container)
	assert.Empty(t, h.NetNSPath)
	assert.DirExists(t, filepath.Join(d.StateDir, "r3"))

	addr, ok := h.ControlPlane("127.0.0.1")
	require.False(t, ok, "node kind is set by the engine")
	assert.Empty(t, addr)
}

func TestStratum_Start(t *testing.T) {
	docker := &fakeDocker{}
	d := newStratum(t, docker)
	ctx := context.Background()
	node := stratumNode("r1", 128)

	h, err := d.Create(ctx, node, 0)
	require.NoError(t, err)
	h.Kind, h.Node = KindNode, "r1"

	ports := []Port{{Number: 1, Iface: "r1-eth1", Peer: "r2"}, {Number: 2, Iface: "r1-eth2", Peer: "h1"}}
	h, err = d.Start(ctx, node, h, ports)
	require.NoError(t, err)

	assert.Equal(t, 4242, h.PID)
	assert.Equal(t, []string{"lab-r1"}, docker.names)
	assert.Equal(t, []string{"c-lab-r1"}, docker.started)
	assert.Empty(t, docker.pulled)

	cfg := docker.created[0]
	assert.Equal(t, "opennetworking/mn-stratum:latest", cfg.Image)
	assert.Equal(t, "stratum_bmv2", cfg.Cmd[0])
	assert.Contains(t, cfg.Cmd, "-device_id=1")
	assert.Contains(t, cfg.Cmd, "-cpu_port=128")
	assert.Contains(t, cfg.Cmd, "-external_stratum_urls=0.0.0.0:50001")
	assert.Contains(t, cfg.Cmd, "-local_stratum_url=localhost:60001")

	hc := docker.hostConfigs[0]
	assert.Equal(t, container.NetworkMode("host"), hc.NetworkMode)
	assert.True(t, hc.Privileged)

	chassis, err := os.ReadFile(filepath.Join(d.StateDir, "r1", "chassis-config.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(chassis), `name: "r1-eth2"`)

	addr, ok := h.ControlPlane("127.0.0.1")
	require.True(t, ok)
	assert.Equal(t, "127.0.0.1:50001", addr)
}

func TestStratum_PullsMissingImage(t *testing.T) {
	docker := &fakeDocker{missingImage: true}
	d := newStratum(t, docker)
	ctx := context.Background()
	node := stratumNode("r1", 255)

	h, err := d.Create(ctx, node, 0)
	require.NoError(t, err)
	_, err = d.Start(ctx, node, h, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"opennetworking/mn-stratum:latest"}, docker.pulled)
	assert.Len(t, docker.created, 1)
}

func TestStratum_Destroy(t *testing.T) {
	docker := &fakeDocker{}
	d := newStratum(t, docker)
	ctx := context.Background()

	h, err := d.Create(ctx, stratumNode("r1", 255), 0)
	require.NoError(t, err)
	h.Node = "r1"

	require.NoError(t, d.Destroy(ctx, h))
	assert.Equal(t, []string{"lab-r1"}, docker.removed)
	assert.NoDirExists(t, filepath.Join(d.StateDir, "r1"))

	docker.removeErr = fmt.Errorf("gone: %w", cerrdefs.ErrNotFound)
	assert.NoError(t, d.Destroy(ctx, h), "an already removed container is fine")

	docker.removeErr = errors.New("daemon unavailable")
	assert.Error(t, d.Destroy(ctx, h))
}

func TestRenderChassisConfig(t *testing.T) {
	out, err := RenderChassisConfig("r2", 2, []Port{{Number: 1, Iface: "r2-eth1"}, {Number: 2, Iface: "r2-eth2"}})
	require.NoError(t, err)

	text := string(out)
	assert.True(t, strings.HasPrefix(text, `description: "stratum_bmv2 r2"`))
	assert.Contains(t, text, `name: "r2 node 2"`)
	assert.Equal(t, 2, strings.Count(text, "singleton_ports {"))
	assert.Equal(t, 2, strings.Count(text, "  node: 2\n"))
	assert.Contains(t, text, "  id: 2\n  name: \"r2-eth2\"\n  slot: 1\n  port: 2\n")
}

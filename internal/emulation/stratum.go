package emulation

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"text/template"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"srv6lab/internal/topology"
)

const (
	// LocalPortOffset separates the in-switch local gRPC listener from the
	// externally exposed one.
	LocalPortOffset = 10000

	stratumInitPipeline = "/root/dummy.json"
	containerLabel      = "srv6lab.node"
)

// dockerAPI is the subset of the Docker client used to run switch agents.
type dockerAPI interface {
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// StratumDevice runs one stratum_bmv2 agent per switch in a privileged
// container on the host network. Switch ports stay in the root namespace.
type StratumDevice struct {
	Docker       dockerAPI
	Image        string
	GRPCBasePort int
	// StateDir holds one directory of generated configuration per switch.
	StateDir string
	Prefix   string
	Logger   *slog.Logger
}

// NewDockerClient connects to the daemon described by the DOCKER_*
// environment.
func NewDockerClient() (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return cli, nil
}

func (d *StratumDevice) ContainerName(node string) string {
	return d.Prefix + node
}

func (d *StratumDevice) configDir(node string) string {
	return filepath.Join(d.StateDir, node)
}

func (d *StratumDevice) Create(ctx context.Context, node topology.Node, index int) (Handle, error) {
	if err := os.MkdirAll(d.configDir(node.Name), 0755); err != nil {
		return Handle{}, fmt.Errorf("create config dir: %w", err)
	}

	return Handle{
		Container: d.ContainerName(node.Name),
		GRPCPort:  d.GRPCBasePort + index,
		DeviceID:  uint64(index + 1),
	}, nil
}

func (d *StratumDevice) Start(ctx context.Context, node topology.Node, h Handle, ports []Port) (Handle, error) {
	dir := d.configDir(node.Name)
	chassis, err := RenderChassisConfig(node.Name, h.DeviceID, ports)
	if err != nil {
		return h, err
	}
	chassisPath := filepath.Join(dir, "chassis-config.txt")
	if err := os.WriteFile(chassisPath, chassis, 0644); err != nil {
		return h, fmt.Errorf("write chassis config: %w", err)
	}

	config := &container.Config{
		Image:  d.Image,
		Cmd:    stratumArgs(dir, chassisPath, h, node.CPUPort()),
		Labels: map[string]string{containerLabel: node.Name},
	}
	hostConfig := &container.HostConfig{
		NetworkMode: "host",
		Privileged:  true,
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: dir,
			Target: dir,
		}},
	}

	resp, err := d.Docker.ContainerCreate(ctx, config, hostConfig, nil, nil, h.Container)
	if cerrdefs.IsNotFound(err) {
		if err := d.pull(ctx); err != nil {
			return h, err
		}
		resp, err = d.Docker.ContainerCreate(ctx, config, hostConfig, nil, nil, h.Container)
	}
	if err != nil {
		return h, fmt.Errorf("create container: %w", err)
	}

	if err := d.Docker.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return h, fmt.Errorf("start container: %w", err)
	}

	info, err := d.Docker.ContainerInspect(ctx, resp.ID)
	if err != nil {
		return h, fmt.Errorf("inspect container: %w", err)
	}
	if info.ContainerJSONBase != nil && info.State != nil {
		h.PID = info.State.Pid
	}
	return h, nil
}

func (d *StratumDevice) pull(ctx context.Context) error {
	if d.Logger != nil {
		d.Logger.Info("pulling image", "image", d.Image)
	}

	rc, err := d.Docker.ImagePull(ctx, d.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull %s: %w", d.Image, err)
	}
	defer rc.Close()

	_, err = io.Copy(io.Discard, rc)
	return err
}

// Destroy removes the container by name so a handle without a recorded
// container id is still cleaned up.
func (d *StratumDevice) Destroy(ctx context.Context, h Handle) error {
	if h.Container != "" {
		err := d.Docker.ContainerRemove(ctx, h.Container, container.RemoveOptions{Force: true})
		if err != nil && !cerrdefs.IsNotFound(err) {
			return fmt.Errorf("remove container %s: %w", h.Container, err)
		}
	}

	if h.Node != "" {
		if err := os.RemoveAll(d.configDir(h.Node)); err != nil {
			return fmt.Errorf("remove config dir: %w", err)
		}
	}
	return nil
}

func stratumArgs(dir, chassisPath string, h Handle, cpuPort int) []string {
	return []string{
		"stratum_bmv2",
		"-device_id=" + strconv.FormatUint(h.DeviceID, 10),
		"-chassis_config_file=" + chassisPath,
		"-forwarding_pipeline_configs_file=" + filepath.Join(dir, "pipe.txt"),
		"-persistent_config_dir=" + dir,
		"-initial_pipeline=" + stratumInitPipeline,
		"-cpu_port=" + strconv.Itoa(cpuPort),
		"-external_stratum_urls=0.0.0.0:" + strconv.Itoa(h.GRPCPort),
		"-local_stratum_url=localhost:" + strconv.Itoa(h.GRPCPort+LocalPortOffset),
		"-max_num_controllers_per_node=10",
		"-write_req_log_file=" + filepath.Join(dir, "write-reqs.txt"),
		"-bmv2_log_level=warn",
	}
}

var chassisTemplate = template.Must(template.New("chassis").Parse(`description: "stratum_bmv2 {{.Name}}"
chassis {
  platform: PLT_P4_SOFT_SWITCH
  name: "{{.Name}}"
}
nodes {
  id: {{.NodeID}}
  name: "{{.Name}} node {{.NodeID}}"
  slot: 1
  index: 1
}
{{- range .Ports}}
singleton_ports {
  id: {{.Number}}
  name: "{{.Iface}}"
  slot: 1
  port: {{.Number}}
  channel: 1
  speed_bps: 10000000000
  config_params {
    admin_state: ADMIN_STATE_ENABLED
  }
  node: {{$.NodeID}}
}
{{- end}}
`))

// RenderChassisConfig produces the text-format chassis config for a switch.
func RenderChassisConfig(name string, nodeID uint64, ports []Port) ([]byte, error) {
	var buf bytes.Buffer
	err := chassisTemplate.Execute(&buf, struct {
		Name   string
		NodeID uint64
		Ports  []Port
	}{name, nodeID, ports})
	if err != nil {
		return nil, fmt.Errorf("render chassis config: %w", err)
	}
	return buf.Bytes(), nil
}

package topology

type Role string

const (
	RoleHost   Role = "host"
	RoleSwitch Role = "switch"
)

// DeviceClass names the device implementation that backs a node. Engines
// resolve it through their own registry of device factories.
type DeviceClass string

const (
	ClassStratumBmv2 DeviceClass = "stratum-bmv2"
	ClassLinuxBridge DeviceClass = "linux-bridge"
	ClassIPv6Host    DeviceClass = "ipv6-host"
)

// DefaultCPUPort is the port stratum_bmv2 reserves for packet-in/packet-out
// traffic between the data plane and the switch agent.
const DefaultCPUPort = 255

// NodeRef names a declared node.
type NodeRef string

type SwitchConfig struct {
	// CPUPort of 0 means unset; the builder applies its default.
	CPUPort    int    `yaml:"cpu_port" validate:"min=1,max=511"`
	StationMAC string `yaml:"station_mac" validate:"omitempty,mac"`
	USID       string `yaml:"usid" validate:"omitempty,ipv6"`
	// UDX is the optional uSID decapsulation-and-cross-connect address.
	UDX  string `yaml:"udx" validate:"omitempty,ipv6"`
	Core bool   `yaml:"core"`
}

type HostConfig struct {
	MAC     string `yaml:"mac" validate:"required,mac"`
	IPv6    string `yaml:"ipv6" validate:"required,cidrv6"`
	Gateway string `yaml:"ipv6_gw" validate:"required,ipv6"`
}

// Node is a declared switch or host. Exactly one of Switch and Host is set,
// matching Role.
type Node struct {
	Name   string
	Role   Role
	Class  DeviceClass
	Switch *SwitchConfig
	Host   *HostConfig
}

func (n Node) Ref() NodeRef {
	return NodeRef(n.Name)
}

func (n Node) IsSwitch() bool {
	return n.Role == RoleSwitch
}

func (n Node) IsHost() bool {
	return n.Role == RoleHost
}

// CPUPort returns the switch CPU port, or 0 for hosts.
func (n Node) CPUPort() int {
	if !n.IsSwitch() || n.Switch == nil {
		return 0
	}
	return n.Switch.CPUPort
}

func (n Node) clone() Node {
	out := n
	if n.Switch != nil {
		sw := *n.Switch
		out.Switch = &sw
	}
	if n.Host != nil {
		h := *n.Host
		out.Host = &h
	}
	return out
}

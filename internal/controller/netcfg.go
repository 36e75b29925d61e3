package controller

import (
	"fmt"
	"net"
	"sort"

	"srv6lab/internal/emulation"
	"srv6lab/internal/topology"
)

// Netcfg is the network configuration document accepted by ONOS at
// /onos/v1/network/configuration.
type Netcfg struct {
	Devices map[string]DeviceEntry `json:"devices"`
	Ports   map[string]PortEntry   `json:"ports,omitempty"`
	Hosts   map[string]HostEntry   `json:"hosts,omitempty"`
}

type DeviceEntry struct {
	Basic DeviceBasic         `json:"basic"`
	SRv6  *SRv6DeviceSettings `json:"srv6DeviceConfig,omitempty"`
}

type DeviceBasic struct {
	ManagementAddress string `json:"managementAddress"`
	Driver            string `json:"driver"`
	Pipeconf          string `json:"pipeconf"`
	Name              string `json:"name"`
}

type SRv6DeviceSettings struct {
	MyStationMAC string `json:"myStationMac"`
	USID         string `json:"uN"`
	UDX          string `json:"uDX,omitempty"`
	IsCore       bool   `json:"isCore"`
}

type PortEntry struct {
	Interfaces []InterfaceEntry `json:"interfaces"`
}

type InterfaceEntry struct {
	Name string   `json:"name"`
	IPs  []string `json:"ips"`
}

type HostEntry struct {
	Basic HostBasic `json:"basic"`
}

type HostBasic struct {
	Name      string   `json:"name"`
	Locations []string `json:"locations"`
	IPs       []string `json:"ips"`
}

func DeviceID(node string) string {
	return "device:" + node
}

func connectPoint(node string, port int) string {
	return fmt.Sprintf("%s/%d", DeviceID(node), port)
}

// BuildNetcfg registers every switch whose handle exposes a control-plane
// endpoint, the hosts attached to those switches and the gateway interface
// of each host-facing port.
func BuildNetcfg(g *topology.Graph, rt *emulation.Runtime, ep Endpoint) (Netcfg, error) {
	cfg := Netcfg{
		Devices: map[string]DeviceEntry{},
		Ports:   map[string]PortEntry{},
		Hosts:   map[string]HostEntry{},
	}

	registered := map[topology.NodeRef]bool{}
	for _, sw := range g.Switches() {
		h, ok := rt.Node(sw.Name)
		if !ok {
			continue
		}
		addr, ok := h.ControlPlane(ep.ManagementHost())
		if !ok {
			continue
		}

		entry := DeviceEntry{
			Basic: DeviceBasic{
				ManagementAddress: fmt.Sprintf("grpc://%s?device_id=%d", addr, h.DeviceID),
				Driver:            ep.Driver,
				Pipeconf:          ep.Pipeconf,
				Name:              sw.Name,
			},
		}
		if s := sw.Switch; s != nil && s.StationMAC != "" && s.USID != "" {
			entry.SRv6 = &SRv6DeviceSettings{
				MyStationMAC: s.StationMAC,
				USID:         s.USID,
				UDX:          s.UDX,
				IsCore:       s.Core,
			}
		}
		cfg.Devices[DeviceID(sw.Name)] = entry
		registered[sw.Ref()] = true
	}

	for _, host := range g.Hosts() {
		if host.Host == nil {
			continue
		}

		var locations []string
		for _, l := range g.LinksOf(host.Ref()) {
			peer, port := l.Peer(host.Ref())
			if !registered[peer] {
				continue
			}
			cp := connectPoint(string(peer), port)
			locations = append(locations, cp)

			gw, err := gatewayInterface(*host.Host)
			if err != nil {
				return Netcfg{}, fmt.Errorf("host %s: %w", host.Name, err)
			}
			cfg.Ports[cp] = PortEntry{Interfaces: []InterfaceEntry{{
				Name: fmt.Sprintf("%s-%d", peer, port),
				IPs:  []string{gw},
			}}}
		}
		if len(locations) == 0 {
			continue
		}
		sort.Strings(locations)

		ip, _, err := net.ParseCIDR(host.Host.IPv6)
		if err != nil {
			return Netcfg{}, fmt.Errorf("host %s: parse addr: %w", host.Name, err)
		}
		cfg.Hosts[host.Host.MAC+"/None"] = HostEntry{Basic: HostBasic{
			Name:      host.Name,
			Locations: locations,
			IPs:       []string{ip.String()},
		}}
	}

	return cfg, nil
}

// gatewayInterface returns the gateway address with the host's prefix
// length, e.g. 2001:1:1::ff/64.
func gatewayInterface(cfg topology.HostConfig) (string, error) {
	_, ipnet, err := net.ParseCIDR(cfg.IPv6)
	if err != nil {
		return "", fmt.Errorf("parse addr: %w", err)
	}
	gw := net.ParseIP(cfg.Gateway)
	if gw == nil {
		return "", fmt.Errorf("parse gateway %q: invalid address", cfg.Gateway)
	}
	ones, _ := ipnet.Mask.Size()
	return fmt.Sprintf("%s/%d", gw, ones), nil
}

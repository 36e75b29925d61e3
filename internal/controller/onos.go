// Package controller hands the running switches over to a remote ONOS
// controller through its network configuration API.
package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"srv6lab/internal/config"
	"srv6lab/internal/emulation"
	"srv6lab/internal/topology"
)

// Endpoint is the remote controller switches are attached to.
type Endpoint struct {
	Name     string
	Address  string
	Port     int
	User     string
	Password string
	Pipeconf string
	Driver   string
	Push     bool
	// AgentHost is the address the controller uses to reach switch agents.
	// Defaults to 127.0.0.1.
	AgentHost string
}

func EndpointFromConfig(c config.Controller) Endpoint {
	return Endpoint{
		Name:      c.Name,
		Address:   c.Address,
		Port:      c.Port,
		User:      c.User,
		Password:  c.Password,
		Pipeconf:  c.Pipeconf,
		Driver:    c.Driver,
		Push:      c.Push,
		AgentHost: c.AgentHost,
	}
}

func (e Endpoint) ManagementHost() string {
	if e.AgentHost == "" {
		return "127.0.0.1"
	}
	return e.AgentHost
}

func (e Endpoint) NetcfgURL() string {
	hostport := net.JoinHostPort(e.Address, strconv.Itoa(e.Port))
	return "http://" + hostport + "/onos/v1/network/configuration"
}

type Attacher interface {
	Attach(ctx context.Context, g *topology.Graph, rt *emulation.Runtime, ep Endpoint) error
}

// ONOS writes the generated netcfg to disk and optionally pushes it.
type ONOS struct {
	NetcfgPath string
	Client     *http.Client
	Logger     *slog.Logger
}

func (o *ONOS) Attach(ctx context.Context, g *topology.Graph, rt *emulation.Runtime, ep Endpoint) error {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := BuildNetcfg(g, rt, ep)
	if err != nil {
		return fmt.Errorf("build netcfg: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode netcfg: %w", err)
	}

	if o.NetcfgPath != "" {
		if err := os.MkdirAll(filepath.Dir(o.NetcfgPath), 0755); err != nil {
			return fmt.Errorf("create netcfg dir: %w", err)
		}
		if err := os.WriteFile(o.NetcfgPath, data, 0644); err != nil {
			return fmt.Errorf("write netcfg: %w", err)
		}
		logger.Info("netcfg written", "path", o.NetcfgPath, "devices", len(cfg.Devices), "hosts", len(cfg.Hosts))
	}

	if !ep.Push {
		return nil
	}
	if err := o.push(ctx, ep, data); err != nil {
		return fmt.Errorf("push netcfg to %s: %w", ep.Name, err)
	}
	logger.Info("netcfg pushed", "controller", ep.Name, "url", ep.NetcfgURL())
	return nil
}

func (o *ONOS) push(ctx context.Context, ep Endpoint, data []byte) error {
	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.NetcfgURL(), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if ep.User != "" {
		req.SetBasicAuth(ep.User, ep.Password)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, bytes.TrimSpace(body))
	}
	return nil
}

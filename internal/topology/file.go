package topology

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the YAML form of a topology:
//
//	switches:
//	  - name: r1
//	    class: stratum-bmv2
//	    cpu_port: 255
//	hosts:
//	  - name: h1
//	    class: ipv6-host
//	    mac: "00:00:00:00:00:10"
//	    ipv6: 2001:1:1::1/64
//	    ipv6_gw: 2001:1:1::ff
//	links:
//	  - [h1, r1]
type File struct {
	Switches []SwitchSpec `yaml:"switches"`
	Hosts    []HostSpec   `yaml:"hosts"`
	Links    [][]string   `yaml:"links"`
}

type SwitchSpec struct {
	Name         string      `yaml:"name"`
	Class        DeviceClass `yaml:"class"`
	SwitchConfig `yaml:",inline"`
}

type HostSpec struct {
	Name       string      `yaml:"name"`
	Class      DeviceClass `yaml:"class"`
	HostConfig `yaml:",inline"`
}

// LoadFile declares the topology stored at path on b.
func LoadFile(path string, b *Builder) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open topology file: %w", err)
	}
	defer f.Close()

	if err := Decode(f, b); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Decode reads a YAML topology from r and declares it on b. Switches are
// declared first, then hosts, then links, each in document order. Missing
// classes default to stratum-bmv2 for switches and ipv6-host for hosts.
func Decode(r io.Reader, b *Builder) error {
	var doc File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return fmt.Errorf("decode topology: %w", err)
	}

	for _, s := range doc.Switches {
		class := s.Class
		if class == "" {
			class = ClassStratumBmv2
		}
		if _, err := b.AddSwitch(s.Name, class, s.SwitchConfig); err != nil {
			return err
		}
	}

	for _, h := range doc.Hosts {
		class := h.Class
		if class == "" {
			class = ClassIPv6Host
		}
		if _, err := b.AddHost(h.Name, class, h.HostConfig); err != nil {
			return err
		}
	}

	for i, l := range doc.Links {
		if len(l) != 2 {
			return fmt.Errorf("link %d: %w: want 2 endpoints, got %d", i, ErrInvalidConfig, len(l))
		}
		if _, err := b.AddLink(NodeRef(l[0]), NodeRef(l[1])); err != nil {
			return err
		}
	}

	return nil
}

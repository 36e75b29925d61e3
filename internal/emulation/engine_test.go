package emulation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"srv6lab/internal/logging"
	"srv6lab/internal/topology"
)

type fakeDevice struct {
	calls     *[]string
	failOn    string
	partialOn string
	destroyed []string
	started   map[string][]Port
}

func (d *fakeDevice) Create(ctx context.Context, node topology.Node, index int) (Handle, error) {
	*d.calls = append(*d.calls, fmt.Sprintf("create %s %d", node.Name, index))
	if node.Name == d.failOn {
		return Handle{}, errors.New("boom")
	}
	h := Handle{Namespace: "lab-" + node.Name}
	if node.Name == d.partialOn {
		h.NetNSPath = "/var/run/netns/lab-" + node.Name
		return h, errors.New("bring up bridge: no such device")
	}
	if node.IsHost() {
		h.NetNSPath = "/var/run/netns/lab-" + node.Name
	}
	return h, nil
}

func (d *fakeDevice) Start(ctx context.Context, node topology.Node, h Handle, ports []Port) (Handle, error) {
	*d.calls = append(*d.calls, "start "+node.Name)
	if d.started == nil {
		d.started = map[string][]Port{}
	}
	d.started[node.Name] = ports
	h.PID = 100
	return h, nil
}

func (d *fakeDevice) Destroy(ctx context.Context, h Handle) error {
	d.destroyed = append(d.destroyed, h.Node)
	if h.Node == d.failOn {
		return errors.New("busy")
	}
	return nil
}

type fakePlumber struct {
	calls    *[]string
	moved    map[string]string
	failMove string
}

func (p *fakePlumber) CreateVeth(a, b string) error {
	*p.calls = append(*p.calls, "veth "+a+" "+b)
	return nil
}

func (p *fakePlumber) MoveToNamespace(iface, ns string) error {
	if iface == p.failMove {
		return errors.New("namespace gone")
	}
	if p.moved == nil {
		p.moved = map[string]string{}
	}
	p.moved[iface] = ns
	return nil
}

func (p *fakePlumber) SetUp(iface, ns string) error {
	return nil
}

func (p *fakePlumber) DeleteLink(iface, ns string) error {
	*p.calls = append(*p.calls, "del "+iface+" "+ns)
	return nil
}

func buildGraph(t *testing.T) *topology.Graph {
	t.Helper()

	b := topology.NewBuilder(topology.Options{})
	_, err := b.AddSwitch("r1", topology.ClassStratumBmv2, topology.SwitchConfig{})
	require.NoError(t, err)
	_, err = b.AddSwitch("r2", topology.ClassStratumBmv2, topology.SwitchConfig{})
	require.NoError(t, err)
	_, err = b.AddHost("h1", topology.ClassIPv6Host, topology.HostConfig{
		MAC: "00:00:00:00:00:10", IPv6: "2001:1:1::1/64", Gateway: "2001:1:1::ff",
	})
	require.NoError(t, err)
	_, err = b.AddLink("r1", "r2")
	require.NoError(t, err)
	_, err = b.AddLink("h1", "r1")
	require.NoError(t, err)

	g, _, err := b.Build()
	require.NoError(t, err)
	return g
}

type engineFixture struct {
	engine  *LinuxEngine
	device  *fakeDevice
	plumber *fakePlumber
	store   *Store
	dir     string
	calls   []string
}

func newFixture(t *testing.T) *engineFixture {
	t.Helper()

	f := &engineFixture{}
	f.device = &fakeDevice{calls: &f.calls}
	f.plumber = &fakePlumber{calls: &f.calls}

	f.dir = t.TempDir()
	store, err := NewStore(f.dir)
	require.NoError(t, err)
	f.store = store

	devices := NewDeviceRegistry()
	devices.Register(topology.ClassStratumBmv2, f.device)
	devices.Register(topology.ClassIPv6Host, f.device)

	f.engine = NewEngine(EngineConfig{
		Devices: devices,
		Plumber: f.plumber,
		Store:   store,
		Logger:  logging.NewNop(),
	})
	return f
}

func TestInstantiate_CreationOrder(t *testing.T) {
	f := newFixture(t)

	rt, err := f.engine.Instantiate(context.Background(), buildGraph(t), InstantiateOptions{ControllerDisabled: true})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"create r1 0",
		"create r2 1",
		"create h1 0",
		"veth r1-eth1 r2-eth1",
		"veth h1-eth1 r1-eth2",
		"start r1",
		"start r2",
		"start h1",
	}, f.calls)

	require.Len(t, rt.Handles, 5)
	assert.Len(t, rt.Nodes(), 3)
	assert.Len(t, rt.Links(), 2)

	h1, ok := rt.Node("h1")
	require.True(t, ok)
	assert.Equal(t, KindNode, h1.Kind)
	assert.Equal(t, topology.RoleHost, h1.Role)
	assert.Equal(t, 100, h1.PID)
	assert.NotEmpty(t, h1.ID)

	// only the host end leaves the root namespace
	assert.Equal(t, map[string]string{"h1-eth1": h1.NetNSPath}, f.plumber.moved)

	assert.Equal(t, []Port{
		{Number: 1, Iface: "r1-eth1", Peer: "r2"},
		{Number: 2, Iface: "r1-eth2", Peer: "h1"},
	}, f.device.started["r1"])
}

func TestInstantiate_PersistsHandles(t *testing.T) {
	f := newFixture(t)

	rt, err := f.engine.Instantiate(context.Background(), buildGraph(t), InstantiateOptions{ControllerDisabled: true})
	require.NoError(t, err)

	stored, err := f.store.List()
	require.NoError(t, err)
	assert.Equal(t, rt.Handles, stored)
}

func TestInstantiate_RequiresControllerDisabled(t *testing.T) {
	f := newFixture(t)

	rt, err := f.engine.Instantiate(context.Background(), buildGraph(t), InstantiateOptions{})
	assert.ErrorIs(t, err, ErrBuiltinController)
	assert.Nil(t, rt)
	assert.Empty(t, f.calls)
}

func TestInstantiate_NamesFailingNode(t *testing.T) {
	f := newFixture(t)
	f.device.failOn = "r2"

	rt, err := f.engine.Instantiate(context.Background(), buildGraph(t), InstantiateOptions{ControllerDisabled: true})
	require.Error(t, err)

	var ie *InstantiationError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "r2", ie.Node)
	assert.Contains(t, err.Error(), "r2")

	// r1 was already created and stays recorded for cleanup
	require.Len(t, rt.Handles, 1)
	assert.Equal(t, "r1", rt.Handles[0].Node)
}

func TestInstantiate_RecordsPartialNode(t *testing.T) {
	f := newFixture(t)
	f.device.partialOn = "r2"
	ctx := context.Background()

	rt, err := f.engine.Instantiate(ctx, buildGraph(t), InstantiateOptions{ControllerDisabled: true})
	require.Error(t, err)

	var ie *InstantiationError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "r2", ie.Node)

	require.Len(t, rt.Handles, 2)
	r2, ok := rt.Node("r2")
	require.True(t, ok)
	assert.Equal(t, "lab-r2", r2.Namespace)

	stored, err := f.store.FindByID(r2.ID)
	require.NoError(t, err)
	assert.Equal(t, r2, *stored)

	require.NoError(t, f.engine.Cleanup(ctx))
	assert.Equal(t, []string{"r2", "r1"}, f.device.destroyed)
}

func TestInstantiate_FailedMoveKeepsRootNamespace(t *testing.T) {
	f := newFixture(t)
	f.plumber.failMove = "h1-eth1"
	ctx := context.Background()

	rt, err := f.engine.Instantiate(ctx, buildGraph(t), InstantiateOptions{ControllerDisabled: true})
	require.Error(t, err)

	var ie *InstantiationError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "h1:1 <--> r1:2", ie.Link)

	links := rt.Links()
	require.Len(t, links, 2)
	assert.Empty(t, links[1].Link.NetNSA)
	assert.Empty(t, links[1].Link.NetNSB)

	stored, err := f.store.FindByID(links[1].ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Link.NetNSA)

	f.calls = nil
	require.NoError(t, f.engine.Cleanup(ctx))
	assert.Equal(t, []string{"del h1-eth1 ", "del r1-eth1 "}, f.calls)
}

func TestInstantiate_UnknownClass(t *testing.T) {
	f := newFixture(t)

	b := topology.NewBuilder(topology.Options{Isolation: topology.IsolationWarn})
	_, err := b.AddSwitch("s1", topology.ClassLinuxBridge, topology.SwitchConfig{})
	require.NoError(t, err)
	g, _, err := b.Build()
	require.NoError(t, err)

	_, err = f.engine.Instantiate(context.Background(), g, InstantiateOptions{ControllerDisabled: true})
	assert.ErrorIs(t, err, ErrUnknownDevice)

	var ie *InstantiationError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "s1", ie.Node)
}

func TestInstantiate_InterfaceNameTooLong(t *testing.T) {
	f := newFixture(t)

	b := topology.NewBuilder(topology.Options{})
	_, err := b.AddSwitch("a-very-long-name", topology.ClassStratumBmv2, topology.SwitchConfig{})
	require.NoError(t, err)
	_, err = b.AddSwitch("r2", topology.ClassStratumBmv2, topology.SwitchConfig{})
	require.NoError(t, err)
	_, err = b.AddLink("a-very-long-name", "r2")
	require.NoError(t, err)
	g, _, err := b.Build()
	require.NoError(t, err)

	_, err = f.engine.Instantiate(context.Background(), g, InstantiateOptions{ControllerDisabled: true})
	assert.ErrorIs(t, err, ErrInterfaceNameLimit)

	var ie *InstantiationError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "a-very-long-name:1 <--> r2:1", ie.Link)
}

func TestTeardown_ForgetsHandle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rt, err := f.engine.Instantiate(ctx, buildGraph(t), InstantiateOptions{ControllerDisabled: true})
	require.NoError(t, err)

	link := rt.Links()[1]
	require.NoError(t, f.engine.Teardown(ctx, link))
	assert.Contains(t, f.calls, "del h1-eth1 /var/run/netns/lab-h1")

	_, err = f.store.FindByID(link.ID)
	assert.Error(t, err)
}

func TestTeardown_ReportsFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rt, err := f.engine.Instantiate(ctx, buildGraph(t), InstantiateOptions{ControllerDisabled: true})
	require.NoError(t, err)

	f.device.failOn = "r2"
	h, _ := rt.Node("r2")
	err = f.engine.Teardown(ctx, h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "r2")

	// the handle stays stored so a later cleanup can retry
	_, err = f.store.FindByID(h.ID)
	assert.NoError(t, err)
}

func TestCleanup_ReverseOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Instantiate(ctx, buildGraph(t), InstantiateOptions{ControllerDisabled: true})
	require.NoError(t, err)
	f.calls = nil

	require.NoError(t, f.engine.Cleanup(ctx))
	assert.Equal(t, []string{"del h1-eth1 /var/run/netns/lab-h1", "del r1-eth1 "}, f.calls)
	assert.Equal(t, []string{"h1", "r2", "r1"}, f.device.destroyed)

	left, err := f.store.List()
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestCleanup_SkipsUnreadableHandles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Instantiate(ctx, buildGraph(t), InstantiateOptions{ControllerDisabled: true})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "broken.json"), []byte("{"), 0644))

	err = f.engine.Cleanup(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.json")
	assert.Equal(t, []string{"h1", "r2", "r1"}, f.device.destroyed)
}

func TestTeardownOrder(t *testing.T) {
	handles := []Handle{
		{ID: "1", Kind: KindNode},
		{ID: "2", Kind: KindNode},
		{ID: "3", Kind: KindLink},
		{ID: "4", Kind: KindNode},
		{ID: "5", Kind: KindLink},
	}

	var ids []string
	for _, h := range TeardownOrder(handles) {
		ids = append(ids, h.ID)
	}
	assert.Equal(t, []string{"5", "3", "4", "2", "1"}, ids)
}

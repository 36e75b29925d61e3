package emulation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RoundTrip(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	h := Handle{
		ID:        xid.New().String(),
		Kind:      KindLink,
		Link:      &LinkEnds{A: "h1", B: "r1", IfaceA: "h1-eth1", IfaceB: "r1-eth3", NetNSA: "/var/run/netns/h1"},
		CreatedAt: "2026-01-02T15:04:05Z",
	}
	require.NoError(t, s.Save(h))

	got, err := s.FindByID(h.ID)
	require.NoError(t, err)
	assert.Equal(t, h, *got)
}

func TestStore_ListCreationOrder(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	// IDs sort opposite to creation; r2 and h1 share a timestamp.
	handles := []Handle{
		{ID: "c", Kind: KindNode, Node: "r1", Seq: 0, CreatedAt: "2026-01-02T15:04:05.000000001Z"},
		{ID: "b", Kind: KindNode, Node: "r2", Seq: 1, CreatedAt: "2026-01-02T15:04:05.000000002Z"},
		{ID: "a", Kind: KindNode, Node: "h1", Seq: 2, CreatedAt: "2026-01-02T15:04:05.000000002Z"},
	}
	for _, h := range []Handle{handles[2], handles[0], handles[1]} {
		require.NoError(t, s.Save(h))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	got, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, handles, got)
}

func TestStore_ListReportsUnreadable(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	h := Handle{ID: xid.New().String(), Kind: KindNode, Node: "r1"}
	require.NoError(t, s.Save(h))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0644))

	got, err := s.List()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.json")
	assert.Equal(t, []Handle{h}, got)
}

func TestStore_Delete(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	h := Handle{ID: xid.New().String(), Kind: KindNode, Node: "r1"}
	require.NoError(t, s.Save(h))
	require.NoError(t, s.Delete(h.ID))

	_, err = s.FindByID(h.ID)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, s.Delete(h.ID), "deleting twice is not an error")
}

func TestStore_SaveRequiresID(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, s.Save(Handle{Kind: KindNode}))
}

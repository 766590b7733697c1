package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"elasticgrid/kernel"
)

func TestJSONSnapshotStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewJSONSnapshotStore(path)

	snap := kernel.NewDefaultSnapshot()
	snap.Settings.Buy.LimitPrice = 123.45
	snap.Runtime.Buy.SessionID = "abc12345"

	require.NoError(t, s.Save(snap))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, snap.Settings.Buy.LimitPrice, loaded.Settings.Buy.LimitPrice)
	require.Equal(t, snap.Runtime.Buy.SessionID, loaded.Runtime.Buy.SessionID)
}

func TestJSONSnapshotStoreLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	s := NewJSONSnapshotStore(path)

	snap, err := s.Load()
	require.NoError(t, err)
	require.Nil(t, snap.Runtime.Buy.ExecMap)
}

func TestJSONSnapshotStoreLoadCorruptFileFallsBackToDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not valid json"), 0o644))
	s := NewJSONSnapshotStore(path)

	snap, err := s.Load()
	require.NoError(t, err, "a corrupt snapshot must not abort engine construction")
	require.Nil(t, snap.Runtime.Buy.ExecMap)
}

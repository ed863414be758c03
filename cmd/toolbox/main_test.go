package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	backfilled int
	pruned     int
	dryRun     *bool
	dump       map[string][]map[string]interface{}
	err        error
}

func (f *fakeStore) BackfillTokenIndex(context.Context) (int, error) {
	return f.backfilled, f.err
}

func (f *fakeStore) PruneDanglingRepositoryRefs(_ context.Context, dryRun bool) (int, error) {
	f.dryRun = &dryRun
	return f.pruned, f.err
}

func (f *fakeStore) Dump(context.Context) (map[string][]map[string]interface{}, error) {
	return f.dump, f.err
}

func runToolbox(t *testing.T, s *fakeStore, args ...string) (string, error) {
	t.Helper()

	closed := false
	cmd := newRootCmd(func(context.Context) (store, func(), error) {
		return s, func() { closed = true }, nil
	})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	assert.True(t, closed, "store should be closed")
	return out.String(), err
}

func TestBackfillCommand(t *testing.T) {
	out, err := runToolbox(t, &fakeStore{backfilled: 3}, "backfill-token-index")

	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 3 token index entries")
}

func TestPruneCommand(t *testing.T) {
	t.Run("dry run", func(t *testing.T) {
		s := &fakeStore{pruned: 2}
		out, err := runToolbox(t, s, "prune-dangling-repositories", "--dry-run")

		require.NoError(t, err)
		require.NotNil(t, s.dryRun)
		assert.True(t, *s.dryRun)
		assert.Contains(t, out, "2 sessions reference deleted repositories")
	})

	t.Run("apply", func(t *testing.T) {
		s := &fakeStore{pruned: 2}
		out, err := runToolbox(t, s, "prune-dangling-repositories")

		require.NoError(t, err)
		assert.False(t, *s.dryRun)
		assert.Contains(t, out, "Pruned 2 sessions")
	})

	t.Run("store failure", func(t *testing.T) {
		_, err := runToolbox(t, &fakeStore{err: errors.New("deadline exceeded")}, "prune-dangling-repositories")
		assert.ErrorContains(t, err, "deadline exceeded")
	})
}

func TestDumpCommand(t *testing.T) {
	dump := map[string][]map[string]interface{}{
		"users": {{"_id": "uid-1", "name": "Grace"}},
	}

	t.Run("stdout", func(t *testing.T) {
		out, err := runToolbox(t, &fakeStore{dump: dump}, "dump-firestore")

		require.NoError(t, err)
		var decoded map[string][]map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(out), &decoded))
		assert.Equal(t, "uid-1", decoded["users"][0]["_id"])
	})

	t.Run("pretty to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "dump.json")

		_, err := runToolbox(t, &fakeStore{dump: dump}, "dump-firestore", "--output", path, "--pretty")

		require.NoError(t, err)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "\n  \"users\": [")
	})
}

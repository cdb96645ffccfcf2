//go:build !js

package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBolt(t *testing.T) {
	store, err := NewBolt(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer store.Close()

	testStorage(t, store)
}

package worker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteArtifactNamingAndSequence(t *testing.T) {
	dir := t.TempDir()
	w := New("W123", "tcp://127.0.0.1:6661", dir, 0)

	first, err := w.writeArtifact([]byte("pdf-bytes-1"))
	require.NoError(t, err)
	second, err := w.writeArtifact([]byte("pdf-bytes-2"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "monotonic sequence must disambiguate same-millisecond writes")
	assert.Contains(t, first, "req-W123-")
	assert.Contains(t, first, ".pdf")

	contents, err := os.ReadFile(filepath.Join(dir, first))
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes-1", string(contents))
}

func TestStopIsObservedByStoppedFlag(t *testing.T) {
	w := New("W1", "tcp://127.0.0.1:6661", t.TempDir(), 0)
	assert.False(t, w.stopped())

	w.Stop()

	assert.True(t, w.stopped())
}

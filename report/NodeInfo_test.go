package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alex_bench/introspect"
	"alex_bench/shared"
)

func sampleLeaves() []introspect.NodeInfo {
	return []introspect.NodeInfo{
		{Slope: 0.5, Intercept: -2, MinKey: 4, MaxKey: 100, NumKeys: 10},
		{Slope: 1.0 / 3.0, Intercept: 1e-9, MinKey: 101, MaxKey: shared.MaxKey, NumKeys: 3},
	}
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleLeaves(), 6))
	assert.Equal(t, "0.5,-2,4,100\n0.333333,1e-09,101,18446744073709551615\n", buf.String())
}

func TestEncodeShortestPrecision(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleLeaves()[1:], -1))
	assert.Equal(t, "0.3333333333333333,1e-09,101,18446744073709551615\n", buf.String())
	assert.Equal(t, "0.33", FormatFloat(1.0/3.0, 2))
}

func TestEncodeEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, nil, 6))
	assert.Empty(t, buf.String())
}

func TestWriteNodeInfoTruncates(t *testing.T) {
	path := InitialPath(t.TempDir())
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), 4096), 0o644))

	require.NoError(t, WriteNodeInfo(path, sampleLeaves()[:1], 6))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0.5,-2,4,100\n", string(data))
}

func TestWriteNodeInfoIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	first := UserPath(dir, 2)
	second := UserPath(dir, 3)
	require.NoError(t, WriteNodeInfo(first, sampleLeaves(), 6))
	require.NoError(t, WriteNodeInfo(second, sampleLeaves(), 6))

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPaths(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "node_info.txt"), InitialPath("out"))
	assert.Equal(t, filepath.Join("out", "node_info_after_user_7.txt"), UserPath("out", 7))
}

func TestWriteNodeInfoMissingDirectory(t *testing.T) {
	err := WriteNodeInfo(filepath.Join(t.TempDir(), "missing", "node_info.txt"), sampleLeaves(), 6)
	assert.Error(t, err)
}

package dataset

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alex_bench/config"
	"alex_bench/shared"
)

func writeUser(t *testing.T, dir string, userID int, data []byte) {
	t.Helper()
	name := filepath.Join(dir, fmt.Sprintf("user_%d.txt", userID))
	require.NoError(t, os.WriteFile(name, data, 0o644))
}

func binaryKeys(keys ...uint64) []byte {
	data := make([]byte, 0, 8*len(keys))
	for _, key := range keys {
		data = binary.LittleEndian.AppendUint64(data, key)
	}
	return data
}

func TestLoadText(t *testing.T) {
	dir := t.TempDir()
	writeUser(t, dir, 1, []byte("5\n 3 \n18446744073709551615\n3\n"))

	loader := &KeyLoader{DataDir: dir, SourcePattern: "user_%d.txt"}
	ds, err := loader.Load(config.EncodingText, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, ds.UserID)
	assert.Equal(t, []shared.KeyType{5, 3, shared.MaxKey, 3}, ds.Keys)
}

func TestLoadTextIgnoresUnterminatedLine(t *testing.T) {
	dir := t.TempDir()
	writeUser(t, dir, 2, []byte("1\n2\n3"))

	loader := &KeyLoader{DataDir: dir, SourcePattern: "user_%d.txt"}
	ds, err := loader.Load(config.EncodingText, 2)
	require.NoError(t, err)
	assert.Equal(t, []shared.KeyType{1, 2}, ds.Keys)
	assert.Equal(t, 2, CountRecords(config.EncodingText, []byte("1\n2\n3")))
}

func TestLoadTextMalformed(t *testing.T) {
	dir := t.TempDir()
	writeUser(t, dir, 3, []byte("1\nabc\n"))

	loader := &KeyLoader{DataDir: dir, SourcePattern: "user_%d.txt"}
	_, err := loader.Load(config.EncodingText, 3)
	assert.ErrorIs(t, err, shared.MalformedDatasetError)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLoadBinary(t *testing.T) {
	dir := t.TempDir()
	writeUser(t, dir, 4, binaryKeys(9, 1, 1<<63))

	loader := &KeyLoader{DataDir: dir, SourcePattern: "user_%d.txt"}
	ds, err := loader.Load(config.EncodingBinary, 4)
	require.NoError(t, err)
	assert.Equal(t, []shared.KeyType{9, 1, 1 << 63}, ds.Keys)
}

func TestLoadBinaryPartialRecord(t *testing.T) {
	dir := t.TempDir()
	writeUser(t, dir, 5, append(binaryKeys(9), 1, 2, 3))

	loader := &KeyLoader{DataDir: dir, SourcePattern: "user_%d.txt"}
	_, err := loader.Load(config.EncodingBinary, 5)
	assert.ErrorIs(t, err, shared.MalformedDatasetError)
}

func TestLoadMissingOrEmpty(t *testing.T) {
	dir := t.TempDir()
	writeUser(t, dir, 6, nil)
	loader := &KeyLoader{DataDir: dir, SourcePattern: "user_%d.txt"}

	_, err := loader.Load(config.EncodingText, 6)
	assert.ErrorIs(t, err, shared.DatasetMissingError)

	_, err = loader.Load(config.EncodingText, 7)
	assert.ErrorIs(t, err, shared.DatasetMissingError)
}

func TestLoadUnsupportedEncoding(t *testing.T) {
	loader := &KeyLoader{DataDir: t.TempDir(), SourcePattern: "user_%d.txt"}
	ds, err := loader.Load("csv", 1)
	assert.ErrorIs(t, err, shared.ConfigError)
	assert.Nil(t, ds.Keys)
}

func TestLoadIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeUser(t, dir, 8, []byte("4\n2\n"))
	loader := &KeyLoader{DataDir: dir, SourcePattern: "user_%d.txt"}

	first, err := loader.Load(config.EncodingText, 8)
	require.NoError(t, err)
	second, err := loader.Load(config.EncodingText, 8)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, filepath.Join(dir, "user_8.txt"), loader.SourcePath(8))
}

func TestBuildValues(t *testing.T) {
	keys := []shared.KeyType{7, 3, 7}
	pairs := BuildValues(keys, 4)
	require.Len(t, pairs, 3)
	for i, pair := range pairs {
		assert.Equal(t, keys[i], pair.Key)
		assert.Equal(t, shared.PayloadType(4), pair.Payload)
	}
	assert.Empty(t, BuildValues(nil, 1))
}

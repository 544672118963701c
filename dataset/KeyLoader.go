package dataset

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"alex_bench/config"
	"alex_bench/shared"
)

const binaryRecordSize = 8

// Dataset is one user's keys in source order.
type Dataset struct {
	UserID int
	Keys   []shared.KeyType
}

// KeyLoader reads per-user key files from DataDir, named by SourcePattern.
type KeyLoader struct {
	DataDir       string
	SourcePattern string
}

func NewKeyLoader(cfg *config.Config) *KeyLoader {
	return &KeyLoader{DataDir: cfg.DataDir, SourcePattern: cfg.SourcePattern}
}

// SourcePath is the one location the keys of userID are read from.
func (self *KeyLoader) SourcePath(userID int) string {
	return filepath.Join(self.DataDir, fmt.Sprintf(self.SourcePattern, userID))
}

// Load reads all keys of userID. encoding is config.EncodingBinary (little endian
// uint64 records) or config.EncodingText (one decimal key per line).
func (self *KeyLoader) Load(encoding string, userID int) (Dataset, error) {
	if encoding != config.EncodingBinary && encoding != config.EncodingText {
		return Dataset{}, fmt.Errorf("%w: keys file type must be either 'binary' or 'text', got %q", shared.ConfigError, encoding)
	}

	path := self.SourcePath(userID)
	data, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("%w: user %d: %v", shared.DatasetMissingError, userID, err)
	}

	var keys []shared.KeyType
	if encoding == config.EncodingBinary {
		keys, err = decodeBinary(data)
	} else {
		keys, err = decodeText(data)
	}
	if err != nil {
		return Dataset{}, fmt.Errorf("%s: %w", path, err)
	}
	if len(keys) == 0 {
		return Dataset{}, fmt.Errorf("%w: user %d: %s holds no records", shared.DatasetMissingError, userID, path)
	}
	return Dataset{UserID: userID, Keys: keys}, nil
}

// CountRecords returns how many records data holds in the given encoding without
// decoding them.
func CountRecords(encoding string, data []byte) int {
	if encoding == config.EncodingBinary {
		return len(data) / binaryRecordSize
	}
	return bytes.Count(data, []byte{'\n'})
}

func decodeBinary(data []byte) ([]shared.KeyType, error) {
	if len(data)%binaryRecordSize != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after the last record", shared.MalformedDatasetError, len(data)%binaryRecordSize)
	}
	keys := make([]shared.KeyType, CountRecords(config.EncodingBinary, data))
	for i := range keys {
		keys[i] = binary.LittleEndian.Uint64(data[i*binaryRecordSize:])
	}
	return keys, nil
}

// decodeText parses the newline terminated lines of data. A last line without a
// newline is not a record.
func decodeText(data []byte) ([]shared.KeyType, error) {
	keys := make([]shared.KeyType, 0, CountRecords(config.EncodingText, data))
	line := 0
	for {
		end := bytes.IndexByte(data, '\n')
		if end < 0 {
			break
		}
		line++
		record := bytes.TrimSpace(data[:end])
		data = data[end+1:]

		key, err := strconv.ParseUint(string(record), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %q is not a key", shared.MalformedDatasetError, line, record)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

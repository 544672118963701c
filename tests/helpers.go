package tests

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"alex_bench/config"
	"alex_bench/index"
	"alex_bench/shared"
)

// GenerateRandomKeys returns n distinct keys in [0, 2n), the same for a given seed.
func GenerateRandomKeys(n int, seed int64) []shared.KeyType {
	rng := rand.New(rand.NewSource(seed))
	keys := make([]shared.KeyType, n)
	existingKeys := map[shared.KeyType]bool{}
	for i := 0; i < n; i++ {
		for {
			key := shared.KeyType(rng.Intn(n * 2))
			if _, ok := existingKeys[key]; !ok {
				keys[i] = key
				existingKeys[key] = true
				break
			}
		}
	}
	return keys
}

// WriteUserKeys stores keys as the key file of userID under dir, named the way
// the default source pattern expects.
func WriteUserKeys(dir string, userID int, encoding string, keys []shared.KeyType) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("user_%d.txt", userID))
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, key := range keys {
		if encoding == config.EncodingBinary {
			err = binary.Write(writer, binary.LittleEndian, key)
		} else {
			_, err = fmt.Fprintf(writer, "%d\n", key)
		}
		if err != nil {
			return "", err
		}
	}
	return path, writer.Flush()
}

// SequentialInserts inserts every key into an empty index, using its position as
// the payload.
func SequentialInserts(keys []shared.KeyType, opts ...index.Option) (*index.Index, error) {
	alex := index.NewIndex(opts...)
	for i, key := range keys {
		if err := alex.Insert(key, shared.PayloadType(i)); err != nil {
			return alex, err
		}
	}
	return alex, nil
}

// SequentialLookups checks that every key of a SequentialInserts index holds its
// position as payload.
func SequentialLookups(alex *index.Index, keys []shared.KeyType) error {
	for i, key := range keys {
		payload, err := alex.Find(key)
		if err != nil {
			return fmt.Errorf("key %d: %w", key, err)
		}
		if shared.PayloadType(i) != *payload {
			return fmt.Errorf("retrieval error for key %d expected %d got %v", key, i, *payload)
		}
	}
	return nil
}

package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"alex_bench/introspect"
)

const (
	InitialNodeInfoFile = "node_info.txt"
	userNodeInfoPattern = "node_info_after_user_%d.txt"
)

func InitialPath(outDir string) string {
	return filepath.Join(outDir, InitialNodeInfoFile)
}

func UserPath(outDir string, userID int) string {
	return filepath.Join(outDir, fmt.Sprintf(userNodeInfoPattern, userID))
}

// FormatFloat renders v with precision significant digits, or the shortest exact
// form when precision is -1.
func FormatFloat(v float64, precision int) string {
	return strconv.FormatFloat(v, 'g', precision, 64)
}

// Encode writes one "slope,intercept,min_key,max_key" line per leaf.
func Encode(w io.Writer, leaves []introspect.NodeInfo, precision int) error {
	buffered := bufio.NewWriter(w)
	line := make([]byte, 0, 96)
	for _, leaf := range leaves {
		line = line[:0]
		line = strconv.AppendFloat(line, leaf.Slope, 'g', precision, 64)
		line = append(line, ',')
		line = strconv.AppendFloat(line, leaf.Intercept, 'g', precision, 64)
		line = append(line, ',')
		line = strconv.AppendUint(line, leaf.MinKey, 10)
		line = append(line, ',')
		line = strconv.AppendUint(line, leaf.MaxKey, 10)
		line = append(line, '\n')
		if _, err := buffered.Write(line); err != nil {
			return err
		}
	}
	return buffered.Flush()
}

// WriteNodeInfo replaces the file at path with the leaves of a snapshot.
func WriteNodeInfo(path string, leaves []introspect.NodeInfo, precision int) (err error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open node info: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
	}()
	if err := Encode(file, leaves, precision); err != nil {
		return fmt.Errorf("write node info %s: %w", path, err)
	}
	return nil
}

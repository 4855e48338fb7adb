package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"
)

var batchDirPattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})_(\d+)$`)

// CreateBatchDir allocates the next "YYYY-MM-DD_N" directory under
// resultsDir. N restarts at 1 each day and increments per run, so every
// batch gets its own directory and old batches are never touched.
func CreateBatchDir(resultsDir string, now time.Time) (string, error) {
	if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		return "", fmt.Errorf("create results dir: %w", err)
	}
	day := now.Format("2006-01-02")

	entries, err := os.ReadDir(resultsDir)
	if err != nil {
		return "", fmt.Errorf("scan results dir: %w", err)
	}
	next := 1
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m := batchDirPattern.FindStringSubmatch(e.Name())
		if m == nil || m[1] != day {
			continue
		}
		if n, err := strconv.Atoi(m[2]); err == nil && n >= next {
			next = n + 1
		}
	}

	dir := filepath.Join(resultsDir, fmt.Sprintf("%s_%d", day, next))
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("create batch dir: %w", err)
	}
	return dir, nil
}

// ListBatchDirs returns the batch directory names under resultsDir, oldest
// first. Lexical order is not enough: "_10" sorts before "_2".
func ListBatchDirs(resultsDir string) ([]string, error) {
	entries, err := os.ReadDir(resultsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan results dir: %w", err)
	}
	type key struct {
		name string
		day  string
		n    int
	}
	var keys []key
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m := batchDirPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		keys = append(keys, key{name: e.Name(), day: m[1], n: n})
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].day != keys[j].day {
			return keys[i].day < keys[j].day
		}
		return keys[i].n < keys[j].n
	})
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, k.name)
	}
	return names, nil
}

// LatestBatchDir returns the path of the newest batch directory.
func LatestBatchDir(resultsDir string) (string, error) {
	dirs, err := ListBatchDirs(resultsDir)
	if err != nil {
		return "", err
	}
	if len(dirs) == 0 {
		return "", fmt.Errorf("no batch directories under %s", resultsDir)
	}
	return filepath.Join(resultsDir, dirs[len(dirs)-1]), nil
}

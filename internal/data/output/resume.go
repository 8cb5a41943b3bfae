package output

import (
	"bufio"
	"os"

	"github.com/bytedance/sonic"

	"github.com/penwyp/waybacker/internal/core/model"
	"github.com/penwyp/waybacker/internal/util"
)

// LoadResumeIndex reads an existing result file and returns the set of
// requested timestamps already satisfied, keyed by the exact formatted
// requested timestamp. A missing file means a fresh run. Unparseable lines
// are skipped, not fatal: a torn trailing line from a crashed run just gets
// refetched.
func LoadResumeIndex(path string) (map[string]struct{}, error) {
	index := make(map[string]struct{})

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return index, nil
		}
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	lineCount := 0
	for scanner.Scan() {
		lineCount++
		var result model.SnapshotResult
		if err := sonic.Unmarshal(scanner.Bytes(), &result); err != nil {
			util.LogDebugf("Skip invalid JSON line %s:%d - %v", path, lineCount, err)
			continue
		}
		if result.RequestedTimestamp == "" {
			continue
		}
		index[result.RequestedTimestamp] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return index, nil
}

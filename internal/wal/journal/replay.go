package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/arc-self/svcmesh/internal/contract"
)

// Replay scans dir oldest-first, reconstructing every journaled WalLine.
// Malformed lines are skipped (never fatal to boot) since they cannot be
// replayed regardless of writer state.
func Replay(dir string) ([]contract.WalLine, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("journal: replay readdir: %w", err)
	}

	type segment struct {
		path  string
		epoch int64
	}
	var segments []segment
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "wal-") || !strings.HasSuffix(e.Name(), ".ldjson") {
			continue
		}
		epochStr := strings.TrimSuffix(strings.TrimPrefix(e.Name(), "wal-"), ".ldjson")
		epoch, err := strconv.ParseInt(epochStr, 10, 64)
		if err != nil {
			continue
		}
		segments = append(segments, segment{path: filepath.Join(dir, e.Name()), epoch: epoch})
	}
	sort.Slice(segments, func(i, k int) bool { return segments[i].epoch < segments[k].epoch })

	var lines []contract.WalLine
	for _, seg := range segments {
		f, err := os.Open(seg.path)
		if err != nil {
			return nil, fmt.Errorf("journal: replay open %s: %w", seg.path, err)
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			raw := scanner.Bytes()
			if len(strings.TrimSpace(string(raw))) == 0 {
				continue
			}
			var line contract.WalLine
			if err := json.Unmarshal(raw, &line); err != nil {
				continue // skip malformed line, journal position still advances
			}
			lines = append(lines, line)
		}
		f.Close()
	}
	return lines, nil
}

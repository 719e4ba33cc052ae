package writer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/prodwatch/veriscan/internal/models"
)

// ReadRecords loads every parseable record from a JSONL artifact. A
// truncated trailing line (unclean shutdown mid-append) is skipped rather
// than failing the read: partial artifacts are valid downstream input.
func ReadRecords(path string) ([]*models.ComparisonRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open result file: %w", err)
	}
	defer file.Close()

	var records []*models.ComparisonRecord
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec models.ComparisonRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		records = append(records, &rec)
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("scan result file: %w", err)
	}
	return records, nil
}

package telemetry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
)

// LoadResult holds the records decoded from one input source plus a count
// of lines that could not be decoded. A partially unreadable batch is not
// an error; the dashboard should render whatever telemetry is usable.
type LoadResult struct {
	Records []CallRecord
	Skipped int
}

// LoadFile reads call records from the given path, or from stdin when the
// path is "-". Both a single JSON array and newline-delimited JSON objects
// are accepted.
func LoadFile(path string) (*LoadResult, error) {
	if path == "-" {
		return Load(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open telemetry input: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes call records from r. Records missing a call_id are assigned
// a generated one so downstream identification (top offender, drill-down)
// always has a key to work with.
func Load(r io.Reader) (*LoadResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read telemetry input: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return &LoadResult{}, nil
	}

	var result LoadResult
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &result.Records); err != nil {
			return nil, fmt.Errorf("decode telemetry array: %w", err)
		}
	} else {
		scanner := bufio.NewScanner(bytes.NewReader(trimmed))
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var rec CallRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				result.Skipped++
				continue
			}
			result.Records = append(result.Records, rec)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("scan telemetry input: %w", err)
		}
	}

	for i := range result.Records {
		if result.Records[i].CallID == "" {
			result.Records[i].CallID = uuid.NewString()
		}
	}

	return &result, nil
}

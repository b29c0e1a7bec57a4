package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/ibmetrics/pkg/dataset"
)

// Timestamp layouts seen in composer dumps, most common first.
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

var rowCountRe = regexp.MustCompile(`^\((?P<rows>[0-9]+) rows?\)$`)

// ReadDump parses a psql-formatted dump: a header row of column names, a
// separator row of dashes, pipe-delimited data rows, and a "(N rows)"
// footer. A missing or mismatched footer count is logged as a warning, not
// an error. List-valued columns are JSON encoded in the dump.
func ReadDump(r io.Reader, log *logrus.Logger) (dataset.Dataset, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	if !scanner.Scan() {
		return nil, fmt.Errorf("reading dump header: %w", io.ErrUnexpectedEOF)
	}
	columns := splitRow(scanner.Text())
	colIdx := make(map[string]int, len(columns))
	for i, name := range columns {
		colIdx[name] = i
	}

	// separator row of dashes
	if !scanner.Scan() {
		return nil, fmt.Errorf("reading dump separator: %w", io.ErrUnexpectedEOF)
	}

	var ds dataset.Dataset
	rowCount := -1
	for scanner.Scan() {
		line := scanner.Text()
		if m := rowCountRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			fmt.Sscanf(m[1], "%d", &rowCount)
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := splitRow(line)
		get := func(name string) string {
			idx, ok := colIdx[name]
			if !ok || idx >= len(fields) {
				return ""
			}
			return fields[idx]
		}

		rec := dataset.BuildRecord{
			OrgID:               get("org_id"),
			AccountNumber:       get("account_number"),
			JobID:               get("job_id"),
			ImageType:           get("image_type"),
			CreatedAt:           parseTime(get("created_at")),
			Packages:            parseList(get("packages")),
			Filesystem:          parseList(get("filesystem")),
			PayloadRepositories: parseList(get("payload_repositories")),
		}
		ds = append(ds, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading dump: %w", err)
	}

	if rowCount == -1 {
		log.Warn("dump footer with row count not found")
	} else if rowCount != len(ds) {
		log.WithFields(logrus.Fields{
			"read":   len(ds),
			"footer": rowCount,
		}).Warn("record count does not match dump footer")
	}
	return ds, nil
}

// ReadDumpFile parses a dump from a file on disk.
func ReadDumpFile(path string, log *logrus.Logger) (dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dump %s: %w", path, err)
	}
	defer f.Close()
	return ReadDump(f, log)
}

func splitRow(line string) []string {
	parts := strings.Split(line, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// parseTime tries the known layouts and returns the zero time when none
// fit; such records are excluded from window computations downstream.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// parseList decodes a JSON-encoded string list; empty or malformed values
// yield an empty list.
func parseList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

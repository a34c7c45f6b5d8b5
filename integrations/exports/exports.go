package exports

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"playmint/native/bank"
)

// Format names an export encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSONL   Format = "jsonl"
	FormatParquet Format = "parquet"
)

// ParseFormat accepts a case-insensitive format name.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatCSV, FormatJSONL, FormatParquet:
		return f, nil
	case "":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("exports: unsupported format %q", raw)
	}
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSONL:
		return "application/x-ndjson"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	default:
		return "text/csv"
	}
}

// Mints encodes entries in format f and returns the payload with its SHA-256
// checksum.
func Mints(f Format, entries []bank.Entry) ([]byte, string, error) {
	switch f {
	case FormatCSV:
		return MintsCSV(entries)
	case FormatJSONL:
		return MintsJSONL(entries)
	case FormatParquet:
		return MintsParquet(entries)
	default:
		return nil, "", fmt.Errorf("exports: unsupported format %q", f)
	}
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

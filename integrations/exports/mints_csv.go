package exports

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"playmint/native/bank"
)

// MintsCSV builds a CSV export of journaled mints.
func MintsCSV(entries []bank.Entry) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	header := []string{"id", "destination", "amount", "created_at"}
	if err := writer.Write(header); err != nil {
		return nil, "", err
	}
	for _, entry := range entries {
		record := []string{
			entry.ID,
			entry.Destination.String(),
			strconv.FormatUint(entry.Amount, 10),
			formatTime(entry.CreatedAt),
		}
		if err := writer.Write(record); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	data := buffer.Bytes()
	return data, checksum(data), nil
}

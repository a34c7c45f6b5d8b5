package exports

import (
	"bytes"
	"encoding/json"
	"strconv"

	"playmint/native/bank"
)

// MintsJSONL builds a JSON Lines export of journaled mints. Amounts are
// strings so consumers never lose precision.
func MintsJSONL(entries []bank.Entry) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	for _, entry := range entries {
		payload := map[string]interface{}{
			"id":          entry.ID,
			"destination": entry.Destination.String(),
			"amount":      strconv.FormatUint(entry.Amount, 10),
			"created_at":  formatTime(entry.CreatedAt),
		}
		if err := encoder.Encode(payload); err != nil {
			return nil, "", err
		}
	}
	data := buffer.Bytes()
	return data, checksum(data), nil
}

package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"

	"github.com/dan-merlea/sc-krogan-public/integrations/history"
)

// SettlementsCSV builds a CSV export with one row per executed transfer and
// returns the serialised data alongside a SHA-256 checksum of the payload.
func SettlementsCSV(settlements []history.Settlement) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	if err := writer.Write(header); err != nil {
		return nil, "", err
	}
	for _, row := range flatten(settlements) {
		if err := writer.Write(row.record()); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	data := buffer.Bytes()
	checksum := sha256.Sum256(data)
	return data, hex.EncodeToString(checksum[:]), nil
}

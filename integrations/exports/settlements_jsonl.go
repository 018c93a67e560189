package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/dan-merlea/sc-krogan-public/integrations/history"
)

// SettlementsJSONL builds a JSON Lines export, one object per settlement with
// its transfers nested, and returns the payload alongside a checksum.
func SettlementsJSONL(settlements []history.Settlement) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	for _, settlement := range settlements {
		transfers := make([]map[string]interface{}, 0, len(settlement.Transfers))
		for _, transfer := range settlement.Transfers {
			transfers = append(transfers, map[string]interface{}{
				"position": transfer.Position,
				"kind":     transfer.Kind,
				"asset":    transfer.Asset,
				"nonce":    transfer.Nonce,
				"amount":   transfer.Amount,
			})
		}
		payload := map[string]interface{}{
			"settlement":    settlement.Hash,
			"claimant":      settlement.Claimant,
			"entries":       settlement.EntryCount,
			"native":        settlement.NativeAmount,
			"transfer_root": settlement.TransferRoot,
			"settled_at":    settlement.SettledAt.UTC().Format(time.RFC3339Nano),
			"transfers":     transfers,
		}
		if err := encoder.Encode(payload); err != nil {
			return nil, "", err
		}
	}
	data := buffer.Bytes()
	checksum := sha256.Sum256(data)
	return data, hex.EncodeToString(checksum[:]), nil
}

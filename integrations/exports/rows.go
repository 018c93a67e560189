package exports

import (
	"strconv"
	"time"

	"github.com/dan-merlea/sc-krogan-public/integrations/history"
)

// transferRow flattens one settlement transfer for tabular exports.
type transferRow struct {
	Settlement string
	Claimant   string
	SettledAt  time.Time
	Position   int
	Kind       string
	Asset      string
	Nonce      uint64
	Amount     string
}

func flatten(settlements []history.Settlement) []transferRow {
	rows := make([]transferRow, 0, len(settlements))
	for _, settlement := range settlements {
		for _, transfer := range settlement.Transfers {
			amount := transfer.Amount
			if amount == "" {
				amount = "0"
			}
			rows = append(rows, transferRow{
				Settlement: settlement.Hash,
				Claimant:   settlement.Claimant,
				SettledAt:  settlement.SettledAt.UTC(),
				Position:   transfer.Position,
				Kind:       transfer.Kind,
				Asset:      transfer.Asset,
				Nonce:      transfer.Nonce,
				Amount:     amount,
			})
		}
	}
	return rows
}

func (r transferRow) record() []string {
	return []string{
		r.Settlement,
		r.Claimant,
		r.SettledAt.Format(time.RFC3339Nano),
		strconv.Itoa(r.Position),
		r.Kind,
		r.Asset,
		strconv.FormatUint(r.Nonce, 10),
		r.Amount,
	}
}

var header = []string{"settlement", "claimant", "settled_at", "position", "kind", "asset", "nonce", "amount"}

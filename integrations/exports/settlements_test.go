package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dan-merlea/sc-krogan-public/integrations/history"
)

func sampleSettlements() []history.Settlement {
	settled := time.Unix(1700, 0).UTC()
	return []history.Settlement{
		{
			Hash:         "0x01",
			Claimant:     "nhb1claimant",
			EntryCount:   3,
			NativeAmount: "150",
			SettledAt:    settled,
			Transfers: []history.Transfer{
				{Position: 0, Kind: history.KindNative, Asset: "NHB", Amount: "150"},
				{Position: 1, Kind: history.KindFungible, Asset: "ZNHB", Amount: "40"},
				{Position: 2, Kind: history.KindIndexed, Asset: "BADGE", Nonce: 7, Amount: "1"},
			},
		},
	}
}

func TestSettlementsCSV(t *testing.T) {
	data, checksum, err := SettlementsCSV(sampleSettlements())
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	sum := sha256.Sum256(data)
	if checksum != hex.EncodeToString(sum[:]) {
		t.Fatalf("checksum mismatch")
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header and three rows, got %d", len(lines))
	}
	if lines[0] != "settlement,claimant,settled_at,position,kind,asset,nonce,amount" {
		t.Fatalf("unexpected header: %s", lines[0])
	}
	if lines[3] != "0x01,nhb1claimant,1970-01-01T00:28:20Z,2,indexed,BADGE,7,1" {
		t.Fatalf("unexpected indexed row: %s", lines[3])
	}
}

func TestSettlementsJSONL(t *testing.T) {
	data, checksum, err := SettlementsJSONL(sampleSettlements())
	if err != nil {
		t.Fatalf("jsonl: %v", err)
	}
	if len(data) == 0 || checksum == "" {
		t.Fatalf("expected data and checksum")
	}
	var decoded struct {
		Settlement string `json:"settlement"`
		Native     string `json:"native"`
		Transfers  []struct {
			Kind  string `json:"kind"`
			Nonce uint64 `json:"nonce"`
		} `json:"transfers"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(data), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Settlement != "0x01" || decoded.Native != "150" || len(decoded.Transfers) != 3 {
		t.Fatalf("unexpected payload: %s", data)
	}
	if decoded.Transfers[2].Kind != history.KindIndexed || decoded.Transfers[2].Nonce != 7 {
		t.Fatalf("unexpected indexed transfer: %+v", decoded.Transfers[2])
	}
}

func TestSettlementsParquet(t *testing.T) {
	data, checksum, err := SettlementsParquet(sampleSettlements())
	if err != nil {
		t.Fatalf("parquet: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("PAR1")) || !bytes.HasSuffix(data, []byte("PAR1")) {
		t.Fatalf("missing parquet magic")
	}
	if checksum == "" {
		t.Fatalf("expected checksum")
	}
}

func TestExportsEmpty(t *testing.T) {
	data, _, err := SettlementsCSV(nil)
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if strings.TrimSpace(string(data)) != strings.Join(header, ",") {
		t.Fatalf("unexpected empty export: %q", data)
	}
	data, _, err = SettlementsJSONL(nil)
	if err != nil || len(data) != 0 {
		t.Fatalf("expected empty jsonl, got %q err=%v", data, err)
	}
}

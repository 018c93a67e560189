package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/dan-merlea/sc-krogan-public/integrations/history"
)

type parquetRow struct {
	Settlement string `parquet:"name=settlement, type=BYTE_ARRAY, convertedtype=UTF8"`
	Claimant   string `parquet:"name=claimant, type=BYTE_ARRAY, convertedtype=UTF8"`
	SettledAt  string `parquet:"name=settled_at, type=BYTE_ARRAY, convertedtype=UTF8"`
	Position   int32  `parquet:"name=position, type=INT32"`
	Kind       string `parquet:"name=kind, type=BYTE_ARRAY, convertedtype=UTF8"`
	Asset      string `parquet:"name=asset, type=BYTE_ARRAY, convertedtype=UTF8"`
	Nonce      int64  `parquet:"name=nonce, type=INT64"`
	Amount     string `parquet:"name=amount, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// SettlementsParquet writes the transfer rows as a snappy compressed parquet
// file and returns its bytes with a SHA-256 checksum.
func SettlementsParquet(settlements []history.Settlement) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	fw := writerfile.NewWriterFile(buffer)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		return nil, "", fmt.Errorf("exports: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range flatten(settlements) {
		pr := &parquetRow{
			Settlement: row.Settlement,
			Claimant:   row.Claimant,
			SettledAt:  row.SettledAt.Format(time.RFC3339Nano),
			Position:   int32(row.Position),
			Kind:       row.Kind,
			Asset:      row.Asset,
			Nonce:      int64(row.Nonce),
			Amount:     row.Amount,
		}
		if err := pw.Write(pr); err != nil {
			return nil, "", fmt.Errorf("exports: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, "", fmt.Errorf("exports: parquet flush: %w", err)
	}
	data := buffer.Bytes()
	checksum := sha256.Sum256(data)
	return data, hex.EncodeToString(checksum[:]), nil
}

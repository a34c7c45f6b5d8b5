package exports

import (
	"bytes"
	"fmt"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"playmint/native/bank"
)

type parquetMint struct {
	ID          string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Destination string `parquet:"name=destination, type=BYTE_ARRAY, convertedtype=UTF8"`
	Amount      int64  `parquet:"name=amount, type=INT64"`
	CreatedAt   string `parquet:"name=created_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// MintsParquet builds a Snappy-compressed Parquet export of journaled mints.
func MintsParquet(entries []bank.Entry) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	fw := writerfile.NewWriterFile(buffer)
	pw, err := writer.NewParquetWriter(fw, new(parquetMint), 1)
	if err != nil {
		return nil, "", fmt.Errorf("exports: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, entry := range entries {
		row := &parquetMint{
			ID:          entry.ID,
			Destination: entry.Destination.String(),
			Amount:      int64(entry.Amount),
			CreatedAt:   formatTime(entry.CreatedAt),
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return nil, "", fmt.Errorf("exports: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, "", fmt.Errorf("exports: parquet flush: %w", err)
	}
	data := buffer.Bytes()
	return data, checksum(data), nil
}

package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

// writeRecords writes rows to filename through a temporary file so readers
// never observe a half-written table. The temporary file is removed when any
// step fails.
func writeRecords[T any](filename string, rows []T) (err error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create directory structure: %w", err)
	}

	tmp := filename + ".tmp"
	fw, err := local.NewLocalFileWriter(tmp)
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	closed := false
	defer func() {
		if err == nil {
			return
		}
		if !closed {
			fw.Close()
		}
		os.Remove(tmp)
	}()

	pw, err := writer.NewParquetWriter(fw, new(T), 4)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_GZIP
	pw.RowGroupSize = 128 * 1024 * 1024 // 128MB row groups
	pw.PageSize = 8 * 1024              // 8KB pages

	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			return fmt.Errorf("failed to write parquet data: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	closed = true
	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to close parquet file: %w", err)
	}
	if err := os.Rename(tmp, filename); err != nil {
		return fmt.Errorf("failed to move parquet file into place: %w", err)
	}
	return nil
}

// readRecords loads every row of a parquet file. A missing file yields
// ErrNotFound; anything that fails to parse yields ErrCorruptTable.
func readRecords[T any](filename string) (rows []T, err error) {
	if _, statErr := os.Stat(filename); statErr != nil {
		if os.IsNotExist(statErr) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
		}
		return nil, statErr
	}

	fr, err := local.NewLocalFileReader(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer fr.Close()

	// The reader panics on some malformed footers.
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("%w: %s: %v", ErrCorruptTable, filename, r)
		}
	}()

	pr, err := reader.NewParquetReader(fr, new(T), 4)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptTable, filename, err)
	}
	defer pr.ReadStop()

	rows = make([]T, int(pr.GetNumRows()))
	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptTable, filename, err)
	}
	return rows, nil
}

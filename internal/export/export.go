// Package export writes study tables as spreadsheet-friendly CSV.
package export

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ashureev/ideation-study/internal/store"
)

// bom makes spreadsheet tools detect UTF-8.
const bom = "\ufeff"

// maxParallelDumps bounds concurrent table reads for a ZIP export.
const maxParallelDumps = 4

// Source dumps a table as column names and stringified rows.
type Source interface {
	DumpTable(ctx context.Context, table string) ([]string, [][]string, error)
}

// UnknownTableError is returned for a table outside store.ExportTables.
type UnknownTableError struct {
	Table string
}

func (e *UnknownTableError) Error() string {
	return fmt.Sprintf("table %q is not exportable", e.Table)
}

// WriteCSV writes a BOM, the header row and all rows.
func WriteCSV(w io.Writer, cols []string, rows [][]string) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// Table writes one export table as CSV.
func Table(ctx context.Context, w io.Writer, src Source, table string) error {
	if !store.IsExportTable(table) {
		return &UnknownTableError{Table: table}
	}
	cols, rows, err := src.DumpTable(ctx, table)
	if err != nil {
		return fmt.Errorf("dump %s: %w", table, err)
	}
	return WriteCSV(w, cols, rows)
}

type dump struct {
	cols []string
	rows [][]string
}

// Zip writes every export table as <table>.csv into a ZIP archive.
// Tables are read concurrently and written in store.ExportTables order.
func Zip(ctx context.Context, w io.Writer, src Source, now time.Time) error {
	dumps := make([]dump, len(store.ExportTables))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelDumps)
	for i, table := range store.ExportTables {
		g.Go(func() error {
			cols, rows, err := src.DumpTable(gctx, table)
			if err != nil {
				return fmt.Errorf("dump %s: %w", table, err)
			}
			dumps[i] = dump{cols: cols, rows: rows}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	for i, table := range store.ExportTables {
		f, err := zw.CreateHeader(&zip.FileHeader{
			Name:     table + ".csv",
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			return fmt.Errorf("create %s.csv: %w", table, err)
		}
		if err := WriteCSV(f, dumps[i].cols, dumps[i].rows); err != nil {
			return fmt.Errorf("write %s.csv: %w", table, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

// ZipName returns the archive file name for an export taken at now.
func ZipName(now time.Time) string {
	return "export_" + now.UTC().Format("20060102_150405") + ".zip"
}

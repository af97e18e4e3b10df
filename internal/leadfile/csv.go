package leadfile

import (
	"context"
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"
)

// ReadCSVFile opens path and reads it with ReadCSV.
func ReadCSVFile(ctx context.Context, path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "leadfile: open csv %s", path)
	}
	defer f.Close() //nolint:errcheck

	return ReadCSV(ctx, f)
}

// ReadCSV reads a headered CSV stream. Fully blank rows are skipped.
func ReadCSV(ctx context.Context, r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "leadfile: read csv header")
	}
	if len(headers) > 0 {
		headers[0] = trimBOM(headers[0])
	}

	var rows []Row
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "leadfile: csv read cancelled")
		}

		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrapf(err, "leadfile: read csv row %d", len(rows)+1)
		}

		row := MapRow(headers, record)
		if row.Empty() {
			continue
		}
		rows = append(rows, row)
	}
}

func trimBOM(s string) string {
	const bom = "\ufeff"
	if len(s) >= len(bom) && s[:len(bom)] == bom {
		return s[len(bom):]
	}
	return s
}

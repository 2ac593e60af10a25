package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/inferloop/dqcore/pkg/errors"
	"github.com/inferloop/dqcore/pkg/models"
)

// LoadCSV reads a CSV file into an in-memory table. The first record is the
// header. Cells parse as float64 when numeric, "true"/"false" as booleans,
// and empty cells become nulls.
func LoadCSV(path string) (*models.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapAccessorError(err, errors.CodeSourceUnreachable, "cannot open CSV file")
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV reads CSV data from a reader into an in-memory table.
func ReadCSV(r io.Reader) (*models.Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.WrapAccessorError(err, errors.CodeSourceUnreachable, "cannot read CSV header")
	}

	table := models.NewTable(header...)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WrapAccessorError(err, errors.CodeSourceUnreachable, "cannot read CSV record")
		}
		row := make([]interface{}, len(record))
		for i, cell := range record {
			row[i] = parseCell(cell)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func parseCell(s string) interface{} {
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}

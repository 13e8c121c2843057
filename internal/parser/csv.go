package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVParser handles CSV exports: each record is rejoined into one
// whitespace-separated line so the structure detector sees the same shape
// it gets from PDF text.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	doc := &Document{
		Title: strings.TrimSuffix(filename, ".csv"),
	}
	for _, record := range records {
		var cells []string
		for _, cell := range record {
			cell = strings.TrimSpace(cell)
			if cell != "" {
				cells = append(cells, cell)
			}
		}
		if len(cells) == 0 {
			continue
		}
		doc.Lines = append(doc.Lines, Line{Text: strings.Join(cells, "  ")})
	}
	return doc, nil
}

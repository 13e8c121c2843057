package parser

import (
	"bufio"
	"io"
	"strings"
)

// TextParser handles plain text files.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	doc := &Document{
		Title: strings.TrimSuffix(filename, ".txt"),
	}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		doc.Lines = append(doc.Lines, Line{Text: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return doc, nil
}

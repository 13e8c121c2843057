package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. Headings and block
// content alike become plain lines; budget exports often print chapters as
// headings and line items as list or table rows.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	reader := text.NewReader(src)
	root := md.Parser().Parse(reader)

	doc := &Document{
		Title: strings.TrimSuffix(strings.TrimSuffix(filename, ".md"), ".markdown"),
	}

	var walk func(n ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if h, ok := c.(*ast.Heading); ok {
				if t := string(h.Text(src)); t != "" {
					doc.Lines = append(doc.Lines, Line{Text: t})
				}
				continue
			}
			if blockHasOnlyInlines(c) {
				for _, line := range blockLines(c, src) {
					doc.Lines = append(doc.Lines, Line{Text: line})
				}
				continue
			}
			walk(c)
		}
	}
	walk(root)

	return doc, nil
}

// blockHasOnlyInlines reports whether every child of n is inline content,
// meaning n's source lines can be emitted directly.
func blockHasOnlyInlines(n ast.Node) bool {
	if n.Type() != ast.TypeBlock {
		return false
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if c.Type() == ast.TypeBlock {
			return false
		}
	}
	return true
}

// blockLines returns the trimmed, non-empty source lines of a block node.
func blockLines(n ast.Node, src []byte) []string {
	var out []string
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		line := string(bytes.TrimSpace(seg.Value(src)))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Package csvfile is a RowReader over a CSV export. Comma and semicolon
// separated files are both accepted.
package csvfile

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// File reads rows from a CSV file on disk.
type File struct {
	path string
}

func Open(path string) *File {
	return &File{path: path}
}

func (f *File) ReadRows(ctx context.Context) ([][]string, error) {
	fh, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer fh.Close()
	return Read(ctx, fh)
}

// Read parses all rows from r, detecting the separator from the first line.
func Read(ctx context.Context, r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	first, _ := br.Peek(4096)
	line := string(first)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	if strings.Count(line, ";") > strings.Count(line, ",") {
		cr.Comma = ';'
	}

	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

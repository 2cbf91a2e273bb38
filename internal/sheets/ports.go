// Package sheets defines where imported spreadsheet rows come from.
package sheets

import "context"

// RowReader returns every row of a sheet, header first, as trimmed strings.
type RowReader interface {
	ReadRows(ctx context.Context) ([][]string, error)
}

// Package memory is a RowReader over rows held in memory.
package memory

import (
	"context"
	"sync"
)

type Sheet struct {
	mu   sync.Mutex
	rows [][]string
	err  error
}

func New(rows ...[]string) *Sheet {
	return &Sheet{rows: rows}
}

// Fail makes every following ReadRows return err.
func (s *Sheet) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Sheet) ReadRows(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]string, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"orcamento/internal/core"
	"orcamento/internal/events"
	"orcamento/internal/importer"
	"orcamento/internal/sheets"
	"orcamento/internal/storage"
)

// ImportOptions controls how unknown names and writes are handled.
type ImportOptions struct {
	// CreateMissing creates unknown categories (as variable) and people
	// instead of skipping their rows.
	CreateMissing bool
	// DryRun parses and resolves everything but writes nothing.
	DryRun bool
}

// ImportResult reports the outcome of an import.
type ImportResult struct {
	Imported int             `json:"imported"`
	Skipped  []importer.Skip `json:"skipped"`
	DryRun   bool            `json:"dry_run,omitempty"`
}

// ImportService loads ledger expenses from a spreadsheet.
type ImportService struct {
	base
	busy atomic.Bool
}

func NewImportService(repo *storage.SQLiteRepository, publisher events.Publisher) *ImportService {
	return &ImportService{base: newBase(repo, publisher)}
}

// Running reports whether an import is in progress.
func (s *ImportService) Running() bool {
	return s.busy.Load()
}

// Import reads every row from src and stores the valid ones in a single
// transaction. Only one import runs at a time.
func (s *ImportService) Import(ctx context.Context, src sheets.RowReader, opts ImportOptions) (ImportResult, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return ImportResult{}, ErrImportInProgress
	}
	defer s.busy.Store(false)

	rows, err := src.ReadRows(ctx)
	if err != nil {
		return ImportResult{}, fmt.Errorf("read sheet: %w", err)
	}
	records, skips, err := importer.ParseRows(rows)
	if err != nil {
		return ImportResult{}, err
	}
	result := ImportResult{Skipped: skips, DryRun: opts.DryRun}
	if result.Skipped == nil {
		result.Skipped = []importer.Skip{}
	}

	cats, err := s.repo.ListCategories(ctx)
	if err != nil {
		return ImportResult{}, err
	}
	subs, err := s.repo.ListSubcategories(ctx, 0)
	if err != nil {
		return ImportResult{}, err
	}
	people, err := s.repo.ListPeople(ctx)
	if err != nil {
		return ImportResult{}, err
	}
	lookup := importer.NewLookup(cats, subs, people)

	var changes []events.ChangeEvent
	write := func(q *storage.Queries) error {
		for _, rec := range records {
			e, reason, err := s.resolve(ctx, q, lookup, rec, opts, &changes)
			if err != nil {
				return fmt.Errorf("row %d: %w", rec.Row, err)
			}
			if reason != "" {
				result.Skipped = append(result.Skipped, importer.Skip{Row: rec.Row, Reason: reason})
				continue
			}
			if !opts.DryRun {
				id, err := q.CreateExpense(ctx, e)
				if err != nil {
					return fmt.Errorf("row %d: %w", rec.Row, err)
				}
				changes = append(changes, events.NewChange(events.TableExpenses, events.OpInsert, id))
			}
			result.Imported++
		}
		if opts.DryRun || result.Imported == 0 {
			return nil
		}
		act, err := s.logActivity(ctx, q, core.Activity{
			Action:     ActionImport,
			EntityType: EntityExpense,
			EntityName: "planilha",
			Details:    fmt.Sprintf("%d importadas, %d ignoradas", result.Imported, len(result.Skipped)),
		})
		if err != nil {
			return err
		}
		changes = append(changes, act)
		return nil
	}

	if opts.DryRun {
		err = write(s.repo.Queries)
	} else {
		err = s.repo.InTx(ctx, write)
	}
	if err != nil {
		return ImportResult{}, fmt.Errorf("import: %w", err)
	}
	sort.SliceStable(result.Skipped, func(i, j int) bool {
		return result.Skipped[i].Row < result.Skipped[j].Row
	})

	slog.InfoContext(ctx, "Spreadsheet imported",
		"imported", result.Imported,
		"skipped", len(result.Skipped),
		"dry_run", opts.DryRun)
	s.publish(ctx, changes...)
	return result, nil
}

// resolve maps the names of rec to row ids. A non-empty reason means the row
// is skipped.
func (s *ImportService) resolve(ctx context.Context, q *storage.Queries, l *importer.Lookup, rec importer.Record, opts ImportOptions, changes *[]events.ChangeEvent) (core.Expense, string, error) {
	e := core.Expense{
		Date:        rec.Date,
		Description: rec.Description,
		Amount:      rec.Amount,
		CreatedAt:   s.now(),
	}

	if rec.Category != "" {
		c, ok := l.Category(rec.Category)
		if !ok {
			if !opts.CreateMissing {
				return e, fmt.Sprintf("unknown category %q", rec.Category), nil
			}
			c = core.Category{Name: rec.Category, Kind: core.Variable, Color: "#6b7280", CreatedAt: s.now()}
			if !opts.DryRun {
				created, err := q.CreateCategory(ctx, c)
				if err != nil {
					return e, "", err
				}
				c = created
				*changes = append(*changes, events.NewChange(events.TableCategories, events.OpInsert, c.ID))
			}
			l.AddCategory(c)
		}
		e.CategoryID = core.Ptr(c.ID)

		if rec.Subcategory != "" {
			sub, ok := l.Subcategory(c.ID, rec.Subcategory)
			if !ok {
				if !opts.CreateMissing {
					return e, fmt.Sprintf("unknown subcategory %q", rec.Subcategory), nil
				}
				sub = core.Subcategory{CategoryID: c.ID, Name: rec.Subcategory}
				if !opts.DryRun {
					created, err := q.CreateSubcategory(ctx, sub)
					if err != nil {
						return e, "", err
					}
					sub = created
					*changes = append(*changes, events.NewChange(events.TableSubcategories, events.OpInsert, sub.ID))
				}
				l.AddSubcategory(sub)
			}
			e.SubcategoryID = core.Ptr(sub.ID)
		}
	} else if rec.Subcategory != "" {
		return e, "subcategory without category", nil
	}

	if rec.Person != "" {
		p, ok := l.Person(rec.Person)
		if !ok {
			if !opts.CreateMissing {
				return e, fmt.Sprintf("unknown person %q", rec.Person), nil
			}
			p = core.Person{Name: rec.Person, Color: "#6b7280"}
			if !opts.DryRun {
				created, err := q.CreatePerson(ctx, p)
				if err != nil {
					return e, "", err
				}
				p = created
				*changes = append(*changes, events.NewChange(events.TablePeople, events.OpInsert, p.ID))
			}
			l.AddPerson(p)
		}
		e.PersonID = core.Ptr(p.ID)
	}
	return e, "", nil
}

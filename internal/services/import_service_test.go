package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"orcamento/internal/core"
	"orcamento/internal/events"
	"orcamento/internal/importer"
	"orcamento/internal/sheets/memory"
)

func importSheet() *memory.Sheet {
	return memory.New(
		[]string{"Data", "Descrição", "Valor", "Categoria", "Pessoa"},
		[]string{"01/06/2025", "Feira", "R$ 85,40", "Pets", "Ana"},
		[]string{"2025-06-03", "Cinema", "60", "Hobbies", "Caio"},
		[]string{"", "", "", "", ""},
		[]string{"31/02/2025", "Data ruim", "10", "", ""},
		[]string{"04/06/2025", "Sem valor", "", "", ""},
	)
}

func TestImportSkipsUnknownNames(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	if _, err := repo.CreateCategory(ctx, core.Category{Name: "pets", Kind: core.Variable}); err != nil {
		t.Fatal(err)
	}
	mustPerson(t, repo, "ANA")

	pub := &recordingPublisher{}
	svc := NewImportService(repo, pub)
	res, err := svc.Import(ctx, importSheet(), ImportOptions{})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Imported != 1 {
		t.Errorf("Imported = %d, want 1", res.Imported)
	}
	wantRows := []int{3, 5, 6}
	if len(res.Skipped) != len(wantRows) {
		t.Fatalf("Skipped = %+v", res.Skipped)
	}
	for i, row := range wantRows {
		if res.Skipped[i].Row != row {
			t.Errorf("Skipped[%d].Row = %d, want %d", i, res.Skipped[i].Row, row)
		}
	}

	rows, err := repo.ListExpenseRows(ctx, core.Period{Year: 2025, Month: time.June})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Amount.Cents != 8540 || rows[0].CategoryName != "pets" || rows[0].PersonName != "ANA" {
		t.Errorf("rows = %+v", rows)
	}
	if got := pub.tables(); got[events.TableExpenses] != 1 || got[events.TableActivities] != 1 {
		t.Errorf("published = %v", got)
	}
}

func TestImportCreateMissing(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	svc := NewImportService(repo, nil)

	res, err := svc.Import(ctx, importSheet(), ImportOptions{CreateMissing: true})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Imported != 2 || len(res.Skipped) != 2 {
		t.Fatalf("result = %+v", res)
	}

	people, err := repo.ListPeople(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(people) != 2 {
		t.Errorf("people = %+v, want Ana and Caio", people)
	}
	cats, err := repo.ListCategories(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var hobbies *core.Category
	for i := range cats {
		if cats[i].Name == "Hobbies" {
			hobbies = &cats[i]
		}
	}
	if hobbies == nil || hobbies.Kind != core.Variable {
		t.Errorf("created category = %+v", hobbies)
	}
}

func TestImportDryRunWritesNothing(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc := NewImportService(repo, pub)

	res, err := svc.Import(ctx, importSheet(), ImportOptions{CreateMissing: true, DryRun: true})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Imported != 2 || !res.DryRun {
		t.Errorf("result = %+v", res)
	}
	rows, err := repo.ListExpenseRows(ctx, core.Period{Year: 2025, Month: time.June})
	if err != nil {
		t.Fatal(err)
	}
	people, _ := repo.ListPeople(ctx)
	if len(rows) != 0 || len(people) != 0 {
		t.Errorf("dry run wrote %d expenses and %d people", len(rows), len(people))
	}
	if len(pub.tables()) != 0 {
		t.Errorf("dry run published %v", pub.tables())
	}
}

func TestImportErrors(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	svc := NewImportService(repo, nil)

	if _, err := svc.Import(ctx, memory.New(), ImportOptions{}); !errors.Is(err, importer.ErrNoRows) {
		t.Errorf("empty sheet error = %v", err)
	}
	if _, err := svc.Import(ctx, memory.New([]string{"Data", "Valor"}), ImportOptions{}); !errors.Is(err, importer.ErrMissingColumn) {
		t.Errorf("missing column error = %v", err)
	}

	boom := errors.New("quota exceeded")
	failing := memory.New()
	failing.Fail(boom)
	if _, err := svc.Import(ctx, failing, ImportOptions{}); !errors.Is(err, boom) {
		t.Errorf("read error = %v", err)
	}

	svc.busy.Store(true)
	if _, err := svc.Import(ctx, importSheet(), ImportOptions{}); !errors.Is(err, ErrImportInProgress) {
		t.Errorf("concurrent import error = %v, want ErrImportInProgress", err)
	}
	svc.busy.Store(false)
	if svc.Running() {
		t.Error("Running() = true after reset")
	}
}

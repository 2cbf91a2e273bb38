package services

import (
	"context"
	"fmt"
	"strings"

	"orcamento/internal/core"
	"orcamento/internal/events"
	"orcamento/internal/storage"
)

// TaxonomyService manages categories, subcategories and household members.
type TaxonomyService struct {
	base
}

func NewTaxonomyService(repo *storage.SQLiteRepository, publisher events.Publisher) *TaxonomyService {
	return &TaxonomyService{base: newBase(repo, publisher)}
}

// mutate runs fn in a transaction, logs the activity and announces the change.
func (s *TaxonomyService) mutate(ctx context.Context, table string, op events.Op, entity, action string, fn func(q *storage.Queries) (int64, string, error)) error {
	var changes []events.ChangeEvent
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		id, name, err := fn(q)
		if err != nil {
			return err
		}
		act, err := s.logActivity(ctx, q, core.Activity{Action: action, EntityType: entity, EntityName: name})
		if err != nil {
			return err
		}
		changes = append(changes, events.NewChange(table, op, id), act)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s %s: %w", action, entity, err)
	}
	s.publish(ctx, changes...)
	return nil
}

func (s *TaxonomyService) ListCategories(ctx context.Context) ([]core.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *TaxonomyService) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Kind == "" {
		c.Kind = core.Variable
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	c.CreatedAt = s.now()
	err := s.mutate(ctx, events.TableCategories, events.OpInsert, EntityCategory, ActionCreate,
		func(q *storage.Queries) (int64, string, error) {
			created, err := q.CreateCategory(ctx, c)
			c = created
			return created.ID, c.Name, err
		})
	return c, err
}

func (s *TaxonomyService) UpdateCategory(ctx context.Context, c core.Category) error {
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return err
	}
	return s.mutate(ctx, events.TableCategories, events.OpUpdate, EntityCategory, ActionUpdate,
		func(q *storage.Queries) (int64, string, error) {
			return c.ID, c.Name, q.UpdateCategory(ctx, c)
		})
}

// DeleteCategory removes a category. Expenses and planned expenses in it
// become uncategorized.
func (s *TaxonomyService) DeleteCategory(ctx context.Context, id int64) error {
	return s.mutate(ctx, events.TableCategories, events.OpDelete, EntityCategory, ActionDelete,
		func(q *storage.Queries) (int64, string, error) {
			c, err := q.GetCategory(ctx, id)
			if err != nil {
				return 0, "", err
			}
			return id, c.Name, q.DeleteCategory(ctx, id)
		})
}

func (s *TaxonomyService) ListSubcategories(ctx context.Context, categoryID int64) ([]core.Subcategory, error) {
	return s.repo.ListSubcategories(ctx, categoryID)
}

func (s *TaxonomyService) CreateSubcategory(ctx context.Context, sub core.Subcategory) (core.Subcategory, error) {
	sub.Name = strings.TrimSpace(sub.Name)
	if sub.Name == "" {
		return core.Subcategory{}, core.ErrEmptyName
	}
	err := s.mutate(ctx, events.TableSubcategories, events.OpInsert, EntitySubcategory, ActionCreate,
		func(q *storage.Queries) (int64, string, error) {
			created, err := q.CreateSubcategory(ctx, sub)
			sub = created
			return created.ID, sub.Name, err
		})
	return sub, err
}

func (s *TaxonomyService) DeleteSubcategory(ctx context.Context, id int64) error {
	return s.mutate(ctx, events.TableSubcategories, events.OpDelete, EntitySubcategory, ActionDelete,
		func(q *storage.Queries) (int64, string, error) {
			return id, "", q.DeleteSubcategory(ctx, id)
		})
}

func (s *TaxonomyService) ListPeople(ctx context.Context) ([]core.Person, error) {
	return s.repo.ListPeople(ctx)
}

func (s *TaxonomyService) CreatePerson(ctx context.Context, p core.Person) (core.Person, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := p.Validate(); err != nil {
		return core.Person{}, err
	}
	err := s.mutate(ctx, events.TablePeople, events.OpInsert, EntityPerson, ActionCreate,
		func(q *storage.Queries) (int64, string, error) {
			created, err := q.CreatePerson(ctx, p)
			p = created
			return created.ID, p.Name, err
		})
	return p, err
}

func (s *TaxonomyService) UpdatePerson(ctx context.Context, p core.Person) error {
	p.Name = strings.TrimSpace(p.Name)
	if err := p.Validate(); err != nil {
		return err
	}
	return s.mutate(ctx, events.TablePeople, events.OpUpdate, EntityPerson, ActionUpdate,
		func(q *storage.Queries) (int64, string, error) {
			return p.ID, p.Name, q.UpdatePerson(ctx, p)
		})
}

func (s *TaxonomyService) DeletePerson(ctx context.Context, id int64) error {
	return s.mutate(ctx, events.TablePeople, events.OpDelete, EntityPerson, ActionDelete,
		func(q *storage.Queries) (int64, string, error) {
			p, err := q.GetPerson(ctx, id)
			if err != nil {
				return 0, "", err
			}
			return id, p.Name, q.DeletePerson(ctx, id)
		})
}

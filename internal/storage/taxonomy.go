package storage

import (
	"context"
	"fmt"
	"time"

	"orcamento/internal/core"
)

const categoryColumns = `id, name, color, icon, tipo, created_at`

func scanCategory(row interface{ Scan(...any) error }) (core.Category, error) {
	var (
		c       core.Category
		kind    string
		created string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Color, &c.Icon, &kind, &created); err != nil {
		return core.Category{}, err
	}
	c.Kind = core.CategoryKind(kind)
	t, err := parseTime(created)
	if err != nil {
		return core.Category{}, fmt.Errorf("parse category created_at: %w", err)
	}
	c.CreatedAt = t
	return c, nil
}

func (q *Queries) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, translate(err))
	}
	return c, nil
}

func (q *Queries) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO categories (name, color, icon, tipo, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.Name, c.Color, c.Icon, string(c.Kind), formatTime(c.CreatedAt))
	if err != nil {
		return core.Category{}, fmt.Errorf("create category %q: %w", c.Name, translate(err))
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return core.Category{}, fmt.Errorf("category id: %w", err)
	}
	return c, nil
}

func (q *Queries) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, color = ?, icon = ?, tipo = ? WHERE id = ?`,
		c.Name, c.Color, c.Icon, string(c.Kind), c.ID)
	if err != nil {
		return fmt.Errorf("update category %d: %w", c.ID, translate(err))
	}
	if err := affectedOne(res); err != nil {
		return fmt.Errorf("update category %d: %w", c.ID, err)
	}
	return nil
}

func (q *Queries) DeleteCategory(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category %d: %w", id, translate(err))
	}
	if err := affectedOne(res); err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	return nil
}

// ListSubcategories returns the subcategories of one category, or of all
// categories when categoryID is zero.
func (q *Queries) ListSubcategories(ctx context.Context, categoryID int64) ([]core.Subcategory, error) {
	query := `SELECT id, category_id, name FROM subcategories`
	var args []any
	if categoryID != 0 {
		query += ` WHERE category_id = ?`
		args = append(args, categoryID)
	}
	query += ` ORDER BY name`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list subcategories: %w", err)
	}
	defer rows.Close()

	var out []core.Subcategory
	for rows.Next() {
		var s core.Subcategory
		if err := rows.Scan(&s.ID, &s.CategoryID, &s.Name); err != nil {
			return nil, fmt.Errorf("scan subcategory: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (q *Queries) CreateSubcategory(ctx context.Context, s core.Subcategory) (core.Subcategory, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO subcategories (category_id, name) VALUES (?, ?)`, s.CategoryID, s.Name)
	if err != nil {
		return core.Subcategory{}, fmt.Errorf("create subcategory %q: %w", s.Name, translate(err))
	}
	if s.ID, err = res.LastInsertId(); err != nil {
		return core.Subcategory{}, fmt.Errorf("subcategory id: %w", err)
	}
	return s, nil
}

func (q *Queries) DeleteSubcategory(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM subcategories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete subcategory %d: %w", id, translate(err))
	}
	if err := affectedOne(res); err != nil {
		return fmt.Errorf("delete subcategory %d: %w", id, err)
	}
	return nil
}

func (q *Queries) ListPeople(ctx context.Context) ([]core.Person, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, name, color, avatar_url FROM people ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	defer rows.Close()

	var out []core.Person
	for rows.Next() {
		var p core.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.Color, &p.AvatarURL); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *Queries) GetPerson(ctx context.Context, id int64) (core.Person, error) {
	var p core.Person
	err := q.db.QueryRowContext(ctx,
		`SELECT id, name, color, avatar_url FROM people WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Color, &p.AvatarURL)
	if err != nil {
		return core.Person{}, fmt.Errorf("get person %d: %w", id, translate(err))
	}
	return p, nil
}

func (q *Queries) CreatePerson(ctx context.Context, p core.Person) (core.Person, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO people (name, color, avatar_url) VALUES (?, ?, ?)`, p.Name, p.Color, p.AvatarURL)
	if err != nil {
		return core.Person{}, fmt.Errorf("create person %q: %w", p.Name, translate(err))
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return core.Person{}, fmt.Errorf("person id: %w", err)
	}
	return p, nil
}

func (q *Queries) UpdatePerson(ctx context.Context, p core.Person) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE people SET name = ?, color = ?, avatar_url = ? WHERE id = ?`,
		p.Name, p.Color, p.AvatarURL, p.ID)
	if err != nil {
		return fmt.Errorf("update person %d: %w", p.ID, translate(err))
	}
	if err := affectedOne(res); err != nil {
		return fmt.Errorf("update person %d: %w", p.ID, err)
	}
	return nil
}

func (q *Queries) DeletePerson(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM people WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete person %d: %w", id, translate(err))
	}
	if err := affectedOne(res); err != nil {
		return fmt.Errorf("delete person %d: %w", id, err)
	}
	return nil
}

package http

import (
	"net/http"

	"orcamento/internal/core"
	"orcamento/internal/events"
)

// mutated answers a successful taxonomy change.
func mutated(w http.ResponseWriter, status int, table, message string, body any) {
	b := NewResponse().
		Status(status).
		TriggerDataChanged(table).
		TriggerSuccessNotification(message)
	if body != nil {
		b.JSON(body)
	}
	b.Write(w)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.svc.Taxonomy.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, "list categories", err)
		return
	}
	out := make([]categoryView, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryOf(c))
	}
	NewResponse().JSON(out).Write(w)
}

func categoryFrom(p *RequestBodyParser) core.Category {
	return core.Category{
		Name:  p.Get("name"),
		Color: p.Get("color"),
		Icon:  p.Get("icon"),
		Kind:  core.CategoryKind(p.Get("tipo")),
	}
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	body, ok := parseBody(w, r)
	if !ok {
		return
	}
	c, err := s.svc.Taxonomy.CreateCategory(r.Context(), categoryFrom(body))
	if err != nil {
		writeError(w, r, "create category", err)
		return
	}
	mutated(w, http.StatusCreated, events.TableCategories, "Categoria criada", categoryOf(c))
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		writeError(w, r, "update category", err)
		return
	}
	body, ok := parseBody(w, r)
	if !ok {
		return
	}
	c := categoryFrom(body)
	c.ID = id
	if err := s.svc.Taxonomy.UpdateCategory(r.Context(), c); err != nil {
		writeError(w, r, "update category", err)
		return
	}
	mutated(w, http.StatusNoContent, events.TableCategories, "Categoria atualizada", nil)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		writeError(w, r, "delete category", err)
		return
	}
	if err := s.svc.Taxonomy.DeleteCategory(r.Context(), id); err != nil {
		writeError(w, r, "delete category", err)
		return
	}
	mutated(w, http.StatusNoContent, events.TableCategories, "Categoria removida", nil)
}

// handleListSubcategories lists the subcategories of one category, or all of
// them on /api/subcategories.
func (s *Server) handleListSubcategories(w http.ResponseWriter, r *http.Request) {
	var categoryID int64
	if r.PathValue("id") != "" {
		id, err := PathID(r, "id")
		if err != nil {
			writeError(w, r, "list subcategories", err)
			return
		}
		categoryID = id
	}
	subs, err := s.svc.Taxonomy.ListSubcategories(r.Context(), categoryID)
	if err != nil {
		writeError(w, r, "list subcategories", err)
		return
	}
	out := make([]subcategoryView, 0, len(subs))
	for _, sub := range subs {
		out = append(out, subcategoryView{ID: sub.ID, CategoryID: sub.CategoryID, Name: sub.Name})
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleCreateSubcategory(w http.ResponseWriter, r *http.Request) {
	categoryID, err := PathID(r, "id")
	if err != nil {
		writeError(w, r, "create subcategory", err)
		return
	}
	body, ok := parseBody(w, r)
	if !ok {
		return
	}
	sub, err := s.svc.Taxonomy.CreateSubcategory(r.Context(), core.Subcategory{CategoryID: categoryID, Name: body.Get("name")})
	if err != nil {
		writeError(w, r, "create subcategory", err)
		return
	}
	mutated(w, http.StatusCreated, events.TableSubcategories, "Subcategoria criada",
		subcategoryView{ID: sub.ID, CategoryID: sub.CategoryID, Name: sub.Name})
}

func (s *Server) handleDeleteSubcategory(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		writeError(w, r, "delete subcategory", err)
		return
	}
	if err := s.svc.Taxonomy.DeleteSubcategory(r.Context(), id); err != nil {
		writeError(w, r, "delete subcategory", err)
		return
	}
	mutated(w, http.StatusNoContent, events.TableSubcategories, "Subcategoria removida", nil)
}

func (s *Server) handleListPeople(w http.ResponseWriter, r *http.Request) {
	people, err := s.svc.Taxonomy.ListPeople(r.Context())
	if err != nil {
		writeError(w, r, "list people", err)
		return
	}
	out := make([]personView, 0, len(people))
	for _, p := range people {
		out = append(out, personOf(p))
	}
	NewResponse().JSON(out).Write(w)
}

func personFrom(p *RequestBodyParser) core.Person {
	return core.Person{Name: p.Get("name"), Color: p.Get("color"), AvatarURL: p.Get("avatar_url")}
}

func (s *Server) handleCreatePerson(w http.ResponseWriter, r *http.Request) {
	body, ok := parseBody(w, r)
	if !ok {
		return
	}
	p, err := s.svc.Taxonomy.CreatePerson(r.Context(), personFrom(body))
	if err != nil {
		writeError(w, r, "create person", err)
		return
	}
	mutated(w, http.StatusCreated, events.TablePeople, "Pessoa cadastrada", personOf(p))
}

func (s *Server) handleUpdatePerson(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		writeError(w, r, "update person", err)
		return
	}
	body, ok := parseBody(w, r)
	if !ok {
		return
	}
	p := personFrom(body)
	p.ID = id
	if err := s.svc.Taxonomy.UpdatePerson(r.Context(), p); err != nil {
		writeError(w, r, "update person", err)
		return
	}
	mutated(w, http.StatusNoContent, events.TablePeople, "Pessoa atualizada", nil)
}

func (s *Server) handleDeletePerson(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		writeError(w, r, "delete person", err)
		return
	}
	if err := s.svc.Taxonomy.DeletePerson(r.Context(), id); err != nil {
		writeError(w, r, "delete person", err)
		return
	}
	mutated(w, http.StatusNoContent, events.TablePeople, "Pessoa removida", nil)
}

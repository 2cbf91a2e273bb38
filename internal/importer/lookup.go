package importer

import "orcamento/internal/core"

// Lookup resolves category, subcategory and person names to rows, ignoring
// case and accents.
type Lookup struct {
	categories    map[string]core.Category
	subcategories map[int64]map[string]core.Subcategory
	people        map[string]core.Person
}

func NewLookup(categories []core.Category, subcategories []core.Subcategory, people []core.Person) *Lookup {
	l := &Lookup{
		categories:    make(map[string]core.Category, len(categories)),
		subcategories: make(map[int64]map[string]core.Subcategory),
		people:        make(map[string]core.Person, len(people)),
	}
	for _, c := range categories {
		l.AddCategory(c)
	}
	for _, s := range subcategories {
		l.AddSubcategory(s)
	}
	for _, p := range people {
		l.AddPerson(p)
	}
	return l
}

func (l *Lookup) Category(name string) (core.Category, bool) {
	c, ok := l.categories[Normalize(name)]
	return c, ok
}

func (l *Lookup) Subcategory(categoryID int64, name string) (core.Subcategory, bool) {
	s, ok := l.subcategories[categoryID][Normalize(name)]
	return s, ok
}

func (l *Lookup) Person(name string) (core.Person, bool) {
	p, ok := l.people[Normalize(name)]
	return p, ok
}

func (l *Lookup) AddCategory(c core.Category) {
	l.categories[Normalize(c.Name)] = c
}

func (l *Lookup) AddSubcategory(s core.Subcategory) {
	m, ok := l.subcategories[s.CategoryID]
	if !ok {
		m = make(map[string]core.Subcategory)
		l.subcategories[s.CategoryID] = m
	}
	m[Normalize(s.Name)] = s
}

func (l *Lookup) AddPerson(p core.Person) {
	l.people[Normalize(p.Name)] = p
}

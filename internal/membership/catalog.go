// Package membership holds the membership catalog and the accounting rules
// applied when a membership is invoiced.
package membership

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Campus is a campus and the first accounting department it owns.
type Campus struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Department int    `yaml:"department"`
}

// Type is a membership length with its ERP category and product.
type Type struct {
	Name     string `yaml:"name"`
	Months   int    `yaml:"months"`
	Category int    `yaml:"category"`
	Product  int    `yaml:"product"`
}

// Variation is a purchasable webshop variation.
type Variation struct {
	ID     string
	Campus Campus
	Type   Type
}

type catalogFile struct {
	Campuses   []Campus `yaml:"campuses"`
	National   Campus   `yaml:"national"`
	Types      []Type   `yaml:"types"`
	Variations map[string]struct {
		Campus string `yaml:"campus"`
		Type   string `yaml:"type"`
	} `yaml:"variations"`
}

// Catalog resolves variations, campuses and membership types.
type Catalog struct {
	campuses   []Campus
	national   Campus
	types      map[string]Type
	variations map[string]Variation
}

// Parse reads a catalog document.
func Parse(raw []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if f.National.Department == 0 {
		return nil, errors.New("parse catalog: national department is required")
	}

	c := &Catalog{
		national:   f.National,
		types:      make(map[string]Type, len(f.Types)),
		variations: make(map[string]Variation, len(f.Variations)),
	}

	campuses := make(map[string]Campus, len(f.Campuses))
	for _, cp := range f.Campuses {
		if _, dup := campuses[cp.ID]; dup {
			return nil, fmt.Errorf("parse catalog: duplicate campus %q", cp.ID)
		}
		campuses[cp.ID] = cp
		c.campuses = append(c.campuses, cp)
	}
	sort.Slice(c.campuses, func(i, j int) bool { return c.campuses[i].Department < c.campuses[j].Department })

	for _, t := range f.Types {
		if t.Months <= 0 {
			return nil, fmt.Errorf("parse catalog: type %q has no length", t.Name)
		}
		c.types[fold(t.Name)] = t
	}

	for id, v := range f.Variations {
		cp, ok := campuses[v.Campus]
		if !ok {
			return nil, fmt.Errorf("parse catalog: variation %s: unknown campus %q", id, v.Campus)
		}
		t, ok := c.types[fold(v.Type)]
		if !ok {
			return nil, fmt.Errorf("parse catalog: variation %s: unknown type %q", id, v.Type)
		}
		c.variations[id] = Variation{ID: id, Campus: cp, Type: t}
	}
	return c, nil
}

var defaultCatalog = func() *Catalog {
	c, err := Parse(catalogYAML)
	if err != nil {
		panic(err)
	}
	return c
}()

// Default returns the built-in catalog.
func Default() *Catalog { return defaultCatalog }

// Variation looks up a webshop variation.
func (c *Catalog) Variation(id string) (Variation, bool) {
	v, ok := c.variations[id]
	return v, ok
}

// Type looks up a membership type by name, ignoring case.
func (c *Catalog) Type(name string) (Type, bool) {
	t, ok := c.types[fold(name)]
	return t, ok
}

// DepartmentID returns the accounting department for a campus id. Unknown
// campuses book to the national department.
func (c *Catalog) DepartmentID(campusID string) int {
	for _, cp := range c.campuses {
		if cp.ID == campusID {
			return cp.Department
		}
	}
	return c.national.Department
}

// CampusOf returns the campus owning an accounting department: the campus
// with the highest first department not above id. Departments outside
// every campus block belong to the national organisation.
func (c *Catalog) CampusOf(department int) Campus {
	if department >= c.national.Department {
		return c.national
	}
	owner := c.national
	for _, cp := range c.campuses {
		if cp.Department > department {
			break
		}
		owner = cp
	}
	return owner
}

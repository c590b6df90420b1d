// Package catalog holds the immutable ISO 9001 function catalog and the ISO
// clause list documents can reference. The catalog ships embedded in the
// binary; callers only ever receive copies of its records.
package catalog

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"qualityline/internal/domain"
)

//go:embed iso9001.yaml
var iso9001YAML []byte

type file struct {
	Standard  string                    `yaml:"standard"`
	Functions []domain.StandardFunction `yaml:"functions"`
	Clauses   []domain.ClauseReference  `yaml:"clauses"`
}

// Catalog is a read-only set of standard functions.
type Catalog struct {
	standard  string
	functions []domain.StandardFunction
	byID      map[string]int
	clauses   []domain.ClauseReference
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the embedded ISO 9001 catalog.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(iso9001YAML)
		if err != nil {
			panic(fmt.Sprintf("embedded catalog: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Parse reads a catalog document and validates its records.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid catalog yaml: %w", err)
	}
	c, err := New(f.Functions, f.Clauses)
	if err != nil {
		return nil, err
	}
	c.standard = f.Standard
	return c, nil
}

// New builds a catalog from explicit records.
func New(functions []domain.StandardFunction, clauses []domain.ClauseReference) (*Catalog, error) {
	c := &Catalog{
		standard: domain.StandardISO9001,
		byID:     make(map[string]int, len(functions)),
		clauses:  append([]domain.ClauseReference(nil), clauses...),
	}
	for _, fn := range functions {
		if fn.ID == "" {
			return nil, fmt.Errorf("catalog function with empty id")
		}
		if _, dup := c.byID[fn.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog function %s", fn.ID)
		}
		switch fn.DuplicationRule {
		case domain.RuleUnique, domain.RulePerProcess:
		default:
			return nil, fmt.Errorf("function %s has invalid duplication rule %q", fn.ID, fn.DuplicationRule)
		}
		if len(fn.EligibleProcessTypes) == 0 {
			return nil, fmt.Errorf("function %s has no eligible process types", fn.ID)
		}
		c.byID[fn.ID] = len(c.functions)
		c.functions = append(c.functions, clone(fn))
	}
	return c, nil
}

// Standard names the management standard the catalog belongs to.
func (c *Catalog) Standard() string { return c.standard }

// Functions returns every function in catalog order.
func (c *Catalog) Functions() []domain.StandardFunction {
	return c.filter(func(domain.StandardFunction) bool { return true })
}

// FunctionByID returns the function with the given id.
func (c *Catalog) FunctionByID(id string) (domain.StandardFunction, bool) {
	i, ok := c.byID[id]
	if !ok {
		return domain.StandardFunction{}, false
	}
	return clone(c.functions[i]), true
}

func (c *Catalog) FunctionsByCategory(category string) []domain.StandardFunction {
	return c.filter(func(fn domain.StandardFunction) bool { return fn.Category == category })
}

func (c *Catalog) UniqueFunctions() []domain.StandardFunction {
	return c.filter(func(fn domain.StandardFunction) bool { return fn.DuplicationRule == domain.RuleUnique })
}

func (c *Catalog) PerProcessFunctions() []domain.StandardFunction {
	return c.filter(func(fn domain.StandardFunction) bool { return fn.DuplicationRule == domain.RulePerProcess })
}

// FunctionsForProcessType returns the functions a process of the given type
// may host. Management processes also take leadership functions.
func (c *Catalog) FunctionsForProcessType(processType string) []domain.StandardFunction {
	return c.filter(func(fn domain.StandardFunction) bool { return Eligible(fn, processType) })
}

// Clauses returns the ISO clause references documents may cite.
func (c *Catalog) Clauses() []domain.ClauseReference {
	return append([]domain.ClauseReference(nil), c.clauses...)
}

// Eligible reports whether a process type may host fn.
func Eligible(fn domain.StandardFunction, processType string) bool {
	for _, t := range fn.EligibleProcessTypes {
		if t == processType {
			return true
		}
		if processType == domain.ProcessManagement && t == domain.EligibilityLeadership {
			return true
		}
	}
	return false
}

func (c *Catalog) filter(keep func(domain.StandardFunction) bool) []domain.StandardFunction {
	var res []domain.StandardFunction
	for _, fn := range c.functions {
		if keep(fn) {
			res = append(res, clone(fn))
		}
	}
	return res
}

func clone(fn domain.StandardFunction) domain.StandardFunction {
	fn.LinkedStandards = append([]string(nil), fn.LinkedStandards...)
	fn.ClauseReferences = append([]string(nil), fn.ClauseReferences...)
	fn.EligibleProcessTypes = append([]string(nil), fn.EligibleProcessTypes...)
	return fn
}

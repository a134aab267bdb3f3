package parse

import (
	"sort"

	"github.com/armchr/junitmig/internal/model/ast"
)

type typeEntry struct {
	unit *Unit
	decl *TypeDecl
}

// Project is the set of compilation units taking part in one migration run. It answers
// "which unit declares type T", the identity contract used for cross-file correlation.
type Project struct {
	units    []*Unit
	byID     map[ast.FileID]*Unit
	types    map[string]typeEntry
	packages map[string][]string
}

func NewProject(units []*Unit) *Project {
	p := &Project{
		byID:     make(map[ast.FileID]*Unit),
		types:    make(map[string]typeEntry),
		packages: make(map[string][]string),
	}
	sorted := append([]*Unit(nil), units...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for _, u := range sorted {
		p.add(u)
	}
	return p
}

func (p *Project) add(u *Unit) {
	p.units = append(p.units, u)
	p.byID[u.ID] = u
	for _, td := range u.Types {
		if _, exists := p.types[td.QualifiedName]; exists {
			continue
		}
		p.types[td.QualifiedName] = typeEntry{unit: u, decl: td}
		if td.Outer == nil {
			p.packages[u.Package] = append(p.packages[u.Package], td.Name)
		}
	}
}

// Units returns the units ordered by file id.
func (p *Project) Units() []*Unit {
	return p.units
}

func (p *Project) Unit(id ast.FileID) *Unit {
	return p.byID[id]
}

// DeclaringUnit returns the unit declaring the qualified type name, if it is part of the run.
func (p *Project) DeclaringUnit(qualifiedName string) (*Unit, *TypeDecl, bool) {
	e, ok := p.types[qualifiedName]
	if !ok {
		return nil, nil, false
	}
	return e.unit, e.decl, true
}

func (p *Project) HasType(qualifiedName string) bool {
	_, ok := p.types[qualifiedName]
	return ok
}

// HasPackage reports whether any unit of the run declares the package.
func (p *Project) HasPackage(pkg string) bool {
	_, ok := p.packages[pkg]
	return ok
}

func (p *Project) Close() {
	for _, u := range p.units {
		u.Close()
	}
}

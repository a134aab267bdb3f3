package imports

import (
	"sort"
	"strings"

	"github.com/armchr/junitmig/internal/parse"
	"github.com/armchr/junitmig/internal/rewrite"
	"github.com/armchr/junitmig/pkg/lsp/base"
)

// Entry is one import declaration in rule notation ("a.b.C", "a.b.*", "a.B.m").
type Entry struct {
	Static bool
	Name   string
}

func (e Entry) String() string {
	if e.Static {
		return "import static " + e.Name + ";"
	}
	return "import " + e.Name + ";"
}

func (e Entry) wildcard() bool {
	return strings.HasSuffix(e.Name, ".*")
}

// owner is the package or type a wildcard or static import draws names from.
func (e Entry) owner() string {
	return base.Qualifier(e.Name)
}

// SortEntries orders static imports before regular ones, each group by qualified name.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Static != entries[j].Static {
			return entries[i].Static
		}
		return entries[i].Name < entries[j].Name
	})
}

// FormatBlock renders sorted entries, separating the static group from the regular one
// with a blank line.
func FormatBlock(entries []Entry, newline string) string {
	var sb strings.Builder
	for i, e := range entries {
		if i > 0 {
			sb.WriteString(newline)
			if entries[i-1].Static && !e.Static {
				sb.WriteString(newline)
			}
		}
		sb.WriteString(e.String())
	}
	return sb.String()
}

// Usage is the set of simple names referenced by a file outside its import declarations
// and outside code produced by templates.
type Usage map[string]bool

// Plan is the import change of one file.
type Plan struct {
	Final   []Entry
	Added   []Entry
	Removed []Entry
	Kept    []Entry // listed for removal but still referenced
	Clashes []Entry // added single-type imports whose simple name is already bound in the file
}

func (p Plan) Changed() bool {
	return len(p.Added) > 0 || len(p.Removed) > 0
}

// resolver answers membership questions for wildcard imports.
type resolver struct {
	project *parse.Project
}

func (r resolver) typeInPackage(pkg, name string) bool {
	qn := pkg + "." + name
	if parse.IsKnownType(qn) {
		return true
	}
	return r.project != nil && r.project.HasType(qn)
}

func (r resolver) staticMember(owner, member string) bool {
	if parse.HasKnownStaticMember(owner, member) {
		return true
	}
	if r.project == nil {
		return false
	}
	u, td, ok := r.project.DeclaringUnit(owner)
	if !ok {
		return false
	}
	if u.DeclaresMethod(td, member) {
		return true
	}
	for _, f := range u.FieldsOf(td) {
		if f.Static && f.Name == member {
			return true
		}
	}
	return false
}

// used reports whether the remaining code still needs the import.
func (r resolver) used(e Entry, usage Usage) bool {
	if !e.wildcard() {
		return usage[base.LastSegment(e.Name)]
	}
	owner := e.owner()
	for name := range usage {
		if e.Static && r.staticMember(owner, name) {
			return true
		}
		if !e.Static && r.typeInPackage(owner, name) {
			return true
		}
	}
	return false
}

// planImports merges the queued deltas of a file against its existing imports. A name
// both added and removed stays. Removal applies only to listed imports and only when
// nothing references them anymore.
func planImports(u *parse.Unit, delta rewrite.ImportDelta, usage Usage, project *parse.Project) Plan {
	delta = delta.Normalize()
	r := resolver{project: project}

	existing := make([]Entry, 0, len(u.Imports))
	present := make(map[Entry]bool, len(u.Imports))
	for _, imp := range u.Imports {
		e := Entry{Static: imp.Static, Name: imp.Key()}
		if present[e] {
			continue
		}
		present[e] = true
		existing = append(existing, e)
	}

	added := make(map[Entry]bool)
	for _, n := range delta.Add {
		added[Entry{Name: n}] = true
	}
	for _, n := range delta.AddStatic {
		added[Entry{Static: true, Name: n}] = true
	}

	var plan Plan
	removed := make(map[Entry]bool)
	consider := func(names []string, static bool) {
		for _, n := range names {
			e := Entry{Static: static, Name: n}
			if added[e] || !present[e] {
				continue
			}
			if r.used(e, usage) {
				plan.Kept = append(plan.Kept, e)
				continue
			}
			removed[e] = true
			plan.Removed = append(plan.Removed, e)
		}
	}
	consider(delta.Remove, false)
	consider(delta.RemoveStatic, true)

	covered := func(e Entry) bool {
		if present[e] {
			return true
		}
		owner := e.owner()
		if !e.Static && (owner == "java.lang" || owner == u.Package) {
			return true
		}
		wildcard := Entry{Static: e.Static, Name: owner + ".*"}
		return present[wildcard] && !removed[wildcard]
	}

	for _, e := range existing {
		if !removed[e] {
			plan.Final = append(plan.Final, e)
		}
	}
	var adds []Entry
	for e := range added {
		if !covered(e) {
			adds = append(adds, e)
		}
	}
	SortEntries(adds)
	plan.Clashes = clashes(declaredTypes(u), plan.Final, adds)
	plan.Added = adds
	plan.Final = append(plan.Final, adds...)
	SortEntries(plan.Final)
	SortEntries(plan.Removed)
	SortEntries(plan.Kept)
	return plan
}

// clashes returns the single-type imports of adds whose simple name is already taken by
// another single-type import or by a type the unit declares, nested ones included.
func clashes(declared map[string]string, kept, adds []Entry) []Entry {
	bySimple := make(map[string]string, len(declared))
	for simple, qn := range declared {
		bySimple[simple] = qn
	}
	for _, e := range kept {
		if !e.Static && !e.wildcard() {
			bySimple[base.LastSegment(e.Name)] = e.Name
		}
	}
	var out []Entry
	for _, e := range adds {
		if e.Static || e.wildcard() {
			continue
		}
		simple := base.LastSegment(e.Name)
		if prev, ok := bySimple[simple]; ok && prev != e.Name {
			out = append(out, e)
			continue
		}
		bySimple[simple] = e.Name
	}
	return out
}

// declaredTypes maps the simple name of every type declared in u to its qualified name.
// A type of the unit shadows a single-type import of the same simple name.
func declaredTypes(u *parse.Unit) map[string]string {
	out := make(map[string]string, len(u.Types))
	for _, td := range u.Types {
		if _, ok := out[td.Name]; !ok {
			out[td.Name] = td.QualifiedName
		}
	}
	return out
}

package inventory

import (
	"sort"

	"github.com/sudesh1611/scanreport/pkg/set"
)

// Set is a deduplicating collection of packages owned by a single report.
type Set struct {
	packages set.Set[Package]
}

func NewSet() *Set {
	return &Set{
		packages: set.New[Package](),
	}
}

// Add registers a package occurrence. Calling it twice with the same
// arguments is a no-op; a different path or type adds a second package.
func (s *Set) Add(name, version, typ, path string) {
	s.packages.Append(Package{
		Name:    name,
		Version: version,
		Type:    typ,
		Path:    path,
	})
}

func (s *Set) Len() int {
	return s.packages.Len()
}

// All returns every package in a stable order.
func (s *Set) All() []Package {
	v := s.packages.Values()
	sort.Slice(v, func(i, j int) bool {
		return v[i].compare(v[j]) < 0
	})
	return v
}

func (s *Set) ByName(name string) *Set {
	return s.filter(func(p Package) bool { return p.Name == name })
}

func (s *Set) ByType(typ string) *Set {
	return s.filter(func(p Package) bool { return p.Type == typ })
}

func (s *Set) ByNameAndType(name, typ string) *Set {
	return s.filter(func(p Package) bool { return p.Name == name && p.Type == typ })
}

func (s *Set) ByNameAndVersion(name, version string) *Set {
	return s.filter(func(p Package) bool { return p.Name == name && p.Version == version })
}

// Paths returns the sorted, deduplicated, non-empty paths of every package
// with the given name and version.
func (s *Set) Paths(name, version string) []string {
	paths := set.NewOrdered[string]()
	for _, p := range s.ByNameAndVersion(name, version).packages.Values() {
		if p.Path != "" {
			paths.Append(p.Path)
		}
	}
	return paths.Values()
}

func (s *Set) filter(fn func(Package) bool) *Set {
	return &Set{packages: s.packages.Filter(fn)}
}

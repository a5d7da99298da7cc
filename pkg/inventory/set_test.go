package inventory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sudesh1611/scanreport/pkg/inventory"
)

func TestSet_Add(t *testing.T) {
	s := inventory.NewSet()
	s.Add("openssl", "1.1.1", "os", "/usr/lib/a")
	s.Add("openssl", "1.1.1", "os", "/usr/lib/a")
	assert.Equal(t, 1, s.Len())

	s.Add("openssl", "1.1.1", "os", "/usr/lib/b")
	s.Add("openssl", "1.1.1", "", "/usr/lib/a")
	assert.Equal(t, 3, s.Len())

	assert.Equal(t, []inventory.Package{
		{Name: "openssl", Version: "1.1.1", Type: "", Path: "/usr/lib/a"},
		{Name: "openssl", Version: "1.1.1", Type: "os", Path: "/usr/lib/a"},
		{Name: "openssl", Version: "1.1.1", Type: "os", Path: "/usr/lib/b"},
	}, s.All())
}

func TestSet_Filters(t *testing.T) {
	s := inventory.NewSet()
	s.Add("openssl", "1.1.1", "os", "/usr/lib/a")
	s.Add("openssl", "3.0.0", "os", "")
	s.Add("express", "4.17.1", "nodejs", "/app/node_modules/express")
	s.Add("express", "4.17.1", "", "/app/node_modules/express")

	assert.Equal(t, 2, s.ByName("openssl").Len())
	assert.Equal(t, 2, s.ByType("os").Len())
	assert.Equal(t, 1, s.ByNameAndType("express", "nodejs").Len())
	assert.Equal(t, 1, s.ByNameAndType("express", "").Len())
	assert.Equal(t, 2, s.ByNameAndVersion("express", "4.17.1").Len())
	assert.Equal(t, 0, s.ByNameAndVersion("Express", "4.17.1").Len(), "lookups are case-sensitive")

	filtered := s.ByName("openssl")
	filtered.Add("openssl", "9", "os", "")
	assert.Equal(t, 4, s.Len(), "filters must not alias the source set")
}

func TestSet_Paths(t *testing.T) {
	tests := []struct {
		name     string
		packages []inventory.Package
		want     []string
	}{
		{
			name: "union of paths",
			packages: []inventory.Package{
				{Name: "openssl", Version: "1.1.1", Path: "/usr/lib/b"},
				{Name: "openssl", Version: "1.1.1", Type: "os", Path: "/usr/lib/a"},
				{Name: "openssl", Version: "1.1.1", Type: "deb", Path: "/usr/lib/a"},
				{Name: "openssl", Version: "3.0.0", Path: "/usr/lib/c"},
			},
			want: []string{"/usr/lib/a", "/usr/lib/b"},
		},
		{
			name: "empty paths are skipped",
			packages: []inventory.Package{
				{Name: "openssl", Version: "1.1.1", Type: "os"},
			},
			want: []string{},
		},
		{
			name: "unknown package",
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := inventory.NewSet()
			for _, p := range tt.packages {
				s.Add(p.Name, p.Version, p.Type, p.Path)
			}
			assert.Equal(t, tt.want, s.Paths("openssl", "1.1.1"))
		})
	}
}

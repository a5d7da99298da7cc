package inventory

import (
	"encoding/json"
	"strings"
)

// Package is one installed package occurrence. Identity is the whole tuple:
// the same name and version found at two paths are two packages.
type Package struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Type    string `json:"type"`
	Path    string `json:"path"`
}

func (p Package) String() string {
	b, _ := json.Marshal(p)
	return string(b)
}

func (p Package) compare(o Package) int {
	for _, f := range [][2]string{
		{p.Name, o.Name},
		{p.Version, o.Version},
		{p.Type, o.Type},
		{p.Path, o.Path},
	} {
		if c := strings.Compare(f[0], f[1]); c != 0 {
			return c
		}
	}
	return 0
}

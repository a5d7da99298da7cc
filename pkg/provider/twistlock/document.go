package twistlock

import (
	"bytes"
	"encoding/json"
	"strings"

	"golang.org/x/xerrors"
)

var ErrInvalidDocument = xerrors.New("invalid image scan document")

type RepoTag struct {
	Registry string `json:"registry"`
	Repo     string `json:"repo"`
	Tag      string `json:"tag"`
}

func (t RepoTag) String() string {
	return strings.Join([]string{t.Registry, t.Repo, t.Tag}, "/")
}

// Document is one per-image scan result. Package, application, vulnerability
// and compliance entries are kept raw so that a single bad entry does not
// fail the whole document.
type Document struct {
	ID               string            `json:"_id"`
	Name             string            `json:"name"`
	RepoTag          *RepoTag          `json:"repoTag"`
	Distro           string            `json:"distro"`
	DistroRelease    string            `json:"distroRelease"` // superseded by OSDistroVersion
	OSDistroVersion  string            `json:"osDistroVersion"`
	Digest           string            `json:"digest"`
	Namespaces       StringOrList      `json:"namespaces"`
	Secrets          StringOrList      `json:"secrets"`
	Packages         []json.RawMessage `json:"packages"`
	Applications     []json.RawMessage `json:"applications"`
	Vulnerabilities  []json.RawMessage `json:"vulnerabilities"`
	ComplianceIssues []json.RawMessage `json:"complianceIssues"`
	Compliances      []json.RawMessage `json:"compliances"`
}

// DisplayName is registry/repo/tag when the repo tag is known.
func (d Document) DisplayName() string {
	if d.RepoTag != nil {
		return d.RepoTag.String()
	}
	return d.Name
}

func (d Document) ContentDigest() string {
	if d.Digest != "" {
		return d.Digest
	}
	return d.ID
}

// StringOrList accepts either a string or a list of strings. Lists are
// joined with ", ".
type StringOrList string

func (s *StringOrList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '[' {
		var list []string
		if err := json.Unmarshal(b, &list); err != nil {
			return xerrors.Errorf("string list decode error: %w", err)
		}
		*s = StringOrList(strings.Join(list, ", "))
		return nil
	}
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return xerrors.Errorf("string decode error: %w", err)
	}
	*s = StringOrList(v)
	return nil
}

type Package struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Type    string `json:"type"`
	Path    string `json:"path"`
}

// PackageEntry is either a group of packages sharing one package-manager
// type, {"type": ..., "pkgs": [...]}, or a single flat package.
type PackageEntry struct {
	Grouped  bool
	Type     string
	Packages []Package
}

func (e *PackageEntry) UnmarshalJSON(b []byte) error {
	var group struct {
		Type string     `json:"type"`
		Pkgs *[]Package `json:"pkgs"`
	}
	if err := json.Unmarshal(b, &group); err != nil {
		return xerrors.Errorf("package entry decode error: %w", err)
	}
	if group.Pkgs != nil {
		pkgs := make([]Package, 0, len(*group.Pkgs))
		for _, p := range *group.Pkgs {
			p.Type = group.Type
			pkgs = append(pkgs, p)
		}
		*e = PackageEntry{Grouped: true, Type: group.Type, Packages: pkgs}
		return nil
	}

	var flat Package
	if err := json.Unmarshal(b, &flat); err != nil {
		return xerrors.Errorf("package decode error: %w", err)
	}
	*e = PackageEntry{Type: flat.Type, Packages: []Package{flat}}
	return nil
}

type Application struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Path    string `json:"path"`
}

// SplitDocuments accepts a single scan document or a list of them, as
// returned by the per-host image listing.
func SplitDocuments(payload []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, xerrors.Errorf("empty payload: %w", ErrInvalidDocument)
	}
	switch trimmed[0] {
	case '{':
		return []json.RawMessage{json.RawMessage(trimmed)}, nil
	case '[':
		var docs []json.RawMessage
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return nil, xerrors.Errorf("json decode error (%s): %w", err, ErrInvalidDocument)
		}
		return docs, nil
	}
	return nil, xerrors.Errorf("payload must be an object or a list: %w", ErrInvalidDocument)
}

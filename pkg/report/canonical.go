package report

import (
	"golang.org/x/xerrors"

	"github.com/sudesh1611/scanreport/pkg/compliance"
	"github.com/sudesh1611/scanreport/pkg/log"
	"github.com/sudesh1611/scanreport/pkg/vulnerability"
)

// Bucket groups the findings of one package name and version.
type Bucket struct {
	CVEs map[string]vulnerability.Record `json:"cves"`
	Path []string                        `json:"path"`
}

// Results maps package name -> package version -> bucket.
type Results map[string]map[string]*Bucket

// Canonical is the provider-independent report document.
type Canonical struct {
	ComplianceResults []compliance.Record `json:"compliance_results"`
	CVEResults        Results             `json:"cve_results"`
	Digest            string              `json:"digest"`
	Distro            string              `json:"distro"`
	DistroRelease     string              `json:"distro_release"`
	ID                string              `json:"id"`
	Name              string              `json:"name"`
	Namespaces        string              `json:"namespaces"`
	Secrets           string              `json:"secrets"`
}

// ToCanonical assembles the canonical document. Each distinct package name
// and version is looked up in the package set once. On an inconsistent
// report, or when a transform fails, it returns ErrAssembly and no document.
func (r *Report) ToCanonical() (*Canonical, error) {
	if r.vulns == nil || r.packages == nil || r.compliances == nil {
		return nil, xerrors.Errorf("report %q is missing record sets: %w", r.ID, ErrAssembly)
	}
	logger := log.OrDefault(r.logger)

	results := Results{}
	for _, v := range r.vulns.All() {
		if v.ID == "" {
			logger.Error("Vulnerability without identifier in report", log.ReportID(r.ID),
				log.String("package", v.PackageName), log.String("version", v.PackageVersion))
			return nil, xerrors.Errorf("vulnerability of %s@%s has no identifier: %w",
				v.PackageName, v.PackageVersion, ErrAssembly)
		}

		versions, ok := results[v.PackageName]
		if !ok {
			versions = map[string]*Bucket{}
			results[v.PackageName] = versions
		}
		bucket, ok := versions[v.PackageVersion]
		if !ok {
			bucket = &Bucket{
				CVEs: map[string]vulnerability.Record{},
				Path: r.packages.Paths(v.PackageName, v.PackageVersion),
			}
			versions[v.PackageVersion] = bucket
		}
		bucket.CVEs[v.ID] = v
	}

	c := &Canonical{
		ComplianceResults: r.compliances.All(),
		CVEResults:        results,
		Digest:            r.Digest,
		Distro:            r.Distro,
		DistroRelease:     r.DistroRelease,
		ID:                r.ID,
		Name:              r.Name,
		Namespaces:        r.Namespaces,
		Secrets:           r.Secrets,
	}
	for _, t := range r.transforms {
		next, err := t(c)
		if err != nil {
			logger.Error("Failed to transform canonical report", log.ReportID(r.ID), log.Err(err))
			return nil, xerrors.Errorf("transform error (%s): %w", err, ErrAssembly)
		}
		c = next
	}
	return c, nil
}

package report

import (
	"encoding/json"

	"github.com/samber/lo"
	"golang.org/x/xerrors"

	"github.com/sudesh1611/scanreport/pkg/compliance"
	"github.com/sudesh1611/scanreport/pkg/inventory"
	"github.com/sudesh1611/scanreport/pkg/log"
	"github.com/sudesh1611/scanreport/pkg/utils"
	"github.com/sudesh1611/scanreport/pkg/vulnerability"
)

var (
	// ErrAssembly means no canonical report is available. It never stands for
	// an empty report.
	ErrAssembly = xerrors.New("failed to assemble canonical report")
	ErrNoRaw    = xerrors.New("no raw payload attached to report")
)

// Metadata labels the scanned artifact: an image, or a project version.
type Metadata struct {
	ID            string
	Name          string
	Distro        string
	DistroRelease string
	Digest        string
	Namespaces    string
	Secrets       string
}

// Report owns the record sets of exactly one scanned artifact.
type Report struct {
	Metadata

	vulns       *vulnerability.Set
	packages    *inventory.Set
	compliances *compliance.Set
	raw         json.RawMessage
	transforms  []Transform
	logger      *log.Logger
}

// Transform rewrites an assembled canonical report, e.g. to apply analyst
// overrides. It must not modify its argument.
type Transform func(*Canonical) (*Canonical, error)

type Option func(*Report)

func WithVulnerabilities(s *vulnerability.Set) Option {
	return func(r *Report) {
		r.vulns = s
	}
}

func WithPackages(s *inventory.Set) Option {
	return func(r *Report) {
		r.packages = s
	}
}

func WithCompliances(s *compliance.Set) Option {
	return func(r *Report) {
		r.compliances = s
	}
}

// WithRaw attaches the provider payload the report was built from.
func WithRaw(raw []byte) Option {
	return func(r *Report) {
		r.raw = append(json.RawMessage(nil), raw...)
	}
}

// WithTransform appends t to the transforms run at the end of ToCanonical.
func WithTransform(t Transform) Option {
	return func(r *Report) {
		r.transforms = append(r.transforms, t)
	}
}

func WithLogger(l *log.Logger) Option {
	return func(r *Report) {
		r.logger = l
	}
}

// New returns a report; sets that are not supplied start empty.
func New(meta Metadata, opts ...Option) *Report {
	r := &Report{Metadata: meta}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = log.OrDefault(r.logger)
	if r.vulns == nil {
		r.vulns = vulnerability.NewSet(vulnerability.WithLogger(r.logger))
	}
	if r.packages == nil {
		r.packages = inventory.NewSet()
	}
	if r.compliances == nil {
		r.compliances = compliance.NewSet(compliance.WithLogger(r.logger))
	}
	return r
}

// AddTransform appends t to the transforms run at the end of ToCanonical.
func (r *Report) AddTransform(t Transform) {
	r.transforms = append(r.transforms, t)
}

func (r *Report) Vulnerabilities() *vulnerability.Set {
	return r.vulns
}

func (r *Report) Packages() *inventory.Set {
	return r.packages
}

func (r *Report) Compliances() *compliance.Set {
	return r.compliances
}

// Raw returns the attached provider payload, or nil.
func (r *Report) Raw() json.RawMessage {
	return r.raw
}

// SeverityCounts counts vulnerabilities per severity label.
func (r *Report) SeverityCounts() map[string]int {
	if r.vulns == nil {
		return map[string]int{}
	}
	groups := lo.GroupBy(r.vulns.All(), func(v vulnerability.Record) string {
		return v.Severity
	})
	return lo.MapValues(groups, func(v []vulnerability.Record, _ string) int {
		return len(v)
	})
}

// Save writes the canonical report to path as indented, key-sorted JSON.
func (r *Report) Save(path string) error {
	logger := log.OrDefault(r.logger)

	canonical, err := r.ToCanonical()
	if err != nil {
		logger.Error("Failed to build processed report", log.ReportID(r.ID), log.Err(err))
		return xerrors.Errorf("canonical report error: %w", err)
	}
	if err = utils.WriteJSONFile(path, canonical); err != nil {
		logger.Error("Failed to save processed report", log.ReportID(r.ID), log.FilePath(path), log.Err(err))
		return xerrors.Errorf("failed to save report: %w", err)
	}
	logger.Info("Saved processed report", log.ReportID(r.ID), log.FilePath(path))
	return nil
}

// SaveRaw writes the attached provider payload to path.
func (r *Report) SaveRaw(path string) error {
	logger := log.OrDefault(r.logger)

	if len(r.raw) == 0 {
		logger.Error("No raw payload to save", log.ReportID(r.ID), log.FilePath(path))
		return ErrNoRaw
	}
	if err := utils.WriteJSONFile(path, r.raw); err != nil {
		logger.Error("Failed to save raw report", log.ReportID(r.ID), log.FilePath(path), log.Err(err))
		return xerrors.Errorf("failed to save raw report: %w", err)
	}
	logger.Info("Saved raw report", log.ReportID(r.ID), log.FilePath(path))
	return nil
}

package twistlock

import (
	"bytes"
	"encoding/json"

	"github.com/samber/oops"
	"golang.org/x/xerrors"

	"github.com/sudesh1611/scanreport/pkg/compliance"
	"github.com/sudesh1611/scanreport/pkg/inventory"
	"github.com/sudesh1611/scanreport/pkg/log"
	"github.com/sudesh1611/scanreport/pkg/report"
	"github.com/sudesh1611/scanreport/pkg/utils"
	"github.com/sudesh1611/scanreport/pkg/vulnerability"
)

// dateField pairs a canonical date key with the key some feeds use instead.
// The variant holds a Unix timestamp or a formatted string.
type dateField struct {
	primary string
	variant string
}

var dateFields = []dateField{
	{primary: vulnerability.KeyPublishedDate, variant: "published"},
	{primary: vulnerability.KeyDiscoveredDate, variant: "discovered"},
	{primary: vulnerability.KeyFixedDate, variant: "fixDate"},
}

type Parser struct {
	logger *log.Logger
}

type Option func(*Parser)

func WithLogger(l *log.Logger) Option {
	return func(p *Parser) {
		p.logger = l
	}
}

func NewParser(opts ...Option) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = log.OrDefault(p.logger)
	return p
}

// Parse builds the report of one image scan document.
func (p *Parser) Parse(payload []byte) (*report.Report, error) {
	var doc Document
	if err := json.Unmarshal(payload, &doc); err != nil {
		p.logger.Error("Failed to decode image scan document", log.Err(err))
		return nil, xerrors.Errorf("json decode error (%s): %w", err, ErrInvalidDocument)
	}

	logger := p.logger.With(log.ReportID(doc.ID))
	vulns := vulnerability.NewSet(vulnerability.WithLogger(logger))
	packages := inventory.NewSet()
	compliances := compliance.NewSet(compliance.WithLogger(logger))

	for _, raw := range doc.Packages {
		var entry PackageEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			logger.Error("Failed to decode package entry", log.Err(err), log.Payload(raw))
			continue
		}
		for _, pkg := range entry.Packages {
			packages.Add(pkg.Name, pkg.Version, pkg.Type, pkg.Path)
		}
	}

	for _, raw := range doc.Applications {
		var app Application
		if err := json.Unmarshal(raw, &app); err != nil {
			logger.Error("Failed to decode application", log.Err(err), log.Payload(raw))
			continue
		}
		packages.Add(app.Name, app.Version, "", app.Path)
	}

	for _, raw := range doc.Vulnerabilities {
		b, err := normalizeVulnerability(raw)
		if err != nil {
			logger.Error("Failed to normalize vulnerability", log.Err(err), log.Payload(raw))
			continue
		}
		// Add logs its own failures.
		_ = vulns.Add(b)
	}

	for _, issues := range [][]json.RawMessage{doc.ComplianceIssues, doc.Compliances} {
		for _, raw := range issues {
			_ = compliances.Add(raw)
		}
	}

	logger.Info("Parsed image scan document",
		log.String("name", doc.DisplayName()),
		log.Int("vulnerabilities", vulns.Len()),
		log.Int("packages", packages.Len()),
		log.Int("compliances", compliances.Len()))

	return report.New(report.Metadata{
		ID:            doc.ID,
		Name:          doc.DisplayName(),
		Distro:        doc.Distro,
		DistroRelease: doc.OSDistroVersion,
		Digest:        doc.ContentDigest(),
		Namespaces:    string(doc.Namespaces),
		Secrets:       string(doc.Secrets),
	},
		report.WithVulnerabilities(vulns),
		report.WithPackages(packages),
		report.WithCompliances(compliances),
		report.WithRaw(payload),
		report.WithLogger(logger),
	), nil
}

// normalizeVulnerability rewrites the three date keys of a raw vulnerability
// into the canonical layout, leaving every other key untouched.
func normalizeVulnerability(raw json.RawMessage) ([]byte, error) {
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()

	var v map[string]any
	if err := d.Decode(&v); err != nil {
		return nil, oops.Wrapf(err, "json decode error")
	}
	if v == nil {
		return nil, oops.Errorf("vulnerability is null")
	}

	for _, f := range dateFields {
		v[f.primary] = resolveDate(v, f)
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, oops.Wrapf(err, "json encode error")
	}
	return b, nil
}

// resolveDate tries the primary key, then the variant key as a Unix
// timestamp, then the variant key as a formatted string. It returns "" when
// all three fail.
func resolveDate(v map[string]any, f dateField) string {
	if s, ok := v[f.primary].(string); ok {
		if t, ok := utils.ParseTwistlockDateTime(s); ok {
			return utils.FormatDateTime(t)
		}
	}

	switch variant := v[f.variant].(type) {
	case json.Number:
		if sec, err := variant.Int64(); err == nil {
			return utils.FormatDateTime(utils.FromUnix(sec))
		}
	case string:
		if t, ok := utils.ParseTwistlockDateTime(variant); ok {
			return utils.FormatDateTime(t)
		}
	}
	return ""
}

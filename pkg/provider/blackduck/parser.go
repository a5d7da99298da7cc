package blackduck

import (
	"bytes"
	"context"
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

var ErrInvalidPayload = xerrors.New("invalid vulnerable BOM payload")

type meta struct {
	Href string `json:"href"`
}

type cvssDetail struct {
	Vector string `json:"vector"`
}

type remediation struct {
	VulnerabilityName          string      `json:"vulnerabilityName"`
	Description                string      `json:"description"`
	OverallScore               *float64    `json:"overallScore"`
	Severity                   string      `json:"severity"`
	VulnerabilityPublishedDate string      `json:"vulnerabilityPublishedDate"`
	RemediationUpdatedAt       string      `json:"remediationUpdatedAt"`
	CVSS3                      *cvssDetail `json:"cvss3"`
	CVSS2                      *cvssDetail `json:"cvss2"`
}

// BOMComponent is one vulnerable bill-of-materials entry.
type BOMComponent struct {
	Meta                       meta         `json:"_meta"`
	ComponentName              string       `json:"componentName"`
	ComponentVersionName       string       `json:"componentVersionName"`
	ComponentVersionOriginName string       `json:"componentVersionOriginName"`
	Vulnerability              *remediation `json:"vulnerabilityWithRemediation"`
}

type page struct {
	TotalCount int               `json:"totalCount"`
	Items      []json.RawMessage `json:"items"`
}

// Parser converts vulnerable BOM component listings into reports. It holds no
// per-report state and can be shared.
type Parser struct {
	resolver Resolver
	logger   *log.Logger
}

type Option func(*Parser)

func WithLogger(l *log.Logger) Option {
	return func(p *Parser) {
		p.logger = l
	}
}

func NewParser(resolver Resolver, opts ...Option) *Parser {
	p := &Parser{resolver: resolver}
	for _, opt := range opts {
		opt(p)
	}
	if p.resolver == nil {
		p.resolver = NopResolver{}
	}
	p.logger = log.OrDefault(p.logger)
	return p
}

// Parse builds the report of one project version. payload is the drained
// list of vulnerable BOM components; a single API page ({"items": [...]}) is
// accepted as well. Entries that cannot be parsed are logged and skipped.
func (p *Parser) Parse(ctx context.Context, payload []byte, versionID, versionName string) (*report.Report, error) {
	items, err := decodeItems(payload)
	if err != nil {
		p.logger.Error("Failed to decode vulnerable BOM payload", log.ReportID(versionID), log.Err(err))
		return nil, err
	}

	logger := p.logger.With(log.ReportID(versionID))
	vulns := vulnerability.NewSet(vulnerability.WithLogger(logger))
	packages := inventory.NewSet()

	for _, item := range items {
		if err = p.parseItem(ctx, item, vulns, packages, logger); err != nil {
			logger.Error("Failed to parse vulnerable BOM component", log.Err(err), log.Payload(item))
		}
	}
	logger.Info("Parsed vulnerable BOM components",
		log.Int("items", len(items)),
		log.Int("vulnerabilities", vulns.Len()),
		log.Int("packages", packages.Len()))

	return report.New(report.Metadata{
		ID:   versionID,
		Name: versionName,
	},
		report.WithVulnerabilities(vulns),
		report.WithPackages(packages),
		report.WithCompliances(compliance.NewSet(compliance.WithLogger(logger))),
		report.WithRaw(payload),
		report.WithLogger(logger),
	), nil
}

func decodeItems(payload []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, xerrors.Errorf("empty payload: %w", ErrInvalidPayload)
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, xerrors.Errorf("json decode error (%s): %w", err, ErrInvalidPayload)
		}
		return items, nil
	case '{':
		var pg page
		if err := json.Unmarshal(trimmed, &pg); err != nil {
			return nil, xerrors.Errorf("json decode error (%s): %w", err, ErrInvalidPayload)
		}
		if pg.Items == nil {
			return nil, xerrors.Errorf("object payload without items: %w", ErrInvalidPayload)
		}
		return pg.Items, nil
	}
	return nil, xerrors.Errorf("payload must be a JSON array: %w", ErrInvalidPayload)
}

func (p *Parser) parseItem(ctx context.Context, item json.RawMessage, vulns *vulnerability.Set,
	packages *inventory.Set, logger *log.Logger) error {
	var c BOMComponent
	if err := json.Unmarshal(item, &c); err != nil {
		return oops.Wrapf(err, "json decode error")
	}
	eb := oops.With("href", c.Meta.Href, "component", c.ComponentName, "version", c.ComponentVersionName)

	packages.Add(c.ComponentName, c.ComponentVersionName, c.ComponentVersionOriginName, "")

	v := c.Vulnerability
	if v == nil || v.VulnerabilityName == "" {
		logger.Info("Skipping component without vulnerability identifier",
			log.String("package", c.ComponentName), log.String("version", c.ComponentVersionName))
		return nil
	}

	ref, err := ParseHref(c.Meta.Href)
	if err != nil {
		return eb.Wrapf(err, "href error")
	}

	doc := map[string]any{
		vulnerability.KeyID:             v.VulnerabilityName,
		vulnerability.KeyCVE:            v.VulnerabilityName,
		vulnerability.KeyDescription:    v.Description,
		vulnerability.KeyStatus:         p.resolver.UpgradeGuidance(ctx, ref),
		vulnerability.KeySeverity:       v.Severity,
		vulnerability.KeyPackageName:    c.ComponentName,
		vulnerability.KeyPackageVersion: c.ComponentVersionName,
		vulnerability.KeyVendorLink:     c.Meta.Href,
		vulnerability.KeyPublishedDate:  reformat(v.VulnerabilityPublishedDate),
		vulnerability.KeyFixedDate:      reformat(v.RemediationUpdatedAt),
	}
	if v.OverallScore != nil {
		doc[vulnerability.KeyCVSS] = *v.OverallScore
	}
	if vector := v.vector(); vector != "" {
		doc[vulnerability.KeyVector] = vector
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return eb.Wrapf(err, "json encode error")
	}
	logger.Info("Parsed vulnerability", log.String("id", v.VulnerabilityName),
		log.String("package", c.ComponentName), log.String("version", c.ComponentVersionName))

	if err = vulns.Add(b); err != nil {
		return eb.Wrapf(err, "vulnerability record error")
	}
	return nil
}

func (r *remediation) vector() string {
	if r.CVSS3 != nil && r.CVSS3.Vector != "" {
		return r.CVSS3.Vector
	}
	if r.CVSS2 != nil {
		return r.CVSS2.Vector
	}
	return ""
}

// reformat converts a provider timestamp to the canonical layout, or "".
func reformat(value string) string {
	t, ok := utils.ParseBlackDuckDateTime(value)
	if !ok {
		return ""
	}
	return utils.FormatDateTime(t)
}

package vulnerability

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/goark/go-cvss/v3/metric"
	"golang.org/x/xerrors"

	"github.com/sudesh1611/scanreport/pkg/types"
	"github.com/sudesh1611/scanreport/pkg/utils"
)

// Keys of the normalized vulnerability document. Provider parsers emit these
// and Parse reads them.
const (
	KeyID             = "id"
	KeyCVE            = "cve"
	KeyDescription    = "description"
	KeyCVSS           = "cvss"
	KeyStatus         = "status"
	KeyVector         = "vector"
	KeyVectorVariant  = "vecStr"
	KeySeverity       = "severity"
	KeyPackageName    = "packageName"
	KeyPackageVersion = "packageVersion"
	KeyVendorLink     = "link"
	KeyNVDLink        = "nvdLink"
	KeyPublishedDate  = "publishedDate"
	KeyDiscoveredDate = "discoveredDate"
	KeyFixedDate      = "fixedDate"
)

var (
	ErrInvalidRecord = xerrors.New("invalid vulnerability record")
	ErrMissingID     = xerrors.New("vulnerability record has no identifier")
)

// Record is one vulnerability finding tied to a package name and version.
// It is a comparable value; two records with the same attributes are the
// same finding.
type Record struct {
	ID             string
	Description    string
	CVSS           types.Score
	Status         string
	Vector         string
	Severity       string
	PackageName    string
	PackageVersion string
	VendorLink     string
	Published      string
	Discovered     string
	Fixed          string
}

type rawRecord struct {
	ID             json.RawMessage `json:"id"`
	CVE            string          `json:"cve"`
	Description    string          `json:"description"`
	CVSS           *float64        `json:"cvss"`
	Status         string          `json:"status"`
	Vector         *string         `json:"vector"`
	VectorVariant  string          `json:"vecStr"`
	Severity       string          `json:"severity"`
	PackageName    string          `json:"packageName"`
	PackageVersion string          `json:"packageVersion"`
	VendorLink     string          `json:"link"`
	PublishedDate  string          `json:"publishedDate"`
	DiscoveredDate string          `json:"discoveredDate"`
	FixedDate      string          `json:"fixedDate"`
}

// Parse builds a Record from a normalized vulnerability document.
func Parse(raw []byte) (Record, error) {
	var r rawRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return Record{}, xerrors.Errorf("json decode error (%s): %w", err, ErrInvalidRecord)
	}

	id, err := resolveID(r.ID, r.CVE)
	if err != nil {
		return Record{}, err
	}

	vector := r.VectorVariant
	if r.Vector != nil {
		vector = *r.Vector
	}

	var score types.Score
	if r.CVSS != nil {
		score = types.NewScore(*r.CVSS)
	} else if s, ok := scoreFromVector(vector); ok {
		score = types.NewScore(s)
	}

	return Record{
		ID:             id,
		Description:    r.Description,
		CVSS:           score,
		Status:         r.Status,
		Vector:         vector,
		Severity:       r.Severity,
		PackageName:    r.PackageName,
		PackageVersion: r.PackageVersion,
		VendorLink:     r.VendorLink,
		Published:      utils.NormalizeDateTime(r.PublishedDate),
		Discovered:     utils.NormalizeDateTime(r.DiscoveredDate),
		Fixed:          utils.NormalizeDateTime(r.FixedDate),
	}, nil
}

// resolveID returns the string id, or the CVE field when the id is numeric or
// missing. Some image-scanner feeds put a rule number in "id" and the CVE
// string in "cve".
func resolveID(raw json.RawMessage, cve string) (string, error) {
	raw = bytes.TrimSpace(raw)
	id := cve
	switch {
	case len(raw) == 0 || string(raw) == "null":
	case raw[0] == '"':
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", xerrors.Errorf("id decode error (%s): %w", err, ErrInvalidRecord)
		}
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", xerrors.Errorf("unsupported id %s: %w", raw, ErrInvalidRecord)
		}
	}
	if strings.TrimSpace(id) == "" {
		return "", ErrMissingID
	}
	return id, nil
}

func scoreFromVector(vector string) (float64, bool) {
	if !strings.HasPrefix(vector, "CVSS:3") {
		return 0, false
	}
	bm, err := metric.NewBase().Decode(vector)
	if err != nil {
		return 0, false
	}
	return bm.Score(), true
}

// NVDLink is derived from the identifier.
func (r Record) NVDLink() string {
	return utils.NVDLink(r.ID)
}

type recordJSON struct {
	ID             string      `json:"id"`
	CVE            string      `json:"cve"`
	Description    string      `json:"description"`
	CVSS           types.Score `json:"cvss"`
	Status         string      `json:"status"`
	Vector         string      `json:"vector"`
	Severity       string      `json:"severity"`
	PackageName    string      `json:"packageName"`
	PackageVersion string      `json:"packageVersion"`
	VendorLink     string      `json:"link"`
	NVDLink        string      `json:"nvdLink"`
	PublishedDate  string      `json:"publishedDate"`
	DiscoveredDate string      `json:"discoveredDate"`
	FixedDate      string      `json:"fixedDate"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		ID:             r.ID,
		CVE:            r.ID,
		Description:    r.Description,
		CVSS:           r.CVSS,
		Status:         r.Status,
		Vector:         r.Vector,
		Severity:       r.Severity,
		PackageName:    r.PackageName,
		PackageVersion: r.PackageVersion,
		VendorLink:     r.VendorLink,
		NVDLink:        r.NVDLink(),
		PublishedDate:  r.Published,
		DiscoveredDate: r.Discovered,
		FixedDate:      r.Fixed,
	})
}

// UnmarshalJSON reads a record back from its rendered form.
func (r *Record) UnmarshalJSON(b []byte) error {
	rec, err := Parse(b)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

func (r Record) compare(o Record) int {
	fields := [][2]string{
		{r.PackageName, o.PackageName},
		{r.PackageVersion, o.PackageVersion},
		{r.ID, o.ID},
		{r.Severity, o.Severity},
		{r.Status, o.Status},
		{r.Vector, o.Vector},
		{r.Description, o.Description},
		{r.VendorLink, o.VendorLink},
		{r.Published, o.Published},
		{r.Discovered, o.Discovered},
		{r.Fixed, o.Fixed},
	}
	for _, f := range fields {
		if c := strings.Compare(f[0], f[1]); c != 0 {
			return c
		}
	}
	switch {
	case r.CVSS.Valid != o.CVSS.Valid:
		if r.CVSS.Valid {
			return 1
		}
		return -1
	case r.CVSS.Value < o.CVSS.Value:
		return -1
	case r.CVSS.Value > o.CVSS.Value:
		return 1
	}
	return 0
}

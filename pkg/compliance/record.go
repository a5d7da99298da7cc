package compliance

import (
	"bytes"
	"encoding/json"
	"strings"

	"golang.org/x/xerrors"
)

var ErrInvalidRecord = xerrors.New("invalid compliance record")

// Record is one compliance or policy finding. Identity is the whole tuple.
type Record struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Cause       string `json:"cause"`
}

// Parse reads the four compliance fields from raw; any other field is ignored.
func Parse(raw []byte) (Record, error) {
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '{' {
		return Record{}, xerrors.Errorf("compliance document must be a JSON object: %w", ErrInvalidRecord)
	}
	var r Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return Record{}, xerrors.Errorf("json decode error (%s): %w", err, ErrInvalidRecord)
	}
	return r, nil
}

// Compare orders records by title, severity, cause and description.
func (r Record) Compare(o Record) int {
	for _, f := range [][2]string{
		{r.Title, o.Title},
		{r.Severity, o.Severity},
		{r.Cause, o.Cause},
		{r.Description, o.Description},
	} {
		if c := strings.Compare(f[0], f[1]); c != 0 {
			return c
		}
	}
	return 0
}

package override

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"

	"github.com/josephburnett/jd/v2"
	"github.com/samber/oops"
	"go.yaml.in/yaml/v4"

	"github.com/sudesh1611/scanreport/pkg/log"
	"github.com/sudesh1611/scanreport/pkg/report"
	"github.com/sudesh1611/scanreport/pkg/types"
	"github.com/sudesh1611/scanreport/pkg/utils"
)

const configFile = "config.yaml"

// Config represents the override configuration file
type Config struct {
	Overrides []Entry `yaml:"overrides"`
}

// Entry binds a jd diff to the canonical report of one artifact.
type Entry struct {
	Provider types.Provider `yaml:"provider"` // Empty matches every provider
	Report   string         `yaml:"report"`   // Report id, e.g. an image digest or project version id
	Diff     string         `yaml:"diff"`     // Path to jd diff file (relative to overrides dir)
	Reason   string         `yaml:"reason"`
}

// Overrides holds loaded override configuration
type Overrides struct {
	entries      []Entry
	overridesDir string
	logger       *log.Logger
}

// Patch is a parsed diff ready to be applied to a rendered report.
type Patch struct {
	Entry
	diff jd.Diff
}

type Option func(*Overrides)

func WithLogger(l *log.Logger) Option {
	return func(o *Overrides) {
		o.logger = l
	}
}

// Load reads config.yaml from the given directory
func Load(overridesDir string, opts ...Option) (*Overrides, error) {
	eb := oops.With("overrides_dir", overridesDir)

	f, err := os.Open(filepath.Join(overridesDir, configFile))
	if err != nil {
		return nil, eb.Wrapf(err, "failed to open config file")
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, eb.Wrapf(err, "failed to parse config.yaml")
	}

	o := &Overrides{
		entries:      make([]Entry, 0, len(cfg.Overrides)),
		overridesDir: overridesDir,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = log.WithPrefixOf(o.logger, "override")

	for _, e := range cfg.Overrides {
		eb := eb.With("report", e.Report, "diff", e.Diff)
		switch {
		case e.Report == "":
			return nil, eb.Errorf("override entry missing 'report' field")
		case e.Diff == "":
			return nil, eb.Errorf("override entry missing 'diff' field")
		case !filepath.IsLocal(e.Diff):
			return nil, eb.Errorf("diff path must be local")
		case e.Provider != "" && !slices.Contains(types.Providers, e.Provider):
			return nil, eb.With("provider", e.Provider).Errorf("unknown provider")
		}
		o.entries = append(o.entries, e)
	}

	return o, nil
}

// Match returns the patches for one report in configuration order. Diff
// files are read when matched.
func (o *Overrides) Match(provider types.Provider, id string) ([]*Patch, error) {
	if o == nil {
		return nil, nil
	}

	var patches []*Patch
	for _, e := range o.entries {
		if e.Report != id || (e.Provider != "" && e.Provider != provider) {
			continue
		}

		diffPath := filepath.Join(o.overridesDir, e.Diff)
		diff, err := jd.ReadDiffFile(diffPath)
		if err != nil {
			return nil, oops.With("diff_file", diffPath).Wrapf(err, "failed to read/parse diff file")
		}
		patches = append(patches, &Patch{Entry: e, diff: diff})
	}
	return patches, nil
}

// Apply applies the patch to a rendered JSON document.
func (p *Patch) Apply(original []byte) ([]byte, error) {
	node, err := jd.ReadJsonString(string(original))
	if err != nil {
		return nil, oops.Wrapf(err, "failed to parse original JSON")
	}

	patched, err := node.Patch(p.diff)
	if err != nil {
		return nil, oops.With("diff", p.Diff).Wrapf(err, "failed to apply patch")
	}

	return []byte(patched.Json()), nil
}

// Transform returns a report.Transform applying every matching patch to
// reports of provider.
func (o *Overrides) Transform(provider types.Provider) report.Transform {
	return func(c *report.Canonical) (*report.Canonical, error) {
		patches, err := o.Match(provider, c.ID)
		if err != nil || len(patches) == 0 {
			return c, err
		}

		doc, err := utils.MarshalSorted(c)
		if err != nil {
			return nil, oops.Wrapf(err, "failed to render report")
		}
		for _, p := range patches {
			if doc, err = p.Apply(doc); err != nil {
				return nil, err
			}
			o.logger.Info("Applied override", log.ReportID(c.ID),
				log.String("diff", p.Diff), log.String("reason", p.Reason))
		}

		var patched report.Canonical
		if err = json.Unmarshal(doc, &patched); err != nil {
			return nil, oops.Wrapf(err, "patched report is not a canonical report")
		}
		return &patched, nil
	}
}

// Count returns the number of override entries
func (o *Overrides) Count() int {
	if o == nil {
		return 0
	}
	return len(o.entries)
}

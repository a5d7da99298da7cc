package pkg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/urfave/cli"
	"golang.org/x/xerrors"

	"github.com/sudesh1611/scanreport/pkg/archive"
	"github.com/sudesh1611/scanreport/pkg/config"
	"github.com/sudesh1611/scanreport/pkg/log"
	"github.com/sudesh1611/scanreport/pkg/override"
	"github.com/sudesh1611/scanreport/pkg/provider/blackduck"
	"github.com/sudesh1611/scanreport/pkg/provider/twistlock"
	"github.com/sudesh1611/scanreport/pkg/report"
	"github.com/sudesh1611/scanreport/pkg/types"
	"github.com/sudesh1611/scanreport/pkg/utils"
)

const (
	processedSuffix = ".processed.json"
	rawSuffix       = ".raw.json"
)

func (ac AppConfig) blackDuck(c *cli.Context) error {
	cfg, err := settings(c)
	if err != nil {
		return err
	}
	versionID := c.String("version-id")
	if versionID == "" {
		return xerrors.New("--version-id is required")
	}
	payload, err := readInput(c)
	if err != nil {
		return err
	}
	logger := ac.logger(cfg)

	ctx := context.Background()
	var resolver blackduck.Resolver = blackduck.NopResolver{}
	online := !c.Bool("offline") && cfg.BlackDuck.BaseURL != ""
	if online {
		if resolver, err = ac.NewResolver(ctx, cfg.BlackDuck, logger); err != nil {
			return xerrors.Errorf("upgrade guidance client error: %w", err)
		}
	} else {
		logger.Info("Upgrade guidance lookups disabled")
	}

	stop := ac.spin(cfg, online && !c.Bool("quiet"), " resolving upgrade guidance")
	r, err := blackduck.NewParser(resolver, blackduck.WithLogger(logger)).
		Parse(ctx, payload, versionID, c.String("version-name"))
	stop()
	if err != nil {
		return xerrors.Errorf("blackduck parse error: %w", err)
	}

	return ac.publish(c, cfg, logger, types.ProviderBlackDuck, []*report.Report{r})
}

func (ac AppConfig) twistlock(c *cli.Context) error {
	cfg, err := settings(c)
	if err != nil {
		return err
	}
	payload, err := readInput(c)
	if err != nil {
		return err
	}
	logger := ac.logger(cfg)

	docs, err := twistlock.SplitDocuments(payload)
	if err != nil {
		logger.Error("Failed to read image scan documents", log.Err(err))
		return xerrors.Errorf("twistlock parse error: %w", err)
	}

	parser := twistlock.NewParser(twistlock.WithLogger(logger))
	var reports []*report.Report
	for i, doc := range docs {
		r, err := parser.Parse(doc)
		if err != nil {
			logger.Error("Skipping image scan document", log.Int("index", i), log.Err(err))
			continue
		}
		reports = append(reports, r)
	}
	if len(reports) == 0 {
		return xerrors.New("no image scan document could be parsed")
	}

	return ac.publish(c, cfg, logger, types.ProviderTwistlock, reports)
}

func readInput(c *cli.Context) ([]byte, error) {
	input := c.String("input")
	if input == "" {
		return nil, xerrors.New("--input is required")
	}
	b, err := os.ReadFile(input)
	if err != nil {
		return nil, xerrors.Errorf("failed to read input: %w", err)
	}
	return b, nil
}

// publish writes the processed and raw files of every report, archives the
// canonical documents and prints a summary.
func (ac AppConfig) publish(c *cli.Context, cfg config.Config, logger *log.Logger,
	provider types.Provider, reports []*report.Report) error {
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return xerrors.Errorf("failed to mkdir: %w", err)
	}

	if cfg.OverridesDir != "" {
		o, err := override.Load(cfg.OverridesDir, override.WithLogger(logger))
		if err != nil {
			return xerrors.Errorf("override error: %w", err)
		}
		logger.Info("Loaded overrides", log.Int("count", o.Count()))
		for _, r := range reports {
			r.AddTransform(o.Transform(provider))
		}
	}

	var store *archive.Store
	if cfg.ArchivePath != "" {
		var err error
		if store, err = archive.Open(cfg.ArchivePath, archive.WithClock(ac.Clock), archive.WithLogger(logger)); err != nil {
			return xerrors.Errorf("archive error: %w", err)
		}
		defer store.Close()
	}

	var failed int
	for _, r := range reports {
		if err := ac.publishOne(cfg, store, provider, r); err != nil {
			logger.Error("Failed to publish report", log.ReportID(r.ID), log.Err(err))
			failed++
			continue
		}
		if !c.Bool("quiet") {
			ac.printSummary(r)
		}
	}
	if failed > 0 {
		return xerrors.Errorf("%d of %d reports could not be published", failed, len(reports))
	}
	return nil
}

func (ac AppConfig) publishOne(cfg config.Config, store *archive.Store, provider types.Provider, r *report.Report) error {
	base := filepath.Join(cfg.OutputDir, utils.SafeFileName(r.ID))
	if err := r.Save(base + processedSuffix); err != nil {
		return err
	}
	if err := r.SaveRaw(base + rawSuffix); err != nil {
		return err
	}
	if store == nil {
		return nil
	}

	canonical, err := r.ToCanonical()
	if err != nil {
		return err
	}
	return store.Put(provider, canonical)
}

func (ac AppConfig) printSummary(r *report.Report) {
	counts := r.SeverityCounts()
	severities := lo.Keys(counts)
	slices.SortFunc(severities, func(a, b string) int {
		if c := types.CompareSeverityString(a, b); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})

	parts := lo.Map(severities, func(s string, _ int) string {
		return fmt.Sprintf("%s: %d", types.ColorizeSeverity(s), counts[s])
	})
	if len(parts) == 0 {
		parts = []string{color.GreenString("no vulnerabilities")}
	}

	fmt.Fprintf(ac.Out, "%s (%s)\n", color.New(color.Bold).Sprint(r.Name), r.ID)
	fmt.Fprintf(ac.Out, "  packages: %d, compliance issues: %d\n", r.Packages().Len(), r.Compliances().Len())
	fmt.Fprintf(ac.Out, "  %s\n", strings.Join(parts, ", "))
}

// spin starts a spinner on the output when enabled and returns its stop
// function.
func (ac AppConfig) spin(cfg config.Config, enabled bool, suffix string) func() {
	if !enabled || cfg.Echo {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(ac.Out))
	s.Suffix = suffix
	s.Start()
	return s.Stop
}

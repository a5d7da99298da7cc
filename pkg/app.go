package pkg

import (
	"context"
	"io"
	"os"

	"github.com/urfave/cli"
	"golang.org/x/xerrors"
	"k8s.io/utils/clock"

	"github.com/sudesh1611/scanreport/pkg/config"
	"github.com/sudesh1611/scanreport/pkg/log"
	"github.com/sudesh1611/scanreport/pkg/provider/blackduck"
)

// ResolverFactory builds the upgrade-guidance resolver for online runs.
type ResolverFactory func(ctx context.Context, cfg config.BlackDuck, logger *log.Logger) (blackduck.Resolver, error)

type AppConfig struct {
	Clock       clock.Clock
	Out         io.Writer
	NewResolver ResolverFactory
}

// NewResolver is the production ResolverFactory.
func NewResolver(ctx context.Context, cfg config.BlackDuck, logger *log.Logger) (blackduck.Resolver, error) {
	token := cfg.APIToken()
	if token == "" {
		return nil, xerrors.Errorf("environment variable %s holds no API token", cfg.APITokenEnv)
	}
	return blackduck.NewClient(ctx, cfg.BaseURL, token,
		blackduck.WithHTTPClient(blackduck.NewHTTPClient(cfg.Timeout.Duration, cfg.InsecureSkipVerify)),
		blackduck.WithClientLogger(logger),
	), nil
}

func (ac AppConfig) NewApp(version string) *cli.App {
	if ac.Clock == nil {
		ac.Clock = clock.RealClock{}
	}
	if ac.Out == nil {
		ac.Out = os.Stdout
	}
	if ac.NewResolver == nil {
		ac.NewResolver = NewResolver
	}

	app := cli.NewApp()
	app.Name = "scanreport"
	app.Version = version
	app.Usage = "Normalize vulnerability scanner reports"
	app.Writer = ac.Out

	app.Commands = []cli.Command{
		{
			Name:   "blackduck",
			Usage:  "normalize a vulnerable BOM component listing",
			Action: ac.blackDuck,
			Flags: append([]cli.Flag{
				cli.StringFlag{
					Name:  "input, i",
					Usage: "drained vulnerable BOM components (JSON)",
				},
				cli.StringFlag{
					Name:  "version-id",
					Usage: "project version id, used as report id",
				},
				cli.StringFlag{
					Name:  "version-name",
					Usage: "project version name, used as report name",
				},
				cli.BoolFlag{
					Name:  "offline",
					Usage: "skip upgrade guidance lookups",
				},
			}, commonFlags()...),
		},
		{
			Name:   "twistlock",
			Usage:  "normalize image scan documents",
			Action: ac.twistlock,
			Flags: append([]cli.Flag{
				cli.StringFlag{
					Name:  "input, i",
					Usage: "image scan document, or a list of them (JSON)",
				},
			}, commonFlags()...),
		},
		{
			Name:  "archive",
			Usage: "inspect archived canonical reports",
			Subcommands: []cli.Command{
				{
					Name:   "list",
					Usage:  "list archived reports",
					Action: ac.archiveList,
					Flags:  commonFlags(),
				},
				{
					Name:   "show",
					Usage:  "print an archived report",
					Action: ac.archiveShow,
					Flags: append([]cli.Flag{
						cli.StringFlag{
							Name:  "id",
							Usage: "report id",
						},
						cli.StringFlag{
							Name:  "provider",
							Usage: "blackduck or twistlock; every provider when empty",
						},
					}, commonFlags()...),
				},
				{
					Name:   "delete",
					Usage:  "remove an archived report",
					Action: ac.archiveDelete,
					Flags: append([]cli.Flag{
						cli.StringFlag{
							Name:  "id",
							Usage: "report id",
						},
						cli.StringFlag{
							Name:  "provider",
							Usage: "blackduck or twistlock",
						},
					}, commonFlags()...),
				},
			},
		},
		{
			Name:      "diff",
			Usage:     "show the structural difference of two processed reports",
			ArgsUsage: "OLD NEW",
			Action:    ac.diff,
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "exit-code",
					Usage: "exit with status 1 when the reports differ",
				},
			},
		},
	}

	return app
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "config file (.yaml, .yml or .toml)",
		},
		cli.StringFlag{
			Name:  "log-file",
			Usage: "log file path",
		},
		cli.StringFlag{
			Name:  "output-dir, o",
			Usage: "directory for processed and raw reports",
		},
		cli.StringFlag{
			Name:  "archive",
			Usage: "archive database path",
		},
		cli.StringFlag{
			Name:  "overrides",
			Usage: "directory holding override config.yaml and jd diffs",
		},
		cli.BoolFlag{
			Name:  "quiet, q",
			Usage: "suppress the summary and log echo",
		},
	}
}

// settings loads the config file and applies flag overrides.
func settings(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return config.Config{}, xerrors.Errorf("config error: %w", err)
	}
	if c.IsSet("log-file") {
		cfg.LogFile = c.String("log-file")
	}
	if c.IsSet("output-dir") {
		cfg.OutputDir = c.String("output-dir")
	}
	if c.IsSet("archive") {
		cfg.ArchivePath = c.String("archive")
	}
	if c.IsSet("overrides") {
		cfg.OverridesDir = c.String("overrides")
	}
	if c.Bool("quiet") {
		cfg.Echo = false
	}
	if err = cfg.Validate(); err != nil {
		return config.Config{}, xerrors.Errorf("config error: %w", err)
	}
	return cfg, nil
}

func (ac AppConfig) logger(cfg config.Config) *log.Logger {
	opts := []log.FileOption{log.WithClock(ac.Clock)}
	if cfg.Echo {
		opts = append(opts, log.WithEcho(ac.Out))
	}
	return log.NewFileLogger(cfg.LogFile, false, opts...)
}

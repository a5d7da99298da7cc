package pkg

import (
	"fmt"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli"
	"golang.org/x/xerrors"

	"github.com/sudesh1611/scanreport/pkg/archive"
	"github.com/sudesh1611/scanreport/pkg/types"
	"github.com/sudesh1611/scanreport/pkg/utils"
)

func (ac AppConfig) openArchive(c *cli.Context) (*archive.Store, error) {
	cfg, err := settings(c)
	if err != nil {
		return nil, err
	}
	if cfg.ArchivePath == "" {
		return nil, xerrors.New("no archive configured, use --archive or archive_path")
	}
	return archive.Open(cfg.ArchivePath, archive.WithClock(ac.Clock), archive.WithLogger(ac.logger(cfg)))
}

func (ac AppConfig) archiveList(c *cli.Context) error {
	store, err := ac.openArchive(c)
	if err != nil {
		return xerrors.Errorf("archive error: %w", err)
	}
	defer store.Close()

	entries, err := store.List()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(ac.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tID\tNAME\tSTORED AT")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Provider, e.ID, e.Name, e.StoredAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func (ac AppConfig) archiveShow(c *cli.Context) error {
	id := c.String("id")
	if id == "" {
		return xerrors.New("--id is required")
	}
	provider, err := providerFlag(c)
	if err != nil {
		return err
	}

	store, err := ac.openArchive(c)
	if err != nil {
		return xerrors.Errorf("archive error: %w", err)
	}
	defer store.Close()

	var e archive.Entry
	if provider == "" {
		e, err = store.Find(id)
	} else {
		e, err = store.Get(provider, id)
	}
	if err != nil {
		return err
	}

	b, err := utils.MarshalSorted(e.Report)
	if err != nil {
		return xerrors.Errorf("failed to render report: %w", err)
	}
	_, err = ac.Out.Write(b)
	return err
}

func (ac AppConfig) archiveDelete(c *cli.Context) error {
	id := c.String("id")
	if id == "" {
		return xerrors.New("--id is required")
	}
	provider, err := providerFlag(c)
	if err != nil {
		return err
	}
	if provider == "" {
		return xerrors.New("--provider is required")
	}

	store, err := ac.openArchive(c)
	if err != nil {
		return xerrors.Errorf("archive error: %w", err)
	}
	defer store.Close()

	return store.Delete(provider, id)
}

func providerFlag(c *cli.Context) (types.Provider, error) {
	p := types.Provider(c.String("provider"))
	if p != "" && !slices.Contains(types.Providers, p) {
		return "", xerrors.Errorf("unknown provider %q", p)
	}
	return p, nil
}

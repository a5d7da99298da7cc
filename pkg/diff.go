package pkg

import (
	"io"

	"github.com/josephburnett/jd/v2"
	"github.com/urfave/cli"
	"golang.org/x/xerrors"
)

// diff prints the jd diff turning OLD into NEW. The output can be stored as an
// override diff as is.
func (ac AppConfig) diff(c *cli.Context) error {
	if c.NArg() != 2 {
		return xerrors.New("diff takes exactly two report files")
	}

	a, err := jd.ReadJsonFile(c.Args().Get(0))
	if err != nil {
		return xerrors.Errorf("failed to read %s: %w", c.Args().Get(0), err)
	}
	b, err := jd.ReadJsonFile(c.Args().Get(1))
	if err != nil {
		return xerrors.Errorf("failed to read %s: %w", c.Args().Get(1), err)
	}

	d := a.Diff(b)
	if _, err = io.WriteString(ac.Out, d.Render()); err != nil {
		return err
	}
	if len(d) > 0 && c.Bool("exit-code") {
		return cli.NewExitError("", 1)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"

	"github.com/hupe1980/rowsink/blobstore"
)

// listCommand prints the files below a dataset directory.
type listCommand struct {
	jobFile string
	root    string
	dir     string
}

func addListCommand(app *kingpin.Application) {
	cmd := &listCommand{}

	c := app.Command("ls", "List the files of a dataset.").Action(cmd.run)
	c.Arg("dir", "Dataset directory, defaults to output.base_dir.").StringVar(&cmd.dir)
	c.Flag("job", "YAML job file.").Short('j').StringVar(&cmd.jobFile)
	c.Flag("root", "Root of a local or filesystem store.").StringVar(&cmd.root)
}

func (cmd *listCommand) run(_ *kingpin.ParseContext) error {
	job, err := loadJob(cmd.jobFile)
	if err != nil {
		exitWithErr(err)
	}
	if cmd.root != "" {
		job.Store.Root = cmd.root
	}

	dir := cmd.dir
	if dir == "" {
		dir = job.Output.BaseDir
	}

	ctx := context.Background()

	store, err := job.Store.open(ctx)
	if err != nil {
		exitWithErr(err)
	}

	if err := listFiles(ctx, os.Stdout, store, dir); err != nil {
		exitWithErr(err)
	}
	return nil
}

func listFiles(ctx context.Context, w io.Writer, store blobstore.Store, dir string) error {
	files, err := store.List(ctx, dir)
	if err != nil {
		return fmt.Errorf("list %s: %w", dir, err)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	var total uint64
	for _, f := range files {
		if f.IsDir {
			continue
		}
		total += uint64(f.Size)
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Name, humanize.Bytes(uint64(f.Size)), humanize.Time(f.ModTime))
	}
	fmt.Fprintf(tw, "total\t%s\t\n", humanize.Bytes(total))

	return tw.Flush()
}

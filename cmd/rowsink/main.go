// Command rowsink writes CSV inputs as a partitioned dataset.
//
//	rowsink write --job job.yaml 'data/**/*.csv.gz'
//	rowsink ls --job job.yaml events
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
)

func main() {
	app := kingpin.New("rowsink", "Write CSV inputs as a partitioned dataset.")
	app.HelpFlag.Short('h')

	addWriteCommand(app)
	addListCommand(app)

	kingpin.MustParse(app.Parse(os.Args[1:]))
}

func exitWithErr(err error) {
	fmt.Fprintln(os.Stderr, "rowsink:", err)
	os.Exit(1)
}

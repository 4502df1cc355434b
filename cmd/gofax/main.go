// Command gofax hosts gofax's operator-facing surfaces: a one-shot TIFF/F
// recompression utility, call-log inspection, and a long-running serve
// mode that exposes the metrics endpoint and call-log database for a
// process embedding the T.30/T.38 engine. Modelled on the teacher's own
// cmd/ysf2dmr/main.go in spirit (one binary, one job per invocation) but
// built on cobra per SPEC_FULL.md's ambient-stack decision, since gofax's
// CLI surface spans more than one run mode.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "gofax",
		Short:   "FAX (T.30/T.38) signalling and transport stack",
		Version: version,
	}

	root.AddCommand(newServeCommand())
	root.AddCommand(newConvertCommand())
	root.AddCommand(newCallLogCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

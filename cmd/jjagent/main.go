// Command jjagent is the Claude Code hook binary: it reads one JSON event
// on stdin per invocation and writes one JSON decision to stdout.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jjagent-oss/jjagent/internal/cli"
)

func main() {
	root := cli.NewRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

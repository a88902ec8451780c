// Command fnmodels runs the function-model dispatcher against its built-in
// and file-based scenarios, checksums files through the crc models and
// inspects recorded dispatch traces.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/roach88/fnmodels/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}

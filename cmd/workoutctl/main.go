package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"workout/backend/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "workoutctl:", err)
	}
	os.Exit(cli.ExitCode(err))
}

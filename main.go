package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fjacquet/autocat/cmd/classify"
	"fjacquet/autocat/cmd/count"
	"fjacquet/autocat/cmd/root"
	"fjacquet/autocat/cmd/train"
	"fjacquet/autocat/internal/config"
	"fjacquet/autocat/internal/logging"
)

func init() {
	// 1. Load .env before viper reads the environment. Nothing is logged
	// below warn level yet, so stdout stays clean for --topk.
	config.LoadEnv(logging.NewLogrusAdapter("warn", "text"))

	// 2. Initialize root command
	root.Init()

	// 3. Add all subcommands
	root.Cmd.AddCommand(classify.Cmd)
	root.Cmd.AddCommand(train.Cmd)
	root.Cmd.AddCommand(count.Cmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.Execute(ctx, os.Args[1:])
	stop()

	if closeErr := root.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

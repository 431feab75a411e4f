// Command gumble-go is a minimal CLI front end over package gumble,
// included per SPEC_FULL.md §6 for completeness even though spec.md
// §1 scopes the CLI itself out of the core. It wires nothing the core
// doesn't already expose: parse flags, build a Config/Identity, log
// the connect/disconnect lifecycle, and exit with the loop's result.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/diamondburned/gumble-go/gumble"
	"github.com/diamondburned/gumble-go/handler"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("gumble-go", pflag.ContinueOnError)
	accessTokens := flags.StringArray("access-token", nil, "access token for a locked channel (repeatable)")
	noVerify := flags.Bool("no-verify", false, "disable TLS certificate and hostname verification")
	logLevel := flags.String("log-level", "info", "debug, info, warn, error, or critical")

	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	positional := flags.Args()
	if len(positional) < 1 {
		fmt.Fprintln(os.Stderr, "usage: gumble-go [flags] <host> [port]")
		return 2
	}

	host := positional[0]
	port := gumble.DefaultPort
	if len(positional) >= 2 {
		p, err := strconv.Atoi(positional[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid port %q: %v\n", positional[1], err)
			return 2
		}
		port = p
	}

	level, err := parseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger := charmlog.New(os.Stderr)
	logger.SetLevel(level)

	cfg := gumble.NewConfig(host)
	cfg.Port = port
	cfg.Verify = !*noVerify

	id := gumble.Identity{Tokens: *accessTokens}

	reg := handler.New()
	reg.OnConnect(func(ctx context.Context) handler.Response {
		logger.Info("connected", "host", host, "port", port)
		return handler.None()
	})
	reg.OnDisconnect(func(ctx context.Context) handler.Response {
		logger.Info("disconnected")
		return handler.None()
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := gumble.Connect(ctx, cfg, id, reg, logger); err != nil {
		logger.Error("connection ended", "err", err)
		return 1
	}

	return 0
}

func parseLevel(name string) (charmlog.Level, error) {
	// charmbracelet/log has no "critical" level of its own; Mumble's
	// CLI surface names one anyway, so it maps onto the nearest level
	// the library actually has.
	if name == "critical" {
		return charmlog.FatalLevel, nil
	}
	return charmlog.ParseLevel(name)
}

// mideactl discovers and controls Midea dehumidifiers: enumerate them
// on local networks, read one appliance's state, or change its settings.
// Device credentials come either from explicit --token/--key flags, a
// saved credentials file, or a cloud sign-in with the account password.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/joshp123/mideactl/internal/backend"
	"github.com/joshp123/mideactl/internal/config"
	"github.com/joshp123/mideactl/internal/control"
)

func main() {
	globals := flag.NewFlagSet("mideactl", flag.ExitOnError)
	globals.Usage = usage
	logLevel := globals.String("log", "warning", "log level (trace|debug|info|warn|error)")
	jsonOut := globals.Bool("json", false, "machine-readable output")
	configPath := globals.String("config", "", "config file path")
	_ = globals.Parse(os.Args[1:])

	args := globals.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	level, err := parseLevel(*logLevel)
	if err != nil {
		fatal("parse log level", err)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	cfg, err := config.Resolve(*configPath)
	if err != nil {
		fatal("load config", err)
	}
	set, err := backend.Open(cfg, logger)
	if err != nil {
		fatal("open backend", err)
	}

	resolver := control.NewResolver(set.Sessions, set.Dialer, logger)
	app := &app{
		dispatcher: control.NewDispatcher(resolver, set.Sessions, set.Discovery, logger),
		cfg:        cfg,
		out:        outputMode{json: *jsonOut, stdout: os.Stdout},
	}

	ctx := context.Background()
	switch args[0] {
	case "discover":
		err = app.discover(ctx, args[1:])
	case "status":
		err = app.status(ctx, args[1:])
	case "set":
		err = app.set(ctx, args[1:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintln(os.Stderr, usageErr.Error())
			os.Exit(2)
		}
		fatal(args[0], err)
	}
}

// usageError marks operator mistakes in the flag surface, reported with
// exit code 2 instead of 1.
type usageError struct {
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// parseLevel accepts zerolog's level names plus the spelled-out
// "warning" operators tend to type.
func parseLevel(name string) (zerolog.Level, error) {
	if name == "warning" {
		name = "warn"
	}
	return zerolog.ParseLevel(name)
}

func usage() {
	fmt.Println("mideactl [--log LEVEL] [--json] [--config FILE] <command> [args]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  discover --account A --password P [--appkey K] [--appid I] [--network R ...] [--credentials] [--save FILE]")
	fmt.Println("  status   --ip ADDR [--token T --key K | --account A --password P] [--creds-file FILE] [--credentials]")
	fmt.Println("  set      --ip ADDR (auth as status) [--humidity H] [--fan F] [--mode M] [--ion B] [--on B] [--credentials]")
}

func fatal(action string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", action, err)
	os.Exit(1)
}

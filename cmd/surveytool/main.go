package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/paulexconde/surveysense/internal/config"
	"github.com/paulexconde/surveysense/internal/pkg/store"
	"github.com/paulexconde/surveysense/internal/services"
	"github.com/paulexconde/surveysense/pkg/fault"
	"github.com/paulexconde/surveysense/pkg/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		if fault.IsClientError(err) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		log.Fatal("surveytool:", err)
	}
}

type app struct {
	cfg       config.Config
	out       io.Writer
	errOut    io.Writer
	surveys   services.SurveyService
	responses services.SurveyResponseService
}

func run(ctx context.Context, args []string, out, errOut io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("surveytool", flag.ContinueOnError)
	fs.SetOutput(errOut)
	cfg.RegisterFlags(fs)
	fs.Usage = func() { usage(fs) }
	if err := fs.Parse(args); err != nil {
		return err
	}

	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	if fs.NArg() == 0 {
		fs.Usage()
		return flag.ErrHelp
	}
	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		fs.Usage()
		return fmt.Errorf("unknown command '%s'", fs.Arg(0))
	}

	a := &app{cfg: cfg, out: out, errOut: errOut}

	if cmd.needsDB {
		if err := cfg.Validate(); err != nil {
			return err
		}

		db, err := store.Open(ctx, cfg.DBDriver, cfg.DBUrl)
		if err != nil {
			return err
		}
		defer db.Close()

		a.surveys = services.NewSurveyService(db)
		a.responses = services.NewSurveyResponseService(db, a.surveys, services.UploadOptions{
			Workers:    cfg.Workers,
			QueueSize:  cfg.QueueSize,
			Retries:    cfg.UploadRetries,
			RetryDelay: cfg.RetryDelay,
		})
	}

	return cmd.run(ctx, a, fs.Args()[1:])
}

func usage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintln(w, "usage: surveytool [flags] <command> [arguments]")
	fmt.Fprintln(w, "\ncommands:")
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %-10s %s\n", name, usages[name])
	}
	fmt.Fprintln(w, "\nflags:")
	fs.PrintDefaults()
}

// Command siteinit runs a simulated document host, importing packages from
// CONKEROR_PACKAGES and injecting site scripts into pages opened from the
// interactive prompt.
//
// Usage:
//
//	siteinit [-config file] [-env file] [-log-level level] [-batch] [url...]
//
// Each url argument is opened at startup. With -batch, siteinit exits once
// those pages have been dispatched, instead of starting the prompt.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joeycumines/go-siteinit"
	"github.com/joeycumines/stumpy"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "siteinit: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet(`siteinit`, flag.ContinueOnError)
	configPath := fs.String(`config`, os.Getenv(envConfigFile), `TOML configuration file`)
	envPath := fs.String(`env`, ``, `.env file to load (default: ./.env, if present)`)
	logLevel := fs.String(`log-level`, ``, `log level (trace, debug, info, warn, error, off)`)
	batch := fs.Bool(`batch`, false, `open the url arguments, then exit`)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *envPath != `` {
		if err := loadEnvFile(*envPath, true); err != nil {
			return err
		}
	} else if err := loadEnvFile(`.env`, false); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	logger := stumpy.L.New(
		stumpy.L.WithStumpy(
			stumpy.WithWriter(os.Stderr),
			stumpy.WithTimeField(`time`),
		),
		stumpy.L.WithLevel(resolveLevel(*logLevel, cfg)),
	).Logger()

	opts := []siteinit.Option{
		siteinit.WithLogger(logger),
		siteinit.WithEvalTimeout(cfg.EvalTimeout),
	}
	if cfg.CacheSize > 0 {
		opts = append(opts, siteinit.WithProgramCacheSize(cfg.CacheSize))
	}

	inst, err := siteinit.New(opts...)
	if err != nil {
		return err
	}

	inst.Import(packageRoots(cfg))
	inst.Index().Rebuild()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loopDone := make(chan error, 1)
	go func() { loopDone <- inst.Run(ctx) }()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := inst.Shutdown(shutdownCtx); err != nil {
			logger.Debug().Err(err).Log(`shutdown`)
		}
	}()

	sh := newShell(inst, logger, os.Stdout)
	for _, u := range fs.Args() {
		sh.execute(`open ` + u)
	}

	if *batch {
		return nil
	}

	go sh.run()

	select {
	case <-ctx.Done():
	case <-sh.done:
	case err := <-loopDone:
		return err
	}
	return nil
}

func packageRoots(cfg config) []string {
	if _, ok := os.LookupEnv(siteinit.PackagesEnv); !ok && len(cfg.Packages) != 0 {
		return cfg.Packages
	}
	home, _ := os.UserHomeDir()
	return siteinit.PackageRoots(os.LookupEnv, home)
}

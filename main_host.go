//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"kestrel/app"
	"kestrel/hal"
	"kestrel/kernel"
	"kestrel/kernel/klog"

	"github.com/google/shlex"
)

func main() {
	var cfg hal.HeadlessConfig
	var (
		imagePath string
		initPath  string
		args      string
		memory    int64
		quantum   uint64
		logLevel  string
	)
	flag.BoolVar(&cfg.Enabled, "headless", false, "Run without a window; the console is stdin/stdout.")
	flag.IntVar(&cfg.Hz, "hz", 100, "Timer interrupt rate.")
	flag.Uint64Var(&cfg.Ticks, "ticks", 0, "Stop after N ticks in headless mode (0 = run until init exits).")
	flag.StringVar(&imagePath, "image", "", "Image-store file (see cmd/mkimage); built-in programs when empty.")
	flag.StringVar(&initPath, "init", app.DefaultInit, "First program to run.")
	flag.StringVar(&args, "args", "/bin/hello /bin/forktest /bin/pipetest /bin/threads", "Arguments to the first program, shell-quoted.")
	flag.Int64Var(&memory, "mem", kernel.DefaultMemory, "Physical memory (bytes).")
	flag.Uint64Var(&quantum, "quantum", 0, "Time slice in cycles (0 = default).")
	flag.StringVar(&logLevel, "log", "info", "Log level: trace, debug, info, warn, error, off.")
	flag.Parse()

	level, err := klog.ParseLevel(logLevel)
	if err != nil {
		fatal(err)
	}
	argv, err := shlex.Split(args)
	if err != nil {
		fatal(fmt.Errorf("-args: %w", err))
	}
	if cfg.Hz > 0 {
		cfg.Host.Tick = time.Second / time.Duration(cfg.Hz)
	}
	acfg := app.Config{
		Init:     initPath,
		Args:     argv,
		Memory:   memory,
		Quantum:  quantum,
		LogLevel: level,
		Terminal: !cfg.Enabled,
	}
	if imagePath != "" {
		dev, err := hal.OpenStorage(imagePath, 0)
		if err != nil {
			fatal(err)
		}
		defer dev.Close()
		acfg.Storage = dev
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	newApp := func(h hal.HAL) func() error {
		a, err := app.New(h, acfg)
		if err != nil {
			return func() error { return err }
		}
		a.Start(ctx)
		return a.Step
	}

	if cfg.Enabled {
		err = hal.RunHeadless(ctx, newApp, cfg)
	} else {
		err = hal.RunWindow(newApp, cfg.Host)
	}
	stop()

	var exit *app.ExitError
	switch {
	case err == nil, errors.Is(err, context.Canceled):
	case errors.As(err, &exit):
		os.Exit(int(exit.Code) & 0xff)
	default:
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	flags "github.com/jessevdk/go-flags"
)

type flagOptions struct {
	Name        string        `long:"name" default:"echotest" description:"Name printed in every line"`
	Lines       int           `long:"lines" default:"0" description:"Number of lines to print before exiting, 0 prints forever"`
	Interval    time.Duration `long:"interval" default:"500ms" description:"Delay between lines"`
	StderrEvery int           `long:"stderr-every" default:"5" description:"Print every Nth line to stderr, 0 disables"`
	ExitCode    int           `long:"exit-code" description:"Exit code to use after the last line"`
	IgnoreInt   bool          `long:"ignore-interrupt" description:"Keep running after an interrupt (debug feature)"`
}

func main() {
	var opts flagOptions
	var argv []string = os.Args[1:]
	var parser = flags.NewParser(&opts, flags.HelpFlag)
	var err error
	_, err = parser.ParseArgs(argv)
	if err != nil {
		fmt.Printf("Command line flags parsing failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Running Echotest, pid: %d, opts: %+v...\n", os.Getpid(), opts)

	// Enable signal handling
	sig := make(chan os.Signal, 1)
	if runtime.GOOS == "windows" {
		signal.Notify(sig) // Unix signals not implemented on Windows
	} else {
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		emit(ctx, opts)
	}()

	for {
		select {
		case receivedSignal := <-sig:
			fmt.Printf("Echotest %s received signal: %v\n", opts.Name, receivedSignal)
			if opts.IgnoreInt {
				continue
			}
			cancel()
			<-done
			fmt.Printf("Echotest %s stopped\n", opts.Name)
			os.Exit(130)
		case <-done:
			fmt.Printf("Echotest %s finished\n", opts.Name)
			os.Exit(opts.ExitCode)
		}
	}
}

func emit(ctx context.Context, opts flagOptions) {
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for i := 1; opts.Lines == 0 || i <= opts.Lines; i++ {
		out := os.Stdout
		if opts.StderrEvery > 0 && i%opts.StderrEvery == 0 {
			out = os.Stderr
		}
		fmt.Fprintf(out, "%s line %d at %s\n", opts.Name, i, time.Now().Format(time.TimeOnly))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

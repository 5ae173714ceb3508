package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/gophoo/phoo"
	"github.com/gophoo/phoo/internal/fileinput"
	"github.com/gophoo/phoo/internal/logio"
)

const historyFile = ".phoo_history"

type pathList []string

func (pl *pathList) String() string     { return strings.Join(*pl, string(os.PathListSeparator)) }
func (pl *pathList) Set(s string) error { *pl = append(*pl, s); return nil }

func main() {
	ctx := context.Background()

	var (
		configFile string
		timeout    time.Duration
		trace      bool
		loose      bool
		dump       bool
		paths      pathList
	)
	flag.StringVar(&configFile, "config", "", "load interpreter settings from a YAML file")
	flag.DurationVar(&timeout, "timeout", 0, "specify a time limit")
	flag.BoolVar(&trace, "trace", false, "enable trace logging")
	flag.BoolVar(&loose, "loose", false, "resolve undefined words to ambient values instead of failing")
	flag.BoolVar(&dump, "dump", false, "dump thread state after an error")
	flag.Var(&paths, "path", "add a module source directory; may be given more than once")
	flag.Parse()

	var log logio.Logger
	log.SetOutput(os.Stderr)
	defer func() { os.Exit(log.ExitCode()) }()

	opts := phoo.Options{phoo.WithOutput(os.Stdout)}
	if configFile != "" {
		cfg, err := phoo.LoadConfigFile(configFile)
		if err != nil {
			log.Errorf("%v", err)
			return
		}
		opts = append(opts, phoo.WithConfig(cfg))
	}
	if trace {
		opts = append(opts, phoo.WithLogf(log.Leveledf("TRACE")))
	}
	if loose {
		opts = append(opts, phoo.WithStrictMode(false))
	}
	for _, dir := range paths {
		opts = append(opts, phoo.WithLoaders(phoo.SourceLoader{FS: os.DirFS(dir)}))
	}

	ip, err := phoo.New(opts...)
	if err != nil {
		log.Errorf("%+v", err)
		return
	}
	defer func() { log.ErrorIf(ip.Close()) }()

	if timeout != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := command{
		ip:   ip,
		th:   ip.Thread(phoo.MainModule),
		log:  &log,
		dump: dump,
	}
	defer cmd.interruptOnSignal()()

	if args := flag.Args(); len(args) > 0 {
		cmd.runFiles(ctx, args)
	} else if isTerminal(os.Stdin) {
		cmd.repl(ctx)
	} else {
		cmd.runInput(ctx, &fileinput.Input{Queue: []io.Reader{os.Stdin}})
	}
}

type command struct {
	ip   *phoo.Interp
	th   *phoo.Thread
	log  *logio.Logger
	dump bool

	// errors are reported without failing the exit code
	interactive bool
}

// interruptOnSignal kills the running thread, and everything it spawned, on
// each interrupt; the returned function stops listening.
func (cmd command) interruptOnSignal() func() {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-sigc:
				cmd.log.ErrorIf(cmd.th.Kill(context.Background(), true))
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(sigc)
		close(done)
	}
}

func (cmd command) runFiles(ctx context.Context, names []string) {
	var in fileinput.Input
	for _, name := range names {
		f, err := os.Open(name)
		if err != nil {
			cmd.log.Errorf("%v", err)
			return
		}
		defer f.Close()
		in.Queue = append(in.Queue, f)
	}
	cmd.runInput(ctx, &in)
}

func (cmd command) runInput(ctx context.Context, in *fileinput.Input) {
	for {
		name, src, err := in.ReadSource()
		if errors.Is(err, io.EOF) {
			return
		} else if err != nil {
			cmd.log.Errorf("%v: %v", name, err)
			return
		}
		if !cmd.run(ctx, name, src) {
			return
		}
	}
}

// run reports whether src ran without error.
func (cmd command) run(ctx context.Context, name, src string) bool {
	_, err := cmd.th.Run(ctx, phoo.Text(src))
	if ferr := cmd.ip.Flush(); err == nil {
		err = ferr
	}
	if err == nil {
		return true
	}
	if cmd.interactive {
		cmd.log.Printf("ERROR", "%+v", err)
	} else {
		cmd.log.Errorf("%v: %+v", name, err)
	}
	if cmd.dump {
		lw := logio.Writer{Logf: cmd.log.Leveledf("DUMP")}
		cmd.log.ErrorIf(cmd.th.Dump(&lw))
		cmd.log.ErrorIf(lw.Close())
	}
	return false
}

func (cmd command) repl(ctx context.Context) {
	cmd.interactive = true
	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	for {
		line, err := ln.Prompt("phoo> ")
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		} else if errors.Is(err, io.EOF) {
			fmt.Println()
			return
		} else if err != nil {
			cmd.log.Errorf("%v", err)
			return
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		ln.AppendHistory(line)

		if cmd.run(ctx, "", line) {
			fmt.Println(phoo.NewArray(cmd.th.Stack()...))
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

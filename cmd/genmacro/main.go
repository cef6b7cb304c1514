// Package main is the entry point for the genmacro automation tool.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/GregAuRizzz/generic-macro-app/internal/config"
	"github.com/GregAuRizzz/generic-macro-app/internal/engine"
	"github.com/GregAuRizzz/generic-macro-app/internal/input/sink"
	"github.com/GregAuRizzz/generic-macro-app/internal/input/tap"
	"github.com/GregAuRizzz/generic-macro-app/internal/logging"
	"github.com/GregAuRizzz/generic-macro-app/internal/macro"
	"github.com/GregAuRizzz/generic-macro-app/internal/macro/store"
	"github.com/GregAuRizzz/generic-macro-app/internal/recorder"
	"github.com/GregAuRizzz/generic-macro-app/internal/screen"
	"github.com/GregAuRizzz/generic-macro-app/internal/trigger"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// appContext carries the facilities every subcommand needs.
type appContext struct {
	cfg   config.Config
	log   *slog.Logger
	store *store.Store
}

func run(args []string) int {
	rootFlags := flag.NewFlagSet("genmacro", flag.ContinueOnError)
	rootFlags.SetOutput(os.Stderr)
	rootFlags.Usage = printHelp

	var configPath, logLevel, logFormat string
	rootFlags.StringVar(&configPath, "config", "", "Path to configuration file")
	rootFlags.StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	rootFlags.StringVar(&logFormat, "log-format", "", "Override log output format (text, json)")

	if err := rootFlags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	remaining := rootFlags.Args()
	if len(remaining) == 0 {
		printHelp()
		return 0
	}

	name, subArgs := remaining[0], remaining[1:]
	switch name {
	case "version":
		fmt.Printf("genmacro %s (commit %s, built %s)\n", version, commit, date)
		return 0
	case "help":
		printHelp()
		return 0
	}

	ctx, err := newAppContext(configPath, logLevel, logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	var cmdErr error
	switch name {
	case "play":
		cmdErr = cmdPlay(ctx, subArgs)
	case "record":
		cmdErr = cmdRecord(ctx, subArgs)
	case "listen":
		cmdErr = cmdListen(ctx, subArgs)
	case "list":
		cmdErr = cmdList(ctx, subArgs)
	case "share":
		cmdErr = cmdShare(ctx, subArgs)
	case "import":
		cmdErr = cmdImport(ctx, subArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", name)
		printHelp()
		return 2
	}

	if cmdErr != nil {
		if errors.Is(cmdErr, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", cmdErr)
		return 1
	}
	return 0
}

func newAppContext(configPath, logLevel, logFormat string) (*appContext, error) {
	if configPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, err
	}

	dir := cfg.Storage.MacrosDir
	if dir == "" {
		dir, err = store.DefaultDir()
		if err != nil {
			return nil, err
		}
	}
	st, err := store.New(dir)
	if err != nil {
		return nil, err
	}

	log.Debug("initialized", "config", cfg.Source, "macros_dir", dir)
	return &appContext{cfg: cfg, log: log, store: st}, nil
}

// loadMacro resolves a macro from exactly one of a file path, a library
// name, or a share code.
func loadMacro(ctx *appContext, file, name, code string) (*macro.Macro, error) {
	set := 0
	for _, v := range []string{file, name, code} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return nil, errors.New("exactly one of -file, -name, or -code is required")
	}
	switch {
	case file != "":
		return store.Load(file)
	case name != "":
		return ctx.store.Open(name)
	default:
		return macro.FromShareCode(code)
	}
}

func newEngine(ctx *appContext) (*engine.Engine, error) {
	var matcher screen.Matcher
	if m := screen.NewRobot(); screen.Available(m) {
		matcher = m
	} else {
		ctx.log.Warn("screen capture unavailable, image actions will be skipped")
	}
	return engine.New(engine.Options{
		Sink:         sink.NewRobot(),
		Matcher:      matcher,
		Logger:       ctx.log,
		PollInterval: msDuration(ctx.cfg.Engine.PollIntervalMS),
		KeyTapHold:   msDuration(ctx.cfg.Engine.KeyTapHoldMS),
		StepSleep:    msDuration(ctx.cfg.Engine.StepSleepMS),
	})
}

func cmdPlay(ctx *appContext, args []string) error {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var file, name, code string
	fs.StringVar(&file, "file", "", "Macro file to play (.json, .yaml)")
	fs.StringVar(&name, "name", "", "Macro name from the library")
	fs.StringVar(&code, "code", "", "Share code to play directly")
	if err := fs.Parse(args); err != nil {
		return err
	}

	m, err := loadMacro(ctx, file, name, code)
	if err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("macro %q: %w", m.Name, err)
	}

	eng, err := newEngine(ctx)
	if err != nil {
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)
	go func() {
		<-signals
		ctx.log.Info("interrupt received, stopping playback")
		eng.Stop()
	}()

	if err := eng.Start(m); err != nil {
		return err
	}
	ctx.log.Info("playback started", "macro", m.Name, "actions", len(m.Actions))
	drainEvents(ctx.log, eng)
	return nil
}

// drainEvents consumes the engine event stream until the run stops.
func drainEvents(log *slog.Logger, eng *engine.Engine) {
	for ev := range eng.Events() {
		switch ev.Kind {
		case engine.EventLoop:
			log.Info("loop", "iteration", ev.Loop)
		case engine.EventAction:
			log.Debug("action", "index", ev.Index)
		case engine.EventWarning:
			log.Warn(ev.Message)
		case engine.EventError:
			log.Error("playback fault", "err", ev.Message)
		case engine.EventStopped:
			if n := eng.DroppedEvents(); n > 0 {
				log.Debug("event stream overflowed", "dropped", n)
			}
			log.Info("playback stopped")
			return
		}
	}
}

func cmdRecord(ctx *appContext, args []string) error {
	fs := flag.NewFlagSet("record", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var out, name string
	fs.StringVar(&out, "o", "", "Output file (.json or .yaml); default saves to the library")
	fs.StringVar(&name, "name", "Recorded Macro", "Name for the recorded macro")
	if err := fs.Parse(args); err != nil {
		return err
	}

	t := tap.New()
	rec, err := recorder.New(recorder.Options{
		Source:     t,
		Logger:     ctx.log,
		NoiseFloor: msDuration(ctx.cfg.Recorder.NoiseFloorMS),
	})
	if err != nil {
		return err
	}

	t.Start()
	defer t.Stop()
	rec.Start()
	ctx.log.Info("recording, press Ctrl-C to stop")

	go func() {
		for a := range rec.Recorded() {
			ctx.log.Debug("captured", "action", a.Label())
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)
	<-signals

	actions := rec.Stop()
	if len(actions) == 0 {
		ctx.log.Warn("nothing recorded")
		return nil
	}

	m := macro.New(name)
	m.Actions = actions

	var path string
	if out != "" {
		path, err = ctx.store.SaveAs(m, out)
	} else {
		path, err = ctx.store.Save(m)
	}
	if err != nil {
		return err
	}
	ctx.log.Info("saved", "macro", m.Name, "actions", len(actions), "path", path)
	return nil
}

func cmdListen(ctx *appContext, args []string) error {
	fs := flag.NewFlagSet("listen", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var file, name string
	fs.StringVar(&file, "file", "", "Macro file to arm (.json, .yaml)")
	fs.StringVar(&name, "name", "", "Macro name from the library")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if file == "" && name == "" {
		return errors.New("one of -file or -name is required")
	}
	m, err := loadMacro(ctx, file, name, "")
	if err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("macro %q: %w", m.Name, err)
	}

	eng, err := newEngine(ctx)
	if err != nil {
		return err
	}

	t := tap.New()
	rec, err := recorder.New(recorder.Options{
		Source:     t,
		Logger:     ctx.log,
		NoiseFloor: msDuration(ctx.cfg.Recorder.NoiseFloorMS),
	})
	if err != nil {
		return err
	}

	startKey := fallback(m.HotkeyStart, ctx.cfg.Hotkeys.Start)
	stopKey := fallback(m.HotkeyStop, ctx.cfg.Hotkeys.Stop)
	recordKey := fallback(m.HotkeyRecord, ctx.cfg.Hotkeys.Record)

	// Library macros track edits while armed. The key bindings stay as
	// configured at arm time.
	var armedMu sync.Mutex
	armed := m
	if name != "" {
		w, err := watchLibrary(ctx, name, func(reload *macro.Macro) {
			armedMu.Lock()
			armed = reload
			armedMu.Unlock()
		})
		if err != nil {
			ctx.log.Warn("library watch unavailable", "err", err)
		} else {
			defer w.Close()
		}
	}

	lis := trigger.New(t, ctx.log)
	lis.Configure(trigger.Config{
		StartKey:  startKey,
		StopKey:   stopKey,
		RecordKey: recordKey,
		OnStart: func() {
			armedMu.Lock()
			mc := armed
			armedMu.Unlock()
			if err := eng.Start(mc); err != nil {
				if errors.Is(err, engine.ErrRunning) {
					ctx.log.Debug("already running")
					return
				}
				ctx.log.Error("start failed", "err", err)
				return
			}
			go drainEvents(ctx.log, eng)
		},
		OnStop: func() {
			eng.Stop()
			if actions := rec.Stop(); actions != nil {
				saveRecording(ctx, actions)
			}
		},
		OnRecord: func() {
			if eng.IsRunning() {
				ctx.log.Warn("cannot record while playing")
				return
			}
			if rec.IsRecording() {
				if actions := rec.Stop(); actions != nil {
					saveRecording(ctx, actions)
				}
				return
			}
			rec.Start()
			ctx.log.Info("recording", "stop_key", recordKey)
		},
	})

	t.Start()
	defer t.Stop()
	lis.Start()
	defer lis.Stop()

	ctx.log.Info("armed", "macro", m.Name,
		"start", startKey, "stop", stopKey, "record", recordKey)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)
	<-signals

	eng.Stop()
	if actions := rec.Stop(); actions != nil {
		saveRecording(ctx, actions)
	}
	ctx.log.Info("shutting down")
	return nil
}

// watchLibrary hands each valid revision of the named macro to update as
// the library directory changes. The caller closes the returned watcher.
func watchLibrary(ctx *appContext, name string, update func(*macro.Macro)) (*store.Watcher, error) {
	w, err := ctx.store.Watch()
	if err != nil {
		return nil, err
	}
	go func() {
		for ch := range w.Changes() {
			if ch.Kind != store.ChangeWrite {
				continue
			}
			m, err := ctx.store.Open(name)
			if err != nil {
				continue
			}
			if err := m.Validate(); err != nil {
				ctx.log.Warn("ignoring invalid library edit", "macro", name, "err", err)
				continue
			}
			update(m)
			ctx.log.Info("macro reloaded", "macro", m.Name, "path", ch.Path)
		}
	}()
	return w, nil
}

func saveRecording(ctx *appContext, actions []macro.Action) {
	if len(actions) == 0 {
		ctx.log.Warn("nothing recorded")
		return
	}
	m := macro.New("Recorded Macro")
	m.Actions = actions
	path, err := ctx.store.Save(m)
	if err != nil {
		ctx.log.Error("save failed", "err", err)
		return
	}
	ctx.log.Info("saved recording", "actions", len(actions), "path", path)
}

func cmdList(ctx *appContext, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	verbose := fs.Bool("v", false, "Show per-action detail")
	if err := fs.Parse(args); err != nil {
		return err
	}

	paths, err := ctx.store.List()
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Printf("No macros in %s\n", ctx.store.Dir())
		return nil
	}
	for _, p := range paths {
		m, err := store.Load(p)
		if err != nil {
			fmt.Printf("%-30s  (unreadable: %v)\n", p, err)
			continue
		}
		fmt.Printf("%-24s  %-12s  %3d actions  %s\n", m.Name, m.Game, len(m.Actions), p)
		if *verbose {
			for i, a := range m.Actions {
				fmt.Printf("    %3d. %s\n", i+1, a.Label())
			}
		}
	}
	return nil
}

func cmdShare(ctx *appContext, args []string) error {
	fs := flag.NewFlagSet("share", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var file, name string
	fs.StringVar(&file, "file", "", "Macro file to encode")
	fs.StringVar(&name, "name", "", "Macro name from the library")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if file == "" && name == "" {
		return errors.New("one of -file or -name is required")
	}

	m, err := loadMacro(ctx, file, name, "")
	if err != nil {
		return err
	}
	code, err := m.ToShareCode()
	if err != nil {
		return err
	}
	fmt.Println(code)
	return nil
}

func cmdImport(ctx *appContext, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var out string
	fs.StringVar(&out, "o", "", "Output file; default saves to the library")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: genmacro import [-o file] <share-code>")
	}

	m, err := macro.FromShareCode(fs.Arg(0))
	if err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("imported macro %q: %w", m.Name, err)
	}

	var path string
	if out != "" {
		path, err = ctx.store.SaveAs(m, out)
	} else {
		path, err = ctx.store.Save(m)
	}
	if err != nil {
		return err
	}
	ctx.log.Info("imported", "macro", m.Name, "actions", len(m.Actions), "path", path)
	return nil
}

func fallback(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func printHelp() {
	fmt.Print(`genmacro - record, play, and share input macros

Usage: genmacro [flags] <command> [command flags]

Commands:
  play     Play a macro from a file, the library, or a share code
  record   Record input into a new macro (Ctrl-C stops)
  listen   Arm a macro's global hotkeys for start/stop/record
  list     List macros in the library
  share    Print a macro's share code
  import   Save a macro from a share code
  version  Print version information
  help     Show this help

Flags:
  -config string      Path to configuration file
  -log-level string   Override log level (debug, info, warn, error)
  -log-format string  Override log output format (text, json)
`)
}

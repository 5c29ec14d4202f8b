package core

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"reflect"
	"runtime"
	"slices"
	"syscall"
	"time"

	"github.com/encodeous/tint"
	"github.com/encodeous/trellis/perf"
	"github.com/encodeous/trellis/state"
	"github.com/goccy/go-yaml"
	slogmulti "github.com/samber/slog-multi"
	"golang.org/x/sync/errgroup"
)

// ReadConfig loads, expands and validates the controller config at path
func ReadConfig(path string) (*state.LocalCfg, error) {
	var cfg state.LocalCfg
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(file, &cfg)
	if err != nil {
		return nil, err
	}
	state.ExpandConfig(&cfg)
	err = state.ConfigValidator(&cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Bootstrap runs the controller described by the config at configPath until it is shut down
func Bootstrap(configPath, logPath string, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	cfg, err := ReadConfig(configPath)
	if err != nil {
		panic(err)
	}
	if logPath != "" {
		cfg.LogPath = logPath
	}
	err = Start(*cfg, level, configPath, nil)
	if err != nil {
		panic(err)
	}
}

func NewLogger(cfg state.LocalCfg, logLevel slog.Level) (*slog.Logger, error) {
	handlers := make([]slog.Handler, 0)
	handlers = append(handlers,
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:        logLevel,
			AddSource:    false,
			CustomPrefix: string(cfg.Id),
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				if attr.Key == "time" {
					return slog.Attr{}
				}
				return attr
			},
		}))

	if cfg.LogPath != "" {
		err := os.MkdirAll(path.Dir(cfg.LogPath), 0700)
		if err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.LogPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: logLevel}))
	}

	return slog.New(slogmulti.Fanout(handlers...)), nil
}

// Start runs the controller until its context is cancelled. If onInit is not nil it is
// called with the state before the modules are initialized.
func Start(cfg state.LocalCfg, logLevel slog.Level, configPath string, onInit func(*state.State)) error {
	ctx, cancel := context.WithCancelCause(context.Background())

	dispatch := make(chan func(env *state.State) error, 128)

	logger, err := NewLogger(cfg, logLevel)
	if err != nil {
		cancel(err)
		return err
	}

	s := state.State{
		Modules: make(map[string]state.Module),
		Env: &state.Env{
			Context:         ctx,
			Cancel:          cancel,
			DispatchChannel: dispatch,
			LocalCfg:        cfg,
			Log:             logger,
			ConfigPath:      configPath,
		},
	}
	if onInit != nil {
		onInit(&s)
	}

	s.Log.Info("init modules")
	err = initModules(&s)
	if err != nil {
		Stop(&s)
		return err
	}
	s.Log.Info("init modules complete")

	s.Log.Info("trellis has been initialized. To gracefully exit, send SIGINT or Ctrl+C.")

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(c)
		select {
		case <-c:
			s.Cancel(errors.New("received shutdown signal"))
		case <-ctx.Done():
			return
		}
	}()

	g := errgroup.Group{}
	debug := Get[*DebugModule](&s)
	g.Go(func() error {
		err := debug.Serve()
		if err != nil {
			s.Cancel(err)
		}
		return err
	})
	g.Go(func() error {
		return MainLoop(&s, dispatch)
	})
	return g.Wait()
}

func initModules(s *state.State) error {
	var modules []state.Module
	modules = append(modules, &TopologyModule{})
	modules = append(modules, &TopologyTrace{})
	modules = append(modules, &FabricModule{})
	modules = append(modules, &FlowModule{})
	modules = append(modules, &DiscoveryModule{})
	modules = append(modules, &DebugModule{})

	for _, module := range modules {
		name := reflect.TypeOf(module).String()
		s.Modules[name] = module
		s.ModuleOrder = append(s.ModuleOrder, name)
		if err := module.Init(s); err != nil {
			return err
		}
	}
	return nil
}

func MainLoop(s *state.State, dispatch <-chan func(*state.State) error) error {
	s.Log.Debug("started main loop")
	s.Started.Store(true)
	for {
		select {
		case fun := <-dispatch:
			if fun == nil {
				goto endLoop
			}
			start := time.Now()
			err := fun(s)
			if err != nil {
				s.Log.Error("error occurred during dispatch: ", "error", err)
				s.Cancel(err)
			}
			elapsed := time.Since(start)
			perf.DispatchLatency.Add(float64(elapsed.Microseconds()))
			if elapsed > time.Millisecond*50 {
				s.Log.Warn("dispatch took a long time!", "fun", runtime.FuncForPC(reflect.ValueOf(fun).Pointer()).Name(), "elapsed", elapsed, "len", len(dispatch))
			}
		case <-s.Context.Done():
			goto endLoop
		}
	}
endLoop:
	s.Log.Info("stopped main loop", "reason", context.Cause(s.Context).Error())
	Stop(s)
	return nil
}

func Stop(s *state.State) {
	if s.Stopping.Swap(true) {
		return // don't stop twice
	}
	s.Cancel(context.Canceled)
	s.Log.Info("cleaning up modules")
	for _, moduleName := range slices.Backward(s.ModuleOrder) {
		err := s.Modules[moduleName].Cleanup(s)
		if err != nil {
			s.Log.Error("error occurred during Stop: ", "module", moduleName, "error", err)
		}
	}
	s.Log.Info("stopped")
}

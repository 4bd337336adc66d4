package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/nstehr/hive/hive-core/agent"
	"github.com/nstehr/hive/hive-core/config"
	"github.com/nstehr/hive/hive-core/ipc"
	"github.com/nstehr/hive/hive-core/model"
	"github.com/nstehr/hive/hive-core/sim"
	"github.com/nstehr/hive/hive-core/trace"
	"github.com/nstehr/hive/hive-core/watch"
)

const banner = `
██╗  ██╗██╗██╗   ██╗███████╗
██║  ██║██║██║   ██║██╔════╝
███████║██║██║   ██║█████╗
██╔══██║██║╚██╗ ██╔╝██╔══╝
██║  ██║██║ ╚████╔╝ ███████╗
╚═╝  ╚═╝╚═╝  ╚═══╝  ╚══════╝

Swarm Intelligence for Rat Kings`

func main() {
	var (
		configPath = flag.String("config", "", "tuning file (YAML); defaults apply when empty")
		level      = flag.String("level", "info", "log level: debug, info, warn, error")
		socketPath = flag.String("socket", "/tmp/hive.sock", "unix socket the simulator connects to")
		wsAddr     = flag.String("ws", "", "also accept simulators over websocket on this address, e.g. :8090")
		local      = flag.Bool("local", false, "play a local match instead of serving")
		connect    = flag.String("connect", "", "with -local, drive team A through the bridge at this websocket URL")
		rounds     = flag.Int("rounds", 2000, "round limit for a local match")
		seed       = flag.Int64("seed", 1, "map seed for a local match")
		traceDir   = flag.String("trace", "", "write a parquet decision trace into this directory")
		tuneEvery  = flag.Int("tune-every", 200, "rounds between checks of the tuning file")
		wsSecret   = flag.String("ws-secret", os.Getenv("HIVE_BRIDGE_SECRET"), "shared secret for websocket bridge tokens")
		watchMatch = flag.Bool("watch", false, "with -local, draw the match in the terminal")
		delay      = flag.Duration("delay", 50*time.Millisecond, "pause between rounds while watching")
	)
	flag.Parse()

	// The terminal belongs to the viewer while watching.
	watching := *local && *watchMatch
	var logOut io.Writer = os.Stdout
	if watching {
		logOut = io.Discard
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{
		Level: parseLevel(*level),
	}))
	slog.SetDefault(logger)

	if !watching {
		fmt.Println(banner)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			slog.Error("failed to load tuning", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	matchID := uuid.NewString()
	var rec *trace.Recorder
	if *traceDir != "" {
		r, err := trace.NewRecorder(*traceDir, "hive", matchID, 0)
		if err != nil {
			slog.Error("failed to open trace", "dir", *traceDir, "error", err)
			os.Exit(1)
		}
		rec = r
		defer func() {
			path, err := rec.Close()
			if err != nil {
				slog.Error("failed to close trace", "error", err)
				return
			}
			slog.Info("trace written", "path", path, "rows", rec.Rows())
		}()
	}

	opts := agent.Options{Config: cfg, TuningPath: *configPath, TuneEvery: *tuneEvery, Recorder: rec, Logger: logger}
	var auth *ipc.Auth
	if *wsSecret != "" {
		auth = ipc.NewAuth(*wsSecret)
	}

	if *local {
		lo := localOptions{matchID: matchID, seed: *seed, rounds: *rounds, bridgeURL: *connect, auth: auth}
		if watching {
			lo.delay = *delay
		}
		if err := playLocal(ctx, opts, lo, watching); err != nil {
			slog.Error("local match failed", "error", err)
			os.Exit(1)
		}
		return
	}

	slog.Info("starting hive")
	if err := serve(ctx, opts, *socketPath, *wsAddr, auth); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func serve(ctx context.Context, opts agent.Options, socketPath, wsAddr string, auth *ipc.Auth) error {
	// Unix sockets leave behind a file on unclean shutdown; remove it so we can rebind.
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("clean up socket %s: %w", socketPath, err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	slog.Info("listening on domain socket", "path", socketPath)

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
					slog.Error("failed to accept connection", "error", err)
					continue
				}
			}
			slog.Info("new connection accepted")
			go handleConn(ctx, ipc.NewConnection(conn, nil), opts)
		}
	}()

	if wsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/bridge", ipc.ServeWebSocket(func(c *ipc.Connection) {
			agent.NewAgent(ctx, c, opts).Register()
		}, auth, opts.Logger))
		srv := &http.Server{Addr: wsAddr, Handler: mux}
		go func() {
			slog.Info("listening for websocket simulators", "addr", wsAddr, "path", "/bridge")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("websocket server failed", "error", err)
			}
		}()
		defer srv.Close()
	}

	<-ctx.Done()
	slog.Info("shutting down")
	return nil
}

func handleConn(ctx context.Context, c *ipc.Connection, opts agent.Options) {
	c.SetLogger(opts.Logger)
	agent.NewAgent(ctx, c, opts).Register()
	c.ReadLoop()
}

type localOptions struct {
	matchID   string
	seed      int64
	rounds    int
	bridgeURL string
	auth      *ipc.Auth
	delay     time.Duration
}

// playLocal runs both teams in-process against the built-in simulator. With a
// bridge URL, team A is driven by whichever agent serves it.
func playLocal(ctx context.Context, opts agent.Options, lo localOptions, watching bool) error {
	simOpts := sim.DefaultOptions
	simOpts.Seed = lo.seed
	m := sim.Generate(simOpts)

	var drivers [2]sim.Driver
	for _, team := range []model.Team{model.TeamA, model.TeamB} {
		s := agent.NewSession(team, opts.Config, opts.Recorder, opts.Logger)
		if opts.TuningPath != "" {
			go agent.NewTuner(s, opts.TuningPath, opts.TuneEvery).Start(ctx)
		}
		drivers[team] = s
	}
	if lo.bridgeURL != "" {
		target := lo.bridgeURL
		if lo.auth != nil {
			tok, err := lo.auth.Token(model.TeamA)
			if err != nil {
				return err
			}
			if target, err = ipc.WithToken(target, tok); err != nil {
				return err
			}
		}
		conn, err := ipc.DialWebSocket(ctx, target)
		if err != nil {
			return err
		}
		defer conn.Close()
		drivers[model.TeamA] = ipc.NewDriver(conn, lo.matchID, opts.Logger)
	}

	if !watching {
		runLocal(ctx, m, drivers, lo, nil)
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	frames := make(chan watch.Frame, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(frames)
		runLocal(ctx, m, drivers, lo, func(m *sim.Match) {
			select {
			case frames <- watch.Capture(m):
			case <-ctx.Done():
			}
		})
	}()

	_, err := tea.NewProgram(watch.New(frames), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	cancel()
	<-done
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("viewer: %w", err)
	}
	return nil
}

// runLocal steps m until the round limit, a fallen team or cancellation.
// onRound sees the match after every round.
func runLocal(ctx context.Context, m *sim.Match, drivers [2]sim.Driver, lo localOptions, onRound func(*sim.Match)) {
	slog.Info("local match started", "match", lo.matchID, "seed", lo.seed, "rounds", lo.rounds, "symmetry", m.Symmetry())
	for m.Round() < lo.rounds {
		if ctx.Err() != nil {
			slog.Info("local match interrupted", "round", m.Round())
			break
		}
		m.Step(drivers)
		if onRound != nil {
			onRound(m)
		}
		if m.Leaders(model.TeamA) == 0 || m.Leaders(model.TeamB) == 0 {
			break
		}
		if lo.delay > 0 {
			time.Sleep(lo.delay)
		}
	}

	r := m.Result()
	slog.Info("local match finished",
		"rounds", r.Rounds,
		"winner", r.Winner,
		"units", fmt.Sprintf("%d/%d", r.Units[0], r.Units[1]),
		"leaders", fmt.Sprintf("%d/%d", r.Leaders[0], r.Leaders[1]),
		"cheese", fmt.Sprintf("%d/%d", r.Cheese[0], r.Cheese[1]),
		"spawned", fmt.Sprintf("%d/%d", r.Spawned[0], r.Spawned[1]),
		"kills", fmt.Sprintf("%d/%d", r.Kills[0], r.Kills[1]),
		"faults", fmt.Sprintf("%d/%d", r.Faults[0], r.Faults[1]),
	)
}

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/parlo-dev/parlo/internal/asr"
	"github.com/parlo-dev/parlo/internal/audio"
	"github.com/parlo-dev/parlo/internal/autostop"
	"github.com/parlo-dev/parlo/internal/chat"
	"github.com/parlo-dev/parlo/internal/cli"
	"github.com/parlo-dev/parlo/internal/config"
	"github.com/parlo-dev/parlo/internal/doctor"
	"github.com/parlo-dev/parlo/internal/ipc"
	"github.com/parlo-dev/parlo/internal/logging"
	"github.com/parlo-dev/parlo/internal/openai"
	"github.com/parlo-dev/parlo/internal/settings"
	"github.com/parlo-dev/parlo/internal/speech"
	"github.com/parlo-dev/parlo/internal/tts"
	"github.com/parlo-dev/parlo/internal/version"
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("parlo"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("parlo"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		fmt.Fprintf(r.Stderr, "warning: %s\n", w.Message)
		logger.Warn("config warning", "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStop:
		return r.forwardOrFail(ctx, "stop")
	case cli.CommandCancel:
		return r.forwardOrFail(ctx, "cancel")
	case cli.CommandChat:
		return r.commandChat(ctx, cfgLoaded.Config, parsed.Mode, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, "status")
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.State == "" {
			resp.State = "idle"
		}
		fmt.Fprintln(r.Stdout, resp.State)
		if resp.Transcript != "" {
			fmt.Fprintln(r.Stdout, resp.Transcript)
		}
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, command)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: no active parlo chat\n")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.State != "" {
		fmt.Fprintln(r.Stdout, resp.State)
	}
	return 0
}

// commandChat owns the control socket and runs the conversation loop until
// the context ends.
func (r Runner) commandChat(ctx context.Context, cfg config.Config, mode string, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(r.Stderr, "error: another parlo chat is already running")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	manager, err := r.autoStopManager(mode, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	orchestrator := r.buildOrchestrator(cfg, manager, logger)

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, orchestrator)
	}()

	exitCode := r.chatLoop(ctx, orchestrator, manager)

	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}
	return exitCode
}

// autoStopManager opens the persisted settings and applies the CLI preset.
func (r Runner) autoStopManager(mode string, logger *slog.Logger) (*autostop.Manager, error) {
	path, err := settings.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("resolve settings path: %w", err)
	}
	store, err := settings.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open settings: %w", err)
	}

	manager := autostop.NewManager(store, logger)
	switch mode {
	case "learning":
		if err := manager.SetLearningMode(true); err != nil {
			return nil, err
		}
	case "quick":
		if err := manager.SetQuickMode(); err != nil {
			return nil, err
		}
	case "default":
		if err := manager.SetLearningMode(false); err != nil {
			return nil, err
		}
	}
	return manager, nil
}

func (r Runner) buildOrchestrator(cfg config.Config, manager *autostop.Manager, logger *slog.Logger) *chat.Orchestrator {
	replier := openai.NewClient(openai.Config{
		BaseURL:     cfg.OpenAI.BaseURL,
		APIKey:      os.Getenv(cfg.OpenAI.APIKeyEnv),
		Model:       cfg.OpenAI.Model,
		Temperature: cfg.OpenAI.Temperature,
	}, logger)

	synth := tts.NewClient(tts.Config{
		BaseURL:         cfg.TTS.BaseURL,
		APIKey:          os.Getenv(cfg.TTS.APIKeyEnv),
		Voice:           cfg.TTS.Voice,
		Model:           cfg.TTS.Model,
		Stability:       cfg.TTS.Stability,
		SimilarityBoost: cfg.TTS.SimilarityBoost,
	})
	speaker := tts.NewSpeaker(synth, audio.NewPlayer(), logger)

	newListener := func() chat.Listener {
		rec := asr.NewRecognizer(asr.Config{
			Endpoint: cfg.Recognizer.Endpoint,
			APIKey:   os.Getenv(cfg.Recognizer.APIKeyEnv),
			Model:    cfg.Recognizer.Model,
			Language: cfg.Recognizer.Language,
		}, cfg.Audio.Input, cfg.Audio.Fallback, logger)

		return speech.NewSession(speech.Config{
			AutoStop: manager.Current(),
			Language: cfg.Recognizer.Language,
		}, rec, logger)
	}

	return chat.NewOrchestrator(newListener, replier, speaker, logger)
}

// chatLoop runs turns until the context is cancelled.
func (r Runner) chatLoop(ctx context.Context, orchestrator *chat.Orchestrator, manager *autostop.Manager) int {
	current := manager.Current()
	fmt.Fprintf(r.Stdout, "parlo is listening (auto-stop %.1fs, max %.0fs). Press Ctrl-C to leave.\n",
		current.Threshold, current.MaxRecordingDuration)

	for {
		if ctx.Err() != nil {
			fmt.Fprintln(r.Stdout, "\ngoodbye")
			return 0
		}

		msg, ok, err := orchestrator.RunTurn(ctx, r.printEvent)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				fmt.Fprintln(r.Stdout, "\ngoodbye")
				return 0
			}
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			// Persistent failures (no mic, dead recognizer) must not spin.
			select {
			case <-ctx.Done():
			case <-time.After(500 * time.Millisecond):
			}
		case ok:
			fmt.Fprintf(r.Stdout, "parlo: %s\n", msg.Text)
		default:
			fmt.Fprintln(r.Stdout, "(nothing captured)")
		}
	}
}

// printEvent renders live session feedback on a single updating line.
func (r Runner) printEvent(ev speech.Event) {
	switch ev.Kind {
	case speech.EventPartial:
		fmt.Fprintf(r.Stdout, "\r\033[K  %s", ev.Text)
	case speech.EventCountdown:
		fmt.Fprintf(r.Stdout, "\r\033[K  (%.1fs) ", ev.Remaining.Seconds())
	case speech.EventFinalized:
		fmt.Fprintf(r.Stdout, "\r\033[Kyou: %s\n", ev.Text)
	case speech.EventDiscarded, speech.EventErrored:
		fmt.Fprint(r.Stdout, "\r\033[K")
	}
}

func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, 220*time.Millisecond)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) {
		return ipc.Response{}, false, nil
	}
	if isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}

// Package app wires the opsbot application together: store, Matrix client,
// compute provider, command registry, help, and dispatcher.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"maunium.net/go/mautrix/event"

	"github.com/bdobrica/opsbot/common/trace"
	"github.com/bdobrica/opsbot/common/version"
	"github.com/bdobrica/opsbot/internal/opsbot/commands"
	"github.com/bdobrica/opsbot/internal/opsbot/compute"
	dockercompute "github.com/bdobrica/opsbot/internal/opsbot/compute/docker"
	botconfig "github.com/bdobrica/opsbot/internal/opsbot/config"
	"github.com/bdobrica/opsbot/internal/opsbot/handlers"
	"github.com/bdobrica/opsbot/internal/opsbot/matrix"
	"github.com/bdobrica/opsbot/internal/opsbot/store"
)

// handlerTimeout bounds one handler invocation. Handlers call external
// services (Docker engine); a hung call must not pin its worker forever.
const handlerTimeout = 60 * time.Second

// Config holds application configuration
type Config struct {
	DatabasePath string
	// BotConfigPath is the path to opsbot.yaml (team links, image map,
	// sizes). Empty disables the config-backed commands gracefully.
	BotConfigPath string
	Matrix        matrix.Config
	// EnableDocker turns on the Docker-backed compute provider.
	EnableDocker  bool
	DockerNetwork string
	// AllowedSenders is an optional allowlist of Matrix user IDs permitted
	// to use the bot. When empty, any room member can send commands.
	AllowedSenders []string
}

// App is the running opsbot instance.
type App struct {
	config     *Config
	store      *store.Store
	matrix     *matrix.Client
	registry   *commands.Registry
	help       *commands.Help
	dispatcher *commands.Dispatcher
	chitchat   commands.PatternList
}

// New builds the application. Commands are registered here, single-threaded,
// and the general help cache is built before New returns so it reflects the
// full command set.
func New(config *Config) (*App, error) {
	slog.Info("opening database", "path", config.DatabasePath)
	st, err := store.New(config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Inject the DB so the client persists the sync token across restarts.
	matrixCfg := config.Matrix
	matrixCfg.DB = st.DB()
	slog.Info("connecting to Matrix", "homeserver", matrixCfg.Homeserver)
	matrixClient, err := matrix.New(&matrixCfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to initialize Matrix client: %w", err)
	}

	// Bot config is optional: without it the link directory and image
	// catalogue commands degrade, they don't disable the bot.
	var cfg *botconfig.Config
	if config.BotConfigPath != "" {
		cfg, err = botconfig.Load(config.BotConfigPath)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to load bot config: %w", err)
		}
		slog.Info("bot config loaded", "path", config.BotConfigPath,
			"images", len(cfg.Images), "team_links", len(cfg.TeamLinks))
	}

	var provider compute.Provider
	if config.EnableDocker {
		dockerProvider, err := dockercompute.New(config.DockerNetwork)
		if err != nil {
			slog.Warn("Docker compute provider unavailable", "err", err)
		} else {
			if netErr := dockerProvider.EnsureNetwork(context.Background()); netErr != nil {
				slog.Warn("could not ensure Docker network; VM creation may fail", "err", netErr)
			}
			provider = dockerProvider
			slog.Info("Docker compute provider ready")
		}
	}

	h := handlers.New(st, provider, cfg)

	registry := commands.NewRegistry()
	h.Register(registry)
	slog.Info("command registry populated", "keys", registry.Len())

	help := commands.NewHelp(registry)
	// Build the general help now: the cache is never invalidated, so it must
	// be created only after every Register call above has run.
	help.General()

	dispatcher := commands.NewDispatcher(registry, help)

	// Conversational fallbacks, checked only when registry dispatch misses.
	// Order is precedence: the exact greeting must come before the
	// substring thanks pattern or a "thanks, hello" message would never
	// reach it.
	chitchat := commands.PatternList{
		{
			Name:   "greeting",
			Match:  commands.MatchPrefix("hey"),
			Handle: h.HandleHello,
		},
		{
			Name:  "thanks",
			Match: commands.MatchSubstring("thank"),
			Handle: func(ctx context.Context, out commands.OutputFunc, sender string, _ commands.Params) {
				out(fmt.Sprintf("You're welcome, <@%s>!", sender))
			},
		},
	}

	return &App{
		config:     config,
		store:      st,
		matrix:     matrixClient,
		registry:   registry,
		help:       help,
		dispatcher: dispatcher,
		chitchat:   chitchat,
	}, nil
}

// Run starts the bot and blocks until SIGINT/SIGTERM.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("starting Matrix sync")
	if err := a.matrix.Start(ctx, a.handleMessage); err != nil {
		return fmt.Errorf("failed to start Matrix client: %w", err)
	}

	for _, roomID := range a.config.Matrix.Rooms {
		a.matrix.SendNotice(roomID, fmt.Sprintf("✅ opsbot %s started. Type 'help' for commands.", version.Short()))
	}

	slog.Info("opsbot is running; press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down")
	return nil
}

// Stop stops the application.
func (a *App) Stop() {
	slog.Info("stopping Matrix client")
	a.matrix.Stop()

	slog.Info("closing database")
	a.store.Close()
}

// senderAllowed enforces the optional sender allowlist.
func (a *App) senderAllowed(sender string) bool {
	if len(a.config.AllowedSenders) == 0 {
		return true
	}
	for _, s := range a.config.AllowedSenders {
		if s == sender {
			return true
		}
	}
	return false
}

// handleMessage processes one incoming Matrix message. Each message gets its
// own worker goroutine so a slow handler (a blocked Docker call, say) cannot
// stall unrelated messages.
func (a *App) handleMessage(ctx context.Context, evt *event.Event) {
	msgContent := evt.Content.AsMessage()
	if msgContent == nil {
		return
	}

	sender := evt.Sender.String()
	roomID := evt.RoomID.String()
	text := msgContent.Body

	out := func(message string) {
		if err := a.matrix.SendMessage(roomID, message); err != nil {
			slog.Error("failed to send response", "room", roomID, "err", err)
		}
	}

	if !a.senderAllowed(sender) {
		out(fmt.Sprintf("Sorry <@%s>, you're not authorized to use this bot. Contact your opsbot administrator for access.", sender))
		return
	}

	go func() {
		dispatchCtx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()
		dispatchCtx = trace.WithID(dispatchCtx, trace.GenerateID())

		done := make(chan struct{})
		go func() {
			defer close(done)
			a.dispatch(dispatchCtx, text, sender, out)
		}()

		select {
		case <-done:
		case <-dispatchCtx.Done():
			// Timeout is a normal, reported failure, not a crash.
			slog.Warn("handler timed out", "sender", sender)
			out(fmt.Sprintf("Sorry <@%s>, that took too long and was cancelled. Please try again.", sender))
		}
	}()
}

// dispatch tries registry dispatch first and falls back to the
// conversational pattern list for messages that are not commands.
func (a *App) dispatch(ctx context.Context, text, sender string, out commands.OutputFunc) {
	tokens := strings.Fields(text)
	if len(tokens) > 0 {
		first := strings.ToLower(tokens[0])
		if len(tokens) > 1 && (strings.HasPrefix(tokens[0], "<@") || strings.HasPrefix(tokens[0], "@")) {
			first = strings.ToLower(tokens[1])
		}
		if _, known := a.registry.Lookup(first); !known && first != "help" {
			if a.chitchat.Dispatch(ctx, text, sender, out) {
				return
			}
		}
	}
	a.dispatcher.Dispatch(ctx, text, sender, out)
}

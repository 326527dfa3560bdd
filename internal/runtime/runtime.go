// Package runtime assembles the assistant from configuration: providers,
// tool registry, turn loop, confirmation broker, notification router,
// scheduler, recovery, and the chat transports. It is the only package that
// knows the full dependency graph.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/steward/internal/agent"
	"github.com/haasonsaas/steward/internal/agent/providers"
	"github.com/haasonsaas/steward/internal/channels"
	"github.com/haasonsaas/steward/internal/channels/discord"
	"github.com/haasonsaas/steward/internal/channels/matrix"
	"github.com/haasonsaas/steward/internal/channels/mattermost"
	"github.com/haasonsaas/steward/internal/channels/slack"
	"github.com/haasonsaas/steward/internal/channels/telegram"
	"github.com/haasonsaas/steward/internal/config"
	"github.com/haasonsaas/steward/internal/confirm"
	"github.com/haasonsaas/steward/internal/notify"
	"github.com/haasonsaas/steward/internal/observability"
	"github.com/haasonsaas/steward/internal/scratch"
	"github.com/haasonsaas/steward/internal/sessions"
	"github.com/haasonsaas/steward/internal/tasks"
	schedtools "github.com/haasonsaas/steward/internal/tools/scheduler"
	scratchtools "github.com/haasonsaas/steward/internal/tools/scratch"
	"github.com/haasonsaas/steward/pkg/models"
)

const defaultSystemPrompt = `You are Steward, a personal assistant reachable over chat.
You can schedule reminders and recurring tasks, keep small working files, and
answer questions. Be concise. When a request is ambiguous, ask rather than
guess. Confirm destructive actions before doing them.`

const shutdownGrace = 10 * time.Second

// Runtime is the assembled assistant.
type Runtime struct {
	config   *config.Config
	logger   *slog.Logger
	registry *agent.Registry
	metrics  *observability.Metrics
	promReg  *prometheus.Registry
	tracer   *observability.Tracer

	store     tasks.Store
	sessions  *sessions.Store
	space     *scratch.Space
	loop      *agent.Loop
	broker    *confirm.Broker
	router    *notify.Router
	executor  *tasks.Executor
	scheduler *tasks.Scheduler
	recovery  *tasks.Recovery

	transports    []channels.Transport
	metricsServer *http.Server
	stopTracer    func(context.Context) error
}

// New builds the runtime from a validated configuration. Nothing starts
// running until Run is called.
func New(cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rt := &Runtime{
		config:  cfg,
		logger:  logger,
		promReg: prometheus.NewRegistry(),
	}
	rt.promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rt.metrics = observability.NewMetrics(rt.promReg)
	rt.tracer, rt.stopTracer = observability.NewTracer(observability.TraceConfig{
		ServiceName: "steward",
		Endpoint:    cfg.Observability.OTLPEndpoint,
	})

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	rt.store = store

	space, err := scratch.New(cfg.Scratch.Root)
	if err != nil {
		return nil, fmt.Errorf("scratch space: %w", err)
	}
	rt.space = space

	provider, err := buildProvider(cfg)
	if err != nil {
		return nil, err
	}

	policy := confirm.LoadPolicy(cfg.Confirm.PolicyPath, logger)
	rt.registry = agent.NewRegistry(
		agent.WithPolicy(policy),
		agent.WithRegistryLogger(logger),
	)

	system, err := systemPrompt(cfg)
	if err != nil {
		return nil, err
	}
	rt.loop = agent.NewLoop(provider, rt.registry, agent.LoopConfig{
		MaxRounds:    cfg.Agent.MaxRounds,
		MaxTokens:    cfg.Agent.MaxTokens,
		System:       []agent.SystemBlock{{Text: system, Cache: true}},
		DefaultModel: cfg.LLM.Providers[cfg.LLM.DefaultProvider].DefaultModel,
		Logger:       logger,
	})

	rt.sessions = sessions.NewStore(cfg.Session.Window)
	rt.broker = confirm.NewBroker(confirm.Config{
		Timeout: cfg.Confirm.Timeout(),
		Logger:  logger,
	})
	rt.router = notify.NewRouter(logger)

	rt.executor = tasks.NewExecutor(tasks.ExecutorConfig{
		Store:    store,
		Notifier: rt.router,
		Generate: rt.generateForTask,
		Owner:    cfg.Owner.UserID,
		Logger:   logger,
	})
	rt.scheduler = tasks.NewScheduler(store, rt.executor,
		tasks.WithLogger(logger),
		tasks.WithLocation(cfg.Location()),
	)
	rt.recovery = tasks.NewRecovery(tasks.RecoveryConfig{
		Store:    store,
		Runner:   rt.executor,
		Notifier: rt.router,
		Owner:    cfg.Owner.UserID,
		Logger:   logger,
	})

	if err := rt.registerTools(); err != nil {
		return nil, err
	}
	if err := rt.buildChannels(); err != nil {
		return nil, err
	}
	return rt, nil
}

func openStore(cfg *config.Config) (tasks.Store, error) {
	if cfg.Tasks.PostgresDSN != "" {
		store, err := tasks.OpenPostgres(cfg.Tasks.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres task store: %w", err)
		}
		return store, nil
	}
	store, err := tasks.OpenSQLite(cfg.Tasks.Database)
	if err != nil {
		return nil, fmt.Errorf("open sqlite task store: %w", err)
	}
	return store, nil
}

func buildProvider(cfg *config.Config) (agent.LLMProvider, error) {
	pc := cfg.LLM.Providers[cfg.LLM.DefaultProvider]
	switch cfg.LLM.DefaultProvider {
	case "anthropic":
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       pc.APIKey,
			BaseURL:      pc.BaseURL,
			DefaultModel: pc.DefaultModel,
		})
	case "openai":
		return providers.NewOpenAIProvider(providers.OpenAIConfig{
			APIKey:       pc.APIKey,
			BaseURL:      pc.BaseURL,
			DefaultModel: pc.DefaultModel,
		})
	case "google":
		return providers.NewGoogleProvider(providers.GoogleConfig{
			APIKey:       pc.APIKey,
			DefaultModel: pc.DefaultModel,
		})
	case "bedrock":
		return providers.NewBedrockProvider(providers.BedrockConfig{
			Region:       pc.Region,
			DefaultModel: pc.DefaultModel,
		})
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.DefaultProvider)
}

func systemPrompt(cfg *config.Config) (string, error) {
	if cfg.Agent.SystemPromptPath != "" {
		data, err := os.ReadFile(cfg.Agent.SystemPromptPath)
		if err != nil {
			return "", fmt.Errorf("read system prompt: %w", err)
		}
		return string(data), nil
	}
	if cfg.Agent.SystemPrompt != "" {
		return cfg.Agent.SystemPrompt, nil
	}
	return defaultSystemPrompt, nil
}

func (rt *Runtime) registerTools() error {
	tools := []agent.Tool{
		schedtools.NewScheduleTool(rt.scheduler),
		schedtools.NewListTool(rt.store),
		schedtools.NewCancelTool(rt.scheduler, rt.store),
		scratchtools.NewWriteTool(rt.space),
		scratchtools.NewReadTool(rt.space),
		scratchtools.NewListTool(rt.space),
		scratchtools.NewDeleteTool(rt.space),
	}
	for _, tool := range tools {
		if err := rt.registry.Register(tool); err != nil {
			return fmt.Errorf("register tool: %w", err)
		}
	}
	return nil
}

// buildChannels constructs the configured transports and outbound channels
// and registers them with the router and the broker.
func (rt *Runtime) buildChannels() error {
	cfg := rt.config

	if cfg.Transports.Telegram.Enabled {
		adapter, err := telegram.NewAdapter(telegram.Config{
			Token:          cfg.Transports.Telegram.BotToken,
			AllowedUserIDs: cfg.Transports.Telegram.AllowedUserIDs,
			Logger:         rt.logger,
		}, rt)
		if err != nil {
			return err
		}
		rt.transports = append(rt.transports, adapter)
		rt.router.Register(adapter)
		rt.broker.RegisterRenderer(telegram.TransportName, adapter)
	}

	if cfg.Transports.Discord.Enabled {
		adapter, err := discord.NewAdapter(discord.Config{
			Token:          cfg.Transports.Discord.BotToken,
			AllowedUserIDs: cfg.Transports.Discord.AllowedUserIDs,
			Logger:         rt.logger,
		}, rt)
		if err != nil {
			return err
		}
		rt.transports = append(rt.transports, adapter)
		rt.router.Register(adapter)
		rt.broker.RegisterRenderer(discord.TransportName, adapter)
	}

	if cfg.Channels.Slack.Enabled {
		ch, err := slack.NewChannel(slack.Config{
			Token:  cfg.Channels.Slack.BotToken,
			Logger: rt.logger,
		})
		if err != nil {
			return err
		}
		rt.router.Register(ch)
	}

	if cfg.Channels.Mattermost.Enabled {
		ch, err := mattermost.NewChannel(mattermost.Config{
			ServerURL: cfg.Channels.Mattermost.ServerURL,
			Token:     cfg.Channels.Mattermost.Token,
			Logger:    rt.logger,
		})
		if err != nil {
			return err
		}
		rt.router.Register(ch)
	}

	if cfg.Channels.Matrix.Enabled {
		ch, err := matrix.NewChannel(matrix.Config{
			Homeserver:  cfg.Channels.Matrix.Homeserver,
			UserID:      cfg.Channels.Matrix.UserID,
			AccessToken: cfg.Channels.Matrix.AccessToken,
			Logger:      rt.logger,
		})
		if err != nil {
			return err
		}
		rt.router.Register(ch)
	}

	if cfg.Owner.DefaultChannel != "" {
		rt.router.SetDefault(cfg.Owner.DefaultChannel)
	}
	return nil
}

// Run starts everything in dependency order and blocks until ctx is
// cancelled, then shuts down gracefully. Recovery scans only after the
// scheduler has reconciled fire times, so a task is never both re-armed and
// flagged as missed.
func (rt *Runtime) Run(ctx context.Context) error {
	if err := rt.scheduler.Load(ctx); err != nil {
		return fmt.Errorf("load scheduled tasks: %w", err)
	}
	if n := rt.recovery.Scan(ctx); n > 0 {
		rt.logger.Info("missed tasks flagged", "count", n)
	}

	schedCtx, cancelSched := context.WithCancel(ctx)
	defer cancelSched()
	go func() {
		if err := rt.scheduler.Start(schedCtx); err != nil && !errors.Is(err, context.Canceled) {
			rt.logger.Error("scheduler stopped", "error", err)
		}
	}()

	for _, transport := range rt.transports {
		if err := transport.Start(ctx); err != nil {
			return fmt.Errorf("start %s transport: %w", transport.Name(), err)
		}
	}

	if addr := rt.config.Observability.MetricsAddr; addr != "" {
		rt.startMetricsServer(addr)
	}

	rt.logger.Info("steward running",
		"transports", len(rt.transports),
		"tools", len(rt.registry.Tools()))

	<-ctx.Done()
	return rt.shutdown()
}

func (rt *Runtime) startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(rt.promReg, promhttp.HandlerOpts{}))
	rt.metricsServer = &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := rt.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.logger.Error("metrics server failed", "error", err)
		}
	}()
	rt.logger.Info("metrics listening", "addr", addr)
}

func (rt *Runtime) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	var errs []error
	for _, transport := range rt.transports {
		if err := transport.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if rt.metricsServer != nil {
		if err := rt.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := rt.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close task store: %w", err))
	}
	if err := rt.stopTracer(ctx); err != nil {
		errs = append(errs, err)
	}
	rt.logger.Info("steward stopped")
	return errors.Join(errs...)
}

// HandleMessage runs one user turn. The transport has already serialised
// turns per conversation; this appends to the session, drives the loop with
// streaming and confirmations wired in, and records the reply.
func (rt *Runtime) HandleMessage(ctx context.Context, mc *models.MessageContext, text string, onDelta func(string)) (string, error) {
	rt.metrics.MessageReceived(mc.Transport)

	ctx, span := rt.tracer.TraceTurn(ctx, mc.Transport, mc.ConversationID)
	defer span.End()

	session := rt.sessions.Get(mc.ConversationID)

	if reply, handled := rt.handleCommand(session, text); handled {
		return reply, nil
	}

	session.Append(models.RoleUser, text)

	reply, err := rt.loop.GenerateResponse(ctx, session.History(), &agent.GenerateOptions{
		OnTextDelta: onDelta,
		OnConfirm: func(ctx context.Context, call *agent.PendingToolCall) bool {
			approved := rt.broker.RequestConfirmation(ctx, mc, call)
			if approved {
				rt.metrics.RecordConfirmation("approved")
			} else {
				rt.metrics.RecordConfirmation("denied")
			}
			return approved
		},
		MessageContext: mc,
	})
	if err != nil {
		rt.tracer.RecordError(span, err)
		rt.metrics.RecordError("agent", "turn_failed")
		return "", err
	}

	session.Append(models.RoleAssistant, reply)
	rt.metrics.MessageSent(mc.Transport)
	return reply, nil
}

// handleCommand intercepts the few slash commands that bypass the LLM.
func (rt *Runtime) handleCommand(session *sessions.Session, text string) (string, bool) {
	switch strings.TrimSpace(text) {
	case "/new", "/clear":
		n := session.Clear()
		return fmt.Sprintf("Started a new conversation (%d messages dropped).", n), true
	}
	return "", false
}

// HandleCallback routes a button press to the component that issued it.
// The returned text replaces the prompt message; handled is false for
// payloads nothing recognises.
func (rt *Runtime) HandleCallback(ctx context.Context, mc *models.MessageContext, data string) (string, bool) {
	if id, approved, ok := confirm.ParseCallback(data); ok {
		if !rt.broker.Resolve(id, approved) {
			return "This confirmation has already been decided or timed out.", true
		}
		if approved {
			return "Approved.", true
		}
		return "Denied.", true
	}

	if key, verb, ok := tasks.ParseCallback(data); ok {
		return rt.recovery.HandleCallback(ctx, key, verb), true
	}

	rt.logger.Debug("unrecognised callback", "data", data)
	return "", false
}

// generateForTask is the executor's LLM callable. Scheduled turns run
// unattended with a one-shot history and no OnConfirm, so the task was
// itself the approval and tools do not block waiting for one.
func (rt *Runtime) generateForTask(ctx context.Context, prompt, model string) (string, error) {
	history := []models.ChatMessage{models.UserMessage(prompt)}
	return rt.loop.GenerateResponse(ctx, history, &agent.GenerateOptions{Model: model})
}

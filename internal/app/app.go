// Package app is the composition root: it builds and wires every component
// package into one running process, the same role opencode's
// cmd/opencode/commands/serve.go plays procedurally, pulled into a
// reusable type so both "serve" and the other cobra subcommands can share
// one wiring path instead of duplicating it.
package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/vmoranv/cerise/internal/ability"
	"github.com/vmoranv/cerise/internal/admin"
	"github.com/vmoranv/cerise/internal/agentsvc"
	"github.com/vmoranv/cerise/internal/config"
	"github.com/vmoranv/cerise/internal/contracts"
	"github.com/vmoranv/cerise/internal/dialogue"
	"github.com/vmoranv/cerise/internal/emotion"
	"github.com/vmoranv/cerise/internal/event"
	"github.com/vmoranv/cerise/internal/logging"
	"github.com/vmoranv/cerise/internal/memory"
	"github.com/vmoranv/cerise/internal/memorypipeline"
	"github.com/vmoranv/cerise/internal/plugin"
	"github.com/vmoranv/cerise/internal/proactive"
	"github.com/vmoranv/cerise/internal/provider"
	"github.com/vmoranv/cerise/internal/skill"
	"github.com/vmoranv/cerise/internal/state"
	"github.com/vmoranv/cerise/pkg/types"
)

// App holds every wired component, exported so cmd/cerise's subcommands can
// reach the piece they need (Agents for "agent", Installer/Manager for
// "plugin", Scheduler for "mcp-server") without re-wiring anything.
type App struct {
	Config *types.Config
	Paths  *config.Paths

	Bus   *event.Bus
	State *state.Store

	Providers *provider.Registry

	MemoryStore *memory.Store
	Memory      *memory.Engine
	Layers      *memorypipeline.LayerStores
	Pipeline    *memorypipeline.Pipeline

	Skills  *skill.Store
	Audit   *skill.Audit
	Emotion *emotion.Engine

	Abilities *ability.Registry
	Scheduler *ability.Scheduler

	Dialogue  *dialogue.Engine
	Proactive *proactive.Scheduler
	Agents    *agentsvc.Service

	Installer *plugin.Installer
	Plugins   *plugin.Manager

	Admin *admin.Server

	detachFns []func()
}

// New builds every component and wires the event-driven subscriptions
// between them. It does not start the admin HTTP listener or restore
// proactive timers - callers do that explicitly via Admin.Start() and
// Proactive.Restore() once they're ready to run.
func New(cfg *types.Config) (*App, error) {
	paths := config.NewPaths(cfg.DataDir)
	if err := paths.EnsurePaths(); err != nil {
		return nil, fmt.Errorf("app: ensure paths: %w", err)
	}

	a := &App{Config: cfg, Paths: paths}

	a.Bus = event.New()

	stateStore, err := state.Open(paths.StateFile())
	if err != nil {
		return nil, fmt.Errorf("app: open state store: %w", err)
	}
	a.State = stateStore

	ctx := context.Background()
	providers, err := provider.InitializeProviders(ctx, cfg)
	if err != nil {
		logging.Warn().Err(err).Msg("failed to initialize some providers")
	}
	if providers == nil {
		providers = provider.NewRegistry(cfg)
	}
	a.Providers = providers

	memStore, err := memory.NewStore(paths.MemoryDBFile())
	if err != nil {
		return nil, fmt.Errorf("app: open memory store: %w", err)
	}
	a.MemoryStore = memStore

	memCfg := memoryConfigFromTypes(cfg.Memory)
	a.Memory = memory.NewEngine(memCfg, memStore, memory.WithEventBus(a.Bus))

	a.Layers = memorypipeline.NewLayerStores(a.State)
	a.Layers.Attach(a.Bus)

	extractor := buildExtractor(a.Providers)
	a.Pipeline = memorypipeline.NewPipeline(a.Bus, memStore, extractor)
	a.Pipeline.Attach()

	a.Emotion = emotion.NewEngine(a.Bus)
	a.detachFns = append(a.detachFns, a.Emotion.Attach())

	a.Skills = skill.NewStore(skillEmbedder{registry: a.Providers})
	a.Audit = skill.NewAudit()

	a.Abilities = ability.NewRegistry()
	a.Installer = plugin.NewInstaller(paths.PluginsDir())
	a.Plugins = plugin.NewManager(paths.PluginsDir(), a.Abilities)

	a.Scheduler = ability.NewScheduler(a.Abilities, true, true, a.Plugins.Owner)
	applyCapabilityOverrides(a.Scheduler, cfg.Capability)

	memoryCtx := dialogue.NewMemoryContextBuilder(dialogue.DefaultMemoryContextConfig(), a.Memory, a.Layers)
	composer := dialogue.NewPromptComposer(personaProvider(cfg), memoryCtx, a.Skills, 3)
	a.Dialogue = dialogue.NewEngine(a.Providers, a.Scheduler, a.Bus, composer, a.Audit, a.Emotion)

	a.detachFns = append(a.detachFns, wireMemoryIngestion(a.Bus, a.Memory))

	a.Proactive = proactive.NewScheduler(cfg.Proactive, a.State, a.Bus, a.Dialogue)
	a.Proactive.Attach()

	a.Agents = agentsvc.NewService(a.Bus, a.Dialogue)

	a.Admin = admin.New(admin.DefaultConfig(), cfg.Admin, a.State, a.Installer, a.Plugins, a.Scheduler, memStore)

	return a, nil
}

// Close detaches every event subscription. It does not close the admin
// listener; callers that called Admin.Start() shut it down via
// Admin.Shutdown(ctx) directly.
func (a *App) Close() error {
	for _, detach := range a.detachFns {
		if detach != nil {
			detach()
		}
	}
	a.Pipeline.Detach()
	a.Layers.Detach()
	a.Proactive.Detach()
	if a.MemoryStore != nil {
		return a.MemoryStore.Close()
	}
	return nil
}

// DiscoverPlugins loads every manifest found under paths.PluginsDir(),
// logging and skipping individual failures rather than aborting startup -
// the same "warn and continue" policy opencode's serve.go uses for MCP
// server initialization.
func (a *App) DiscoverPlugins(ctx context.Context) {
	manifests, err := a.Plugins.Discover()
	if err != nil {
		logging.Warn().Err(err).Msg("plugin discovery failed")
		return
	}
	for _, manifestPath := range manifests {
		if err := a.Plugins.Load(ctx, manifestPath, nil); err != nil {
			logging.Warn().Err(err).Str("manifest", manifestPath).Msg("failed to load discovered plugin")
		}
	}
}

func memoryConfigFromTypes(cfg types.MemoryConfig) memory.Config {
	mc := memory.DefaultConfig()
	if cfg.TTLSeconds != 0 {
		mc.Store.TTLSeconds = cfg.TTLSeconds
	}
	if cfg.MaxRecords != 0 {
		mc.Store.MaxRecordsPerSession = cfg.MaxRecords
	}
	if cfg.RRFK != 0 {
		mc.Recall.RRFK = cfg.RRFK
	}
	if cfg.MinScore != 0 {
		mc.Recall.MinScore = cfg.MinScore
	}
	mc.Recall.TouchOnRecall = cfg.TouchOnRecall
	if cfg.CompressWindow != 0 {
		mc.Compression.Window = cfg.CompressWindow
	}
	if cfg.CompressThresh != 0 {
		mc.Compression.Threshold = cfg.CompressThresh
	}
	return mc
}

func applyCapabilityOverrides(scheduler *ability.Scheduler, entries map[string]types.CapabilityEntry) {
	for name, entry := range entries {
		scheduler.SetOverride(name, entry)
	}
}

// personaProvider resolves a session's character persona from config.Agent.
// Cerise has no per-session character assignment yet (spec §9 leaves
// multi-character routing open), so every session gets the first
// non-disabled configured character (by name), matching a single-character
// deployment - the common case the example config.yaml/characters layout
// targets.
func personaProvider(cfg *types.Config) dialogue.PersonaProvider {
	names := make([]string, 0, len(cfg.Agent))
	for name := range cfg.Agent {
		names = append(names, name)
	}
	sort.Strings(names)

	var prompt string
	for _, name := range names {
		agent := cfg.Agent[name]
		if agent.Disable {
			continue
		}
		prompt = agent.Prompt
		break
	}
	return func(sessionID string) string { return prompt }
}

// buildExtractor assembles the memory pipeline's layer extractor: the rule
// extractor always runs (no provider dependency), and an LLM extractor is
// added on top when a chat-capable provider is available, matching
// pipeline.py's "rule first, LLM enrichment second" order.
func buildExtractor(providers *provider.Registry) memorypipeline.Extractor {
	rule := memorypipeline.NewRuleExtractor()
	prov, _, err := providers.Resolve(provider.CapabilityChat)
	if err != nil || prov == nil {
		return rule
	}
	return memorypipeline.NewCompositeExtractor(rule, memorypipeline.NewLLMExtractor(prov))
}

// wireMemoryIngestion bridges dialogue.user_message/dialogue.assistant_response
// into the Memory Engine. Dialogue and Memory are independently testable
// components with no direct dependency on each other; this is the call
// site joining them, the same role serve.go's MCP tool registration plays
// for opencode's tool registry and MCP client.
func wireMemoryIngestion(bus *event.Bus, mem *memory.Engine) func() {
	unsubUser := bus.Subscribe(string(contracts.DialogueUserMessage), func(ev event.Event) {
		data, ok := ev.Data.(contracts.DialogueUserMessageData)
		if !ok {
			return
		}
		if _, err := mem.IngestMessage(context.Background(), data.SessionID, "user", data.Content, types.MemoryMetadata{}); err != nil {
			logging.Warn().Err(err).Str("session", data.SessionID).Msg("failed to ingest user message")
		}
	})
	unsubAssistant := bus.Subscribe(string(contracts.DialogueAssistantResponse), func(ev event.Event) {
		data, ok := ev.Data.(contracts.DialogueAssistantResponseData)
		if !ok {
			return
		}
		if _, err := mem.IngestMessage(context.Background(), data.SessionID, "assistant", data.Content, types.MemoryMetadata{}); err != nil {
			logging.Warn().Err(err).Str("session", data.SessionID).Msg("failed to ingest assistant message")
		}
	})
	return func() {
		unsubUser()
		unsubAssistant()
	}
}

// skillEmbedder adapts provider.Registry's embed-capable provider to
// skill.Embedder, resolving a provider lazily on each call so a provider
// added after startup is picked up automatically.
type skillEmbedder struct {
	registry *provider.Registry
}

func (s skillEmbedder) Embed(ctx context.Context, texts []string, modelID string) ([][]float64, error) {
	prov, resolvedModel, err := s.registry.Resolve(provider.CapabilityEmbed)
	if err != nil {
		return nil, err
	}
	if modelID == "" {
		modelID = resolvedModel
	}
	return prov.Embed(ctx, texts, modelID)
}

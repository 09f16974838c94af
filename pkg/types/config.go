package types

// Config is the top-level Cerise configuration (config.yaml), merged from
// global config, project config, and environment overrides per the
// ambient config-loading concern.
type Config struct {
	DataDir    string                     `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`
	Model      string                     `json:"model,omitempty" yaml:"model,omitempty"`
	SmallModel string                     `json:"small_model,omitempty" yaml:"small_model,omitempty"`
	LogLevel   string                     `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	Server     ServerConfig               `json:"server,omitempty" yaml:"server,omitempty"`
	Provider   map[string]ProviderConfig  `json:"provider,omitempty" yaml:"provider,omitempty"`
	Agent      map[string]AgentConfig     `json:"agent,omitempty" yaml:"agent,omitempty"`
	Capability map[string]CapabilityEntry `json:"capability,omitempty" yaml:"capability,omitempty"`
	Memory     MemoryConfig               `json:"memory,omitempty" yaml:"memory,omitempty"`
	Proactive  ProactiveConfig            `json:"proactive,omitempty" yaml:"proactive,omitempty"`
	Admin      AdminConfig                `json:"admin,omitempty" yaml:"admin,omitempty"`
}

// ServerConfig is the thin admin HTTP surface's listen configuration.
type ServerConfig struct {
	Host  string `json:"host,omitempty" yaml:"host,omitempty"`
	Port  int    `json:"port,omitempty" yaml:"port,omitempty"`
	Debug bool   `json:"debug,omitempty" yaml:"debug,omitempty"`
}

// ProviderConfig holds configuration for a single LLM provider, loaded from
// providers.yaml. APIKey supports ${VAR} expansion at load time.
type ProviderConfig struct {
	APIKey    string   `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL   string   `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model     string   `json:"model,omitempty" yaml:"model,omitempty"`
	Npm       string   `json:"npm,omitempty" yaml:"npm,omitempty"`
	Whitelist []string `json:"whitelist,omitempty" yaml:"whitelist,omitempty"`
	Blacklist []string `json:"blacklist,omitempty" yaml:"blacklist,omitempty"`
	Disable   bool     `json:"disable,omitempty" yaml:"disable,omitempty"`
}

// AgentConfig configures a dialogue agent persona (model + sampling +
// system prompt), loaded from characters/<name>.yaml.
type AgentConfig struct {
	Model       string   `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty" yaml:"top_p,omitempty"`
	Prompt      string   `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Disable     bool     `json:"disable,omitempty" yaml:"disable,omitempty"`
}

// CapabilityEntry is a per-ability global policy override consumed by the
// Capability Scheduler (spec §4.3, step 2).
type CapabilityEntry struct {
	Enabled    *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	AllowTools *bool `json:"allow_tools,omitempty" yaml:"allow_tools,omitempty"`
	Priority   *int  `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// MemoryConfig configures the Memory Engine's retrievers, scoring, and
// compression thresholds.
type MemoryConfig struct {
	TTLSeconds      int64   `json:"ttl_seconds,omitempty" yaml:"ttl_seconds,omitempty"`
	MaxRecords      int     `json:"max_records,omitempty" yaml:"max_records,omitempty"`
	RRFK            int     `json:"rrf_k,omitempty" yaml:"rrf_k,omitempty"`
	MinScore        float64 `json:"min_score,omitempty" yaml:"min_score,omitempty"`
	TouchOnRecall   bool    `json:"touch_on_recall,omitempty" yaml:"touch_on_recall,omitempty"`
	CompressWindow  int     `json:"compress_window,omitempty" yaml:"compress_window,omitempty"`
	CompressThresh  int     `json:"compress_threshold,omitempty" yaml:"compress_threshold,omitempty"`
}

// ProactiveConfig configures the Proactive Chat Service.
type ProactiveConfig struct {
	Enabled            bool     `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	MinIntervalMinutes int      `json:"min_interval_minutes,omitempty" yaml:"min_interval_minutes,omitempty"`
	MaxIntervalMinutes int      `json:"max_interval_minutes,omitempty" yaml:"max_interval_minutes,omitempty"`
	QuietHours         string   `json:"quiet_hours,omitempty" yaml:"quiet_hours,omitempty"`
	MaxUnansweredTimes int      `json:"max_unanswered_times,omitempty" yaml:"max_unanswered_times,omitempty"`
	PromptTemplate     string   `json:"prompt_template,omitempty" yaml:"prompt_template,omitempty"`
	ApplyToAll         bool     `json:"apply_to_all,omitempty" yaml:"apply_to_all,omitempty"`
	Sessions           []string `json:"sessions,omitempty" yaml:"sessions,omitempty"`
	AutoTrigger        bool     `json:"auto_trigger,omitempty" yaml:"auto_trigger,omitempty"`
	AfterMinutes       int      `json:"after_minutes,omitempty" yaml:"after_minutes,omitempty"`
	ProviderID         string   `json:"provider_id,omitempty" yaml:"provider_id,omitempty"`
	ModelID            string   `json:"model_id,omitempty" yaml:"model_id,omitempty"`
	Temperature        *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	Timezone           string   `json:"timezone,omitempty" yaml:"timezone,omitempty"`
}

// AdminConfig configures the thin admin HTTP surface's access gate.
type AdminConfig struct {
	Token string `json:"token,omitempty" yaml:"token,omitempty"`
}

// Model represents an LLM model available from a provider.
type Model struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	ProviderID        string  `json:"providerID"`
	ContextLength     int     `json:"contextLength"`
	MaxOutputTokens   int     `json:"maxOutputTokens,omitempty"`
	SupportsTools     bool    `json:"supportsTools"`
	SupportsVision    bool    `json:"supportsVision"`
	SupportsEmbed     bool    `json:"supportsEmbed,omitempty"`
	SupportsRerank    bool    `json:"supportsRerank,omitempty"`
	InputPrice        float64 `json:"inputPrice,omitempty"`
	OutputPrice       float64 `json:"outputPrice,omitempty"`
}

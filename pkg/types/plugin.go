package types

// PluginManifest is the declarative description of a plugin directory's
// manifest.json, per §6 External Interfaces.
type PluginManifest struct {
	Name         string                 `json:"name"`
	Version      string                 `json:"version"`
	EntryPoint   string                 `json:"entry_point"`
	ClassName    string                 `json:"class_name"`
	ConfigSchema map[string]any         `json:"config_schema,omitempty"`
	Dependencies map[string]string      `json:"dependencies,omitempty"`
	Runtime      *PluginRuntime         `json:"runtime,omitempty"`
}

// PluginRuntime describes how a plugin is executed.
type PluginRuntime struct {
	Language  string `json:"language"` // "python" | "node" | "go"
	Entry     string `json:"entry,omitempty"`
	Transport string `json:"transport,omitempty"` // "stdio"
}

// InstalledPlugin is a row of the plugins.json registry.
type InstalledPlugin struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Source      string `json:"source"`     // "github" | "local_zip" | "upload"
	SourceURL   string `json:"source_url,omitempty"`
	Enabled     bool   `json:"enabled"`
	InstalledAt int64  `json:"installed_at"`
}

// PluginRegistry is the on-disk shape of plugins.json.
type PluginRegistry struct {
	Plugins []InstalledPlugin `json:"plugins"`
}

// DepsJobStatus is the state of an asynchronous dependency-install job.
type DepsJobStatus string

const (
	DepsJobPending DepsJobStatus = "pending"
	DepsJobRunning DepsJobStatus = "running"
	DepsJobSuccess DepsJobStatus = "success"
	DepsJobError   DepsJobStatus = "error"
)

// DepsJob is a dependency-install job record, keyed by (plugin, digest).
type DepsJob struct {
	Plugin     string        `json:"plugin"`
	Digest     string        `json:"digest"`
	Status     DepsJobStatus `json:"status"`
	StartedAt  int64         `json:"started_at"`
	FinishedAt *int64        `json:"finished_at,omitempty"`
	Log        string        `json:"log"`
	Error      string        `json:"error,omitempty"`
}

// StarEntry is a per-plugin policy entry consumed by the Capability
// Scheduler: the plugin-wide (enabled, allow_tools) plus optional
// per-ability toggles within that plugin.
type StarEntry struct {
	Enabled    bool            `json:"enabled"`
	AllowTools bool            `json:"allow_tools"`
	Abilities  map[string]Toggle `json:"abilities,omitempty"`
}

// Toggle is a per-ability override within a plugin's star entry.
type Toggle struct {
	Enabled    *bool `json:"enabled,omitempty"`
	AllowTools *bool `json:"allow_tools,omitempty"`
}

package plugin

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vmoranv/cerise/internal/logging"
	"github.com/vmoranv/cerise/pkg/types"
)

// DepsJobLogCap bounds a single dependency-install job's captured
// stdout/stderr, per the Plugin dependency-install job log truncation cap.
const DepsJobLogCap = 64 * 1024

// Digest computes the job dedup key: sha1 over the manifest bytes
// concatenated with the dependency-requirements bytes.
func Digest(manifestBytes, requirementsBytes []byte) string {
	h := sha1.New()
	h.Write(manifestBytes)
	h.Write(requirementsBytes)
	return hex.EncodeToString(h.Sum(nil))
}

// DepsRunner serializes dependency-install jobs per plugin and records
// their state, per §4.4.
type DepsRunner struct {
	mu      sync.Mutex
	perPlug map[string]*sync.Mutex
	last    map[string]types.DepsJob // plugin -> most recent job record
	log     *zerolog.Logger
}

// NewDepsRunner builds an empty DepsRunner.
func NewDepsRunner() *DepsRunner {
	l := logging.Logger.With().Str("component", "plugin.deps").Logger()
	return &DepsRunner{
		perPlug: make(map[string]*sync.Mutex),
		last:    make(map[string]types.DepsJob),
		log:     &l,
	}
}

func (d *DepsRunner) lockFor(plugin string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.perPlug[plugin]
	if !ok {
		m = &sync.Mutex{}
		d.perPlug[plugin] = m
	}
	return m
}

// LastJob returns the most recently recorded job for plugin, if any.
func (d *DepsRunner) LastJob(plugin string) (types.DepsJob, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	j, ok := d.last[plugin]
	return j, ok
}

// Run installs plugin's dependencies for the given manifest language and
// working directory, serialized per plugin. If a prior success record
// shares digest, the job is a no-op and the cached record is returned.
func (d *DepsRunner) Run(plugin, digest, language, dir string, requirementsFile string) types.DepsJob {
	lock := d.lockFor(plugin)
	lock.Lock()
	defer lock.Unlock()

	if prev, ok := d.LastJob(plugin); ok && prev.Digest == digest && prev.Status == types.DepsJobSuccess {
		return prev
	}

	job := types.DepsJob{Plugin: plugin, Digest: digest, Status: types.DepsJobRunning, StartedAt: time.Now().UnixMilli()}
	d.record(job)

	var cmd *exec.Cmd
	switch language {
	case "python":
		if requirementsFile != "" {
			cmd = exec.Command("pip", "install", "-r", requirementsFile)
		} else {
			cmd = exec.Command("pip", "install", ".")
		}
	case "node":
		cmd = exec.Command("npm", "install", "--omit=dev")
	case "go":
		cmd = exec.Command("go", "mod", "download")
	default:
		job.Status = types.DepsJobSuccess
		job.Log = fmt.Sprintf("skipped: unknown language %q", language)
		finished := time.Now().UnixMilli()
		job.FinishedAt = &finished
		d.record(job)
		return job
	}
	cmd.Dir = dir

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	runErr := cmd.Run()

	finished := time.Now().UnixMilli()
	job.FinishedAt = &finished
	job.Log = truncateLog(buf.String())
	if runErr != nil {
		job.Status = types.DepsJobError
		job.Error = runErr.Error()
	} else {
		job.Status = types.DepsJobSuccess
	}
	d.record(job)
	return job
}

func (d *DepsRunner) record(job types.DepsJob) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last[job.Plugin] = job
	d.log.Info().Str("plugin", job.Plugin).Str("status", string(job.Status)).Msg("dependency job state change")
}

func truncateLog(s string) string {
	if len(s) <= DepsJobLogCap {
		return s
	}
	return s[:DepsJobLogCap]
}

// ManifestDigestInputs renders a manifest back to canonical JSON bytes for
// use with Digest, so re-derived digests are stable across loads.
func ManifestDigestInputs(m types.PluginManifest) ([]byte, error) {
	return json.Marshal(m)
}

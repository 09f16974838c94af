package skill

import (
	"sync"

	"github.com/vmoranv/cerise/pkg/types"
)

// auditCap is the per-session tool-run ring buffer size, per §4.11.
const auditCap = 200

// Audit is the per-session tool-run audit log: a capped ring buffer
// recording every ability invocation the dialogue engine makes.
type Audit struct {
	mu   sync.Mutex
	runs map[string][]types.ToolRun
}

func NewAudit() *Audit {
	return &Audit{runs: make(map[string][]types.ToolRun)}
}

// RecordToolRun appends run to sessionID's ring buffer, dropping the
// oldest entry once the buffer exceeds auditCap. Satisfies
// dialogue.ToolRunRecorder.
func (a *Audit) RecordToolRun(sessionID string, run types.ToolRun) {
	a.mu.Lock()
	defer a.mu.Unlock()
	runs := append(a.runs[sessionID], run)
	if len(runs) > auditCap {
		runs = runs[len(runs)-auditCap:]
	}
	a.runs[sessionID] = runs
}

// ListToolRuns returns a defensive copy of sessionID's tool-run log,
// oldest first.
func (a *Audit) ListToolRuns(sessionID string) []types.ToolRun {
	a.mu.Lock()
	defer a.mu.Unlock()
	runs := a.runs[sessionID]
	out := make([]types.ToolRun, len(runs))
	copy(out, runs)
	return out
}

// ClearToolRuns discards sessionID's tool-run log.
func (a *Audit) ClearToolRuns(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.runs, sessionID)
}

package export

import (
	"strings"

	"github.com/tidwall/gjson"
)

// State is the canonical job state.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether the remote job has finished.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

var vocabulary = map[string]State{
	"notstarted":  StatePending,
	"not_started": StatePending,
	"pending":     StatePending,
	"queued":      StatePending,
	"accepted":    StatePending,
	"running":     StateRunning,
	"inprogress":  StateRunning,
	"in_progress": StateRunning,
	"processing":  StateRunning,
	"succeeded":   StateSucceeded,
	"completed":   StateSucceeded,
	"complete":    StateSucceeded,
	"done":        StateSucceeded,
	"success":     StateSucceeded,
	"failed":      StateFailed,
	"failure":     StateFailed,
	"error":       StateFailed,
	"timeout":     StateFailed,
	"cancelled":   StateCancelled,
	"canceled":    StateCancelled,
}

// NormalizeState maps the vendor vocabulary onto State. Unknown values
// are reported as running; the caller keeps the raw string.
func NormalizeState(raw string) State {
	key := strings.ToLower(strings.TrimSpace(raw))
	if s, ok := vocabulary[key]; ok {
		return s
	}
	return StateRunning
}

// StatusSnapshot is one observation of a remote job.
type StatusSnapshot struct {
	State    State
	RawState string

	// Progress is nil when the vendor reported none.
	Progress *float64

	// DownloadLocation is set once the job has produced its payload.
	DownloadLocation string

	Payload []byte
}

// NoProgress reports whether the snapshot shows no sign of life: absent
// or zero progress.
func (s StatusSnapshot) NoProgress() bool {
	return s.Progress == nil || *s.Progress == 0
}

var (
	progressFields = []string{"percentage", "progress", "percentComplete"}
	locationFields = []string{
		"resourceLocation",
		"resultLocation",
		"resourceUri",
		"resultUri",
		"result.resourceLocation",
		"location",
	}
)

// ParseStatus decodes a vendor status document. ok is false when the
// payload is not a JSON object.
func ParseStatus(payload []byte) (snap StatusSnapshot, ok bool) {
	if !gjson.ValidBytes(payload) {
		return StatusSnapshot{}, false
	}
	doc := gjson.ParseBytes(payload)
	if !doc.IsObject() {
		return StatusSnapshot{}, false
	}

	raw := doc.Get("status").String()
	snap = StatusSnapshot{
		State:    NormalizeState(raw),
		RawState: raw,
		Payload:  payload,
	}

	for _, f := range progressFields {
		v := doc.Get(f)
		if v.Exists() && v.Type != gjson.Null {
			p := v.Float()
			snap.Progress = &p
			break
		}
	}
	for _, f := range locationFields {
		if v := doc.Get(f).String(); v != "" {
			snap.DownloadLocation = v
			break
		}
	}
	return snap, true
}

func sameProgress(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

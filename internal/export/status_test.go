package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeState(t *testing.T) {
	tests := map[string]State{
		"notStarted": StatePending,
		"queued":     StatePending,
		"running":    StateRunning,
		"InProgress": StateRunning,
		" succeeded": StateSucceeded,
		"completed":  StateSucceeded,
		"failed":     StateFailed,
		"canceled":   StateCancelled,
		"cancelled":  StateCancelled,
		"":           StateRunning,
		"warming_up": StateRunning,
	}
	for raw, want := range tests {
		assert.Equal(t, want, NormalizeState(raw), raw)
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name         string
		payload      string
		wantState    State
		wantRaw      string
		wantProgress *float64
		wantLocation string
	}{
		{
			name:      "status only",
			payload:   `{"status":"running"}`,
			wantState: StateRunning,
			wantRaw:   "running",
		},
		{
			name:         "percentage wins over progress",
			payload:      `{"status":"running","percentage":30,"progress":90}`,
			wantState:    StateRunning,
			wantRaw:      "running",
			wantProgress: pct(30),
		},
		{
			name:         "null percentage falls through",
			payload:      `{"status":"running","percentage":null,"percentComplete":12.5}`,
			wantState:    StateRunning,
			wantRaw:      "running",
			wantProgress: pct(12.5),
		},
		{
			name:         "resource location",
			payload:      `{"status":"succeeded","resourceLocation":"https://dl/x.zip"}`,
			wantState:    StateSucceeded,
			wantRaw:      "succeeded",
			wantLocation: "https://dl/x.zip",
		},
		{
			name:         "nested result location",
			payload:      `{"status":"succeeded","result":{"resourceLocation":"https://dl/y.zip"}}`,
			wantState:    StateSucceeded,
			wantRaw:      "succeeded",
			wantLocation: "https://dl/y.zip",
		},
		{
			name:         "result uri",
			payload:      `{"status":"Succeeded","resultUri":"https://dl/z.zip"}`,
			wantState:    StateSucceeded,
			wantRaw:      "Succeeded",
			wantLocation: "https://dl/z.zip",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, ok := ParseStatus([]byte(tt.payload))
			require.True(t, ok)
			assert.Equal(t, tt.wantState, snap.State)
			assert.Equal(t, tt.wantRaw, snap.RawState)
			assert.Equal(t, tt.wantProgress, snap.Progress)
			assert.Equal(t, tt.wantLocation, snap.DownloadLocation)
			assert.Equal(t, tt.payload, string(snap.Payload))
		})
	}
}

func TestParseStatusRejectsNonObjects(t *testing.T) {
	for _, payload := range []string{``, `not json`, `[1,2]`, `"running"`} {
		_, ok := ParseStatus([]byte(payload))
		assert.False(t, ok, payload)
	}
}

func TestNoProgress(t *testing.T) {
	assert.True(t, running(nil).NoProgress())
	assert.True(t, running(pct(0)).NoProgress())
	assert.False(t, running(pct(0.5)).NoProgress())
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "succeeded", Outcome(nil))
	assert.Equal(t, "stuck_exhausted", Outcome(&StuckExhausted{}))
	assert.Equal(t, "timed_out", Outcome(&TimedOut{}))
	assert.Equal(t, "cancelled", Outcome(&Cancelled{Phase: PhasePolling}))
	assert.Equal(t, "download_error", Outcome(&DownloadError{StatusCode: 403}))
	assert.Equal(t, "remote_failure", Outcome(&RemoteFailure{}))
}

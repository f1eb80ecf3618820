package alertstate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DipSentinel/internal/model"
)

func TestManager_Dedupe(t *testing.T) {
	m, err := NewManager("", zerolog.Nop())
	require.NoError(t, err)

	assert.True(t, m.ShouldNotify("AAPL", 180, model.TierSigma1))
	m.MarkSent("AAPL", 180, model.TierSigma1)

	assert.False(t, m.ShouldNotify("AAPL", 180, model.TierSigma1))
	assert.True(t, m.ShouldNotify("AAPL", 179.5, model.TierSigma1))
	assert.True(t, m.ShouldNotify("AAPL", 180, model.TierSigma2))
	assert.True(t, m.ShouldNotify("MSFT", 180, model.TierSigma1))

	m.Forget("AAPL")
	assert.True(t, m.ShouldNotify("AAPL", 180, model.TierSigma1))
	assert.Empty(t, m.Snapshot())
}

func TestManager_PersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "alerts.json")

	m, err := NewManager(path, zerolog.Nop())
	require.NoError(t, err)
	m.MarkSent("005930", 70000, model.TierSigma2)

	reloaded, err := NewManager(path, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, reloaded.ShouldNotify("005930", 70000, model.TierSigma2))

	snap := reloaded.Snapshot()
	require.Contains(t, snap, "005930")
	assert.Equal(t, model.TierSigma2, snap["005930"].Tier)
	assert.False(t, snap["005930"].SentAt.IsZero())
}

func TestLoadState_MissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()

	st, err := LoadState(filepath.Join(dir, "none.json"))
	require.NoError(t, err)
	assert.Empty(t, st.Alerts)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	_, err = LoadState(bad)
	assert.Error(t, err)
}

func TestSnapshot_IsCopy(t *testing.T) {
	m, err := NewManager("", zerolog.Nop())
	require.NoError(t, err)
	m.MarkSent("AAPL", 1, model.TierSigma3)

	snap := m.Snapshot()
	delete(snap, "AAPL")
	assert.Len(t, m.Snapshot(), 1)
}

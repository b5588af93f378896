package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalValidYAML = `
duration_s: 10
mcs: robust
mac:
  protocol: csmaca
channels:
  - name: c1
    policy: los
nodes:
  - id: a
  - id: b
`

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, minimalValidYAML)

	cfg, err := Load(path)

	assert.NoError(t, err)
	assert.Equal(t, 500.0, cfg.ResolverTickUs)
	assert.Equal(t, 8, cfg.TTLDefault)
	assert.Equal(t, 16, cfg.MACConfig.CWMin)
	assert.Equal(t, 1024, cfg.MACConfig.CWMax)
	assert.Equal(t, 100.0, cfg.MACConfig.DIFSUs)
	assert.Equal(t, 20.0, cfg.MACConfig.SIFSUs)
	assert.Equal(t, 10.0, cfg.MACConfig.SlotTimeUs)
	assert.Equal(t, 50.0, cfg.MACConfig.AckSlackUs)
}

func TestLoadCollectsEveryValidationProblem(t *testing.T) {
	path := writeConfig(t, `
duration_s: 0
mcs: bogus
mac:
  protocol: bogus
channels: []
nodes: []
`)

	_, err := Load(path)

	var cerr *ConfigError
	assert.ErrorAs(t, err, &cerr)
	assert.GreaterOrEqual(t, len(cerr.Problems), 5, "validate must report every problem, not just the first")
}

func TestLoadRejectsDuplicateNodeIDs(t *testing.T) {
	path := writeConfig(t, `
duration_s: 10
mcs: robust
mac:
  protocol: csmaca
channels:
  - name: c1
    policy: los
nodes:
  - id: a
  - id: a
`)

	_, err := Load(path)

	var cerr *ConfigError
	assert.ErrorAs(t, err, &cerr)
	found := false
	for _, p := range cerr.Problems {
		if p == `nodes[1]: duplicate id "a"` {
			found = true
		}
	}
	assert.True(t, found)
}

func TestLoadMissingFileReturnsConfigError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	var cerr *ConfigError
	assert.ErrorAs(t, err, &cerr)
}

func TestDurationHelpersConvertMicroseconds(t *testing.T) {
	cfg := &Config{ResolverTickUs: 1500, MaxAirTimeUs: 2000, FeedIntervalUs: 500}

	assert.InDelta(t, 0.0015, cfg.ResolverTick().Seconds(), 1e-9)
	assert.InDelta(t, 0.002, cfg.MaxAirTime().Seconds(), 1e-9)
	assert.InDelta(t, 0.0005, cfg.FeedInterval().Seconds(), 1e-9)
}

func TestMACTimingHelpers(t *testing.T) {
	m := MAC{DIFSUs: 100, SIFSUs: 50, SlotTimeUs: 20, AckSlackUs: 10}

	assert.InDelta(t, 0.0001, m.DIFS().Seconds(), 1e-9)
	assert.InDelta(t, 0.00005, m.SIFS().Seconds(), 1e-9)
	assert.InDelta(t, 0.00002, m.SlotTime().Seconds(), 1e-9)
	assert.InDelta(t, 0.00001, m.AckSlack().Seconds(), 1e-9)
}

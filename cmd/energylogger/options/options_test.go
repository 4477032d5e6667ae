package options

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	baseoptions "energylogger/pkg/generic/options"
	"energylogger/pkg/runtime/constant"
	"energylogger/pkg/utils/fileutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(o *Options)
		errs   int
	}{
		{name: "defaults", mutate: func(o *Options) {}},
		{name: "zero interval", mutate: func(o *Options) { o.Interval.Duration = 0 }, errs: 1},
		{name: "negative cycles", mutate: func(o *Options) { o.MaxCycles = -1 }, errs: 1},
		{name: "bad port", mutate: func(o *Options) { o.Port = "http" }, errs: 1},
		{name: "cert without key", mutate: func(o *Options) { o.CertFile = "tls.crt" }, errs: 1},
		{name: "no files", mutate: func(o *Options) {
			o.Devices = ""
			o.Sinks = ""
		}, errs: 2},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			o := NewDefaultOptions()
			tc.mutate(o)
			assert.Len(t, Validate(o), tc.errs)
		})
	}
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "energylogger.yml")
	require.NoError(t, os.WriteFile(path, []byte("interval: 5m\nsinks: from-file.yml\nparallelLinks: true\n"), 0644))

	o := NewDefaultOptions()
	args := []string{"--config", path, "--sinks", "from-flag.yml"}
	o.ConfigFile = path
	require.NoError(t, baseoptions.ParseAndApplyConfigFile(o, args))

	assert.Equal(t, 5*time.Minute, o.Interval.Duration)
	assert.Equal(t, "from-flag.yml", o.Sinks)
	assert.True(t, o.ParallelLinks)
	assert.Equal(t, _defaultDevices, o.Devices)
}

func TestConfigReleasesLockOnFailure(t *testing.T) {
	dir := t.TempDir()
	o := NewDefaultOptions()
	o.LockFile = filepath.Join(dir, "energylogger.lock")
	o.Devices = filepath.Join(dir, "missing.yml")
	o.Sinks = filepath.Join(dir, "sinks.yml")

	_, err := o.Config()
	assert.ErrorIs(t, err, constant.ErrConfig)

	lock, existed, err := fileutil.Flock(o.LockFile)
	require.NoError(t, err)
	assert.False(t, existed)
	require.NoError(t, lock.Release())
}

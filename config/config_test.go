package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadWithoutPathReturnsDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	settings, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), settings)
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codeccore.yaml")
	data := []byte("saturation:\n  threshold: 8\nreclaim:\n  inactivityThreshold: 20s\n  sweepInterval: 10s\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	settings, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 8, settings.Saturation.Threshold)
	require.Equal(t, 20*time.Second, settings.Reclaim.InactivityThreshold)
	require.Equal(t, 10*time.Second, settings.Reclaim.SweepInterval)
	// Untouched sections keep defaults.
	require.Equal(t, Default().Workers, settings.Workers)
}

func TestLoadHonoursEnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers:\n  count: 2\n"), 0o644))
	t.Setenv(EnvConfigPath, path)

	settings, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 2, settings.Workers.Count)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero threshold", func(s *Settings) { s.Saturation.Threshold = 0 }},
		{"zero inactivity", func(s *Settings) { s.Reclaim.InactivityThreshold = 0 }},
		{"zero sweep", func(s *Settings) { s.Reclaim.SweepInterval = 0 }},
		{"sweep exceeds inactivity", func(s *Settings) { s.Reclaim.SweepInterval = time.Minute }},
		{"zero workers", func(s *Settings) { s.Workers.Count = 0 }},
		{"negative queue", func(s *Settings) { s.Workers.QueueDepth = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			settings := Default()
			tc.mutate(&settings)
			require.Error(t, settings.Validate())
		})
	}
}

package drift_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.driftcloud.dev/drift"
)

func TestSelectExporter(t *testing.T) {
	var legacyCalls, currentCalls int

	legacy := func(ctx context.Context, outDir, backendURL, frontendURL string, backendOnly, frontendOnly, zip bool) error {
		legacyCalls++

		assert.True(t, backendOnly)
		assert.False(t, frontendOnly)
		assert.True(t, zip)

		return nil
	}

	current := func(ctx context.Context, outDir, backendURL, frontendURL string, backendOnly, frontendOnly, includeDB, zip bool) error {
		currentCalls++

		assert.False(t, backendOnly)
		assert.True(t, frontendOnly)
		assert.True(t, includeDB)

		return nil
	}

	tests := []struct {
		version string
		legacy  bool
	}{
		{"0.7.5", true},
		{"0.7.6", true},
		{"0.7.7", false},
		{"0.8.0", false},
		{"1.0.0", false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			legacyCalls, currentCalls = 0, 0

			e, err := drift.SelectExporter(tt.version, legacy, current)

			require.NoError(t, err)

			target := drift.ExportFrontend

			if tt.legacy {
				target = drift.ExportBackend
			}

			require.NoError(t, e.Export(context.Background(), "out", "b", "f", target, true))

			if tt.legacy {
				assert.Equal(t, 1, legacyCalls)
				assert.Zero(t, currentCalls)
			} else {
				assert.Equal(t, 1, currentCalls)
				assert.Zero(t, legacyCalls)
			}
		})
	}
}

func TestSelectExporterBadVersion(t *testing.T) {
	_, err := drift.SelectExporter("not-a-version", nil, nil)

	assert.Error(t, err)
}

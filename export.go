package drift

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// ExportTarget selects which half of the app an export pass produces.
type ExportTarget int

const (
	// ExportBackend produces the backend artifact archive
	ExportBackend ExportTarget = iota
	// ExportFrontend produces the frontend artifact archive
	ExportFrontend
)

// Exporter produces a zipped app artifact in outDir by invoking the app
// framework's export hook. Implementations adapt the hook arity of a
// particular framework version range.
type Exporter interface {
	Export(ctx context.Context, outDir, backendURL, frontendURL string, target ExportTarget, includeDB bool) error
}

// ExportFunc is the framework export hook from version 0.7.6 onward, which
// grew an include-db flag.
type ExportFunc func(ctx context.Context, outDir, backendURL, frontendURL string, backendOnly, frontendOnly, includeDB, zip bool) error

// LegacyExportFunc is the pre-0.7.6 hook without the include-db flag.
type LegacyExportFunc func(ctx context.Context, outDir, backendURL, frontendURL string, backendOnly, frontendOnly, zip bool) error

// exportBreakingVersion is the last framework release using the legacy hook.
const exportBreakingVersion = "0.7.6"

// SelectExporter picks the Exporter matching the detected framework
// version. The choice is made once at startup; call sites never branch on
// the version again.
func SelectExporter(frameworkVersion string, legacy LegacyExportFunc, current ExportFunc) (Exporter, error) {
	v, err := semver.NewVersion(frameworkVersion)

	if err != nil {
		return nil, fmt.Errorf("parsing framework version %q: %w", frameworkVersion, err)
	}

	threshold := semver.MustParse(exportBreakingVersion)

	if v.GreaterThan(threshold) {
		return currentExporter{fn: current}, nil
	}

	return legacyExporter{fn: legacy}, nil
}

type currentExporter struct {
	fn ExportFunc
}

func (e currentExporter) Export(ctx context.Context, outDir, backendURL, frontendURL string, target ExportTarget, includeDB bool) error {
	return e.fn(ctx, outDir, backendURL, frontendURL, target == ExportBackend, target == ExportFrontend, includeDB, true)
}

type legacyExporter struct {
	fn LegacyExportFunc
}

func (e legacyExporter) Export(ctx context.Context, outDir, backendURL, frontendURL string, target ExportTarget, includeDB bool) error {
	return e.fn(ctx, outDir, backendURL, frontendURL, target == ExportBackend, target == ExportFrontend, true)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"

	"go.driftcloud.dev/drift"
)

// defaultFrameworkCmd is the app framework CLI used to export deployable
// artifacts. Overridable via the framework_cmd global config key.
const defaultFrameworkCmd = "pulse"

// newExporter detects the installed app framework version and selects the
// matching export hook arity once, so the deploy flow never branches on the
// version again.
func newExporter() (drift.Exporter, error) {
	cmd := globalConfig.GetString("framework_cmd")

	if cmd == "" {
		cmd = defaultFrameworkCmd
	}

	bin, err := exec.LookPath(cmd)

	if err != nil {
		return nil, fmt.Errorf("finding framework binary %q: %w", cmd, err)
	}

	version, err := frameworkVersion(bin)

	if err != nil {
		return nil, err
	}

	log.Debug("Detected framework", "bin", bin, "version", version)

	return drift.SelectExporter(version, legacyExport(bin), currentExport(bin))
}

// frameworkVersion asks the framework binary for its version.
func frameworkVersion(bin string) (string, error) {
	out, err := exec.Command(bin, "version").Output()

	if err != nil {
		return "", fmt.Errorf("detecting framework version: %w", err)
	}

	return strings.TrimPrefix(strings.TrimSpace(string(out)), "v"), nil
}

func exportArgs(outDir, backendURL, frontendURL string, backendOnly, frontendOnly bool) []string {
	args := []string{
		"export",
		"--output-dir", outDir,
		"--backend-url", backendURL,
		"--frontend-url", frontendURL,
		"--zip",
	}

	if backendOnly {
		args = append(args, "--backend-only")
	}

	if frontendOnly {
		args = append(args, "--frontend-only")
	}

	return args
}

func runExport(ctx context.Context, bin string, args []string) error {
	cmd := exec.CommandContext(ctx, bin, args...)

	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("executing framework export: %w", err)
	}

	return nil
}

// currentExport is the 0.7.6+ hook with the include-db flag.
func currentExport(bin string) drift.ExportFunc {
	return func(ctx context.Context, outDir, backendURL, frontendURL string, backendOnly, frontendOnly, includeDB, zip bool) error {
		args := exportArgs(outDir, backendURL, frontendURL, backendOnly, frontendOnly)

		if includeDB {
			args = append(args, "--include-db")
		}

		return runExport(ctx, bin, args)
	}
}

// legacyExport is the pre-0.7.6 hook.
func legacyExport(bin string) drift.LegacyExportFunc {
	return func(ctx context.Context, outDir, backendURL, frontendURL string, backendOnly, frontendOnly, zip bool) error {
		return runExport(ctx, bin, exportArgs(outDir, backendURL, frontendURL, backendOnly, frontendOnly))
	}
}

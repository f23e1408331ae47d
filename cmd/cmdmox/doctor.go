package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Check is one diagnostic probe's outcome.
type Check struct {
	Name   string `json:"name" yaml:"name"`
	OK     bool   `json:"ok" yaml:"ok"`
	Detail string `json:"detail" yaml:"detail"`
}

// DoctorReport is the full diagnostic output of `cmdmox doctor`.
type DoctorReport struct {
	Platform      string  `json:"platform" yaml:"platform"`
	TransportKind string  `json:"transport_kind" yaml:"transport_kind"`
	Checks        []Check `json:"checks" yaml:"checks"`
	Healthy       bool    `json:"healthy" yaml:"healthy"`
}

var doctorFormatFlag string

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that this environment can run cmdmox-instrumented tests",
	Long: `doctor inspects the local environment for the prerequisites a
cmdmox-based test run depends on: a resolvable cmdmox-shim binary, a
writable temp directory for the intercepting environment, and transport
support for the current platform.

Does not start a replay session or touch any test-owned state.

Formats:
  text   Human-readable output to stderr (default)
  json   Structured JSON to stdout
  yaml   Structured YAML to stdout

Exit code 0 if every check passes, 1 otherwise.`,
	RunE: runDoctor,
}

func init() { //nolint:gochecknoinits // standard cobra pattern
	doctorCmd.Flags().StringVar(&doctorFormatFlag, "format", "text", "Output format: text, json, yaml")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(_ *cobra.Command, _ []string) error {
	format := strings.ToLower(doctorFormatFlag)
	switch format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("invalid format %q: valid values are text, json, yaml", doctorFormatFlag)
	}

	report := buildDoctorReport()

	switch format {
	case "text":
		printDoctorText(report)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
	case "yaml":
		if err := yaml.NewEncoder(os.Stdout).Encode(report); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
	}

	if !report.Healthy {
		os.Exit(1)
	}
	return nil
}

func buildDoctorReport() DoctorReport {
	var checks []Check

	launcherPath, err := resolveLauncherPath()
	if err != nil {
		checks = append(checks, Check{Name: "launcher binary", OK: false, Detail: err.Error()})
	} else {
		checks = append(checks, Check{Name: "launcher binary", OK: true, Detail: launcherPath})
	}

	dir, err := os.MkdirTemp("", "cmdmox-doctor-")
	if err != nil {
		checks = append(checks, Check{Name: "temp directory", OK: false, Detail: err.Error()})
	} else {
		defer os.RemoveAll(dir) //nolint:errcheck
		probe := filepath.Join(dir, "probe")
		if writeErr := os.WriteFile(probe, []byte("ok"), 0600); writeErr != nil {
			checks = append(checks, Check{Name: "temp directory", OK: false, Detail: writeErr.Error()})
		} else {
			checks = append(checks, Check{Name: "temp directory", OK: true, Detail: dir})
		}
	}

	transport := "unix domain socket"
	if runtime.GOOS == "windows" {
		transport = "named pipe"
	}
	checks = append(checks, Check{Name: "transport", OK: true, Detail: transport})

	healthy := true
	for _, c := range checks {
		if !c.OK {
			healthy = false
			break
		}
	}

	return DoctorReport{
		Platform:      runtime.GOOS,
		TransportKind: transport,
		Checks:        checks,
		Healthy:       healthy,
	}
}

// resolveLauncherPath mirrors Controller.resolveLauncherPath's lookup
// order (CMDMOX_SHIM_PATH, then PATH), minus the WithLauncherPath option
// which only exists at the library's call site.
func resolveLauncherPath() (string, error) {
	if p := os.Getenv("CMDMOX_SHIM_PATH"); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("CMDMOX_SHIM_PATH=%s: %w", p, err)
		}
		return p, nil
	}
	p, err := exec.LookPath("cmdmox-shim")
	if err != nil {
		return "", fmt.Errorf("cmdmox-shim not found on PATH and CMDMOX_SHIM_PATH is unset")
	}
	return p, nil
}

func printDoctorText(report DoctorReport) {
	fmt.Fprintf(os.Stderr, "platform: %s (%s)\n", report.Platform, report.TransportKind)
	for _, c := range report.Checks {
		mark := "✓"
		if !c.OK {
			mark = "✗"
		}
		fmt.Fprintf(os.Stderr, "%s %s: %s\n", mark, c.Name, c.Detail)
	}
	if report.Healthy {
		fmt.Fprintln(os.Stderr, "\nresult: healthy")
	} else {
		fmt.Fprintln(os.Stderr, "\nresult: unhealthy")
	}
}

package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	daemonServeUnitName   = "pulse-serve.service"
	daemonProcessUnitName = "pulse-process.service"
	daemonProcessTimer    = "pulse-process.timer"
	systemdUnitDir        = "/etc/systemd/system"
	pulseBinPath          = "/usr/local/bin/pulse"
)

// enabledUnitNames are the units that run on boot. The process service is
// started by its timer, never enabled directly.
var enabledUnitNames = []string{
	daemonServeUnitName,
	daemonProcessTimer,
}

var allUnitNames = []string{
	daemonServeUnitName,
	daemonProcessUnitName,
	daemonProcessTimer,
}

func runDaemon(args []string) int {
	if len(args) == 0 {
		printDaemonUsage()
		return 2
	}

	action := strings.ToLower(strings.TrimSpace(args[0]))
	switch action {
	case "help", "-h", "--help":
		printDaemonUsage()
		return 0
	case "install":
		return runDaemonInstall(args[1:])
	case "uninstall":
		return runDaemonUninstall(args[1:])
	case "start":
		return runDaemonServiceAction("start", args[1:], true)
	case "stop":
		return runDaemonServiceAction("stop", args[1:], true)
	case "restart":
		return runDaemonServiceAction("restart", args[1:], true)
	case "status":
		return runDaemonServiceAction("status", args[1:], false)
	default:
		fmt.Fprintf(os.Stderr, "unknown daemon action: %s\n\n", args[0])
		printDaemonUsage()
		return 2
	}
}

func runDaemonInstall(args []string) int {
	fs := flag.NewFlagSet("daemon install", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	defaultUser := strings.TrimSpace(os.Getenv("USER"))
	if defaultUser == "" {
		defaultUser = "root"
	}

	userName := fs.String("user", defaultUser, "Run services as this Linux user")
	port := fs.Int("port", 8090, "Port for pulse-serve")
	interval := fs.Duration("interval", 30*time.Minute, "Pipeline run cadence for pulse-process.timer")
	pulseDir := fs.String("pulse-dir", "", "Pulse working directory containing sources.yaml (auto-detected if empty)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "daemon install does not accept positional args")
		return 2
	}
	if err := validatePort(*port, "--port"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if *interval < time.Minute {
		fmt.Fprintln(os.Stderr, "--interval must be at least 1m")
		return 2
	}
	if strings.TrimSpace(*userName) == "" {
		fmt.Fprintln(os.Stderr, "--user must not be empty")
		return 2
	}
	if err := requireRoot("install"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	resolvedPulseDir, err := resolvePulseDir(*pulseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve --pulse-dir: %v\n", err)
		return 2
	}

	serveUnit := buildServeUnitFile(strings.TrimSpace(*userName), resolvedPulseDir, *port)
	processUnit := buildProcessUnitFile(strings.TrimSpace(*userName), resolvedPulseDir)
	timerUnit := buildProcessTimerFile(*interval)

	if err := writeUnitFile(daemonServeUnitName, serveUnit); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", daemonServeUnitName, err)
		return 1
	}
	if err := writeUnitFile(daemonProcessUnitName, processUnit); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", daemonProcessUnitName, err)
		return 1
	}
	if err := writeUnitFile(daemonProcessTimer, timerUnit); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", daemonProcessTimer, err)
		return 1
	}
	if err := runSystemctl("daemon-reload"); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to reload systemd units: %v\n", err)
		return 1
	}

	enableArgs := append([]string{"enable"}, enabledUnitNames...)
	if err := runSystemctl(enableArgs...); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to enable services: %v\n", err)
		return 1
	}

	fmt.Printf("Installed %s\n", strings.Join(allUnitNames, ", "))
	fmt.Println("API and pipeline timer are enabled on boot. Run `pulse daemon start` to start them now.")
	return 0
}

func runDaemonUninstall(args []string) int {
	fs := flag.NewFlagSet("daemon uninstall", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "daemon uninstall does not accept positional args")
		return 2
	}
	if err := requireRoot("uninstall"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	stopArgs := append([]string{"stop"}, enabledUnitNames...)
	if err := runSystemctl(stopArgs...); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to stop one or more services: %v\n", err)
	}

	disableArgs := append([]string{"disable"}, enabledUnitNames...)
	if err := runSystemctl(disableArgs...); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to disable one or more services: %v\n", err)
	}

	for _, unitName := range allUnitNames {
		unitPath := filepath.Join(systemdUnitDir, unitName)
		if err := os.Remove(unitPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Failed to remove %s: %v\n", unitPath, err)
			return 1
		}
	}

	if err := runSystemctl("daemon-reload"); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to reload systemd units: %v\n", err)
		return 1
	}

	fmt.Printf("Removed %s\n", strings.Join(allUnitNames, ", "))
	return 0
}

func runDaemonServiceAction(action string, args []string, requireRootPrivileges bool) int {
	fs := flag.NewFlagSet("daemon "+action, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "daemon %s does not accept positional args\n", action)
		return 2
	}
	if requireRootPrivileges {
		if err := requireRoot(action); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	units := enabledUnitNames
	if action == "status" {
		units = allUnitNames
	}

	systemctlArgs := make([]string, 0, 2+len(units))
	systemctlArgs = append(systemctlArgs, action)
	if action == "status" {
		systemctlArgs = append(systemctlArgs, "--no-pager")
	}
	systemctlArgs = append(systemctlArgs, units...)

	if err := runSystemctl(systemctlArgs...); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to %s services: %v\n", action, err)
		return 1
	}
	return 0
}

func validatePort(port int, flagName string) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535", flagName)
	}
	return nil
}

func requireRoot(action string) error {
	if os.Geteuid() == 0 {
		return nil
	}
	return fmt.Errorf("daemon %s requires root privileges; run with sudo: sudo pulse daemon %s", action, action)
}

func resolvePulseDir(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		absPath, err := filepath.Abs(trimmed)
		if err != nil {
			return "", fmt.Errorf("normalize path %q: %w", trimmed, err)
		}
		if !isPulseRoot(absPath) {
			return "", fmt.Errorf("%q must contain a sources.yaml", absPath)
		}
		return absPath, nil
	}

	detected, err := autoDetectPulseDir()
	if err != nil {
		return "", err
	}
	return detected, nil
}

func autoDetectPulseDir() (string, error) {
	candidates := make([]string, 0, 4)

	if exePath, err := os.Executable(); err == nil {
		resolvedExePath := exePath
		if resolvedPath, err := filepath.EvalSymlinks(exePath); err == nil {
			resolvedExePath = resolvedPath
		}

		exeDir := filepath.Dir(resolvedExePath)
		candidates = append(candidates, exeDir, filepath.Dir(exeDir))
	}

	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, cwd, filepath.Dir(cwd))
	}

	seen := map[string]struct{}{}
	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		absPath, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if _, exists := seen[absPath]; exists {
			continue
		}
		seen[absPath] = struct{}{}

		if isPulseRoot(absPath) {
			return absPath, nil
		}
	}

	return "", errors.New("unable to auto-detect pulse directory from executable location or cwd parent; use --pulse-dir")
}

func isPulseRoot(root string) bool {
	info, err := os.Stat(filepath.Join(root, "sources.yaml"))
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func buildServeUnitFile(userName, pulseDir string, port int) string {
	lines := []string{
		"[Unit]",
		"Description=Pulse API service",
		"After=network.target postgresql.service",
		"",
		"[Service]",
		"Type=simple",
		"User=" + userName,
		"WorkingDirectory=" + pulseDir,
		"ExecStart=" + pulseBinPath + " serve --addr :" + strconv.Itoa(port),
		"Restart=on-failure",
		"RestartSec=5",
		"",
		"[Install]",
		"WantedBy=multi-user.target",
		"",
	}
	return strings.Join(lines, "\n")
}

func buildProcessUnitFile(userName, pulseDir string) string {
	lines := []string{
		"[Unit]",
		"Description=Pulse pipeline run",
		"After=network.target postgresql.service",
		"",
		"[Service]",
		"Type=oneshot",
		"User=" + userName,
		"WorkingDirectory=" + pulseDir,
		"ExecStart=" + pulseBinPath + " process",
		"",
	}
	return strings.Join(lines, "\n")
}

func buildProcessTimerFile(interval time.Duration) string {
	minutes := int(interval / time.Minute)
	lines := []string{
		"[Unit]",
		"Description=Schedules the Pulse pipeline run",
		"",
		"[Timer]",
		"OnBootSec=5min",
		fmt.Sprintf("OnUnitActiveSec=%dmin", minutes),
		"Unit=" + daemonProcessUnitName,
		"",
		"[Install]",
		"WantedBy=timers.target",
		"",
	}
	return strings.Join(lines, "\n")
}

func writeUnitFile(name, content string) error {
	unitPath := filepath.Join(systemdUnitDir, name)
	return os.WriteFile(unitPath, []byte(content), 0o644)
}

func runSystemctl(args ...string) error {
	cmd := exec.Command("systemctl", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("systemctl %s: %w", strings.Join(args, " "), err)
	}
	return nil
}

func printDaemonUsage() {
	fmt.Fprintln(os.Stderr, "pulse daemon")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  pulse daemon <action> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Actions:")
	fmt.Fprintln(os.Stderr, "  install     Write unit files, daemon-reload, and enable the API and pipeline timer")
	fmt.Fprintln(os.Stderr, "  uninstall   Stop, disable, and remove unit files")
	fmt.Fprintln(os.Stderr, "  start       Start the API and pipeline timer")
	fmt.Fprintln(os.Stderr, "  stop        Stop the API and pipeline timer")
	fmt.Fprintln(os.Stderr, "  restart     Restart the API and pipeline timer")
	fmt.Fprintln(os.Stderr, "  status      Show status for all pulse units")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Install flags:")
	fmt.Fprintln(os.Stderr, "  --user <name>        Service user (default: $USER)")
	fmt.Fprintln(os.Stderr, "  --port <n>           API port (default: 8090)")
	fmt.Fprintln(os.Stderr, "  --interval <dur>     Pipeline cadence (default: 30m)")
	fmt.Fprintln(os.Stderr, "  --pulse-dir <path>   Pulse working directory (auto-detect by default)")
}

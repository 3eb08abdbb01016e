package reload

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// waitDelayAfterKill bounds how long a killed command may hold its pipes.
const waitDelayAfterKill = 2 * time.Second

// Runner runs an external command, feeding stdin and returning its stdout.
type Runner interface {
	Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args. On failure the error carries the trimmed stderr.
func (ExecRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = waitDelayAfterKill
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.Bytes(), fmt.Errorf("%s: %w", msg, err)
		}
		return stdout.Bytes(), err
	}
	return stdout.Bytes(), nil
}

// SyncConf reloads with "wg syncconf", which applies peer changes without
// disturbing established sessions. The wg-quick extensions (Address, PostUp
// and so on) are removed with "wg-quick strip" first.
type SyncConf struct {
	Interface  string
	ConfigPath string
	Runner     Runner
	Logger     *slog.Logger
}

// NewSyncConf returns a SyncConf reloader that runs the real wg tools.
func NewSyncConf(iface, configPath string, logger *slog.Logger) *SyncConf {
	return &SyncConf{Interface: iface, ConfigPath: configPath, Runner: ExecRunner{}, Logger: logger}
}

// Reload runs wg-quick strip on the file and pipes the result to wg syncconf.
func (s *SyncConf) Reload(ctx context.Context) error {
	stripped, err := s.Runner.Run(ctx, nil, "wg-quick", "strip", s.ConfigPath)
	if err != nil {
		return fmt.Errorf("reload: syncconf: wg-quick strip %s: %w", s.ConfigPath, err)
	}
	if _, err := s.Runner.Run(ctx, stripped, "wg", "syncconf", s.Interface, "/dev/stdin"); err != nil {
		return fmt.Errorf("reload: syncconf: wg syncconf %s: %w", s.Interface, err)
	}

	s.Logger.Info("configuration synced",
		"component", "reload",
		"method", MethodSyncConf,
		"interface", s.Interface,
	)
	return nil
}

// Systemd reloads the wg-quick@<iface> unit.
type Systemd struct {
	Interface string
	Runner    Runner
	Logger    *slog.Logger
}

// NewSystemd returns a Systemd reloader that calls the real systemctl binary.
func NewSystemd(iface string, logger *slog.Logger) *Systemd {
	return &Systemd{Interface: iface, Runner: ExecRunner{}, Logger: logger}
}

// Unit returns the systemd unit name for the interface.
func (s *Systemd) Unit() string { return "wg-quick@" + s.Interface + ".service" }

// Reload runs "systemctl reload" on the unit.
func (s *Systemd) Reload(ctx context.Context) error {
	if _, err := s.Runner.Run(ctx, nil, "systemctl", "reload", s.Unit()); err != nil {
		return fmt.Errorf("reload: systemctl reload %s: %w", s.Unit(), err)
	}

	s.Logger.Info("unit reloaded",
		"component", "reload",
		"method", MethodSystemd,
		"unit", s.Unit(),
	)
	return nil
}

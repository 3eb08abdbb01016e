package cmd

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/licht8/wg-qr-generator/internal/wgkey"
	"github.com/licht8/wg-qr-generator/internal/wireguard"
)

const confTemplate = `[Interface]
Address = 10.66.66.1/24,fd42:42:42::1/64
ListenPort = 51820
PrivateKey = %s

### Client alice
[Peer]
PublicKey = %s
AllowedIPs = 10.66.66.2/32,fd42:42:42::2/128

### Client bob
[Peer]
PublicKey = %s
AllowedIPs = 10.66.66.3/32,fd42:42:42::3/128
`

// testEnv is a server configuration, its wgpeer config file and the keys
// used in it.
type testEnv struct {
	dir       string
	cfgPath   string
	wgPath    string
	records   string
	serverPub string
	aliceKey  string
	bobKey    string
	original  string
}

func newKey(t *testing.T) *wgkey.Keypair {
	t.Helper()
	kp, err := wgkey.GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	return kp
}

func newTestEnv(t *testing.T, method string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	server, alice, bob := newKey(t), newKey(t), newKey(t)

	env := &testEnv{
		dir:       dir,
		cfgPath:   filepath.Join(dir, "config.yaml"),
		wgPath:    filepath.Join(dir, "wg0.conf"),
		records:   filepath.Join(dir, "user_records.json"),
		serverPub: server.EncodePublicKey(),
		aliceKey:  alice.EncodePublicKey(),
		bobKey:    bob.EncodePublicKey(),
	}
	env.original = fmt.Sprintf(confTemplate, server.EncodePrivateKey(), env.aliceKey, env.bobKey)
	if err := os.WriteFile(env.wgPath, []byte(env.original), 0o600); err != nil {
		t.Fatal(err)
	}

	yaml := fmt.Sprintf("log_level: error\nwireguard:\n  config_path: %s\nreload:\n  method: %s\nrecords:\n  path: %s\n",
		env.wgPath, method, env.records)
	if err := os.WriteFile(env.cfgPath, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	return env
}

func (e *testEnv) read(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(e.wgPath)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// resetFlags restores every flag to its default; cobra keeps parsed values
// between Execute calls.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the CLI against e and returns stdout and stderr combined.
func (e *testEnv) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(append([]string{"--config", e.cfgPath}, args...))
	err := rootCmd.Execute()
	return buf.String(), err
}

// fakeController records ReplacePeers calls and serves a fixed device.
type fakeController struct {
	mu         sync.Mutex
	replaced   [][]wireguard.PeerConfig
	replaceErr error
	device     *wireguard.DeviceStatus
	deviceErr  error
}

func (f *fakeController) ReplacePeers(_ string, peers []wireguard.PeerConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaced = append(f.replaced, peers)
	return f.replaceErr
}

func (f *fakeController) Device(string) (*wireguard.DeviceStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deviceErr != nil {
		return nil, f.deviceErr
	}
	return f.device, nil
}

func (f *fakeController) replaceCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.replaced)
}

func useController(t *testing.T, ctrl wireguard.WGController) {
	t.Helper()
	orig := newController
	newController = func(*slog.Logger) wireguard.WGController { return ctrl }
	t.Cleanup(func() { newController = orig })
}

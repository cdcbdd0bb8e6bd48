package device

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/pillbox/internal/constants"
)

var (
	userConfigDirFunc = os.UserConfigDir
	findProcessFunc   = ps.FindProcess
)

// Bridge talks JSON over loopback HTTP to the dispenser bridge process. The
// bridge advertises itself through a lockfile holding "port|pid|secret".
type Bridge struct {
	lockfilePath string
	client       *http.Client
	secretSource func() (string, error)
}

type BridgeOption func(*Bridge)

// WithLockfile overrides the lockfile location.
func WithLockfile(path string) BridgeOption {
	return func(b *Bridge) { b.lockfilePath = path }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) BridgeOption {
	return func(b *Bridge) { b.client = c }
}

// WithSecretSource supplies the shared secret when the lockfile omits it.
func WithSecretSource(fn func() (string, error)) BridgeOption {
	return func(b *Bridge) { b.secretSource = fn }
}

func NewBridge(opts ...BridgeOption) (*Bridge, error) {
	b := &Bridge{client: &http.Client{}}
	for _, opt := range opts {
		opt(b)
	}
	if b.lockfilePath == "" {
		dir, err := LockfileDir()
		if err != nil {
			return nil, err
		}
		b.lockfilePath = filepath.Join(dir, constants.DeviceLockfileName)
	}
	return b, nil
}

// LockfileDir returns where the bridge writes its lockfile. PILLBOX_BRIDGE_DIR
// overrides the user config directory.
func LockfileDir() (string, error) {
	if dir := os.Getenv("PILLBOX_BRIDGE_DIR"); dir != "" {
		return dir, nil
	}
	configDir, err := userConfigDirFunc()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}
	return filepath.Join(configDir, constants.AppName), nil
}

type dispenseRequest struct {
	RequestID   string `json:"request_id"`
	Compartment int    `json:"compartment"`
}

type dispenseResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type statusResponse struct {
	Online         bool `json:"online"`
	BatteryPercent int  `json:"battery_percent"`
}

func (b *Bridge) Dispense(ctx context.Context, compartment int) (Outcome, error) {
	body, err := json.Marshal(dispenseRequest{RequestID: uuid.New().String(), Compartment: compartment})
	if err != nil {
		return Outcome{}, err
	}

	var res dispenseResponse
	if err := b.do(ctx, http.MethodPost, "/dispense", body, &res); err != nil {
		return Outcome{}, err
	}
	if !res.Success {
		reason := res.Message
		if reason == "" {
			reason = constants.DispenseFailureMessage
		}
		return Outcome{}, &RefusedError{Reason: reason}
	}
	if res.Message == "" {
		res.Message = constants.DispenseSuccessMessage
	}
	return Outcome{Message: res.Message}, nil
}

func (b *Bridge) CheckStatus(ctx context.Context) (Status, error) {
	var res statusResponse
	if err := b.do(ctx, http.MethodGet, "/status", nil, &res); err != nil {
		return Status{}, err
	}
	if res.BatteryPercent < 0 || res.BatteryPercent > 100 {
		return Status{}, communicationError(fmt.Errorf("bridge reported battery %d%%", res.BatteryPercent))
	}
	return Status{IsOnline: res.Online, BatteryPercent: res.BatteryPercent}, nil
}

// do sends one request to the bridge. Every failure short of a decoded
// response is a communication failure.
func (b *Bridge) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	port, secret, err := b.discover()
	if err != nil {
		return communicationError(err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fmt.Sprintf("http://127.0.0.1:%d%s", port, path), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(constants.DeviceSecretHeader, secret)

	res, err := b.client.Do(req)
	if err != nil {
		return communicationError(err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return communicationError(fmt.Errorf("bridge returned status %d: %s", res.StatusCode, strings.TrimSpace(string(msg))))
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return communicationError(fmt.Errorf("failed to decode bridge response: %w", err))
	}
	return nil
}

func (b *Bridge) discover() (int, string, error) {
	port, secret, err := readLockfile(b.lockfilePath)
	if err != nil {
		return 0, "", err
	}
	if secret == "" && b.secretSource != nil {
		secret, err = b.secretSource()
		if err != nil {
			return 0, "", fmt.Errorf("bridge secret unavailable: %w", err)
		}
	}
	if secret == "" {
		return 0, "", errors.New("secret in lockfile is empty")
	}
	return port, secret, nil
}

// readLockfile parses "port|pid|secret" and confirms the pid belongs to a
// running bridge. The secret may be empty.
func readLockfile(path string) (int, string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, "", fmt.Errorf("%s is not running", constants.DeviceBridgeExecutable)
	}

	parts := strings.Split(strings.TrimSpace(string(content)), "|")
	if len(parts) != 3 {
		return 0, "", errors.New("lockfile is malformed")
	}

	port, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, "", errors.New("invalid port number in lockfile")
	}
	if port < 1 || port > 65535 {
		return 0, "", fmt.Errorf("port number %d is outside valid range (1-65535)", port)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, "", errors.New("invalid process ID in lockfile")
	}
	process, err := findProcessFunc(pid)
	if err != nil || process == nil {
		return 0, "", fmt.Errorf("%s process %d not running", constants.DeviceBridgeExecutable, pid)
	}
	if !strings.HasPrefix(process.Executable(), constants.DeviceBridgeExecutable) {
		return 0, "", fmt.Errorf("process with PID %d is not %s (is %s)", pid, constants.DeviceBridgeExecutable, process.Executable())
	}

	return port, strings.TrimSpace(parts[2]), nil
}

package interaction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// PopupBinary is the bundled front-end run when no command is configured.
	PopupBinary = "cunzhi"

	// RequestFlag passes the request file path to the front-end.
	RequestFlag = "--request"

	maxResponseSize = 32 << 20
)

// ExecRenderer runs an external front-end for every request. The request
// is written to a temporary JSON file passed as "--request <file>"; the
// front-end prints the JSON Response on stdout and exits 0.
type ExecRenderer struct {
	command []string
	timeout time.Duration
	logger  *zap.Logger
}

// ExecOption configures an ExecRenderer.
type ExecOption func(*ExecRenderer)

// WithTimeout bounds each popup. Zero waits until ctx is done.
func WithTimeout(d time.Duration) ExecOption {
	return func(r *ExecRenderer) { r.timeout = d }
}

// WithLogger sets the renderer logger.
func WithLogger(logger *zap.Logger) ExecOption {
	return func(r *ExecRenderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewExecRenderer creates a renderer for command. An empty command selects
// "cunzhi popup", looked up next to the running executable and then on PATH.
func NewExecRenderer(command []string, opts ...ExecOption) (*ExecRenderer, error) {
	if len(command) == 0 {
		bin, err := locatePopup()
		if err != nil {
			return nil, err
		}
		command = []string{bin, "popup"}
	}
	r := &ExecRenderer{
		command: append([]string(nil), command...),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Command returns the argv used for each popup, without the request flag.
func (r *ExecRenderer) Command() []string {
	return append([]string(nil), r.command...)
}

// Show implements Renderer.
func (r *ExecRenderer) Show(ctx context.Context, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	path, err := writeRequest(req)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	args := append(r.command[1:len(r.command):len(r.command)], RequestFlag, path)
	cmd := exec.CommandContext(ctx, r.command[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	r.logger.Debug("starting popup",
		zap.String("request_id", req.ID),
		zap.Strings("command", r.command),
	)
	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("popup %s: %w", req.ID, ctxErr)
		}
		return nil, fmt.Errorf("popup %s: %w: %s", req.ID, err, strings.TrimSpace(stderr.String()))
	}
	r.logger.Debug("popup finished",
		zap.String("request_id", req.ID),
		zap.Duration("elapsed", time.Since(start)),
	)

	return ParseResponse(stdout.Bytes())
}

// ParseResponse decodes front-end output. Surrounding whitespace is ignored;
// empty output counts as a cancelled popup.
func ParseResponse(data []byte) (*Response, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return &Response{Cancelled: true}, nil
	}
	if len(data) > maxResponseSize {
		return nil, fmt.Errorf("popup response too large: %d bytes", len(data))
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse popup response: %w", err)
	}
	return &resp, nil
}

// ReadRequest loads a request file written by ExecRenderer.
func ReadRequest(path string) (*Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parse request file: %w", err)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

func writeRequest(req *Request) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	f, err := os.CreateTemp("", "cunzhi-request-*.json")
	if err != nil {
		return "", fmt.Errorf("create request file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write request file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write request file: %w", err)
	}
	return f.Name(), nil
}

func locatePopup() (string, error) {
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), PopupBinary)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	bin, err := exec.LookPath(PopupBinary)
	if err != nil {
		return "", errors.New("no interaction command configured and cunzhi binary not found")
	}
	return bin, nil
}

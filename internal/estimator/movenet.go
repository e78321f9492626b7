package estimator

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"gocv.io/x/gocv"

	"github.com/ayusman/formcoach/internal/pose"
)

const scriptName = "movenet_service.py"

// MoveNetEstimator implements Estimator using a Python MoveNet subprocess.
// Once the model is loaded the process prints {"ready":true}. Frames then go
// to it as a 4-byte big-endian length followed by JPEG bytes, and each answer
// is one JSON line.
type MoveNetEstimator struct {
	config     Config
	scriptPath string
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     *bufio.Reader
	mu         sync.Mutex
	started    bool
	idleTimer  *time.Timer
}

// NewMoveNetEstimator creates a new MoveNet estimator.
// The Python process is started by Start or on first estimate.
func NewMoveNetEstimator(config Config) (*MoveNetEstimator, error) {
	scriptPath := config.ScriptPath
	if scriptPath == "" {
		scriptPath = findScript()
	}
	if scriptPath == "" {
		return nil, ErrScriptNotFound
	}
	if _, err := os.Stat(scriptPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrScriptNotFound, scriptPath)
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultConfig().IdleTimeout
	}
	if config.StartTimeout <= 0 {
		config.StartTimeout = DefaultConfig().StartTimeout
	}

	return &MoveNetEstimator{
		config:     config,
		scriptPath: scriptPath,
	}, nil
}

// OpenMoveNet creates a MoveNet estimator and waits for its model to load,
// so that a broken interpreter or model install is reported here.
func OpenMoveNet(config Config) (*MoveNetEstimator, error) {
	e, err := NewMoveNetEstimator(config)
	if err != nil {
		return nil, err
	}
	if err := e.Start(); err != nil {
		return nil, err
	}
	return e, nil
}

// Start launches the Python process and waits until it reports ready.
// No-op if it is already running.
func (e *MoveNetEstimator) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureStarted(); err != nil {
		return err
	}
	e.resetIdleTimer()
	return nil
}

// Estimate runs the model on one frame. Calls are serialized; a call that is
// already talking to the process is not interrupted by ctx.
func (e *MoveNetEstimator) Estimate(ctx context.Context, frame *gocv.Mat) ([]pose.Skeleton, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := e.ensureStarted(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	// A failed exchange leaves the stream out of sync, so the process is
	// dropped and the next call starts a fresh one.
	if err := writeFrame(e.stdin, buf.GetBytes()); err != nil {
		e.abort()
		return nil, err
	}

	line, err := e.stdout.ReadString('\n')
	if err != nil {
		e.abort()
		return nil, fmt.Errorf("read response: %w", err)
	}

	skeletons, err := parseResponse([]byte(line))
	if err != nil {
		return nil, err
	}

	e.resetIdleTimer()
	return skeletons, nil
}

// Close shuts down the Python process.
func (e *MoveNetEstimator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shutdown()
}

func (e *MoveNetEstimator) ensureStarted() error {
	if e.started {
		return nil
	}

	pythonPath := e.config.PythonPath
	if pythonPath == "" {
		pythonPath = findVenvPython()
	}
	if pythonPath == "" {
		pythonPath = "python3"
	}

	args := []string{e.scriptPath}
	if e.config.ModelType != "" {
		args = append(args, "--model", e.config.ModelType)
	}
	e.cmd = exec.Command(pythonPath, args...)

	stdin, err := e.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := e.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	e.cmd.Stderr = os.Stderr

	if err := e.cmd.Start(); err != nil {
		return fmt.Errorf("start movenet service: %w", err)
	}
	log.Debugf("movenet service started: %s %v", pythonPath, args)

	e.stdin = stdin
	e.stdout = bufio.NewReader(stdout)
	e.started = true

	if err := e.awaitReady(); err != nil {
		e.abort()
		return err
	}
	return nil
}

func (e *MoveNetEstimator) awaitReady() error {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	stdout := e.stdout
	go func() {
		line, err := stdout.ReadString('\n')
		ch <- result{line, err}
	}()

	timer := time.NewTimer(e.config.StartTimeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		if r.err != nil {
			return fmt.Errorf("movenet service exited before ready: %w", r.err)
		}
		return parseReady([]byte(r.line))
	case <-timer.C:
		return fmt.Errorf("movenet service not ready after %s", e.config.StartTimeout)
	}
}

// abort kills the process without waiting for it to drain its input.
func (e *MoveNetEstimator) abort() {
	if !e.started {
		return
	}
	if e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
	}
	if err := e.shutdown(); err != nil {
		log.WithError(err).Debug("movenet service stopped")
	}
}

func (e *MoveNetEstimator) shutdown() error {
	if !e.started {
		return nil
	}

	if e.idleTimer != nil {
		e.idleTimer.Stop()
		e.idleTimer = nil
	}

	var err error
	if e.stdin != nil {
		err = e.stdin.Close()
	}

	err = multierr.Append(err, e.cmd.Wait())
	e.started = false
	e.cmd = nil
	e.stdin = nil
	e.stdout = nil

	return err
}

func (e *MoveNetEstimator) resetIdleTimer() {
	if e.idleTimer != nil {
		e.idleTimer.Stop()
	}
	e.idleTimer = time.AfterFunc(e.config.IdleTimeout, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if err := e.shutdown(); err != nil {
			log.WithError(err).Debug("movenet service idle shutdown")
		}
	})
}

func writeFrame(w io.Writer, data []byte) error {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := w.Write(length); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}

// jsonPose represents the JSON structure from the Python service.
type jsonPose struct {
	Keypoints []jsonKeypoint `json:"keypoints"`
	Score     float64        `json:"score"`
}

type jsonKeypoint struct {
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Score float64 `json:"score"`
}

type jsonResponse struct {
	Ready bool       `json:"ready,omitempty"`
	Poses []jsonPose `json:"poses"`
	Error string     `json:"error,omitempty"`
}

func parseReady(line []byte) error {
	var response jsonResponse
	if err := json.Unmarshal(line, &response); err != nil {
		return fmt.Errorf("parse ready line: %w", err)
	}
	if response.Error != "" {
		return fmt.Errorf("movenet service: %s", response.Error)
	}
	if !response.Ready {
		return fmt.Errorf("movenet service: unexpected first line %q", line)
	}
	return nil
}

func parseResponse(line []byte) ([]pose.Skeleton, error) {
	var response jsonResponse
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("movenet service: %s", response.Error)
	}

	result := make([]pose.Skeleton, len(response.Poses))
	for i, p := range response.Poses {
		result[i] = p.toSkeleton()
	}
	return result, nil
}

// toSkeleton names unnamed keypoints by their position in model output order.
func (p jsonPose) toSkeleton() pose.Skeleton {
	sk := pose.Skeleton{
		Score:     p.Score,
		Keypoints: make([]pose.Keypoint, 0, len(p.Keypoints)),
	}
	for i, kp := range p.Keypoints {
		name := kp.Name
		if name == "" {
			if i >= pose.NumKeypoints {
				continue
			}
			name = pose.Names[i]
		}
		sk.Keypoints = append(sk.Keypoints, pose.Keypoint{
			Name:  name,
			X:     kp.X,
			Y:     kp.Y,
			Z:     kp.Z,
			Score: kp.Score,
		})
	}
	return sk
}

func findScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", scriptName),
		filepath.Join("..", "scripts", scriptName),
		filepath.Join(execDir, "scripts", scriptName),
		filepath.Join(os.Getenv("HOME"), ".formcoach", "scripts", scriptName),
	}
	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".formcoach/venv/bin/python"),
	}
	return firstExisting(candidates)
}

func firstExisting(candidates []string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

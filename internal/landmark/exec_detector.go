package landmark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/mattn/go-shellwords"
)

// execDetector shells out to an external hand-landmarker process for each
// frame. The process receives the frame via a temp file and prints a JSON
// object with the detected landmarks on stdout.
type execDetector struct {
	cmd []string
}

type execDetection struct {
	Landmarks []Point `json:"landmarks"`
}

// NewExecDetector builds a Detector from a shell-style command line, e.g.
// "python3 landmarker.py --model hand_landmarker.task".
func NewExecDetector(command string) (Detector, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse detector command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("detector command is empty")
	}
	return &execDetector{cmd: args}, nil
}

func (d *execDetector) Detect(ctx context.Context, image []byte) ([]Point, error) {
	file, err := os.CreateTemp(os.TempDir(), "signbridge_frame_*.img")
	if err != nil {
		return nil, fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(file.Name())
	defer file.Close()

	if _, err := file.Write(image); err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}

	base := d.cmd[0]
	args := append([]string{}, d.cmd[1:]...)
	args = append(args, "--image", file.Name())

	command := exec.CommandContext(ctx, base, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return nil, fmt.Errorf("detector command failed: %w: %s", err, stderr.String())
	}

	var resp execDetection
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("decode detector response: %w", err)
	}
	if len(resp.Landmarks) == 0 {
		return nil, nil
	}
	if len(resp.Landmarks) != NumLandmarks {
		return nil, fmt.Errorf("detector returned %d landmarks, want %d", len(resp.Landmarks), NumLandmarks)
	}
	return resp.Landmarks, nil
}

func (d *execDetector) Close() error { return nil }

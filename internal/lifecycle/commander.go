package lifecycle

import (
	"bytes"
	"context"
	"os/exec"
)

// Commander runs the external model-loader CLI. It exists as an interface so
// tests can script load/unload outcomes without a real binary.
type Commander interface {
	Run(ctx context.Context, args ...string) (stdout, stderr string, err error)
}

// execCommander shells out to the configured CLI binary.
type execCommander struct {
	path string
}

// NewCommander returns a Commander invoking the binary at path (e.g. "lms").
func NewCommander(path string) Commander {
	return execCommander{path: path}
}

func (e execCommander) Run(ctx context.Context, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, e.path, args...)
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	err := cmd.Run()
	return out.String(), errBuf.String(), err
}

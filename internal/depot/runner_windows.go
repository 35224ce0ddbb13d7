//go:build windows

package depot

import (
	"io"
	"os/exec"
)

// startInteractive falls back to pipes on Windows; the line splitter still
// releases prompts that lack a trailing newline.
func startInteractive(cmd *exec.Cmd) (io.ReadCloser, io.WriteCloser, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, err
	}
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}
	return &pipeOutput{pr, pw}, stdin, nil
}

type pipeOutput struct {
	*io.PipeReader
	w *io.PipeWriter
}

func (p *pipeOutput) Close() error {
	p.w.Close()
	return p.PipeReader.Close()
}

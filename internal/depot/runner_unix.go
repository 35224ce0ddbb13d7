//go:build !windows

package depot

import (
	"errors"
	"io"
	"os"
	"os/exec"

	"github.com/creack/pty"
)

// startInteractive starts a command with a pseudo-terminal
func startInteractive(cmd *exec.Cmd) (io.ReadCloser, io.WriteCloser, error) {
	f, err := pty.Start(cmd)
	if err != nil {
		return nil, nil, err
	}
	return &ptyReader{f}, f, nil
}

// ptyReader reports EIO from a closed pty as end of output.
type ptyReader struct {
	*os.File
}

func (r *ptyReader) Read(b []byte) (int, error) {
	n, err := r.File.Read(b)
	var pathErr *os.PathError
	if err != nil && errors.As(err, &pathErr) {
		return n, io.EOF
	}
	return n, err
}

package proc

import (
	sys "golang.org/x/sys/unix"
)

// Pipe is an anonymous byte pipe shared between the debugger and an
// inferior it launches. With closeOnExec set both ends close automatically
// when an exec succeeds, which is what lets the parent distinguish a
// successful exec (EOF) from a child-side failure (an error message).
type Pipe struct {
	fds [2]int
}

// NewPipe creates the pipe, optionally with O_CLOEXEC on both ends.
func NewPipe(closeOnExec bool) (*Pipe, error) {
	var flags int
	if closeOnExec {
		flags = sys.O_CLOEXEC
	}
	p := &Pipe{}
	if err := sys.Pipe2(p.fds[:], flags); err != nil {
		return nil, errnoError("pipe creation failed", err)
	}
	return p, nil
}

// ReadFd returns the file descriptor of the read end, or -1 if closed.
func (p *Pipe) ReadFd() int { return p.fds[0] }

// WriteFd returns the file descriptor of the write end, or -1 if closed.
func (p *Pipe) WriteFd() int { return p.fds[1] }

// CloseRead closes the read end. Closing an already closed end is a no-op.
func (p *Pipe) CloseRead() {
	if p.fds[0] != -1 {
		sys.Close(p.fds[0])
		p.fds[0] = -1
	}
}

// CloseWrite closes the write end. Closing an already closed end is a no-op.
func (p *Pipe) CloseWrite() {
	if p.fds[1] != -1 {
		sys.Close(p.fds[1])
		p.fds[1] = -1
	}
}

// Read returns the bytes currently available in the pipe. It blocks until
// the writer has written something or closed its end.
func (p *Pipe) Read() ([]byte, error) {
	buf := make([]byte, 1024)
	n, err := sys.Read(p.fds[0], buf)
	if err != nil {
		return nil, errnoError("could not read from pipe", err)
	}
	return buf[:n], nil
}

// Write writes data to the pipe.
func (p *Pipe) Write(data []byte) error {
	if _, err := sys.Write(p.fds[1], data); err != nil {
		return errnoError("could not write to pipe", err)
	}
	return nil
}

// Close closes both ends.
func (p *Pipe) Close() {
	p.CloseRead()
	p.CloseWrite()
}

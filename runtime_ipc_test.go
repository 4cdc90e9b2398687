// runtime_ipc_test.go - Control socket transport tests

package main

import (
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestControlSocketRoundTrip(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "vc.sock")
	queue := NewCommandQueue()

	srv, err := newControlServerAt(sock, queue)
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	defer srv.Stop()

	if err := sendControlCommandAt(sock, "/videocomposer/layer/add", []string{"cue1"}); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		cmd, ok := queue.tryPop()
		if ok {
			if cmd.Path != "/videocomposer/layer/add" || len(cmd.Args) != 1 || cmd.Args[0] != "cue1" {
				t.Fatalf("wrong command: %+v", cmd)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("command never arrived")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestControlSocketSecondInstanceRefused(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "vc.sock")
	queue := NewCommandQueue()

	srv, err := newControlServerAt(sock, queue)
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	defer srv.Stop()

	if _, err := newControlServerAt(sock, queue); err == nil {
		t.Fatalf("second bind must be refused while the first lives")
	}
}

func TestControlSocketStaleCleanup(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "vc.sock")
	queue := NewCommandQueue()

	// Simulate a crashed instance: a leftover socket path nobody answers.
	if err := unixSocketLeftover(sock); err != nil {
		t.Skipf("cannot fabricate stale socket: %v", err)
	}

	srv, err := newControlServerAt(sock, queue)
	if err != nil {
		t.Fatalf("stale socket must be cleaned up: %v", err)
	}
	srv.Start()
	srv.Stop()
}

// unixSocketLeftover fabricates what a SIGKILLed instance leaves behind: a
// bound socket path with no listener. Binding at the syscall level and
// closing the fd bypasses the net package's unlink-on-close.
func unixSocketLeftover(path string) error {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return err
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return err
	}
	return unix.Close(fd)
}

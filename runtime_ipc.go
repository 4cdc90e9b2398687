// runtime_ipc.go - Unix domain socket control transport and single-instance guard

// (c) 2024 - 2026 Zayn Otley derivative work
// https://github.com/intuitionamiga/videocomposer
// License: GPLv3 or later

package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

const ipcMaxRequestSize = 8192

// ipcRequest is the wire form of one command: the same flat path + typed
// argument list the router consumes, spec 6.
type ipcRequest struct {
	Path string   `json:"path"`
	Args []string `json:"args,omitempty"`
}

type ipcResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ControlServer listens on a Unix socket and feeds the command queue. It
// doubles as the single-instance guard: a second compositor refuses to
// start and can instead forward a command to the running one.
type ControlServer struct {
	listener net.Listener
	queue    *CommandQueue
	done     chan struct{}
	sockPath string
}

func resolveSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "videocomposer.sock")
	}
	return "/tmp/videocomposer.sock"
}

// NewControlServer binds the control socket at the default path.
func NewControlServer(queue *CommandQueue) (*ControlServer, error) {
	return newControlServerAt(resolveSocketPath(), queue)
}

func newControlServerAt(sockPath string, queue *CommandQueue) (*ControlServer, error) {
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		// Stale socket cleanup: try connecting. If the peer is dead,
		// remove and retry.
		conn, dialErr := net.DialTimeout("unix", sockPath, 2*time.Second)
		if dialErr != nil {
			os.Remove(sockPath)
			ln, err = net.Listen("unix", sockPath)
			if err != nil {
				return nil, fmt.Errorf("control socket bind failed: %w", err)
			}
		} else {
			conn.Close()
			return nil, fmt.Errorf("another instance is already running")
		}
	}
	return &ControlServer{listener: ln, queue: queue, done: make(chan struct{}), sockPath: sockPath}, nil
}

// Start begins accepting control connections in a goroutine.
func (s *ControlServer) Start() {
	go s.acceptLoop()
}

// Stop closes the listener, waits for the accept loop and removes the
// socket file.
func (s *ControlServer) Stop() {
	s.listener.Close()
	<-s.done
	os.Remove(s.sockPath)
}

func (s *ControlServer) acceptLoop() {
	defer close(s.done)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

// handleConn reads newline-delimited JSON commands; a show-control bridge
// holds the connection open and streams cues through it.
func (s *ControlServer) handleConn(conn net.Conn) {
	defer conn.Close()
	dec := json.NewDecoder(conn)
	for {
		conn.SetDeadline(time.Now().Add(5 * time.Minute))
		var req ipcRequest
		if err := dec.Decode(&req); err != nil {
			return
		}
		if req.Path == "" {
			s.writeResponse(conn, ipcResponse{Status: "err", Message: "missing path"})
			continue
		}
		s.queue.Push(Command{Path: req.Path, Args: req.Args})
		s.writeResponse(conn, ipcResponse{Status: "ok"})
	}
}

func (s *ControlServer) writeResponse(conn net.Conn, resp ipcResponse) {
	data, _ := json.Marshal(resp)
	data = append(data, '\n')
	conn.Write(data)
}

// SendControlCommand forwards one command to a running instance at the
// default socket; used by `videocomposer --send`.
func SendControlCommand(path string, args []string) error {
	return sendControlCommandAt(resolveSocketPath(), path, args)
}

func sendControlCommandAt(sockPath, path string, args []string) error {
	conn, err := net.DialTimeout("unix", sockPath, 10*time.Second)
	if err != nil {
		return fmt.Errorf("cannot connect to running instance: %w", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))

	data, _ := json.Marshal(ipcRequest{Path: path, Args: args})
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}

	buf := make([]byte, ipcMaxRequestSize)
	n, err := conn.Read(buf)
	if err != nil {
		return fmt.Errorf("read response failed: %w", err)
	}
	var resp ipcResponse
	if err := json.Unmarshal(buf[:n], &resp); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}
	if resp.Status != "ok" {
		return fmt.Errorf("remote error: %s", resp.Message)
	}
	return nil
}

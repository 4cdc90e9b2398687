// control_stdin.go - Raw-mode stdin control console

// (c) 2024 - 2026 Zayn Otley derivative work
// https://github.com/intuitionamiga/videocomposer
// License: GPLv3 or later

package main

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"golang.org/x/term"
)

// StdinControl is the text/stdin command transport: one command per line,
// "path arg arg ...", pushed onto the shared queue. The terminal runs in
// raw mode so single-key shortcuts work alongside line entry.
type StdinControl struct {
	queue    *CommandQueue
	oldState *term.State
	stop     atomic.Bool
	done     chan struct{}
}

func NewStdinControl(queue *CommandQueue) *StdinControl {
	return &StdinControl{queue: queue, done: make(chan struct{})}
}

// Start switches stdin to raw mode and spawns the reader goroutine. A
// non-terminal stdin (pipe, systemd unit) still works line-buffered.
func (s *StdinControl) Start() {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err == nil {
			s.oldState = state
		}
	}
	go s.readLoop()
}

func (s *StdinControl) readLoop() {
	defer close(s.done)
	var line []byte
	buf := make([]byte, 64)
	for !s.stop.Load() {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return
		}
		for _, b := range buf[:n] {
			switch b {
			case '\r', '\n':
				fmt.Printf("\r\n")
				s.dispatch(string(line))
				line = line[:0]
			case 0x7F, 0x08: // backspace
				if len(line) > 0 {
					line = line[:len(line)-1]
					fmt.Printf("\b \b")
				}
			case 0x03: // ctrl-c
				s.queue.Push(Command{Path: "/videocomposer/quit"})
				return
			default:
				if b >= 0x20 {
					line = append(line, b)
					fmt.Printf("%c", b)
				}
			}
		}
	}
}

// dispatch splits a console line into path + args. A path with a leading
// slash is taken as a full path; any other is prefixed with
// "/videocomposer/", so "quit" alone maps to the quit path.
func (s *StdinControl) dispatch(line string) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return
	}
	path := fields[0]
	if !strings.HasPrefix(path, "/") {
		path = "/videocomposer/" + path
	}
	s.queue.Push(Command{Path: path, Args: fields[1:]})
}

func (s *StdinControl) Stop() {
	s.stop.Store(true)
	if s.oldState != nil {
		term.Restore(int(os.Stdin.Fd()), s.oldState)
		s.oldState = nil
	}
}

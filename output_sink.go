// output_sink.go - Virtual-output sinks fed from canvas capture

// (c) 2024 - 2026 Zayn Otley derivative work
// https://github.com/intuitionamiga/videocomposer
// License: GPLv3 or later

package main

import (
	"fmt"
	"os"
)

// VideoSink consumes completed canvas frames. Concrete transports (NDI,
// streaming) are external; the raw-file sink below is the in-tree
// reference implementation. The encoder side is out of scope.
type VideoSink interface {
	Name() string
	// ConsumeFrame receives one RGBA canvas frame. The buffer is only
	// valid for the duration of the call.
	ConsumeFrame(pixels []byte, width, height int) error
	Close()
}

// SinkManager drains the canvas PBO double-buffer into every registered
// sink, spec 4.9 step 4. Capture is skipped entirely while no sinks exist.
type SinkManager struct {
	sinks   []VideoSink
	scratch []byte
}

func NewSinkManager() *SinkManager {
	return &SinkManager{}
}

func (m *SinkManager) AddSink(s VideoSink) {
	m.sinks = append(m.sinks, s)
	fmt.Printf("Sink: registered %s\n", s.Name())
}

func (m *SinkManager) HasSinks() bool { return len(m.sinks) > 0 }

// Drain maps the previous frame's PBO and fans it out. One frame of
// latency by design, spec 4.6.
func (m *SinkManager) Drain(canvas *VirtualCanvas) {
	if len(m.sinks) == 0 {
		return
	}
	need := canvas.Width() * canvas.Height() * 4
	if cap(m.scratch) < need {
		m.scratch = make([]byte, need)
	}
	m.scratch = m.scratch[:need]
	if !canvas.CollectCapture(m.scratch) {
		return
	}
	m.Consume(m.scratch, canvas.Width(), canvas.Height())
}

// Consume fans one completed frame out to every sink; the headless Vulkan
// path feeds it directly.
func (m *SinkManager) Consume(pixels []byte, width, height int) {
	for _, s := range m.sinks {
		if err := s.ConsumeFrame(pixels, width, height); err != nil {
			fmt.Printf("Sink: %s dropped a frame: %v\n", s.Name(), err)
		}
	}
}

func (m *SinkManager) Close() {
	for _, s := range m.sinks {
		s.Close()
	}
	m.sinks = nil
}

// FileSink appends raw RGBA frames to a file; the reference virtual-output
// transport used by tests and debugging.
type FileSink struct {
	name string
	f    *os.File
}

func NewFileSink(path string) (*FileSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("file sink: %w", err)
	}
	return &FileSink{name: "file:" + path, f: f}, nil
}

func (s *FileSink) Name() string { return s.name }

func (s *FileSink) ConsumeFrame(pixels []byte, width, height int) error {
	_, err := s.f.Write(pixels)
	return err
}

func (s *FileSink) Close() {
	s.f.Close()
}

// midi_input.go - Raw MIDI byte source feeding the MTC decoder

// (c) 2024 - 2026 Zayn Otley derivative work
// https://github.com/intuitionamiga/videocomposer
// License: GPLv3 or later

package main

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

// MIDIInput reads raw MIDI bytes from an ALSA rawmidi device node (or any
// byte stream: a named pipe works for testing) and hands them to the main
// thread through a bounded channel. The MTC decoder itself is only touched
// from the main loop, so no locking is needed around it. One init/teardown
// on the main thread, spec 9.
type MIDIInput struct {
	device string
	f      *os.File
	bytes  chan timedByte
	stop   atomic.Bool
	done   chan struct{}
}

type timedByte struct {
	b  byte
	at time.Time
}

// OpenMIDIInput opens the device node. A missing device is recoverable:
// the compositor runs without external timecode, and the device is not
// reopened later.
func OpenMIDIInput(device string) (*MIDIInput, error) {
	f, err := os.Open(device)
	if err != nil {
		return nil, fmt.Errorf("midi open %s: %w", device, err)
	}
	m := &MIDIInput{
		device: device,
		f:      f,
		bytes:  make(chan timedByte, 4096),
		done:   make(chan struct{}),
	}
	go m.readLoop()
	return m, nil
}

func (m *MIDIInput) readLoop() {
	defer close(m.done)
	buf := make([]byte, 256)
	for !m.stop.Load() {
		n, err := m.f.Read(buf)
		if err != nil {
			return
		}
		now := time.Now()
		for _, b := range buf[:n] {
			select {
			case m.bytes <- timedByte{b: b, at: now}:
			default:
				// Overflow drops the incoming byte; MTC is
				// self-resynchronising on the next piece 0.
			}
		}
	}
}

// DrainInto feeds all pending bytes to the decoder on the caller's thread.
func (m *MIDIInput) DrainInto(decoder *MTCDecoder) {
	for {
		select {
		case tb := <-m.bytes:
			decoder.FeedByte(tb.b, tb.at)
		default:
			return
		}
	}
}

func (m *MIDIInput) Close() {
	m.stop.Store(true)
	m.f.Close()
	<-m.done
}

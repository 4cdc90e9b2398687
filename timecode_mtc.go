// timecode_mtc.go - MIDI Time Code quarter-frame and full-frame SYSEX decoder

// (c) 2024 - 2026 Zayn Otley derivative work
// https://github.com/intuitionamiga/videocomposer
// License: GPLv3 or later

package main

import (
	"fmt"
	"time"
)

// RateClass identifies the timecode frame rate encoded in an MTC stream.
type RateClass int

const (
	Rate24 RateClass = iota
	Rate25
	Rate2997Drop
	Rate30
)

// FPS returns the nominal frames-per-second for the rate class. 29.97 drop
// is reported as the rational 30000/1001 approximation.
func (r RateClass) FPS() float64 {
	switch r {
	case Rate24:
		return 24.0
	case Rate25:
		return 25.0
	case Rate2997Drop:
		return 30000.0 / 1001.0
	case Rate30:
		return 30.0
	}
	return 25.0
}

func (r RateClass) String() string {
	switch r {
	case Rate24:
		return "24"
	case Rate25:
		return "25"
	case Rate2997Drop:
		return "29.97df"
	case Rate30:
		return "30"
	}
	return "unknown"
}

// TimecodeSample is the immutable result of a completed timecode decode,
// either assembled from eight quarter-frame pieces or from a full-frame
// SYSEX message.
type TimecodeSample struct {
	Hours   int
	Minutes int
	Seconds int
	Frames  int
	Rate    RateClass
	Rolling bool
	Jumped  bool
}

// FrameIndex converts the timecode sample to an absolute frame count at its
// own rate, applying drop-frame math for Rate2997Drop.
func (t TimecodeSample) FrameIndex() int64 {
	return dropFrameAwareIndex(t.Hours, t.Minutes, t.Seconds, t.Frames, t.Rate)
}

func dropFrameAwareIndex(h, m, s, f int, rate RateClass) int64 {
	if rate != Rate2997Drop {
		fps := int64(rate.FPS())
		if rate == Rate25 {
			fps = 25
		} else if rate == Rate24 {
			fps = 24
		} else if rate == Rate30 {
			fps = 30
		}
		totalMinutes := int64(h)*60 + int64(m)
		return totalMinutes*60*fps + int64(s)*fps + int64(f)
	}

	// 29.97 drop-frame: frame numbers 0 and 1 are skipped at the start of
	// every minute except minutes divisible by 10.
	totalMinutes := int64(h)*60 + int64(m)
	droppedMinutes := totalMinutes - totalMinutes/10
	return totalMinutes*60*30 + int64(s)*30 + int64(f) - droppedMinutes*2
}

const quarterFramePieceCount = 8

// mtcAssembler accumulates eight quarter-frame pieces into one completed
// timecode. A byte arriving with an unexpected piece index resets assembly,
// per spec 4.1.
type mtcAssembler struct {
	pieces       [quarterFramePieceCount]byte
	have         [quarterFramePieceCount]bool
	nextExpected int
	firstPieceAt time.Time
}

func newMTCAssembler() *mtcAssembler {
	return &mtcAssembler{}
}

func (a *mtcAssembler) reset() {
	a.have = [quarterFramePieceCount]bool{}
	a.nextExpected = 0
}

// feed consumes one quarter-frame data byte (the low 7 bits following 0xF1)
// and returns the completed sample when piece 7 arrives in order.
func (a *mtcAssembler) feed(data byte, now time.Time) (TimecodeSample, bool) {
	piece := int(data>>4) & 0x07
	payload := data & 0x0F

	if piece != a.nextExpected {
		a.reset()
		if piece != 0 {
			return TimecodeSample{}, false
		}
	}

	if piece == 0 {
		a.firstPieceAt = now
	}

	a.pieces[piece] = payload
	a.have[piece] = true
	a.nextExpected = piece + 1
	if a.nextExpected > 7 {
		a.nextExpected = 0
	}

	if piece != 7 {
		return TimecodeSample{}, false
	}

	for i := 0; i < quarterFramePieceCount; i++ {
		if !a.have[i] {
			a.reset()
			return TimecodeSample{}, false
		}
	}

	frames := int(a.pieces[0]) | (int(a.pieces[1]&0x01) << 4)
	seconds := int(a.pieces[2]) | (int(a.pieces[3]&0x03) << 4)
	minutes := int(a.pieces[4]) | (int(a.pieces[5]&0x03) << 4)
	hours := int(a.pieces[6]) | (int(a.pieces[7]&0x01) << 4)
	rate := RateClass((a.pieces[7] >> 1) & 0x03)

	a.reset()

	return TimecodeSample{
		Hours:   hours,
		Minutes: minutes,
		Seconds: seconds,
		Frames:  frames,
		Rate:    rate,
	}, true
}

// MTCDecoder interprets a raw MIDI byte stream as MTC quarter-frame and
// full-frame SYSEX messages, exposing (frame_index, rolling, source_fps,
// jumped_flag) per spec 4.1/4.2.
type MTCDecoder struct {
	asm *mtcAssembler

	lastSample   TimecodeSample
	lastSampleAt time.Time
	haveSample   bool

	lastFrameIdx int64
	rolling      bool
	jumped       bool

	sysexBuf []byte
	inSysex  bool

	expectQFData bool
}

func NewMTCDecoder() *MTCDecoder {
	return &MTCDecoder{asm: newMTCAssembler()}
}

// FeedByte consumes one raw MIDI byte. Call at the cadence bytes arrive on
// the wire; timestamps drive rolling inference.
func (d *MTCDecoder) FeedByte(b byte, now time.Time) {
	switch {
	case b == 0xF0:
		d.inSysex = true
		d.sysexBuf = d.sysexBuf[:0]
		d.sysexBuf = append(d.sysexBuf, b)
		return
	case d.inSysex:
		d.sysexBuf = append(d.sysexBuf, b)
		if b == 0xF7 {
			d.inSysex = false
			d.handleSysex(d.sysexBuf, now)
		}
		return
	case b == 0xF1:
		d.expectQFData = true
		return
	case d.expectQFData:
		d.expectQFData = false
		if sample, ok := d.asm.feed(b, now); ok {
			d.commit(sample, now, false)
		}
		return
	}
}

func (d *MTCDecoder) handleSysex(buf []byte, now time.Time) {
	// F0 7F cc 01 01 hh mm ss ff F7
	if len(buf) != 10 || buf[1] != 0x7F || buf[3] != 0x01 || buf[4] != 0x01 || buf[9] != 0xF7 {
		return
	}
	hh := buf[5]
	rate := RateClass((hh >> 5) & 0x03)
	hours := int(hh & 0x1F)
	minutes := int(buf[6])
	seconds := int(buf[7])
	frames := int(buf[8])

	sample := TimecodeSample{
		Hours: hours, Minutes: minutes, Seconds: seconds, Frames: frames, Rate: rate,
	}
	d.commit(sample, now, true)
}

func (d *MTCDecoder) commit(sample TimecodeSample, now time.Time, jumped bool) {
	frameIdx := dropFrameAwareIndex(sample.Hours, sample.Minutes, sample.Seconds, sample.Frames, sample.Rate)

	if !jumped && d.haveSample {
		expected := d.lastFrameIdx + 2 // pieces 0-7 span two frame periods, spec 4.1
		delta := frameIdx - expected
		if delta < 0 {
			delta = -delta
		}
		d.rolling = delta <= 1
	} else if jumped {
		// a SYSEX jump doesn't by itself tell us whether the transport is
		// rolling; leave the previous rolling state untouched.
	} else {
		d.rolling = false
	}

	elapsed := time.Duration(0)
	if d.haveSample {
		elapsed = now.Sub(d.lastSampleAt)
	}
	framePeriod := time.Duration(float64(time.Second) / sample.Rate.FPS())
	if d.haveSample && elapsed > 2*framePeriod && !jumped {
		d.rolling = false
	}

	sample.Rolling = d.rolling
	sample.Jumped = jumped

	d.lastSample = sample
	d.lastSampleAt = now
	d.haveSample = true
	d.lastFrameIdx = frameIdx
	d.jumped = jumped
}

// Poll returns the most recently decoded timecode. ok is false until the
// first complete sample has been assembled.
func (d *MTCDecoder) Poll() (sample TimecodeSample, frameIndex int64, ok bool) {
	if !d.haveSample {
		return TimecodeSample{}, 0, false
	}
	return d.lastSample, d.lastFrameIdx, true
}

// ConsumeJumped reports and clears the jump flag raised by the most recent
// full-frame SYSEX, per spec 4.4 step 2 ("resetSeekState before the load
// step").
func (d *MTCDecoder) ConsumeJumped() bool {
	j := d.jumped
	d.jumped = false
	return j
}

func (d *MTCDecoder) String() string {
	s, idx, ok := d.Poll()
	if !ok {
		return "MTCDecoder(no sample)"
	}
	return fmt.Sprintf("MTCDecoder(%02d:%02d:%02d:%02d@%s frame=%d rolling=%v)",
		s.Hours, s.Minutes, s.Seconds, s.Frames, s.Rate, idx, s.Rolling)
}

// input_source.go - Uniform input source interface for file and live feeds

// (c) 2024 - 2026 Zayn Otley derivative work
// https://github.com/intuitionamiga/videocomposer
// License: GPLv3 or later

package main

import "strings"

// CodecClass groups codecs by the decode backend they are eligible for.
type CodecClass int

const (
	CodecUnknown CodecClass = iota
	CodecH264
	CodecHEVC
	CodecAV1
	CodecOther
)

// classifyCodec matches both short codec tags and FFmpeg long names
// ("H.264 / AVC / MPEG-4 AVC ...").
func classifyCodec(name string) CodecClass {
	n := strings.ToLower(name)
	switch {
	case n == "":
		return CodecUnknown
	case strings.Contains(n, "h264") || strings.Contains(n, "h.264") || strings.Contains(n, "avc"):
		return CodecH264
	case strings.Contains(n, "hevc") || strings.Contains(n, "h265") || strings.Contains(n, "h.265"):
		return CodecHEVC
	case strings.Contains(n, "av1") || strings.Contains(n, "av01"):
		return CodecAV1
	}
	return CodecOther
}

// DecodeBackend selects how frames are produced.
type DecodeBackend int

const (
	BackendSoftware DecodeBackend = iota
	BackendVAAPI
)

func (b DecodeBackend) String() string {
	if b == BackendVAAPI {
		return "vaapi"
	}
	return "software"
}

// InputSource is the uniform interface the playback engine drives, spec 4.3.
// File inputs support random-access seeks against a frame index; live inputs
// only expose ReadLatestFrame.
type InputSource interface {
	// Open probes the descriptor (a file path or live-feed URI) and prepares
	// the decoder. Returns false with the error logged when the input is
	// missing or unreadable.
	Open(descriptor string) bool
	IsReady() bool
	Info() FrameInfo

	// ReadFrame decodes the frame at idx into out. Returns false on decode
	// error after the most recent seek; the caller keeps showing the prior
	// frame. Skips decode work when idx equals the current frame and no seek
	// is pending.
	ReadFrame(idx int64, out *LayerFrame) bool
	Seek(idx int64)
	// ResetSeekState forces a real re-seek on the next ReadFrame even if the
	// index is unchanged. Required after a full-frame SYSEX jump.
	ResetSeekState()

	DetectCodec() CodecClass
	SupportsDirectGPUTexture() bool
	GetOptimalBackend() DecodeBackend

	IsLiveStream() bool
	// ReadLatestFrame pulls the most recent captured frame from a live feed.
	// File inputs return false.
	ReadLatestFrame(out *LayerFrame) bool

	Close()
}

// OpenInputSource picks the concrete variant for a descriptor. Live feeds
// are addressed by scheme prefix; everything else is treated as a file.
func OpenInputSource(descriptor string, opts InputOptions) (InputSource, bool) {
	var src InputSource
	if isLiveDescriptor(descriptor) {
		src = NewLiveInputSource(opts)
	} else {
		src = NewFileInputSource(opts)
	}
	if !src.Open(descriptor) {
		return nil, false
	}
	return src, true
}

// InputOptions tune source opening.
type InputOptions struct {
	// NoIndex switches FFMS2 to linear seeking (SeekLinearNoRw); the
	// frame index is still built when the file is opened.
	NoIndex bool
	// ForceSoftware disables the VA-API probe.
	ForceSoftware bool
	// RingSize bounds the live-capture ring buffer (0 = default).
	RingSize int
	// RenderNode overrides the VA-API render node path.
	RenderNode string
}

func isLiveDescriptor(descriptor string) bool {
	for _, prefix := range []string{"v4l2:", "rtsp://", "udp://", "live:"} {
		if strings.HasPrefix(descriptor, prefix) {
			return true
		}
	}
	return false
}

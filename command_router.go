// command_router.go - Flat-path command dispatch into the compositor model

// (c) 2024 - 2026 Zayn Otley derivative work
// https://github.com/intuitionamiga/videocomposer
// License: GPLv3 or later

package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Command is one flat path plus typed arguments, produced by a transport
// (control socket, stdin console) and consumed on the main thread.
type Command struct {
	Path string
	Args []string
}

// CommandQueue is the bounded producer/consumer FIFO between transport
// goroutines and the main loop, spec 5. Overflow drops the newest command
// with a log line rather than blocking a transport.
type CommandQueue struct {
	ch chan Command
}

func NewCommandQueue() *CommandQueue {
	return &CommandQueue{ch: make(chan Command, COMMAND_QUEUE_CAPACITY)}
}

// Push enqueues from any goroutine.
func (q *CommandQueue) Push(cmd Command) {
	select {
	case q.ch <- cmd:
	default:
		fmt.Printf("Command: queue full, dropping %s\n", cmd.Path)
	}
}

// tryPop is non-blocking; the drain loop owns the budget.
func (q *CommandQueue) tryPop() (Command, bool) {
	select {
	case cmd := <-q.ch:
		return cmd, true
	default:
		return Command{}, false
	}
}

// CommandTarget is what the router mutates; the application implements it.
type CommandTarget interface {
	Quit()
	SetTargetFPS(fps float64)
	SetGlobalOffset(offset int64)
	Layers() *LayerManager
	AttachFile(layer *Layer, path string) bool
	Master() *MasterProperties
	OSD() *OSDManager
	// OutputRegion resolves a connector name ("HDMI-A-1") to its region,
	// nil when no such output is bound.
	OutputRegion(name string) *OutputRegion
}

// CommandRouter dispatches the flat command surface of spec 6. Parse
// failures drop the message with one log line, spec 7.
type CommandRouter struct {
	queue  *CommandQueue
	target CommandTarget
}

func NewCommandRouter(queue *CommandQueue, target CommandTarget) *CommandRouter {
	return &CommandRouter{queue: queue, target: target}
}

// Drain applies queued commands within the per-frame budget; the rest
// defer to the next frame so a command storm never starves rendering,
// spec 5.
func (r *CommandRouter) Drain(budget time.Duration) int {
	deadline := time.Now().Add(budget)
	applied := 0
	for time.Now().Before(deadline) {
		cmd, ok := r.queue.tryPop()
		if !ok {
			break
		}
		r.Apply(cmd)
		applied++
	}
	return applied
}

// Apply executes one command immediately on the caller's thread.
func (r *CommandRouter) Apply(cmd Command) {
	parts := strings.Split(strings.Trim(cmd.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "videocomposer" {
		fmt.Printf("Command: unknown path %s\n", cmd.Path)
		return
	}

	switch parts[1] {
	case "quit":
		r.target.Quit()
	case "fps":
		if v, ok := argFloat(cmd.Args, 0); ok {
			r.target.SetTargetFPS(clampFloat(v, 1, 240))
		}
	case "offset":
		if v, ok := argInt(cmd.Args, 0); ok {
			r.target.SetGlobalOffset(int64(v))
		}
	case "layer":
		r.applyLayer(parts[2:], cmd)
	case "master":
		r.applyMaster(parts[2:], cmd)
	case "osd":
		r.applyOSD(parts[2:], cmd)
	case "output":
		r.applyOutput(parts[2:], cmd)
	default:
		fmt.Printf("Command: unknown path %s\n", cmd.Path)
	}
}

func (r *CommandRouter) applyLayer(parts []string, cmd Command) {
	if len(parts) == 0 {
		return
	}
	mgr := r.target.Layers()

	switch parts[0] {
	case "add":
		cueID := ""
		if len(cmd.Args) > 0 {
			cueID = cmd.Args[0]
		}
		layer := mgr.AddLayer(cueID)
		fmt.Printf("Command: added layer %d (cue %q)\n", layer.ID, cueID)
		return
	case "remove":
		if len(cmd.Args) == 0 {
			return
		}
		if layer, ok := mgr.Resolve(cmd.Args[0]); ok {
			mgr.Remove(layer.ID)
		}
		return
	}

	// /videocomposer/layer/<id>/<op>
	if len(parts) < 2 {
		fmt.Printf("Command: layer path missing operation: %s\n", cmd.Path)
		return
	}
	layer, ok := mgr.Resolve(parts[0])
	if !ok {
		fmt.Printf("Command: no layer %q\n", parts[0])
		return
	}
	r.applyLayerOp(layer, parts[1], cmd.Args)
}

func (r *CommandRouter) applyLayerOp(layer *Layer, op string, args []string) {
	switch op {
	case "file":
		if len(args) > 0 {
			r.target.AttachFile(layer, args[0])
		}
	case "play":
		layer.Playback.Playing = true
	case "pause":
		layer.Playback.Playing = false
	case "seek", "position":
		if v, ok := argInt(args, 0); ok {
			layer.SeekTo(int64(v))
		}
	case "opacity":
		if v, ok := argFloat(args, 0); ok {
			layer.Props.Opacity = clampFloat(v, 0, 1)
		}
	case "visible":
		if v, ok := argBool(args, 0); ok {
			layer.Props.Visible = v
		}
	case "zorder":
		if v, ok := argInt(args, 0); ok {
			layer.Props.ZOrder = v
		}
	case "blendmode":
		if len(args) > 0 {
			layer.Props.Blend = ParseBlendMode(args[0])
		}
	case "scale":
		if v, ok := argFloat(args, 0); ok {
			layer.Props.ScaleX = v
			layer.Props.ScaleY = v
		}
		if v, ok := argFloat(args, 1); ok {
			layer.Props.ScaleY = v
		}
	case "rotation":
		if v, ok := argFloat(args, 0); ok {
			layer.Props.Rotation = clampFloat(v, 0, 360)
		}
	case "timescale":
		if v, ok := argFloat(args, 0); ok && v != 0 {
			layer.Playback.TimeScale = v
		}
	case "loop":
		r.applyLoop(layer, args)
	case "mtcfollow":
		if v, ok := argBool(args, 0); ok {
			layer.Playback.MTCFollow = v
		}
	case "reverse":
		if v, ok := argBool(args, 0); ok {
			scale := layer.Playback.TimeScale
			if (v && scale > 0) || (!v && scale < 0) {
				layer.Playback.TimeScale = -scale
			}
		}
	case "pan":
		if v, ok := argFloat(args, 0); ok {
			layer.Props.PanOffset = v
		}
	case "crop":
		if len(args) >= 4 {
			x, _ := argFloat(args, 0)
			y, _ := argFloat(args, 1)
			w, _ := argFloat(args, 2)
			h, _ := argFloat(args, 3)
			layer.Props.Crop = CropRect{X: x, Y: y, W: w, H: h, Enabled: w > 0 && h > 0}
		} else if v, ok := argBool(args, 0); ok && !v {
			layer.Props.Crop.Enabled = false
		}
	case "panorama":
		if v, ok := argBool(args, 0); ok {
			layer.Props.PanoramaMode = v
		}
	case "brightness":
		if v, ok := argFloat(args, 0); ok {
			layer.Props.Color.Brightness = clampFloat(v, -1, 1)
		}
	case "contrast":
		if v, ok := argFloat(args, 0); ok {
			layer.Props.Color.Contrast = clampFloat(v, 0, 2)
		}
	case "saturation":
		if v, ok := argFloat(args, 0); ok {
			layer.Props.Color.Saturation = clampFloat(v, 0, 2)
		}
	case "hue":
		if v, ok := argFloat(args, 0); ok {
			layer.Props.Color.Hue = clampFloat(v, 0, 360)
		}
	case "gamma":
		if v, ok := argFloat(args, 0); ok {
			layer.Props.Color.Gamma = clampFloat(v, 0.1, 10)
		}
	case "corners":
		if len(args) >= 8 {
			for i := 0; i < 8; i++ {
				v, _ := argFloat(args, i)
				layer.Props.Corners[i] = v
			}
			layer.Props.CornersEnabled = true
		} else if v, ok := argBool(args, 0); ok && !v {
			layer.Props.CornersEnabled = false
		}
	case "corner1", "corner2", "corner3", "corner4":
		idx := int(op[6]-'1') * 2
		if x, ok := argFloat(args, 0); ok {
			layer.Props.Corners[idx] = x
		}
		if y, ok := argFloat(args, 1); ok {
			layer.Props.Corners[idx+1] = y
		}
		layer.Props.CornersEnabled = true
	case "wraparound":
		if v, ok := argBool(args, 0); ok {
			layer.Playback.Wraparound = v
		}
	case "autounload":
		if v, ok := argBool(args, 0); ok {
			layer.Props.AutoUnload = v
		}
	case "offset":
		if v, ok := argInt(args, 0); ok {
			layer.Playback.TimeOffset = int64(v)
		}
	default:
		fmt.Printf("Command: unknown layer operation %q\n", op)
	}
}

// applyLoop handles both the region form (start end [enable]) and the
// enable/disable toggle.
func (r *CommandRouter) applyLoop(layer *Layer, args []string) {
	if len(args) >= 2 {
		start, ok1 := argInt(args, 0)
		end, ok2 := argInt(args, 1)
		if ok1 && ok2 && end > start {
			enabled := true
			if v, ok := argBool(args, 2); ok {
				enabled = v
			}
			layer.Playback.Loop = LoopRegion{Start: int64(start), End: int64(end), Enabled: enabled}
			return
		}
	}
	if v, ok := argBool(args, 0); ok {
		layer.Playback.Loop.Enabled = v
	}
}

func (r *CommandRouter) applyMaster(parts []string, cmd Command) {
	if len(parts) == 0 {
		return
	}
	master := r.target.Master()
	args := cmd.Args

	switch parts[0] {
	case "opacity":
		if v, ok := argFloat(args, 0); ok {
			master.Opacity = clampFloat(v, 0, 1)
		}
	case "visible":
		if v, ok := argBool(args, 0); ok {
			master.Visible = v
		}
	case "position":
		if x, ok := argFloat(args, 0); ok {
			master.X = x
		}
		if y, ok := argFloat(args, 1); ok {
			master.Y = y
		}
	case "scale":
		if v, ok := argFloat(args, 0); ok {
			master.ScaleX = v
			master.ScaleY = v
		}
		if v, ok := argFloat(args, 1); ok {
			master.ScaleY = v
		}
	case "rotation":
		if v, ok := argFloat(args, 0); ok {
			master.Rotation = clampFloat(v, 0, 360)
		}
	case "corners":
		if len(args) >= 8 {
			for i := 0; i < 8; i++ {
				v, _ := argFloat(args, i)
				master.Corners[i] = v
			}
			master.CornersEnabled = true
		} else if v, ok := argBool(args, 0); ok && !v {
			master.CornersEnabled = false
		}
	case "brightness":
		if v, ok := argFloat(args, 0); ok {
			master.Color.Brightness = clampFloat(v, -1, 1)
		}
	case "contrast":
		if v, ok := argFloat(args, 0); ok {
			master.Color.Contrast = clampFloat(v, 0, 2)
		}
	case "saturation":
		if v, ok := argFloat(args, 0); ok {
			master.Color.Saturation = clampFloat(v, 0, 2)
		}
	case "hue":
		if v, ok := argFloat(args, 0); ok {
			master.Color.Hue = clampFloat(v, 0, 360)
		}
	case "gamma":
		if v, ok := argFloat(args, 0); ok {
			master.Color.Gamma = clampFloat(v, 0.1, 10)
		}
	default:
		fmt.Printf("Command: unknown master operation %q\n", parts[0])
	}
}

func (r *CommandRouter) applyOSD(parts []string, cmd Command) {
	if len(parts) == 0 {
		return
	}
	osd := r.target.OSD()
	args := cmd.Args

	switch parts[0] {
	case "frame":
		if v, ok := argBool(args, 0); ok {
			osd.SetShowFrame(v)
		}
	case "smpte":
		if v, ok := argBool(args, 0); ok {
			osd.SetShowSMPTE(v)
		}
	case "text":
		if len(args) > 0 {
			osd.SetText(strings.Join(args, " "))
		} else {
			osd.SetText("")
		}
	case "box":
		if v, ok := argBool(args, 0); ok {
			osd.SetShowBox(v)
		}
	case "pos":
		x, ok1 := argFloat(args, 0)
		y, ok2 := argFloat(args, 1)
		if ok1 && ok2 {
			osd.SetPosition(x, y)
		}
	default:
		fmt.Printf("Command: unknown osd operation %q\n", parts[0])
	}
}

// applyOutput mutates an output region: /videocomposer/output/<name>/<op>.
func (r *CommandRouter) applyOutput(parts []string, cmd Command) {
	if len(parts) < 2 {
		fmt.Printf("Command: output path missing operation: %s\n", cmd.Path)
		return
	}
	region := r.target.OutputRegion(parts[0])
	if region == nil {
		fmt.Printf("Command: no output %q\n", parts[0])
		return
	}
	args := cmd.Args

	switch parts[1] {
	case "enabled":
		if v, ok := argBool(args, 0); ok {
			region.Enabled = v
		}
	case "blend":
		// L R T B [gamma]
		if len(args) >= 4 {
			l, _ := argFloat(args, 0)
			rr, _ := argFloat(args, 1)
			tt, _ := argFloat(args, 2)
			b, _ := argFloat(args, 3)
			region.Blend.Left = clampFloat(l, 0, float64(region.PhysicalW))
			region.Blend.Right = clampFloat(rr, 0, float64(region.PhysicalW))
			region.Blend.Top = clampFloat(tt, 0, float64(region.PhysicalH))
			region.Blend.Bottom = clampFloat(b, 0, float64(region.PhysicalH))
		}
		if g, ok := argFloat(args, 4); ok {
			region.Blend.Gamma = clampFloat(g, 0.1, 10)
		}
	case "rect":
		if len(args) >= 4 {
			x, _ := argFloat(args, 0)
			y, _ := argFloat(args, 1)
			w, _ := argFloat(args, 2)
			h, _ := argFloat(args, 3)
			if w > 0 && h > 0 {
				region.X, region.Y, region.W, region.H = x, y, w, h
			}
		}
	default:
		fmt.Printf("Command: unknown output operation %q\n", parts[1])
	}
}

func argFloat(args []string, i int) (float64, bool) {
	if i >= len(args) {
		return 0, false
	}
	v, err := strconv.ParseFloat(args[i], 64)
	if err != nil {
		fmt.Printf("Command: bad float argument %q\n", args[i])
		return 0, false
	}
	return v, true
}

func argInt(args []string, i int) (int, bool) {
	if i >= len(args) {
		return 0, false
	}
	v, err := strconv.Atoi(args[i])
	if err != nil {
		fmt.Printf("Command: bad int argument %q\n", args[i])
		return 0, false
	}
	return v, true
}

func argBool(args []string, i int) (bool, bool) {
	if i >= len(args) {
		return false, false
	}
	switch strings.ToLower(args[i]) {
	case "1", "true", "on", "yes":
		return true, true
	case "0", "false", "off", "no":
		return false, true
	}
	fmt.Printf("Command: bad bool argument %q\n", args[i])
	return false, false
}

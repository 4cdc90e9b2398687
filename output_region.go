// output_region.go - Output regions, edge blend parameters and warp meshes

// (c) 2024 - 2026 Zayn Otley derivative work
// https://github.com/intuitionamiga/videocomposer
// License: GPLv3 or later

package main

import (
	"fmt"
	"image"
	_ "image/png"
	"os"

	xdraw "golang.org/x/image/draw"
)

// BlendWidths are the four soft-edge ramp widths in output pixels plus the
// perceptual gamma shaping the roll-off, spec 4.7.
type BlendWidths struct {
	Left   float64
	Right  float64
	Top    float64
	Bottom float64
	Gamma  float64
}

func NewBlendWidths() BlendWidths { return BlendWidths{Gamma: 2.2} }

// WarpMesh is an RG displacement map: channel values recentred at 0.5 give
// a per-pixel UV offset, spec 4.7.
type WarpMesh struct {
	Enabled  bool
	MeshPath string
	Strength float64
	Width    int
	Height   int
	Pixels   []byte // RG8, two bytes per texel
}

// LoadWarpMesh reads a displacement image and resamples it to the given
// resolution. PNG with R=x offset, G=y offset; other channels ignored.
func LoadWarpMesh(path string, width, height int, strength float64) (*WarpMesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("warp mesh open: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("warp mesh decode: %w", err)
	}

	if width <= 0 {
		width = img.Bounds().Dx()
	}
	if height <= 0 {
		height = img.Bounds().Dy()
	}

	scaled := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), xdraw.Src, nil)

	pixels := make([]byte, width*height*2)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			src := scaled.PixOffset(x, y)
			dst := (y*width + x) * 2
			pixels[dst] = scaled.Pix[src]
			pixels[dst+1] = scaled.Pix[src+1]
		}
	}

	if strength <= 0 {
		strength = 1
	}
	return &WarpMesh{
		Enabled:  true,
		MeshPath: path,
		Strength: strength,
		Width:    width,
		Height:   height,
		Pixels:   pixels,
	}, nil
}

// OutputRegion maps one physical output to a rectangle of the virtual
// canvas, spec 3. Named by connector id ("HDMI-A-1").
type OutputRegion struct {
	Name string

	// Canvas rect in canvas pixels.
	X, Y, W, H float64

	// Physical output size in pixels.
	PhysicalW int
	PhysicalH int

	Blend BlendWidths
	Warp  *WarpMesh

	Enabled bool

	// Rotation of the whole output in degrees (0/90/180/270).
	Rotation int
}

func NewOutputRegion(name string, x, y, w, h float64, physW, physH int) *OutputRegion {
	return &OutputRegion{
		Name: name, X: x, Y: y, W: w, H: h,
		PhysicalW: physW, PhysicalH: physH,
		Blend:   NewBlendWidths(),
		Enabled: true,
	}
}

// autoArrangeRegions lays connected outputs left to right at y=0, the
// arrangement used when no display configuration names them.
func autoArrangeRegions(outputs []outputGeometry) []*OutputRegion {
	regions := make([]*OutputRegion, 0, len(outputs))
	x := 0.0
	for _, o := range outputs {
		r := NewOutputRegion(o.Connector, x, 0, float64(o.Width), float64(o.Height), o.Width, o.Height)
		regions = append(regions, r)
		x += float64(o.Width)
	}
	return regions
}

// outputGeometry is the minimal shape the arranger needs; the DRM manager
// and the debug backend both produce it.
type outputGeometry struct {
	Connector string
	Width     int
	Height    int
}

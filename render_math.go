// render_math.go - Pure-Go geometry for layer placement, crop UVs and edge blending

// (c) 2024 - 2026 Zayn Otley derivative work
// https://github.com/intuitionamiga/videocomposer
// License: GPLv3 or later

package main

import "math"

// Mat4 is a column-major 4x4 matrix matching GL uniform layout.
type Mat4 [16]float32

func Mat4Identity() Mat4 {
	return Mat4{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
}

func (m Mat4) Mul(o Mat4) Mat4 {
	var r Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[k*4+row] * o[col*4+k]
			}
			r[col*4+row] = sum
		}
	}
	return r
}

func Mat4Translate(x, y float32) Mat4 {
	m := Mat4Identity()
	m[12] = x
	m[13] = y
	return m
}

func Mat4Scale(x, y float32) Mat4 {
	m := Mat4Identity()
	m[0] = x
	m[5] = y
	return m
}

func Mat4RotateZ(degrees float32) Mat4 {
	rad := float64(degrees) * math.Pi / 180
	s := float32(math.Sin(rad))
	c := float32(math.Cos(rad))
	m := Mat4Identity()
	m[0] = c
	m[1] = s
	m[4] = -s
	m[5] = c
	return m
}

// layerModelMatrix builds the spec 4.5 transform: scale, rotate about the
// quad centre, then translate for position. quadX/quadY are the letterboxed
// half-extents in NDC; posX/posY are normalised positions mapped into the
// [-1,1] projection.
func layerModelMatrix(p *DisplayProperties, viewportW, viewportH float64) Mat4 {
	tx := float32(2 * p.X / math.Max(viewportW, 1))
	ty := float32(-2 * p.Y / math.Max(viewportH, 1))

	m := Mat4Translate(tx, ty)
	m = m.Mul(Mat4RotateZ(float32(p.Rotation)))
	m = m.Mul(Mat4Scale(float32(p.ScaleX), float32(p.ScaleY)))
	return m
}

// letterbox fits the frame aspect inside the viewport aspect: the smaller
// dimension becomes 1 in NDC half-extent, the larger shrinks, spec 4.5.
func letterbox(frameAspect, viewportAspect float64) (quadX, quadY float64) {
	if frameAspect <= 0 || viewportAspect <= 0 {
		return 1, 1
	}
	if frameAspect > viewportAspect {
		return 1, viewportAspect / frameAspect
	}
	return frameAspect / viewportAspect, 1
}

// cropUVs computes the texture window for the explicit crop rect or
// panorama mode. Panorama crops to half width with panOffset clamped to
// [0, width/2], spec 4.5.
func cropUVs(p *DisplayProperties, frameW, frameH float64) (u0, v0, u1, v1 float64) {
	u0, v0, u1, v1 = 0, 0, 1, 1
	if frameW <= 0 || frameH <= 0 {
		return
	}
	if p.PanoramaMode {
		half := frameW / 2
		pan := clampFloat(p.PanOffset, 0, half)
		u0 = pan / frameW
		u1 = (pan + half) / frameW
		return
	}
	if p.Crop.Enabled && p.Crop.W > 0 && p.Crop.H > 0 {
		u0 = clampFloat(p.Crop.X/frameW, 0, 1)
		v0 = clampFloat(p.Crop.Y/frameH, 0, 1)
		u1 = clampFloat((p.Crop.X+p.Crop.W)/frameW, 0, 1)
		v1 = clampFloat((p.Crop.Y+p.Crop.H)/frameH, 0, 1)
	}
	return
}

// cornerQuad returns the four quad corners (TL, TR, BR, BL as x,y pairs)
// after applying the corner deformation offsets, spec 4.5. Base corners are
// the letterboxed extents.
func cornerQuad(quadX, quadY float64, corners *[8]float64, enabled bool) [8]float32 {
	base := [8]float64{
		-quadX, quadY, // TL
		quadX, quadY, // TR
		quadX, -quadY, // BR
		-quadX, -quadY, // BL
	}
	if enabled {
		for i := 0; i < 8; i++ {
			base[i] += corners[i]
		}
	}
	var out [8]float32
	for i, v := range base {
		out[i] = float32(v)
	}
	return out
}

// smoothstepf mirrors GLSL smoothstep for the CPU reference of the edge
// blend ramp.
func smoothstepf(edge0, edge1, x float64) float64 {
	if edge0 == edge1 {
		if x < edge0 {
			return 0
		}
		return 1
	}
	t := clampFloat((x-edge0)/(edge1-edge0), 0, 1)
	return t * t * (3 - 2*t)
}

// edgeBlendAlpha is the CPU reference of the blit shader's alpha ramp: the
// product of the four smoothstep ramps, shaped by pow(alpha, gamma). px/py
// are output-pixel coordinates.
func edgeBlendAlpha(px, py, outW, outH, left, right, top, bottom, gamma float64) float64 {
	alpha := 1.0
	if left > 0 {
		alpha *= smoothstepf(0, left, px)
	}
	if right > 0 {
		alpha *= smoothstepf(0, right, outW-px)
	}
	if top > 0 {
		alpha *= smoothstepf(0, top, py)
	}
	if bottom > 0 {
		alpha *= smoothstepf(0, bottom, outH-py)
	}
	if gamma > 0 {
		alpha = math.Pow(alpha, gamma)
	}
	return alpha
}

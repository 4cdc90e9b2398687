// shader_sources.go - GLSL sources for layer compositing and output blit

// (c) 2024 - 2026 Zayn Otley derivative work
// https://github.com/intuitionamiga/videocomposer
// License: GPLv3 or later

package main

// All shaders are GLSL ES 3.00 and are compiled unchanged on whichever
// context the GBM/EGL surfaces create. There is no GLSL ES 1.00 variant: on
// an ES 2.0 fallback context without GLSL ES 3.00 support they fail to
// compile, which NewGLRenderer reports as fatal.

const layerVertexShader = `#version 300 es
precision highp float;

layout(location = 0) in vec2 aPos;
layout(location = 1) in vec2 aTexCoord;

uniform mat4 uModel;

out vec2 vTexCoord;

void main() {
    vTexCoord = aTexCoord;
    gl_Position = uModel * vec4(aPos, 0.0, 1.0);
}
`

// layerFragmentShader draws a BGRA texture with opacity and the optional
// color-grading branch, spec 4.5. Brightness adds, contrast multiplies
// around 0.5, saturation mixes toward luminance, hue rotates in HSV, gamma
// pows.
const layerFragmentShader = `#version 300 es
precision highp float;

in vec2 vTexCoord;
out vec4 fragColor;

uniform sampler2D uTex;
uniform float uOpacity;
uniform bool uGradeEnabled;
uniform float uBrightness;
uniform float uContrast;
uniform float uSaturation;
uniform float uHue;
uniform float uGamma;

vec3 rgb2hsv(vec3 c) {
    vec4 K = vec4(0.0, -1.0 / 3.0, 2.0 / 3.0, -1.0);
    vec4 p = mix(vec4(c.bg, K.wz), vec4(c.gb, K.xy), step(c.b, c.g));
    vec4 q = mix(vec4(p.xyw, c.r), vec4(c.r, p.yzx), step(p.x, c.r));
    float d = q.x - min(q.w, q.y);
    float e = 1.0e-10;
    return vec3(abs(q.z + (q.w - q.y) / (6.0 * d + e)), d / (q.x + e), q.x);
}

vec3 hsv2rgb(vec3 c) {
    vec4 K = vec4(1.0, 2.0 / 3.0, 1.0 / 3.0, 3.0);
    vec3 p = abs(fract(c.xxx + K.xyz) * 6.0 - K.www);
    return c.z * mix(K.xxx, clamp(p - K.xxx, 0.0, 1.0), c.y);
}

vec3 grade(vec3 rgb) {
    rgb = rgb + vec3(uBrightness);
    rgb = (rgb - 0.5) * uContrast + 0.5;
    float luma = dot(rgb, vec3(0.2126, 0.7152, 0.0722));
    rgb = mix(vec3(luma), rgb, uSaturation);
    if (uHue != 0.0) {
        vec3 hsv = rgb2hsv(clamp(rgb, 0.0, 1.0));
        hsv.x = fract(hsv.x + uHue / 360.0);
        rgb = hsv2rgb(hsv);
    }
    rgb = pow(clamp(rgb, 0.0, 1.0), vec3(1.0 / uGamma));
    return rgb;
}

void main() {
    // BGRA bytes were uploaded as GL_RGBA; swizzle back to RGBA.
    vec4 color = texture(uTex, vTexCoord).bgra;
    if (uGradeEnabled) {
        color.rgb = grade(color.rgb);
    }
    fragColor = vec4(color.rgb, color.a * uOpacity);
}
`

// nv12FragmentShader samples the two DMA-BUF planes of a hardware frame:
// unit 0 carries the R8 luma plane, unit 1 the GR88 chroma plane at half
// resolution. BT.709 limited range.
const nv12FragmentShader = `#version 300 es
precision highp float;

in vec2 vTexCoord;
out vec4 fragColor;

uniform sampler2D uTexY;
uniform sampler2D uTexUV;
uniform float uOpacity;
uniform bool uGradeEnabled;
uniform float uBrightness;
uniform float uContrast;
uniform float uSaturation;
uniform float uHue;
uniform float uGamma;

vec3 rgb2hsv(vec3 c) {
    vec4 K = vec4(0.0, -1.0 / 3.0, 2.0 / 3.0, -1.0);
    vec4 p = mix(vec4(c.bg, K.wz), vec4(c.gb, K.xy), step(c.b, c.g));
    vec4 q = mix(vec4(p.xyw, c.r), vec4(c.r, p.yzx), step(p.x, c.r));
    float d = q.x - min(q.w, q.y);
    float e = 1.0e-10;
    return vec3(abs(q.z + (q.w - q.y) / (6.0 * d + e)), d / (q.x + e), q.x);
}

vec3 hsv2rgb(vec3 c) {
    vec4 K = vec4(1.0, 2.0 / 3.0, 1.0 / 3.0, 3.0);
    vec3 p = abs(fract(c.xxx + K.xyz) * 6.0 - K.www);
    return c.z * mix(K.xxx, clamp(p - K.xxx, 0.0, 1.0), c.y);
}

vec3 grade(vec3 rgb) {
    rgb = rgb + vec3(uBrightness);
    rgb = (rgb - 0.5) * uContrast + 0.5;
    float luma = dot(rgb, vec3(0.2126, 0.7152, 0.0722));
    rgb = mix(vec3(luma), rgb, uSaturation);
    if (uHue != 0.0) {
        vec3 hsv = rgb2hsv(clamp(rgb, 0.0, 1.0));
        hsv.x = fract(hsv.x + uHue / 360.0);
        rgb = hsv2rgb(hsv);
    }
    rgb = pow(clamp(rgb, 0.0, 1.0), vec3(1.0 / uGamma));
    return rgb;
}

void main() {
    float y = texture(uTexY, vTexCoord).r;
    vec2 uv = texture(uTexUV, vTexCoord).rg - vec2(0.5);
    y = (y - 16.0 / 255.0) * (255.0 / 219.0);
    vec3 rgb = vec3(
        y + 1.5748 * uv.y,
        y - 0.1873 * uv.x - 0.4681 * uv.y,
        y + 1.8556 * uv.x);
    if (uGradeEnabled) {
        rgb = grade(rgb);
    }
    fragColor = vec4(clamp(rgb, 0.0, 1.0), uOpacity);
}
`

const blitVertexShader = `#version 300 es
precision highp float;

layout(location = 0) in vec2 aPos;

out vec2 vTexCoord;

void main() {
    vTexCoord = aPos * 0.5 + 0.5;
    gl_Position = vec4(aPos, 0.0, 1.0);
}
`

// blitFragmentShader extracts one output's rectangle from the virtual
// canvas, applies the optional warp displacement mesh, then attenuates
// alpha with a smoothstep ramp over each blend width, shaped by pow(alpha,
// gamma), spec 4.7. Output is premultiplied onto an opaque framebuffer.
const blitFragmentShader = `#version 300 es
precision highp float;

in vec2 vTexCoord;
out vec4 fragColor;

uniform sampler2D uCanvasTex;
uniform vec2 uCanvasSize;
uniform vec4 uSourceRect;
uniform vec2 uOutputSize;
uniform vec4 uBlendWidths; // L, R, T, B in output pixels
uniform float uBlendGamma;
uniform bool uWarpEnabled;
uniform sampler2D uWarpTex;
uniform float uWarpStrength;
uniform float uMasterOpacity;
uniform bool uGradeEnabled;
uniform float uBrightness;
uniform float uContrast;
uniform float uSaturation;
uniform float uHue;
uniform float uGamma;

vec3 rgb2hsv(vec3 c) {
    vec4 K = vec4(0.0, -1.0 / 3.0, 2.0 / 3.0, -1.0);
    vec4 p = mix(vec4(c.bg, K.wz), vec4(c.gb, K.xy), step(c.b, c.g));
    vec4 q = mix(vec4(p.xyw, c.r), vec4(c.r, p.yzx), step(p.x, c.r));
    float d = q.x - min(q.w, q.y);
    float e = 1.0e-10;
    return vec3(abs(q.z + (q.w - q.y) / (6.0 * d + e)), d / (q.x + e), q.x);
}

vec3 hsv2rgb(vec3 c) {
    vec4 K = vec4(1.0, 2.0 / 3.0, 1.0 / 3.0, 3.0);
    vec3 p = abs(fract(c.xxx + K.xyz) * 6.0 - K.www);
    return c.z * mix(K.xxx, clamp(p - K.xxx, 0.0, 1.0), c.y);
}

vec3 grade(vec3 rgb) {
    rgb = rgb + vec3(uBrightness);
    rgb = (rgb - 0.5) * uContrast + 0.5;
    float luma = dot(rgb, vec3(0.2126, 0.7152, 0.0722));
    rgb = mix(vec3(luma), rgb, uSaturation);
    if (uHue != 0.0) {
        vec3 hsv = rgb2hsv(clamp(rgb, 0.0, 1.0));
        hsv.x = fract(hsv.x + uHue / 360.0);
        rgb = hsv2rgb(hsv);
    }
    rgb = pow(clamp(rgb, 0.0, 1.0), vec3(1.0 / uGamma));
    return rgb;
}

void main() {
    vec2 outputPos = vTexCoord;
    if (uWarpEnabled) {
        vec2 disp = texture(uWarpTex, outputPos).rg * 2.0 - 1.0;
        outputPos = clamp(outputPos + disp * uWarpStrength, 0.0, 1.0);
    }

    vec2 canvasUV = (uSourceRect.xy + outputPos * uSourceRect.zw) / uCanvasSize;
    vec4 color = texture(uCanvasTex, canvasUV);

    vec2 px = outputPos * uOutputSize;
    float alpha = 1.0;
    if (uBlendWidths.x > 0.0) {
        alpha *= smoothstep(0.0, uBlendWidths.x, px.x);
    }
    if (uBlendWidths.y > 0.0) {
        alpha *= smoothstep(0.0, uBlendWidths.y, uOutputSize.x - px.x);
    }
    if (uBlendWidths.z > 0.0) {
        alpha *= smoothstep(0.0, uBlendWidths.z, px.y);
    }
    if (uBlendWidths.w > 0.0) {
        alpha *= smoothstep(0.0, uBlendWidths.w, uOutputSize.y - px.y);
    }
    alpha = pow(alpha, uBlendGamma);

    if (uGradeEnabled) {
        color.rgb = grade(color.rgb);
    }
    fragColor = vec4(color.rgb * alpha * uMasterOpacity, 1.0);
}
`

// osdFragmentShader draws OSD glyph quads: a single-channel alpha texture
// tinted by a uniform color.
const osdFragmentShader = `#version 300 es
precision highp float;

in vec2 vTexCoord;
out vec4 fragColor;

uniform sampler2D uTex;
uniform vec4 uColor;

void main() {
    float a = texture(uTex, vTexCoord).r;
    fragColor = vec4(uColor.rgb, uColor.a * a);
}
`

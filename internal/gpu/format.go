// Package gpu models shareable frame surfaces: pixel storage that two
// processes map by handle, guarded by a lock word in the surface header.
package gpu

import (
	"fmt"
	"math/bits"
)

// Format is the pixel layout of a surface.
type Format uint32

const (
	RGBA8 Format = iota + 1
	// RGBA8SRGB stores sRGB-encoded color; filtering happens in linear space.
	RGBA8SRGB
)

func (f Format) String() string {
	switch f {
	case RGBA8:
		return "rgba8"
	case RGBA8SRGB:
		return "rgba8_srgb"
	default:
		return fmt.Sprintf("format(%d)", uint32(f))
	}
}

func (f Format) valid() bool { return f == RGBA8 || f == RGBA8SRGB }

// FormatFor picks the surface format for the colorspace flag.
func FormatFor(srgb bool) Format {
	if srgb {
		return RGBA8SRGB
	}
	return RGBA8
}

const bytesPerPixel = 4

// Descriptor describes a surface to allocate or expect.
type Descriptor struct {
	Width  int
	Height int
	Format Format
	Mipmap bool
}

func (d Descriptor) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("invalid surface size %dx%d", d.Width, d.Height)
	}
	if !d.Format.valid() {
		return fmt.Errorf("invalid surface format %v", d.Format)
	}
	return nil
}

// Levels is the number of mip levels the surface carries.
func (d Descriptor) Levels() int {
	if !d.Mipmap {
		return 1
	}
	return MipLevelsFor(d.Width, d.Height)
}

// MipLevelsFor returns ilog2(max(w, h)), at least 1.
func MipLevelsFor(w, h int) int {
	n := max(w, h)
	if n <= 1 {
		return 1
	}
	return max(1, bits.Len(uint(n))-1)
}

// levelSize returns the dimensions of mip level l.
func levelSize(w, h, l int) (int, int) {
	return max(1, w>>l), max(1, h>>l)
}

// pixelBytes is the storage needed for all levels.
func (d Descriptor) pixelBytes() int {
	total := 0
	for l := 0; l < d.Levels(); l++ {
		w, h := levelSize(d.Width, d.Height, l)
		total += w * h * bytesPerPixel
	}
	return total
}

package gpu

import (
	"fmt"
	"image"
	"sync/atomic"
	"unsafe"

	"github.com/1broseidon/interop/internal/shm"
)

const (
	surfaceMagic = 0x53524658 // "SRFX"
	headerSize   = 64
)

type surfaceHeader struct {
	Magic    uint32
	Width    uint32
	Height   uint32
	Format   uint32
	Levels   uint32
	Lock     atomic.Uint32
	Sequence atomic.Uint32
}

// Surface is a locally mapped shareable surface.
type Surface struct {
	dev    Device
	handle Handle
	region *shm.Region
	hdr    *surfaceHeader
	desc   Descriptor
	view   *View
}

func surfaceSize(desc Descriptor) int {
	return headerSize + desc.pixelBytes()
}

// initSurface writes a fresh header into a newly created region.
func initSurface(dev Device, h Handle, region *shm.Region, desc Descriptor) *Surface {
	hdr := (*surfaceHeader)(unsafe.Pointer(&region.Bytes()[0]))
	hdr.Magic = surfaceMagic
	hdr.Width = uint32(desc.Width)
	hdr.Height = uint32(desc.Height)
	hdr.Format = uint32(desc.Format)
	hdr.Levels = uint32(desc.Levels())
	return newSurface(dev, h, region, hdr, desc)
}

// bindSurface checks an imported region against the expected descriptor.
func bindSurface(dev Device, h Handle, region *shm.Region, desc Descriptor) (*Surface, error) {
	if region.Size() < surfaceSize(desc) {
		return nil, fmt.Errorf("surface is %d bytes, want %d", region.Size(), surfaceSize(desc))
	}
	hdr := (*surfaceHeader)(unsafe.Pointer(&region.Bytes()[0]))
	if hdr.Magic != surfaceMagic {
		return nil, fmt.Errorf("surface magic %#x", hdr.Magic)
	}
	if int(hdr.Width) != desc.Width || int(hdr.Height) != desc.Height ||
		Format(hdr.Format) != desc.Format || int(hdr.Levels) != desc.Levels() {
		return nil, fmt.Errorf("surface is %dx%d %v with %d levels, want %dx%d %v with %d levels",
			hdr.Width, hdr.Height, Format(hdr.Format), hdr.Levels,
			desc.Width, desc.Height, desc.Format, desc.Levels())
	}
	return newSurface(dev, h, region, hdr, desc), nil
}

func newSurface(dev Device, h Handle, region *shm.Region, hdr *surfaceHeader, desc Descriptor) *Surface {
	s := &Surface{dev: dev, handle: h, region: region, hdr: hdr, desc: desc}
	s.view = newView(s)
	return s
}

func (s *Surface) Descriptor() Descriptor { return s.desc }

// Handle is the process-local handle of the surface.
func (s *Surface) Handle() Handle { return s.handle }

func (s *Surface) View() *View { return s.view }

// Device reports which device the surface was created on or imported into.
func (s *Surface) Device() Device { return s.dev }

// TryLock takes the lock word for owner without blocking.
func (s *Surface) TryLock(owner uint32) error {
	if s.hdr == nil {
		return fmt.Errorf("lock closed surface: %w", ErrLockFailed)
	}
	if owner == 0 {
		return fmt.Errorf("lock with zero owner: %w", ErrLockFailed)
	}
	if s.hdr.Lock.CompareAndSwap(0, owner) {
		return nil
	}
	return fmt.Errorf("held by %d: %w", s.hdr.Lock.Load(), ErrBusy)
}

// Unlock releases the lock word if owner holds it.
func (s *Surface) Unlock(owner uint32) error {
	if s.hdr == nil {
		return fmt.Errorf("unlock closed surface: %w", ErrLockFailed)
	}
	if s.hdr.Lock.CompareAndSwap(owner, 0) {
		return nil
	}
	holder := s.hdr.Lock.Load()
	if holder == 0 {
		return fmt.Errorf("not locked: %w", ErrBusy)
	}
	return fmt.Errorf("held by %d: %w", holder, ErrWrongOwner)
}

// Holder returns the owner token currently in the lock word, 0 when free.
func (s *Surface) Holder() uint32 {
	if s.hdr == nil {
		return 0
	}
	return s.hdr.Lock.Load()
}

// Close unmaps the surface and releases the local handle. The pixels survive
// while the peer still maps them.
func (s *Surface) Close() error {
	if s == nil || s.region == nil {
		return nil
	}
	s.hdr = nil
	s.view = nil
	err := s.region.Close()
	s.region = nil
	if s.handle != nil {
		// The region owned the descriptor; the handle only tracks the value.
		s.handle.Release()
	}
	return err
}

// View is the local renderable and sampleable view of a surface.
type View struct {
	s      *Surface
	levels []*image.RGBA
}

func newView(s *Surface) *View {
	v := &View{s: s}
	pix := s.region.Bytes()[headerSize:]
	off := 0
	for l := 0; l < s.desc.Levels(); l++ {
		w, h := levelSize(s.desc.Width, s.desc.Height, l)
		n := w * h * bytesPerPixel
		v.levels = append(v.levels, &image.RGBA{
			Pix:    pix[off : off+n : off+n],
			Stride: w * bytesPerPixel,
			Rect:   image.Rect(0, 0, w, h),
		})
		off += n
	}
	return v
}

// Image returns level 0. Its Pix aliases the shared mapping.
func (v *View) Image() *image.RGBA { return v.levels[0] }

// Level returns mip level l, or nil when out of range.
func (v *View) Level(l int) *image.RGBA {
	if l < 0 || l >= len(v.levels) {
		return nil
	}
	return v.levels[l]
}

func (v *View) Levels() int { return len(v.levels) }

func (v *View) Format() Format { return v.s.desc.Format }

// Sequence is the produce count stamped by the producer when it rendered the
// frame currently held in the surface.
func (v *View) Sequence() uint32 { return v.s.hdr.Sequence.Load() }

func (v *View) SetSequence(seq uint32) { v.s.hdr.Sequence.Store(seq) }

// GenerateMipmaps rebuilds levels 1..n from level 0 with a 2x2 box filter.
// sRGB surfaces are averaged in linear light.
func (v *View) GenerateMipmaps() {
	srgb := v.s.desc.Format == RGBA8SRGB
	for l := 1; l < len(v.levels); l++ {
		downsample(v.levels[l-1], v.levels[l], srgb)
	}
}

func downsample(src, dst *image.RGBA, srgb bool) {
	sw, sh := src.Rect.Dx(), src.Rect.Dy()
	dw, dh := dst.Rect.Dx(), dst.Rect.Dy()
	for y := 0; y < dh; y++ {
		y0 := min(2*y, sh-1)
		y1 := min(2*y+1, sh-1)
		for x := 0; x < dw; x++ {
			x0 := min(2*x, sw-1)
			x1 := min(2*x+1, sw-1)
			o00 := y0*src.Stride + x0*bytesPerPixel
			o01 := y0*src.Stride + x1*bytesPerPixel
			o10 := y1*src.Stride + x0*bytesPerPixel
			o11 := y1*src.Stride + x1*bytesPerPixel
			d := y*dst.Stride + x*bytesPerPixel
			for c := 0; c < bytesPerPixel; c++ {
				a, b, e, f := src.Pix[o00+c], src.Pix[o01+c], src.Pix[o10+c], src.Pix[o11+c]
				if srgb && c < 3 {
					avg := (srgbDecode[a] + srgbDecode[b] + srgbDecode[e] + srgbDecode[f]) / 4
					dst.Pix[d+c] = encodeSRGB8(avg)
					continue
				}
				dst.Pix[d+c] = uint8((uint32(a) + uint32(b) + uint32(e) + uint32(f) + 2) / 4)
			}
		}
	}
}

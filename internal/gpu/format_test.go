package gpu

import (
	"errors"
	"fmt"
	"testing"
)

func TestMipLevelsFor(t *testing.T) {
	cases := []struct {
		w, h, want int
	}{
		{1, 1, 1},
		{2, 2, 1},
		{32, 32, 5},
		{500, 500, 8},
		{512, 64, 9},
		{33, 4096, 12},
	}
	for _, tc := range cases {
		if got := MipLevelsFor(tc.w, tc.h); got != tc.want {
			t.Errorf("MipLevelsFor(%d, %d) = %d, want %d", tc.w, tc.h, got, tc.want)
		}
	}
}

func TestDescriptorLevels(t *testing.T) {
	d := Descriptor{Width: 64, Height: 16, Format: RGBA8}
	if d.Levels() != 1 {
		t.Fatalf("Levels() without mipmap = %d, want 1", d.Levels())
	}
	d.Mipmap = true
	if d.Levels() != 6 {
		t.Fatalf("Levels() = %d, want 6", d.Levels())
	}
	// 64x16 + 32x8 + 16x4 + 8x2 + 4x1 + 2x1
	want := (1024 + 256 + 64 + 16 + 4 + 2) * 4
	if got := d.pixelBytes(); got != want {
		t.Fatalf("pixelBytes() = %d, want %d", got, want)
	}
}

func TestDescriptorValidate(t *testing.T) {
	if err := (Descriptor{Width: 0, Height: 1, Format: RGBA8}).Validate(); err == nil {
		t.Fatal("expected size error")
	}
	if err := (Descriptor{Width: 1, Height: 1}).Validate(); err == nil {
		t.Fatal("expected format error")
	}
}

func TestReason(t *testing.T) {
	cases := map[error]string{
		nil:                                   "",
		fmt.Errorf("slot 1: %w", ErrBusy):     "busy",
		fmt.Errorf("x: %w", ErrWrongOwner):    "wrong_owner",
		ErrLockFailed:                         "failed",
		errors.New("something else entirely"): "failed",
	}
	for err, want := range cases {
		if got := Reason(err); got != want {
			t.Errorf("Reason(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestColorspaceRoundTrip(t *testing.T) {
	for i := 0; i < 256; i++ {
		if got := encodeSRGB8(srgbDecode[i]); int(got) != i {
			t.Fatalf("encode(decode(%d)) = %d", i, got)
		}
	}
}

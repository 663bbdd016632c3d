package gpu

import "math"

// SRGBToLinear converts one sRGB-encoded component in [0,1] to linear light.
func SRGBToLinear(c float64) float64 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

// LinearToSRGB converts one linear component in [0,1] to sRGB encoding.
func LinearToSRGB(c float64) float64 {
	if c <= 0.0031308 {
		return c * 12.92
	}
	return 1.055*math.Pow(c, 1/2.4) - 0.055
}

var srgbDecode [256]float64

func init() {
	for i := range srgbDecode {
		srgbDecode[i] = SRGBToLinear(float64(i) / 255)
	}
}

func encodeSRGB8(linear float64) uint8 {
	return quantize(LinearToSRGB(linear))
}

func quantize(c float64) uint8 {
	if c <= 0 {
		return 0
	}
	if c >= 1 {
		return 255
	}
	return uint8(c*255 + 0.5)
}

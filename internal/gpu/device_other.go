//go:build !linux

package gpu

func NewDevice(opts DeviceOptions) (Device, error) {
	return nil, ErrUnsupported
}

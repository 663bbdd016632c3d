//go:build !linux

package shm

import "os"

func CreateRegion(name string, size int) (*Region, error) {
	return nil, ErrUnsupported
}

func OpenRegion(fd int, name string) (*Region, error) {
	return nil, ErrUnsupported
}

func (r *Region) File() (*os.File, error) {
	return nil, ErrUnsupported
}

func (r *Region) Close() error {
	return nil
}

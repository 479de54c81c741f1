package usbmon

import (
	"errors"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// Device is a capture source backed by the monitor character device of a
// single USB bus. Reads block until the kernel has traffic to deliver.
type Device struct {
	Bus int
}

// Path returns the character device path for this bus.
func (d Device) Path() string {
	return DevicePath(d.Bus)
}

// Open opens the monitor device read-only. The returned error preserves
// the underlying errno; use IsPermission to recognize EPERM/EACCES.
func (d Device) Open() (io.ReadCloser, error) {
	return os.Open(d.Path())
}

// Exists reports whether the monitor device node is present. It is absent
// when the usbmon kernel module is not loaded.
func (d Device) Exists() bool {
	_, err := os.Stat(d.Path())
	return err == nil
}

// IsPermission reports whether err denotes insufficient privileges to read
// the monitor device.
func IsPermission(err error) bool {
	return errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM)
}

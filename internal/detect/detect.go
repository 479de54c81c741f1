// Package detect locates the GameCube controller adapter on the USB bus
// so the capture parameters can be filled in without lsusb spelunking.
package detect

import (
	"errors"
	"fmt"

	"github.com/google/gousb"
)

// The standard four-port adapter (WUP-028) enumerates with these ids.
const (
	VendorNintendo gousb.ID = 0x057e
	ProductAdapter gousb.ID = 0x0337
)

// ErrNotFound means no adapter is currently attached.
var ErrNotFound = errors.New("no GameCube controller adapter found")

// Adapter reports where the adapter was found.
type Adapter struct {
	Bus    int
	Device int
}

// FindAdapter scans the USB buses for the four-port adapter and returns
// its bus and device number. When several adapters are attached the first
// one enumerated wins.
func FindAdapter() (Adapter, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == VendorNintendo && desc.Product == ProductAdapter
	})
	for _, d := range devs {
		defer d.Close()
	}
	if err != nil {
		return Adapter{}, fmt.Errorf("scan usb devices: %w", err)
	}
	if len(devs) == 0 {
		return Adapter{}, ErrNotFound
	}

	desc := devs[0].Desc
	return Adapter{Bus: desc.Bus, Device: desc.Address}, nil
}

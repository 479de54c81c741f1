package gccrec

import "github.com/byohano/gccrec/internal/constants"

// Re-export constants for public API
const (
	DefaultDuration   = constants.DefaultDuration
	DefaultPlayerPort = constants.DefaultPlayerPort
	ReadBlockSize     = constants.ReadBlockSize
	PollInterval      = constants.PollInterval
)

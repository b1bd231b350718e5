package tiledcam

import (
	"github.com/gogpu/gpucontext"
)

// DeviceHandle provides GPU device access from the host application.
//
// The host owns the GPU device and hands it to the chosen backend via
// backend.Config, which allocates its binding buffers and the
// tile-extract pipeline on it. Without a device handle everything runs
// on host memory, which is what the software reference driver and the
// test suite use.
//
// DeviceHandle is an alias for gpucontext.DeviceProvider so hosts built
// on the gpucontext ecosystem plug in directly.
type DeviceHandle = gpucontext.DeviceProvider

//go:build tpx3_epics

package bus

/*
#cgo LDFLAGS: -lasyn -lepicsCore
#include <stdlib.h>
#include "tpx3_asyn_shim.h"
*/
import "C"

import (
	"fmt"
	"log/slog"
	"unsafe"
)

// EpicsFacade is the cgo-backed Facade used in real IOC builds: it calls
// into an asyn port driver through a small C shim (tpx3_asyn_shim.h,
// provided by the IOC build, not this module) instead of threading the
// source's ~500-parameter-id table through every component.
type EpicsFacade struct {
	port   *C.tpx3_asyn_port
	logger *slog.Logger
	queue  *Queue
}

// NewEpicsFacade opens the named asyn port and wires its parameter
// callbacks into a Queue drained by the control thread.
func NewEpicsFacade(portName string, logger *slog.Logger) (*EpicsFacade, error) {
	cName := C.CString(portName)
	defer C.free(unsafe.Pointer(cName))

	port := C.tpx3_asyn_open(cName)
	if port == nil {
		return nil, fmt.Errorf("bus: opening asyn port %q failed", portName)
	}

	f := &EpicsFacade{port: port, logger: logger, queue: NewQueue(256)}
	return f, nil
}

func (f *EpicsFacade) SetScalar(name string, value float64) {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))
	C.tpx3_asyn_set_double(f.port, cName, C.double(value))
}

func (f *EpicsFacade) SetString(name string, value string) {
	cName := C.CString(name)
	cValue := C.CString(value)
	defer C.free(unsafe.Pointer(cName))
	defer C.free(unsafe.Pointer(cValue))
	C.tpx3_asyn_set_string(f.port, cName, cValue)
}

func (f *EpicsFacade) PublishArray32(name string, data []uint32) {
	if len(data) == 0 {
		return
	}
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))
	C.tpx3_asyn_publish_u32(f.port, cName, (*C.uint32_t)(unsafe.Pointer(&data[0])), C.size_t(len(data)))
}

func (f *EpicsFacade) PublishArray64(name string, data []uint64) {
	if len(data) == 0 {
		return
	}
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))
	C.tpx3_asyn_publish_u64(f.port, cName, (*C.uint64_t)(unsafe.Pointer(&data[0])), C.size_t(len(data)))
}

func (f *EpicsFacade) Callbacks() <-chan Callback {
	return f.queue.Channel()
}

func (f *EpicsFacade) Close() error {
	f.queue.Close()
	C.tpx3_asyn_close(f.port)
	return nil
}

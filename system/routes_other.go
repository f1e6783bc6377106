//go:build !linux

package system

import (
	"fmt"
	"runtime"
)

func NewKernelFIB(table int) (FIB, error) {
	return nil, fmt.Errorf("programming kernel routes is not supported on %s", runtime.GOOS)
}

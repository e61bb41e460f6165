//go:build windows

package nn

import (
	"os"
	"syscall"
	"unsafe"
)

const (
	runtimeLibName   = "onnxruntime.dll"
	runtimeSearchEnv = "PATH"
)

var setEnvW = syscall.NewLazyDLL("kernel32.dll").NewProc("SetEnvironmentVariableW")

// setProcessEnv 还要写 Win32 环境块，onnxruntime.dll 不读 Go 的那份
func setProcessEnv(key, value string) {
	_ = os.Setenv(key, value)
	k, err := syscall.UTF16PtrFromString(key)
	if err != nil {
		return
	}
	v, err := syscall.UTF16PtrFromString(value)
	if err != nil {
		return
	}
	_, _, _ = setEnvW.Call(uintptr(unsafe.Pointer(k)), uintptr(unsafe.Pointer(v)))
}

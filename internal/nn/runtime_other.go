//go:build !windows && !darwin

package nn

import "os"

const (
	runtimeLibName   = "libonnxruntime.so"
	runtimeSearchEnv = "LD_LIBRARY_PATH"
)

func setProcessEnv(key, value string) { _ = os.Setenv(key, value) }

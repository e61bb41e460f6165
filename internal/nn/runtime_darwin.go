package nn

import "os"

const (
	runtimeLibName   = "libonnxruntime.dylib"
	runtimeSearchEnv = "DYLD_LIBRARY_PATH"
)

func setProcessEnv(key, value string) { _ = os.Setenv(key, value) }

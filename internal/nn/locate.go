package nn

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ModelDir 价值模型和 onnxruntime 库的默认存放目录，相对工作目录或可执行文件目录
const ModelDir = "models"

// locateValueModel 找冻结的价值模型。
// 顺序：给定路径 → models/<文件名> → 可执行文件旁的同名路径 → 可执行文件旁的 models/<文件名>
func locateValueModel(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("nn: empty value model path")
	}
	return firstFile(searchDirs(path), "value model")
}

// locateRuntimeLib 找 onnxruntime 共享库；路径为空时按平台默认库名在同样的目录里找
func locateRuntimeLib(path string) (string, error) {
	if path == "" {
		path = runtimeLibName
	}
	return firstFile(searchDirs(path), runtimeLibName)
}

func searchDirs(path string) []string {
	base := filepath.Base(path)
	out := []string{path, filepath.Join(ModelDir, base)}
	if filepath.IsAbs(path) {
		return out[:1]
	}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		out = append(out, filepath.Join(dir, path), filepath.Join(dir, ModelDir, base))
	}
	return out
}

func firstFile(candidates []string, what string) (string, error) {
	for _, c := range candidates {
		if st, err := os.Stat(c); err == nil && !st.IsDir() {
			return filepath.Abs(c)
		}
	}
	return "", fmt.Errorf("nn: %s not found (tried %s)", what, strings.Join(candidates, ", "))
}

// addRuntimeLibDir 把库所在目录放到动态库搜索变量最前面，已在列表里就不再加
func addRuntimeLibDir(dir string) {
	old := os.Getenv(runtimeSearchEnv)
	for _, p := range filepath.SplitList(old) {
		if p == dir {
			return
		}
	}
	if old == "" {
		setProcessEnv(runtimeSearchEnv, dir)
		return
	}
	setProcessEnv(runtimeSearchEnv, dir+string(os.PathListSeparator)+old)
}

// Package inference - Locating the ONNX Runtime shared library.
package inference

import (
	"os"
	"runtime"

	"github.com/nvr-ai/go-cavity/common"
)

// LibraryPathEnv overrides the platform default shared library location.
const LibraryPathEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// SharedLibPath returns the path to the onnxruntime shared library.
//
// An explicit path wins, then the ONNXRUNTIME_SHARED_LIBRARY_PATH environment
// variable, then the bundled third_party library for the current platform.
//
// Arguments:
//   - configured: The configured path, or "".
//
// Returns:
//   - string: The library path.
//   - error: A common.KindInvalidConfig error on an unsupported platform.
func SharedLibPath(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if env := os.Getenv(LibraryPathEnv); env != "" {
		return env, nil
	}

	switch runtime.GOOS {
	case "windows":
		if runtime.GOARCH == "amd64" {
			return "./third_party/onnxruntime.dll", nil
		}
	case "darwin":
		return "./third_party/libonnxruntime.1.23.0.dylib", nil
	case "linux":
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.so", nil
		}
		return "./third_party/onnxruntime.so", nil
	}
	return "", common.Errorf(common.KindInvalidConfig, "library",
		"no onnxruntime library for %s/%s, set %s", runtime.GOOS, runtime.GOARCH, LibraryPathEnv)
}

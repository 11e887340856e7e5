// Package inference - Execution provider selection for the ONNX runtime.
package inference

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/nvr-ai/go-cavity/common"
)

// Provider names an onnxruntime execution provider.
type Provider string

const (
	// ProviderCPU runs on the default CPU provider.
	ProviderCPU Provider = "cpu"
	// ProviderCUDA uses NVIDIA CUDA.
	ProviderCUDA Provider = "cuda"
	// ProviderCoreML uses Apple CoreML on macOS.
	ProviderCoreML Provider = "coreml"
	// ProviderOpenVINO uses Intel OpenVINO.
	ProviderOpenVINO Provider = "openvino"
)

// ParseProvider converts a provider name; an empty name selects the CPU.
func ParseProvider(name string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(name))); p {
	case "":
		return ProviderCPU, nil
	case ProviderCPU, ProviderCUDA, ProviderCoreML, ProviderOpenVINO:
		return p, nil
	default:
		return "", common.Errorf(common.KindInvalidConfig, "session", "unknown execution provider %q", name)
	}
}

// appendProvider enables the configured execution provider on options.
//
// Provider options are passed through as onnxruntime key/value settings, see
// https://onnxruntime.ai/docs/execution-providers/ for each provider's keys.
func appendProvider(options *ort.SessionOptions, provider Provider, settings map[string]string) error {
	switch provider {
	case ProviderCPU:
		return nil
	case ProviderCUDA:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return errors.Wrap(err, "creating CUDA options")
		}
		defer cuda.Destroy()

		if len(settings) > 0 {
			if err := cuda.Update(settings); err != nil {
				return errors.Wrap(err, "updating CUDA options")
			}
		}
		return errors.Wrap(options.AppendExecutionProviderCUDA(cuda), "enabling CUDA")
	case ProviderCoreML:
		var flags uint64
		if v, ok := settings["flags"]; ok {
			parsed, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return errors.Wrap(err, "parsing CoreML flags")
			}
			flags = parsed
		}
		return errors.Wrap(options.AppendExecutionProviderCoreML(uint32(flags)), "enabling CoreML")
	case ProviderOpenVINO:
		return errors.Wrap(options.AppendExecutionProviderOpenVINO(settings), "enabling OpenVINO")
	default:
		return errors.Errorf("unknown execution provider %q", provider)
	}
}

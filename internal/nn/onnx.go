package nn

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	DefaultONNXInput  = "features"
	DefaultONNXOutput = "value"
)

// ONNXModel 冻结的价值网络：输入 [1,N] float32，输出 [1,1] float32（红方视角 [-1,1]）。
// 只做推理，不参与训练。
type ONNXModel struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	inputs  int
}

type ONNXOptions struct {
	ModelPath  string
	LibPath    string
	InputName  string
	OutputName string
	Inputs     int
}

func NewONNXModel(opts ONNXOptions) (*ONNXModel, error) {
	if opts.InputName == "" {
		opts.InputName = DefaultONNXInput
	}
	if opts.OutputName == "" {
		opts.OutputName = DefaultONNXOutput
	}
	if opts.Inputs <= 0 {
		opts.Inputs = DefaultTopology().Inputs
	}
	modelPath, err := locateValueModel(opts.ModelPath)
	if err != nil {
		return nil, err
	}

	// 只打印错误级别日志
	setProcessEnv("ORT_LOGGING_LEVEL", "3")

	if !ort.IsInitialized() {
		libPath, err := locateRuntimeLib(opts.LibPath)
		if err != nil {
			return nil, err
		}
		addRuntimeLibDir(filepath.Dir(libPath))
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("onnxruntime init: %w", err)
		}
	}

	input, err := ort.NewTensor(ort.NewShape(1, int64(opts.Inputs)), make([]float32, opts.Inputs))
	if err != nil {
		return nil, err
	}
	output, err := ort.NewTensor(ort.NewShape(1, 1), make([]float32, 1))
	if err != nil {
		input.Destroy()
		return nil, err
	}

	providers := []struct {
		name  string
		setup func(*ort.SessionOptions) error
	}{
		{"CUDA", func(so *ort.SessionOptions) error {
			cudaOpts, e := ort.NewCUDAProviderOptions()
			if e != nil {
				return e
			}
			defer cudaOpts.Destroy()
			return so.AppendExecutionProviderCUDA(cudaOpts)
		}},
		{"CPU", func(so *ort.SessionOptions) error { return nil }},
	}

	var session *ort.AdvancedSession
	for _, p := range providers {
		so, err := ort.NewSessionOptions()
		if err != nil {
			continue
		}
		if err := p.setup(so); err != nil {
			log.Debug().Str("provider", p.name).Err(err).Msg("onnx provider setup failed")
			so.Destroy()
			continue
		}
		s, err := ort.NewAdvancedSession(modelPath,
			[]string{opts.InputName}, []string{opts.OutputName},
			[]ort.Value{input}, []ort.Value{output}, so)
		so.Destroy()
		if err != nil {
			log.Debug().Str("provider", p.name).Err(err).Msg("onnx session creation failed")
			continue
		}
		// 预热
		if err := s.Run(); err != nil {
			log.Debug().Str("provider", p.name).Err(err).Msg("onnx warmup failed")
			s.Destroy()
			continue
		}
		log.Info().Str("provider", p.name).Str("model", modelPath).Msg("onnx value model ready")
		session = s
		break
	}
	if session == nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("failed to initialize onnx model %s with any provider", modelPath)
	}

	return &ONNXModel{
		session: session,
		input:   input,
		output:  output,
		inputs:  opts.Inputs,
	}, nil
}

func (m *ONNXModel) Predict(features []float64) (float64, error) {
	if len(features) != m.inputs {
		return 0, fmt.Errorf("%w: got %d features, want %d", ErrShapeMismatch, len(features), m.inputs)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return 0, fmt.Errorf("onnx model closed")
	}
	in := m.input.GetData()
	for i, v := range features {
		in[i] = float32(v)
	}
	if err := m.session.Run(); err != nil {
		return 0, fmt.Errorf("onnx run: %w", err)
	}
	v := float64(m.output.GetData()[0])
	return max(-1, min(1, v)), nil
}

// Version 冻结模型权重不变
func (m *ONNXModel) Version() uint64 { return 0 }

func (m *ONNXModel) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
	m.input.Destroy()
	m.output.Destroy()
}

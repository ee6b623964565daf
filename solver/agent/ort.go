package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"karuta-solver/solver/engine"
)

// OrtConfig points at an ONNX model taking a [1, InputSamples] float32
// waveform and producing [1, 44] card probabilities.
type OrtConfig struct {
	SharedLib    string
	ModelPath    string
	InputName    string
	OutputName   string
	InputSamples int
}

func (c *OrtConfig) applyDefaults() {
	if c.InputName == "" {
		c.InputName = "input"
	}
	if c.OutputName == "" {
		c.OutputName = "output"
	}
	if c.InputSamples <= 0 {
		c.InputSamples = 48000
	}
}

// OrtClassifier runs the model through onnxruntime. Calls are serialised
// because the session reuses its input and output tensors.
type OrtClassifier struct {
	mu      sync.Mutex
	cfg     OrtConfig
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func NewOrtClassifier(cfg OrtConfig) (*OrtClassifier, error) {
	cfg.applyDefaults()
	if cfg.ModelPath == "" {
		return nil, errors.New("model path missing")
	}
	if cfg.SharedLib != "" {
		ort.SetSharedLibraryPath(cfg.SharedLib)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("init onnxruntime: %w", err)
		}
	}
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(cfg.InputSamples)))
	if err != nil {
		return nil, fmt.Errorf("input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, engine.NumCards))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("output tensor: %w", err)
	}
	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName}, []string{cfg.OutputName},
		[]ort.Value{input}, []ort.Value{output}, nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("load model %s: %w", cfg.ModelPath, err)
	}
	return &OrtClassifier{cfg: cfg, session: session, input: input, output: output}, nil
}

// Classify pads or truncates samples to the model's input length.
func (o *OrtClassifier) Classify(ctx context.Context, samples []float32) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return nil, errors.New("classifier closed")
	}
	dst := o.input.GetData()
	n := copy(dst, samples)
	clear(dst[n:])
	if err := o.session.Run(); err != nil {
		return nil, fmt.Errorf("run model: %w", err)
	}
	out := o.output.GetData()
	probs := make([]float64, len(out))
	for i, v := range out {
		probs[i] = float64(v)
	}
	return probs, nil
}

func (o *OrtClassifier) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return nil
	}
	err := errors.Join(o.session.Destroy(), o.input.Destroy(), o.output.Destroy())
	o.session, o.input, o.output = nil, nil, nil
	return errors.Join(err, ort.DestroyEnvironment())
}

package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXEmbedder runs a local transformer encoder through onnxruntime and
// mean-pools the last hidden state into a single vector. Initialization is
// deferred until the first call so the process can start without the model
// assets being exercised.
type ONNXEmbedder struct {
	mu sync.Mutex

	cfg       Config
	tokenizer *Tokenizer

	session *ort.AdvancedSession
	inputs  map[string]*ort.Tensor[int64]
	order   []string
	output  *ort.Tensor[float32]
	inited  bool
}

func NewONNXEmbedder(cfg Config) (*ONNXEmbedder, error) {
	if cfg.Dimension <= 0 {
		cfg.Dimension = 384
	}
	if cfg.MaxSeqLen <= 0 {
		cfg.MaxSeqLen = 256
	}
	tokenizer, err := LoadTokenizer(cfg.VocabPath, cfg.MaxSeqLen)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer failed: %w", err)
	}
	return &ONNXEmbedder{cfg: cfg, tokenizer: tokenizer}, nil
}

func (e *ONNXEmbedder) Dimension() int {
	return e.cfg.Dimension
}

func (e *ONNXEmbedder) initOnce() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inited {
		return nil
	}

	if e.cfg.SharedLibPath != "" {
		ort.SetSharedLibraryPath(e.cfg.SharedLibPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("onnx init environment: %w", err)
		}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(e.cfg.ModelPath)
	if err != nil {
		return fmt.Errorf("onnx get model info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return fmt.Errorf("onnx model has no inputs or outputs")
	}

	// Encoder exports carry dynamic batch and sequence axes, so every input
	// is allocated at the fixed [1, maxSeqLen] shape the tokenizer pads to.
	seq := int64(e.cfg.MaxSeqLen)
	e.inputs = make(map[string]*ort.Tensor[int64], len(inputs))
	e.order = make([]string, 0, len(inputs))
	values := make([]ort.Value, 0, len(inputs))
	for _, info := range inputs {
		tensor, err := ort.NewEmptyTensor[int64](ort.NewShape(1, seq))
		if err != nil {
			e.destroyLocked()
			return fmt.Errorf("onnx create input tensor: %w", err)
		}
		e.inputs[info.Name] = tensor
		e.order = append(e.order, info.Name)
		values = append(values, tensor)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, seq, int64(e.cfg.Dimension)))
	if err != nil {
		e.destroyLocked()
		return fmt.Errorf("onnx create output tensor: %w", err)
	}
	e.output = output

	session, err := ort.NewAdvancedSession(e.cfg.ModelPath,
		e.order, []string{outputs[0].Name},
		values, []ort.Value{e.output}, nil)
	if err != nil {
		e.destroyLocked()
		return fmt.Errorf("onnx create session: %w", err)
	}
	e.session = session
	e.inited = true
	return nil
}

func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("embedding input is empty")
	}
	if err := e.initOnce(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids, mask := e.tokenizer.Encode(text)

	// The session owns fixed tensors, so one run at a time.
	e.mu.Lock()
	for name, tensor := range e.inputs {
		data := tensor.GetData()
		switch name {
		case "input_ids":
			copy(data, ids)
		case "attention_mask":
			copy(data, mask)
		default:
			// token_type_ids and any other auxiliary input stay zero for a
			// single-segment encoder.
			for i := range data {
				data[i] = 0
			}
		}
	}
	if err := e.session.Run(); err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("onnx run: %w", err)
	}
	hidden := make([]float32, len(e.output.GetData()))
	copy(hidden, e.output.GetData())
	e.mu.Unlock()

	return l2Normalize(meanPool(hidden, mask, e.cfg.Dimension)), nil
}

func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

// Close releases the onnxruntime session and tensors. The embedder cannot be
// used afterwards.
func (e *ONNXEmbedder) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited {
		return
	}
	e.session.Destroy()
	e.destroyLocked()
	e.inited = false
}

func (e *ONNXEmbedder) destroyLocked() {
	for _, tensor := range e.inputs {
		tensor.Destroy()
	}
	e.inputs = nil
	e.order = nil
	if e.output != nil {
		e.output.Destroy()
		e.output = nil
	}
}

// meanPool averages the token vectors of the last hidden state, weighted by
// the attention mask so padding does not dilute the result.
func meanPool(hidden []float32, mask []int64, dim int) []float32 {
	pooled := make([]float32, dim)
	var count float32
	for pos := 0; pos*dim+dim <= len(hidden); pos++ {
		if pos >= len(mask) || mask[pos] == 0 {
			continue
		}
		base := pos * dim
		for i := 0; i < dim; i++ {
			pooled[i] += hidden[base+i]
		}
		count++
	}
	if count > 0 {
		for i := range pooled {
			pooled[i] /= count
		}
	}
	return pooled
}

func l2Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

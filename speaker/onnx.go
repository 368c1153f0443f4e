package speaker

import (
	"fmt"
	"log"
	"math"
	"os"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	onnxInitMu      sync.Mutex
	onnxInitialized bool
)

// OnnxEmbedder извлекает эмбеддинг спикера предобученной ONNX моделью
// (WeSpeaker ResNet34 и совместимые: вход [1, T, 80] log-mel, выход
// вектор фиксированной размерности). Загружается один раз и
// переиспользуется - создание сессии дорогое.
type OnnxEmbedder struct {
	session  *ort.DynamicAdvancedSession
	frontend *melFrontend
	mu       sync.Mutex
}

// NewOnnxEmbedder загружает модель с диска и создаёт сессию инференса
// на лучшем доступном устройстве (CoreML на Apple Silicon, иначе CPU).
func NewOnnxEmbedder(modelPath string) (*OnnxEmbedder, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}

	if err := initONNXRuntime(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}

	inputInfo, outputInfo, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect model: %w", err)
	}
	inputNames := make([]string, len(inputInfo))
	for i, info := range inputInfo {
		inputNames[i] = info.Name
	}
	outputNames := make([]string, len(outputInfo))
	for i, info := range outputInfo {
		outputNames[i] = info.Name
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if useCoreML() {
		if err := options.AppendExecutionProviderCoreML(0); err != nil {
			log.Printf("[Speaker] CoreML unavailable, falling back to CPU: %v", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	log.Printf("[Speaker] Embedding model loaded: %s (inputs=%v outputs=%v)",
		modelPath, inputNames, outputNames)

	return &OnnxEmbedder{
		session:  session,
		frontend: newMelFrontend(),
	}, nil
}

// EmbeddingFromAudio выполняет один прямой проход модели по буферу.
// Результат нормализован к единичной L2-норме.
func (e *OnnxEmbedder) EmbeddingFromAudio(samples []float32, sampleRate int) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil, fmt.Errorf("embedder is closed")
	}
	if sampleRate != melSampleRate {
		return nil, fmt.Errorf("unsupported sample rate %d, want %d", sampleRate, melSampleRate)
	}
	if len(samples) < melSampleRate/10 {
		return nil, fmt.Errorf("audio too short: %d samples", len(samples))
	}

	features, numFrames := e.frontend.compute(samples)

	inputShape := ort.NewShape(1, int64(numFrames), int64(melChannels))
	inputTensor, err := ort.NewTensor(inputShape, features)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	outputTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type")
	}

	// Копируем: данные тензора уничтожаются вместе с ним
	embedding := make([]float32, len(outputTensor.GetData()))
	copy(embedding, outputTensor.GetData())

	return NormalizeVector(embedding), nil
}

// Close освобождает сессию инференса
func (e *OnnxEmbedder) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
}

// NormalizeVector приводит вектор к единичной L2-норме.
// Вектор с нулевой нормой возвращается как есть.
func NormalizeVector(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm < 1e-6 {
		return v
	}

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// useCoreML определяет, доступно ли GPU-ускорение через CoreML
func useCoreML() bool {
	return runtime.GOOS == "darwin" && runtime.GOARCH == "arm64"
}

// initONNXRuntime инициализирует окружение ONNX Runtime (один раз на процесс)
func initONNXRuntime() error {
	onnxInitMu.Lock()
	defer onnxInitMu.Unlock()

	if onnxInitialized {
		return nil
	}

	if libPath := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"); libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return err
	}

	onnxInitialized = true
	return nil
}

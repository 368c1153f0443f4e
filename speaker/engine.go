package speaker

import (
	"errors"
	"log"
	"sync"

	"talkmeter/dsp"
	"talkmeter/voiceprint"
)

// EmbedderFactory создаёт эмбеддер по требованию. Вызывается лениво:
// конструирование дорогое, результат кэшируется движком.
type EmbedderFactory func() (Embedder, error)

// Engine - политика матчинга на одну сессию. Владеет активной парой
// профилей (статистический + эмбеддинг, каждый независимо опционален)
// и максимум одним живым эмбеддером. Предпочитает нейросетевой путь,
// при его недоступности деградирует на статистический.
//
// Профили заменяются атомарно целиком: конкурентный Match никогда не
// видит частично обновлённый профиль.
type Engine struct {
	mu sync.Mutex

	cfg     Config
	factory EmbedderFactory

	profile  *voiceprint.VoiceProfile
	enrolled []float32

	embedder     Embedder // кэш на время жизни процесса
	embeddingOK  bool     // false после фатальной ошибки конфигурации
	useEmbedding bool
}

// NewEngine создаёт движок матчинга.
// factory может быть nil - тогда доступен только статистический путь.
func NewEngine(cfg Config, factory EmbedderFactory) *Engine {
	cfg.SimilarityThreshold = ClampThreshold(cfg.SimilarityThreshold)
	return &Engine{
		cfg:          cfg,
		factory:      factory,
		embeddingOK:  factory != nil,
		useEmbedding: factory != nil,
	}
}

// SetProfile заменяет статистический профиль (атомарная подмена)
func (e *Engine) SetProfile(p *voiceprint.VoiceProfile) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profile = p
}

// SetEnrollment заменяет калибровочный эмбеддинг (атомарная подмена)
func (e *Engine) SetEnrollment(embedding []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enrolled = embedding
}

// SetEmbeddingEnabled включает или выключает нейросетевой путь
func (e *Engine) SetEmbeddingEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.useEmbedding = enabled
}

// HasProfile сообщает, есть ли хоть один профиль для матчинга
func (e *Engine) HasProfile() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profile != nil || len(e.enrolled) > 0
}

// Match сравнивает сегмент с активным профилем.
// Никогда не возвращает ошибку и не роняет процесс: все сбои
// разрешаются в безопасный не-матч или откат на статистический путь.
func (e *Engine) Match(segment []float32, sampleRate int) voiceprint.MatchResult {
	// Гейт тишины до выбора пути
	if dsp.RMS(segment) < voiceprint.SilenceRMS {
		return voiceprint.MatchResult{Method: voiceprint.MatchMethodNone}
	}

	e.mu.Lock()
	profile := e.profile
	enrolled := e.enrolled
	threshold := e.cfg.SimilarityThreshold
	tryEmbedding := e.useEmbedding && e.embeddingOK && len(enrolled) > 0
	e.mu.Unlock()

	if tryEmbedding {
		if result, ok := e.matchEmbedding(segment, sampleRate, enrolled, threshold); ok {
			return result
		}
		// Нейросетевой путь не сработал - падаем на статистический
	}

	if profile != nil {
		return voiceprint.MatchVoice(segment, profile, sampleRate)
	}

	return voiceprint.MatchResult{Method: voiceprint.MatchMethodNone}
}

// matchEmbedding пробует нейросетевой путь. Возвращает ok=false если
// путь недоступен или инференс упал на этом вызове.
func (e *Engine) matchEmbedding(segment []float32, sampleRate int, enrolled []float32, threshold float64) (voiceprint.MatchResult, bool) {
	embedder, err := e.getEmbedder()
	if err != nil {
		return voiceprint.MatchResult{}, false
	}

	result, err := MatchEmbedding(embedder, segment, sampleRate, enrolled, threshold)
	if err != nil {
		// Транзиентный сбой инференса: сбрасываем кэш, чтобы следующий
		// вызов пересоздал эмбеддер, а не отключил фичу навсегда
		log.Printf("[Speaker] Embedding match failed, falling back to GMM: %v", err)
		e.invalidateEmbedder()
		return voiceprint.MatchResult{}, false
	}

	return result, true
}

// getEmbedder возвращает кэшированный эмбеддер, создавая его при
// первом обращении
func (e *Engine) getEmbedder() (Embedder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.embedder != nil {
		return e.embedder, nil
	}
	if e.factory == nil {
		return nil, errNoFactory
	}

	embedder, err := e.factory()
	if err != nil {
		// Ошибка конфигурации (невалидный токен, закрытая модель) фатальна
		// для нейросетевого пути - не ретраим её на каждом чанке
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) {
			e.embeddingOK = false
		}
		log.Printf("[Speaker] Embedder construction failed: %v", err)
		return nil, err
	}

	e.embedder = embedder
	return embedder, nil
}

// invalidateEmbedder сбрасывает кэшированный эмбеддер
func (e *Engine) invalidateEmbedder() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if closer, ok := e.embedder.(interface{ Close() }); ok && closer != nil {
		closer.Close()
	}
	e.embedder = nil
}

// Close освобождает кэшированный эмбеддер
func (e *Engine) Close() {
	e.invalidateEmbedder()
}

var errNoFactory = &ConfigError{
	Reason: "embedding matching is not configured",
	Err:    nil,
}

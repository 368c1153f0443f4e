// Package voiceprint реализует голосовой профиль пользователя:
// статистическую модель (GMM по MFCC признакам), упрощённый косинусный
// матчер и сериализацию профиля на диск.
package voiceprint

import "talkmeter/gmm"

// Версии форматов хранения (для обнаружения несовместимых файлов)
const (
	CurrentProfileVersion   = 1
	CurrentEmbeddingVersion = 1
)

// Пороги, калиброванные по путям скоринга. Значения различаются намеренно:
// GMM-путь работает и на тихих bluetooth-микрофонах, упрощённый косинусный
// матчер требует более громкого сигнала.
const (
	// SilenceRMS гейт тишины GMM-пути
	SilenceRMS = 0.0005

	// LegacySilenceRMS гейт тишины упрощённого косинусного матчера
	LegacySilenceRMS = 0.01

	// minMatchFrames минимум фреймов для скоринга сегмента
	minMatchFrames = 5

	// defaultThresholdScore безопасный порог для профилей,
	// сохранённых без threshold_score
	defaultThresholdScore = -20.0
)

// Методы, которыми получен результат матчинга (для диагностики)
const (
	MatchMethodNone      = "none"
	MatchMethodGMM       = "gmm"
	MatchMethodEmbedding = "embedding"
	MatchMethodLegacy    = "legacy-cosine"
)

// VoiceProfile статистический профиль голоса: обученная смесь Гауссиан
// и порог принятия решения, выведенный из лог-правдоподобий обучающих данных.
// После создания профиль только читается; перекалибровка заменяет его целиком.
type VoiceProfile struct {
	Mixture        *gmm.Model
	ThresholdScore float64
}

// MatchResult результат сравнения сегмента с профилем
type MatchResult struct {
	IsMatch    bool    `json:"isMatch"`
	Confidence float64 `json:"confidence"` // 0.0 - 1.0
	Method     string  `json:"method"`     // каким путём получен результат
}

// Package gmm реализует гауссову смесь с диагональной ковариацией.
// Диагональная ковариация выбрана намеренно: профиль обучается на коротком
// (~10 с) образце, и полная ковариационная матрица на таком объёме данных
// вырождается.
package gmm

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

const (
	// varianceFloor нижняя граница дисперсии компоненты при обучении
	varianceFloor = 1e-6

	// precisionGuard защита от деления на ноль при вычислении точностей
	precisionGuard = 1e-10

	log2Pi = 1.8378770664093453 // math.Log(2 * math.Pi)
)

// Model гауссова смесь с диагональной ковариацией.
// После создания модель неизменяема и безопасна для конкурентного чтения.
type Model struct {
	Weights   []float64   // веса компонент, сумма = 1
	Means     [][]float64 // [k][dim] центры компонент
	Variances [][]float64 // [k][dim] диагональные дисперсии

	// Производные величины, вычисляются один раз
	precisions [][]float64 // 1 / max(variance, precisionGuard)
	logNorm    []float64   // log(w) - 0.5 * Σ log(2π σ²) по каждой компоненте
}

// New создаёт модель из готовых параметров (например, после загрузки профиля)
// и предвычисляет точности. Возвращает ошибку при несогласованных размерах.
func New(weights []float64, means, variances [][]float64) (*Model, error) {
	k := len(weights)
	if k == 0 {
		return nil, fmt.Errorf("gmm: no components")
	}
	if len(means) != k || len(variances) != k {
		return nil, fmt.Errorf("gmm: component count mismatch: weights=%d means=%d variances=%d",
			k, len(means), len(variances))
	}
	dim := len(means[0])
	if dim == 0 {
		return nil, fmt.Errorf("gmm: zero-dimensional means")
	}
	for c := 0; c < k; c++ {
		if len(means[c]) != dim || len(variances[c]) != dim {
			return nil, fmt.Errorf("gmm: dimension mismatch in component %d", c)
		}
	}

	m := &Model{
		Weights:   weights,
		Means:     means,
		Variances: variances,
	}
	m.precompute()
	return m, nil
}

// NumComponents возвращает количество компонент смеси
func (m *Model) NumComponents() int {
	return len(m.Weights)
}

// Dim возвращает размерность пространства признаков
func (m *Model) Dim() int {
	return len(m.Means[0])
}

// precompute вычисляет точности и лог-нормировочные константы
func (m *Model) precompute() {
	k := len(m.Weights)
	m.precisions = make([][]float64, k)
	m.logNorm = make([]float64, k)

	for c := 0; c < k; c++ {
		dim := len(m.Variances[c])
		prec := make([]float64, dim)
		logDet := 0.0
		for d := 0; d < dim; d++ {
			v := m.Variances[c][d]
			if v < precisionGuard {
				v = precisionGuard
			}
			prec[d] = 1.0 / v
			logDet += math.Log(v)
		}
		m.precisions[c] = prec

		w := m.Weights[c]
		if w < precisionGuard {
			w = precisionGuard
		}
		m.logNorm[c] = math.Log(w) - 0.5*(float64(dim)*log2Pi+logDet)
	}
}

// LogLikelihood возвращает логарифм плотности вероятности одного вектора
func (m *Model) LogLikelihood(x []float64) float64 {
	k := len(m.Weights)
	terms := make([]float64, k)
	for c := 0; c < k; c++ {
		mahal := 0.0
		mean := m.Means[c]
		prec := m.precisions[c]
		for d := range x {
			diff := x[d] - mean[d]
			mahal += diff * diff * prec[d]
		}
		terms[c] = m.logNorm[c] - 0.5*mahal
	}
	return floats.LogSumExp(terms)
}

// ScoreSamples возвращает лог-правдоподобие каждого вектора выборки
func (m *Model) ScoreSamples(data [][]float64) []float64 {
	scores := make([]float64, len(data))
	for i, x := range data {
		scores[i] = m.LogLikelihood(x)
	}
	return scores
}

// MeanLogLikelihood возвращает среднее лог-правдоподобие выборки
func (m *Model) MeanLogLikelihood(data [][]float64) float64 {
	if len(data) == 0 {
		return math.Inf(-1)
	}
	sum := 0.0
	for _, x := range data {
		sum += m.LogLikelihood(x)
	}
	return sum / float64(len(data))
}

// FitOptions параметры обучения
type FitOptions struct {
	NumInit int     // количество рестартов EM (берётся лучший)
	MaxIter int     // максимум итераций EM на рестарт
	Tol     float64 // порог сходимости по среднему лог-правдоподобию
	Seed    int64   // зерно генератора (обучение детерминировано)
}

// DefaultFitOptions воспроизводит параметры, на которых был откалиброван
// порог профиля: 3 рестарта, фиксированное зерно.
func DefaultFitOptions() FitOptions {
	return FitOptions{
		NumInit: 3,
		MaxIter: 100,
		Tol:     1e-3,
		Seed:    42,
	}
}

// Fit обучает смесь из k компонент на данных [n][dim].
// Инициализация - k-means, затем EM. Из NumInit рестартов возвращается
// модель с наилучшим средним лог-правдоподобием.
func Fit(data [][]float64, k int, opts FitOptions) (*Model, error) {
	n := len(data)
	if n == 0 {
		return nil, fmt.Errorf("gmm: no training data")
	}
	if k < 1 {
		return nil, fmt.Errorf("gmm: invalid component count %d", k)
	}
	if k > n {
		k = n
	}
	if opts.NumInit < 1 {
		opts.NumInit = 1
	}

	var best *Model
	bestScore := math.Inf(-1)

	for init := 0; init < opts.NumInit; init++ {
		rng := rand.New(rand.NewSource(opts.Seed + int64(init)))
		m := emFit(data, k, rng, opts.MaxIter, opts.Tol)
		if m == nil {
			continue
		}
		score := m.MeanLogLikelihood(data)
		if score > bestScore {
			bestScore = score
			best = m
		}
	}

	if best == nil {
		return nil, fmt.Errorf("gmm: fitting failed for k=%d on %d frames", k, n)
	}
	return best, nil
}

// emFit выполняет один прогон k-means инициализации + EM
func emFit(data [][]float64, k int, rng *rand.Rand, maxIter int, tol float64) *Model {
	dim := len(data[0])
	n := len(data)

	means := kmeansInit(data, k, rng)

	// Начальные веса и дисперсии из жёстких назначений k-means
	weights := make([]float64, k)
	variances := make([][]float64, k)
	counts := make([]int, k)
	assign := make([]int, n)
	for i, x := range data {
		assign[i] = nearestCenter(x, means)
		counts[assign[i]]++
	}
	for c := 0; c < k; c++ {
		variances[c] = make([]float64, dim)
		weights[c] = float64(counts[c]) / float64(n)
		if weights[c] == 0 {
			weights[c] = 1.0 / float64(n)
		}
	}
	for i, x := range data {
		c := assign[i]
		for d := 0; d < dim; d++ {
			diff := x[d] - means[c][d]
			variances[c][d] += diff * diff
		}
	}
	for c := 0; c < k; c++ {
		div := float64(counts[c])
		if div < 1 {
			div = 1
		}
		for d := 0; d < dim; d++ {
			variances[c][d] /= div
			if variances[c][d] < varianceFloor {
				variances[c][d] = varianceFloor
			}
		}
	}
	normalizeWeights(weights)

	model, err := New(weights, means, variances)
	if err != nil {
		return nil
	}

	// EM итерации
	resp := make([][]float64, n)
	for i := range resp {
		resp[i] = make([]float64, k)
	}
	prevScore := math.Inf(-1)

	for iter := 0; iter < maxIter; iter++ {
		// E-шаг: ответственности через log-sum-exp
		terms := make([]float64, k)
		total := 0.0
		for i, x := range data {
			for c := 0; c < k; c++ {
				mahal := 0.0
				for d := range x {
					diff := x[d] - model.Means[c][d]
					mahal += diff * diff * model.precisions[c][d]
				}
				terms[c] = model.logNorm[c] - 0.5*mahal
			}
			lse := floats.LogSumExp(terms)
			total += lse
			for c := 0; c < k; c++ {
				resp[i][c] = math.Exp(terms[c] - lse)
			}
		}
		score := total / float64(n)

		// M-шаг
		newWeights := make([]float64, k)
		newMeans := make([][]float64, k)
		newVars := make([][]float64, k)
		for c := 0; c < k; c++ {
			newMeans[c] = make([]float64, dim)
			newVars[c] = make([]float64, dim)
		}
		for i, x := range data {
			for c := 0; c < k; c++ {
				r := resp[i][c]
				newWeights[c] += r
				for d := 0; d < dim; d++ {
					newMeans[c][d] += r * x[d]
				}
			}
		}
		for c := 0; c < k; c++ {
			nc := newWeights[c]
			if nc < precisionGuard {
				nc = precisionGuard
			}
			for d := 0; d < dim; d++ {
				newMeans[c][d] /= nc
			}
		}
		for i, x := range data {
			for c := 0; c < k; c++ {
				r := resp[i][c]
				for d := 0; d < dim; d++ {
					diff := x[d] - newMeans[c][d]
					newVars[c][d] += r * diff * diff
				}
			}
		}
		for c := 0; c < k; c++ {
			nc := newWeights[c]
			if nc < precisionGuard {
				nc = precisionGuard
			}
			for d := 0; d < dim; d++ {
				newVars[c][d] /= nc
				if newVars[c][d] < varianceFloor {
					newVars[c][d] = varianceFloor
				}
			}
			newWeights[c] /= float64(n)
		}
		normalizeWeights(newWeights)

		model.Weights = newWeights
		model.Means = newMeans
		model.Variances = newVars
		model.precompute()

		if score-prevScore < tol && iter > 0 {
			break
		}
		prevScore = score
	}

	return model
}

// kmeansInit инициализирует центры: случайные различные точки данных,
// затем несколько итераций Ллойда
func kmeansInit(data [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(data)
	dim := len(data[0])

	perm := rng.Perm(n)
	means := make([][]float64, k)
	for c := 0; c < k; c++ {
		means[c] = make([]float64, dim)
		copy(means[c], data[perm[c%n]])
	}

	assign := make([]int, n)
	for iter := 0; iter < 10; iter++ {
		changed := false
		for i, x := range data {
			c := nearestCenter(x, means)
			if assign[i] != c {
				assign[i] = c
				changed = true
			}
		}

		counts := make([]int, k)
		sums := make([][]float64, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, x := range data {
			c := assign[i]
			counts[c]++
			floats.Add(sums[c], x)
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// Пустой кластер пересаживаем на случайную точку
				copy(means[c], data[rng.Intn(n)])
				continue
			}
			for d := 0; d < dim; d++ {
				means[c][d] = sums[c][d] / float64(counts[c])
			}
		}

		if !changed && iter > 0 {
			break
		}
	}

	return means
}

// nearestCenter возвращает индекс ближайшего центра по евклидову расстоянию
func nearestCenter(x []float64, centers [][]float64) int {
	best := 0
	bestDist := math.Inf(1)
	for c, center := range centers {
		dist := 0.0
		for d := range x {
			diff := x[d] - center[d]
			dist += diff * diff
		}
		if dist < bestDist {
			bestDist = dist
			best = c
		}
	}
	return best
}

func normalizeWeights(w []float64) {
	sum := floats.Sum(w)
	if sum <= 0 {
		for i := range w {
			w[i] = 1.0 / float64(len(w))
		}
		return
	}
	floats.Scale(1.0/sum, w)
}

// Package probability implements Probability Bay: a fair classical die and a
// "quantum" die whose outcome weights follow an interference pattern.
package probability

import (
	"math/rand"
	"strconv"

	"gonum.org/v1/gonum/stat"
)

const (
	FaceCount = 6
	RollCount = 50
)

// Die rolls faces 1..FaceCount.
type Die interface {
	Roll() int
}

// ClassicalDie is a fair die.
type ClassicalDie struct {
	rng *rand.Rand
}

func NewClassicalDie(rng *rand.Rand) *ClassicalDie {
	return &ClassicalDie{rng: rng}
}

func (d *ClassicalDie) Roll() int {
	return d.rng.Intn(FaceCount) + 1
}

// QuantumDie is biased by an interference pattern. The pattern belongs to
// the die and only changes through Reshuffle.
type QuantumDie struct {
	rng     *rand.Rand
	weights []float64
}

// NewQuantumDie draws an initial interference pattern.
func NewQuantumDie(rng *rand.Rand) *QuantumDie {
	d := &QuantumDie{rng: rng}
	d.Reshuffle()
	return d
}

// NewQuantumDieWithWeights uses a fixed pattern; weights are normalised.
func NewQuantumDieWithWeights(rng *rand.Rand, weights []float64) *QuantumDie {
	return &QuantumDie{rng: rng, weights: normalise(append([]float64(nil), weights...))}
}

// Reshuffle draws a new pattern: random base weights, one strongly boosted
// face and a secondary peak two to four faces further on.
func (d *QuantumDie) Reshuffle() {
	w := make([]float64, FaceCount)
	for i := range w {
		w[i] = 0.5 + d.rng.Float64()*1.5
	}
	boost := d.rng.Intn(FaceCount)
	w[boost] *= 2 + d.rng.Float64()

	secondary := (boost + 2 + d.rng.Intn(3)) % FaceCount
	w[secondary] *= 1.3 + d.rng.Float64()*0.5

	d.weights = normalise(w)
}

// Weights returns a copy of the current probabilities.
func (d *QuantumDie) Weights() []float64 {
	return append([]float64(nil), d.weights...)
}

func (d *QuantumDie) Roll() int {
	r := d.rng.Float64()
	sum := 0.0
	for i, w := range d.weights {
		sum += w
		if r < sum {
			return i + 1
		}
	}
	return FaceCount
}

func normalise(w []float64) []float64 {
	total := 0.0
	for _, v := range w {
		total += v
	}
	if total == 0 {
		for i := range w {
			w[i] = 1.0 / float64(len(w))
		}
		return w
	}
	for i := range w {
		w[i] /= total
	}
	return w
}

// Measure rolls the die n times.
func Measure(d Die, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = d.Roll()
	}
	return out
}

// Histogram counts each face; index 0 holds face 1.
func Histogram(rolls []int) []int {
	counts := make([]int, FaceCount)
	for _, r := range rolls {
		if r >= 1 && r <= FaceCount {
			counts[r-1]++
		}
	}
	return counts
}

// ExpectedLockerCode is the most frequent face, ties going to the smallest.
// It is empty when nothing was measured.
func ExpectedLockerCode(histogram []int) string {
	best, max := -1, 0
	for i, c := range histogram {
		if c > max {
			best, max = i, c
		}
	}
	if best < 0 {
		return ""
	}
	return strconv.Itoa(best + 1)
}

// Summary describes a measurement run.
type Summary struct {
	Count     int       `json:"count"`
	Histogram []int     `json:"histogram"`
	Mean      float64   `json:"mean"`
	StdDev    float64   `json:"std_dev"`
	ChiSquare float64   `json:"chi_square"`
	Deviation []float64 `json:"deviation"` // observed minus uniform share, in percent
}

// Summarize computes the statistics shown next to the histogram. ChiSquare
// compares the counts against a fair die.
func Summarize(rolls []int) Summary {
	hist := Histogram(rolls)
	s := Summary{Count: len(rolls), Histogram: hist, Deviation: make([]float64, FaceCount)}
	if len(rolls) == 0 {
		return s
	}

	values := make([]float64, len(rolls))
	for i, r := range rolls {
		values[i] = float64(r)
	}
	s.Mean, s.StdDev = stat.MeanStdDev(values, nil)

	observed := make([]float64, FaceCount)
	expected := make([]float64, FaceCount)
	uniform := float64(len(rolls)) / FaceCount
	for i, c := range hist {
		observed[i] = float64(c)
		expected[i] = uniform
		s.Deviation[i] = (float64(c)/float64(len(rolls)) - 1.0/FaceCount) * 100
	}
	s.ChiSquare = stat.ChiSquare(observed, expected)
	return s
}

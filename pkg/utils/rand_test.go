package utils

import (
	"math"
	"sort"
	"testing"
)

func TestNewRandSource(t *testing.T) {
	rng1 := NewRandSource(12345)
	if rng1 == nil {
		t.Fatal("Expected RandSource to be created")
	}
	if rng1.Seed() != 12345 {
		t.Errorf("Expected seed 12345, got %d", rng1.Seed())
	}

	// Zero seed falls back to the clock
	rng2 := NewRandSource(0)
	if rng2.Seed() == 0 {
		t.Error("Expected zero seed to be replaced by a time-based seed")
	}
}

func TestRandSourceDeterministic(t *testing.T) {
	a := NewRandSource(7)
	b := NewRandSource(7)
	for i := 0; i < 50; i++ {
		if a.Intn(1000) != b.Intn(1000) {
			t.Fatal("Sources with equal seeds diverged")
		}
	}
}

func TestRandSourceNormFloat64(t *testing.T) {
	rng := NewRandSource(12345)
	samples := make([]float64, 2000)
	for i := range samples {
		samples[i] = rng.NormFloat64(10, 2)
	}

	if m := Mean(samples); math.Abs(m-10) > 0.5 {
		t.Errorf("NormFloat64 mean %f not close to expected 10", m)
	}
	if s := StdDev(samples); math.Abs(s-2) > 0.5 {
		t.Errorf("NormFloat64 stddev %f not close to expected 2", s)
	}
}

func TestRandSourceBernoulliBool(t *testing.T) {
	rng := NewRandSource(12345)
	p := 0.7

	trueCount := 0
	trials := 2000
	for i := 0; i < trials; i++ {
		if rng.BernoulliBool(p) {
			trueCount++
		}
	}

	proportion := float64(trueCount) / float64(trials)
	if math.Abs(proportion-p) > 0.05 {
		t.Errorf("BernoulliBool proportion %f not close to expected %f", proportion, p)
	}
}

func TestRandSourceCoin(t *testing.T) {
	rng := NewRandSource(99)
	ones := 0
	for i := 0; i < 2000; i++ {
		c := rng.Coin()
		if c > 1 {
			t.Fatalf("Coin returned %d", c)
		}
		ones += int(c)
	}
	if ones < 850 || ones > 1150 {
		t.Errorf("Coin produced %d ones out of 2000", ones)
	}
}

func TestRandSourceSample(t *testing.T) {
	rng := NewRandSource(3)
	values := []int{10, 11, 12, 13, 14, 15}
	orig := append([]int(nil), values...)

	got := rng.Sample(values, 4)
	if len(got) != 4 {
		t.Fatalf("Expected 4 samples, got %d", len(got))
	}
	seen := make(map[int]bool)
	for _, v := range got {
		if v < 10 || v > 15 {
			t.Errorf("Sample returned foreign value %d", v)
		}
		if seen[v] {
			t.Errorf("Sample returned duplicate %d", v)
		}
		seen[v] = true
	}
	for i := range values {
		if values[i] != orig[i] {
			t.Fatal("Sample mutated its input")
		}
	}

	if got := rng.Sample(values, 10); len(got) != len(values) {
		t.Errorf("Sample should clamp k, got %d values", len(got))
	}
	if got := rng.Sample(values, 0); got != nil {
		t.Errorf("Sample with k=0 should be nil, got %v", got)
	}
}

func TestRandSourceSampleUniform(t *testing.T) {
	rng := NewRandSource(11)
	values := []int{0, 1, 2, 3}
	counts := make([]int, 4)
	for i := 0; i < 4000; i++ {
		counts[rng.Sample(values, 1)[0]]++
	}
	for v, c := range counts {
		if c < 850 || c > 1150 {
			t.Errorf("value %d drawn %d times out of 4000", v, c)
		}
	}
}

func TestRandSourceSplit(t *testing.T) {
	rng := NewRandSource(5)
	values := []int{1, 2, 3, 4, 5, 6, 7}

	picked, rest := rng.Split(values, 3)
	if len(picked) != 3 || len(rest) != 4 {
		t.Fatalf("Split sizes = %d/%d, expected 3/4", len(picked), len(rest))
	}
	all := append(append([]int(nil), picked...), rest...)
	sort.Ints(all)
	for i, v := range all {
		if v != values[i] {
			t.Fatalf("Split lost or duplicated values: %v", all)
		}
	}
}

func TestDeriveSeed(t *testing.T) {
	seen := make(map[int64]bool)
	for stream := 0; stream < 100; stream++ {
		s := DeriveSeed(42, stream)
		if s <= 0 {
			t.Errorf("DeriveSeed(42, %d) = %d, expected positive", stream, s)
		}
		if seen[s] {
			t.Errorf("DeriveSeed collision at stream %d", stream)
		}
		seen[s] = true
	}
	if DeriveSeed(42, 3) != DeriveSeed(42, 3) {
		t.Error("DeriveSeed is not deterministic")
	}

	parent := NewRandSource(42)
	if parent.Fork(3).Seed() != DeriveSeed(42, 3) {
		t.Error("Fork should seed from DeriveSeed")
	}
}

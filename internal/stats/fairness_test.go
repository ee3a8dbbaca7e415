package stats

import "testing"

func TestMeasureEvenDistribution(t *testing.T) {
	f := Measure([]Sample{
		{Name: "a", Ticks: 100},
		{Name: "b", Ticks: 100},
		{Name: "c", Ticks: 100},
	})
	if f.CV != 0 {
		t.Fatalf("expected CV 0 for identical samples, got %v", f.CV)
	}
}

func TestMeasureSkewedDistribution(t *testing.T) {
	f := Measure([]Sample{
		{Name: "a", Ticks: 10},
		{Name: "b", Ticks: 1000},
	})
	if f.CV <= 0 {
		t.Fatalf("expected positive CV for skewed samples, got %v", f.CV)
	}
}

func TestMeasureSingleSample(t *testing.T) {
	f := Measure([]Sample{{Name: "a", Ticks: 42}})
	if f != (Fairness{}) {
		t.Fatalf("expected zero value for a single sample, got %+v", f)
	}
}

package results

import (
	"math"
	"testing"

	"github.com/GoSim-25-26J-441/egosim/pkg/models"
)

func TestSummarize(t *testing.T) {
	b := &models.ResultBundle{
		Name:   "ec",
		Design: models.DesignEgoCluster,
		Model:  "linear",
		Est:    []float64{1, 2, 3},
		Tau:    2,
	}
	s := Summarize(b)

	if s.N != 3 || s.Mean != 2 || s.Bias != 0 {
		t.Errorf("unexpected summary %+v", s)
	}
	if math.Abs(s.StdDev-1) > 1e-12 {
		t.Errorf("Expected std dev 1, got %v", s.StdDev)
	}
	if math.Abs(s.StdErr-1/math.Sqrt(3)) > 1e-12 {
		t.Errorf("Expected std err 1/sqrt(3), got %v", s.StdErr)
	}
	if math.Abs(s.RMSE-math.Sqrt(2.0/3)) > 1e-12 {
		t.Errorf("Expected RMSE sqrt(2/3), got %v", s.RMSE)
	}
}

func TestSummarizeBias(t *testing.T) {
	s := Summarize(&models.ResultBundle{Est: []float64{1.5, 1.5}, Tau: 2})
	if s.Bias != -0.5 {
		t.Errorf("Expected bias -0.5, got %v", s.Bias)
	}
	if s.RMSE != 0.5 {
		t.Errorf("Expected RMSE 0.5, got %v", s.RMSE)
	}
	if s.StdDev != 0 {
		t.Errorf("Expected std dev 0, got %v", s.StdDev)
	}
}

func TestMerge(t *testing.T) {
	bundles := []*models.ResultBundle{
		{Name: "egp", Model: "linear", Est: []float64{1}, Tau: 2},
		{Name: "ec", Model: "linear", Est: []float64{1, 2}, Tau: 2},
		{Name: "ec", Model: "convex", Est: []float64{1.5}, Tau: 1.95},
		{Name: "ec", Model: "linear", Est: []float64{3}, Tau: 2},
	}
	got := Merge(bundles)
	if len(got) != 3 {
		t.Fatalf("Expected 3 groups, got %d", len(got))
	}
	order := []struct{ name, model string }{{"ec", "convex"}, {"ec", "linear"}, {"egp", "linear"}}
	for i, o := range order {
		if got[i].Name != o.name || got[i].Model != o.model {
			t.Errorf("group %d is %s/%s, expected %s/%s", i, got[i].Name, got[i].Model, o.name, o.model)
		}
	}
	if got[1].N != 3 || got[1].Mean != 2 {
		t.Errorf("Expected pooled ec/linear with 3 estimates and mean 2, got %+v", got[1])
	}
	if got[0].Tau != 1.95 {
		t.Errorf("Expected convex tau 1.95, got %v", got[0].Tau)
	}
}

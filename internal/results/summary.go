package results

import (
	"sort"

	"github.com/GoSim-25-26J-441/egosim/pkg/models"
	"github.com/GoSim-25-26J-441/egosim/pkg/utils"
)

// Summarize describes the estimates of one bundle against its true effect
func Summarize(b *models.ResultBundle) models.Summary {
	return summarize(b.Name, b.Design, b.Model, b.Est, b.Tau)
}

func summarize(name string, design models.DesignKind, model string, est []float64, tau float64) models.Summary {
	mean := utils.Mean(est)
	return models.Summary{
		Name:   name,
		Design: design,
		Model:  model,
		N:      len(est),
		Tau:    tau,
		Mean:   mean,
		StdDev: utils.StdDev(est),
		StdErr: utils.StdErr(est),
		Bias:   mean - tau,
		RMSE:   utils.RMSE(est, tau),
	}
}

// Merge pools the estimates of bundles sharing an experiment name and model
// and summarizes each group. Groups are ordered by name, then model.
func Merge(bundles []*models.ResultBundle) []models.Summary {
	type key struct{ name, model string }
	type group struct {
		design models.DesignKind
		tau    float64
		est    []float64
	}

	groups := make(map[key]*group)
	var keys []key
	for _, b := range bundles {
		k := key{b.Name, b.Model}
		g, ok := groups[k]
		if !ok {
			g = &group{design: b.Design, tau: b.Tau}
			groups[k] = g
			keys = append(keys, k)
		}
		g.est = append(g.est, b.Est...)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].name != keys[j].name {
			return keys[i].name < keys[j].name
		}
		return keys[i].model < keys[j].model
	})

	out := make([]models.Summary, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		out = append(out, summarize(k.name, g.design, k.model, g.est, g.tau))
	}
	return out
}

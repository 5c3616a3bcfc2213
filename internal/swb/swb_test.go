package swb

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func synthWeather(n int, seed int64) (pet, precip, tavg []float64) {
	rng := rand.New(rand.NewSource(seed))
	pet, precip, tavg = make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		season := math.Sin(2 * math.Pi * float64(i) / 365)
		tavg[i] = 6 + 14*season + rng.NormFloat64()*3
		pet[i] = math.Max(0, 1.5+2*season+rng.Float64())
		if rng.Float64() < 0.35 {
			precip[i] = rng.ExpFloat64() * 8
		}
	}
	return pet, precip, tavg
}

func TestWaterBalanceIdentity(t *testing.T) {
	pet, precip, tavg := synthWeather(3*365, 42)

	tests := []struct {
		name string
		p    Params
	}{
		{name: "typical", p: Params{Tmelt: 0, CM: 4, Cru: 0.2, RASmax: 80}},
		{name: "no storage", p: Params{Tmelt: 0, CM: 4, Cru: 0.35, RASmax: 0}},
		{name: "all runoff", p: Params{Tmelt: -1, CM: 2, Cru: 1, RASmax: 150}},
		{name: "no runoff", p: Params{Tmelt: 1.5, CM: 6, Cru: 0, RASmax: 25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Simulate(pet, precip, tavg, tt.p)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			sumP, sumOut := 0.0, 0.0
			for i := range precip {
				if b := res.Balance(precip, i); math.Abs(b) > 1e-9 {
					t.Fatalf("day %d: balance residual %.3e", i, b)
				}
				if res.RAS[i] < 0 || res.RAS[i] > tt.p.RASmax+1e-12 {
					t.Fatalf("day %d: RAS %.4f outside [0,%v]", i, res.RAS[i], tt.p.RASmax)
				}
				sumP += precip[i]
				sumOut += res.Runoff[i] + res.ETR[i] + res.Recharge[i]
			}
			last := len(precip) - 1
			if d := sumP - sumOut - res.RAS[last] - res.Snowpack[last]; math.Abs(d) > 1e-6 {
				t.Errorf("whole-series balance off by %.3e", d)
			}
		})
	}
}

func TestSnowAccumulatesAndMelts(t *testing.T) {
	precip := []float64{10, 10, 0, 0, 0}
	tavg := []float64{-5, -2, 2, 2, 10}
	pet := make([]float64, 5)
	p := Params{Tmelt: 0, CM: 3, Cru: 0, RASmax: 1000}

	res, err := Simulate(pet, precip, tavg, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectedSnow := []float64{10, 20, 14, 8, 0}
	expectedSurface := []float64{0, 0, 6, 6, 8}
	for i := range precip {
		if math.Abs(res.Snowpack[i]-expectedSnow[i]) > 1e-12 {
			t.Errorf("day %d: expected snowpack %.1f, got %.4f", i, expectedSnow[i], res.Snowpack[i])
		}
		if math.Abs(res.Surface[i]-expectedSurface[i]) > 1e-12 {
			t.Errorf("day %d: expected surface input %.1f, got %.4f", i, expectedSurface[i], res.Surface[i])
		}
	}
}

func TestRechargeIsOverflow(t *testing.T) {
	precip := []float64{20, 20, 0, 30}
	tavg := []float64{10, 10, 10, 10}
	pet := []float64{2, 2, 50, 0}
	p := Params{Tmelt: 0, CM: 0, Cru: 0.25, RASmax: 20}

	res, err := Simulate(pet, precip, tavg, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// day 0: 15 infiltrates, 2 evaporates, RAS 13
	// day 1: 13+15-2 = 26, 6 recharges
	// day 2: 20 available, ETR limited to storage
	// day 3: 22.5 infiltrates into empty store, 2.5 recharges
	expected := []struct{ rech, etr, ras float64 }{
		{0, 2, 13},
		{6, 2, 20},
		{0, 20, 0},
		{2.5, 0, 20},
	}
	for i, e := range expected {
		if math.Abs(res.Recharge[i]-e.rech) > 1e-12 || math.Abs(res.ETR[i]-e.etr) > 1e-12 || math.Abs(res.RAS[i]-e.ras) > 1e-12 {
			t.Errorf("day %d: expected rech/etr/ras %v/%v/%v, got %v/%v/%v",
				i, e.rech, e.etr, e.ras, res.Recharge[i], res.ETR[i], res.RAS[i])
		}
	}
}

func TestSimulateIsPure(t *testing.T) {
	pet, precip, tavg := synthWeather(400, 7)
	a, _ := Simulate(pet, precip, tavg, Params{Tmelt: 0, CM: 4, Cru: 0.3, RASmax: 40})
	_, _ = Simulate(pet, precip, tavg, Params{Tmelt: 0, CM: 4, Cru: 0.1, RASmax: 120})
	b, _ := Simulate(pet, precip, tavg, Params{Tmelt: 0, CM: 4, Cru: 0.3, RASmax: 40})
	for i := range a.Recharge {
		if a.Recharge[i] != b.Recharge[i] || a.ETR[i] != b.ETR[i] {
			t.Fatalf("day %d differs between identical runs", i)
		}
	}
}

func TestSimulateRejectsInvalidInput(t *testing.T) {
	s := []float64{1, 2, 3}
	for _, p := range []Params{
		{Cru: -0.1, RASmax: 10},
		{Cru: 1.1, RASmax: 10},
		{Cru: 0.5, RASmax: -1},
		{Cru: 0.5, RASmax: 10, CM: -2},
	} {
		if _, err := Simulate(s, s, s, p); !errors.Is(err, ErrInvalidParameters) {
			t.Errorf("params %+v: expected ErrInvalidParameters, got %v", p, err)
		}
	}
	if _, err := Simulate(s, s[:2], s, Params{Cru: 0.5}); err == nil {
		t.Error("expected length mismatch error")
	}
}

package restserver

import (
	"encoding/json"
	"math"

	"github.com/chrissnell/gwrecharge/internal/mrc"
	"github.com/chrissnell/gwrecharge/internal/recharge"
	"github.com/chrissnell/gwrecharge/pkg/timeseries"
)

// Values is a value array in which JSON null marks a missing sample.
type Values []float64

// UnmarshalJSON decodes null entries as NaN.
func (v *Values) UnmarshalJSON(b []byte) error {
	var raw []*float64
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(Values, len(raw))
	for i, p := range raw {
		if p == nil {
			out[i] = math.NaN()
		} else {
			out[i] = *p
		}
	}
	*v = out
	return nil
}

// SeriesPayload carries an observed hydrograph. With Depth set the values are
// depths below ground surface instead of heads.
type SeriesPayload struct {
	T     []float64 `json:"t"`
	V     Values    `json:"v"`
	Depth bool      `json:"depth,omitempty"`
}

func (p SeriesPayload) series() (timeseries.Series, error) {
	s, err := timeseries.New(p.T, p.V)
	if err != nil {
		return timeseries.Series{}, err
	}
	if p.Depth {
		s = timeseries.HeadFromDepth(s)
	}
	return s, nil
}

// MRCRequest asks for a recession curve fit over the given periods.
type MRCRequest struct {
	Observed SeriesPayload `json:"observed"`
	Periods  []mrc.Period  `json:"periods"`
	Mode     mrc.Mode      `json:"mode,omitempty"` // exponential when empty
}

// MRCResponse is the fitted curve and the simulated recession over the
// selected samples.
type MRCResponse struct {
	Parameters mrc.Parameters `json:"parameters"`
	T          []float64      `json:"t"`
	Simulated  []float64      `json:"simulated"`
	Breaks     []int          `json:"breaks"`
}

// RecessionPayload carries recession coefficients, usually from a previous
// fit. Absent coefficients are treated as missing.
type RecessionPayload struct {
	Mode mrc.Mode `json:"mode,omitempty"`
	A    *float64 `json:"a"`
	B    *float64 `json:"b"`
}

func (p *RecessionPayload) parameters() mrc.Parameters {
	if p == nil {
		return mrc.Missing(mrc.ModeExponential)
	}
	mode := p.Mode
	if mode == "" {
		mode = mrc.ModeExponential
	}
	params := mrc.Missing(mode)
	if p.A != nil {
		params.A = *p.A
	}
	if p.B != nil {
		params.B = *p.B
	}
	return params
}

// RunRequest submits a recharge evaluation. Config fields that are left out
// keep the server's configured defaults. A weather record without PET needs
// the site latitude so PET can be derived from temperature.
type RunRequest struct {
	Observed SeriesPayload      `json:"observed"`
	Weather  timeseries.Weather `json:"weather"`
	Latitude *float64           `json:"latitude,omitempty"`
	MRC      *RecessionPayload  `json:"mrc"`
	Config   recharge.Config    `json:"config"`
}

// HealthResponse reports the service and archive state.
type HealthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
	Error   string `json:"error,omitempty"`
}

package squat

// Verdict is the session-level classification.
type Verdict string

const (
	VerdictPass   Verdict = "PASS"
	VerdictFail   Verdict = "FAIL"
	VerdictMixed  Verdict = "MIXED"
	VerdictUnsure Verdict = "UNSURE"
)

// Result is the final session record handed to the transport collaborator.
type Result struct {
	Summary       Verdict  `json:"summary"`
	Pass          int      `json:"pass"`
	Fail          int      `json:"fail"`
	Threshold     float64  `json:"threshold"`
	Hold          int      `json:"hold"`
	DepthRatioMax *float64 `json:"depthRatioMax,omitempty"`

	Frames int    `json:"frames"`
	Peaks  []Peak `json:"peaks,omitempty"`
}

// Classify maps pass/fail counts to a verdict. observed reports whether any
// finite depth was ever seen.
func Classify(pass, fail int, observed bool) Verdict {
	switch {
	case pass > 0 && fail == 0:
		return VerdictPass
	case pass > 0:
		return VerdictMixed
	case observed:
		return VerdictFail
	default:
		return VerdictUnsure
	}
}

// Summarize turns a detection into the reported result.
func Summarize(det Detection, cfg Config) Result {
	observed := det.Observed || det.DepthRatioMax != nil
	return Result{
		Summary:       Classify(det.Pass, det.Fail, observed),
		Pass:          det.Pass,
		Fail:          det.Fail,
		Threshold:     cfg.ThresholdHigh,
		Hold:          cfg.HoldFrames,
		DepthRatioMax: det.DepthRatioMax,
		Peaks:         det.Peaks,
	}
}

// Analyze runs smoothing, detection and summarizing over a complete series.
// An empty series is UNSURE without a depth maximum.
func Analyze(series []Sample, cfg Config) (Result, []Sample) {
	if len(series) == 0 {
		return Result{
			Summary:   VerdictUnsure,
			Threshold: cfg.ThresholdHigh,
			Hold:      cfg.HoldFrames,
		}, nil
	}
	smoothed := Smooth(series)
	res := Summarize(DetectReps(smoothed, cfg), cfg)
	res.Frames = len(series)
	return res, smoothed
}

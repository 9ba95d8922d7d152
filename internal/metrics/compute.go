package metrics

import (
	"math"
	"sort"

	"pdufa-lab/internal/domain"
)

// ConfusionMatrix counts predictions against resolved outcomes. Positive = CRL.
type ConfusionMatrix struct {
	TruePositives  int
	FalsePositives int
	TrueNegatives  int
	FalseNegatives int
}

// Total returns the number of classified events.
func (m ConfusionMatrix) Total() int {
	return m.TruePositives + m.FalsePositives + m.TrueNegatives + m.FalseNegatives
}

// Precision is TP / (TP + FP), 0 when nothing was predicted positive.
func (m ConfusionMatrix) Precision() float64 {
	return ratio(m.TruePositives, m.TruePositives+m.FalsePositives)
}

// Recall is TP / (TP + FN), 0 when there were no CRLs.
func (m ConfusionMatrix) Recall() float64 {
	return ratio(m.TruePositives, m.TruePositives+m.FalseNegatives)
}

// F1 is the harmonic mean of precision and recall.
func (m ConfusionMatrix) F1() float64 {
	p, r := m.Precision(), m.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// Accuracy is (TP + TN) / total.
func (m ConfusionMatrix) Accuracy() float64 {
	return ratio(m.TruePositives+m.TrueNegatives, m.Total())
}

// CalibrationBucket groups events by predicted CRL probability.
type CalibrationBucket struct {
	Lower, Upper       float64 // [Lower, Upper), last bucket closed
	Count              int
	CRLs               int
	MeanCRLProbability float64
	ObservedCRLRate    float64
}

// Summary holds every metric computed for one set of resolved analyses.
type Summary struct {
	Confusion   ConfusionMatrix
	Precision   float64
	Recall      float64
	F1          float64
	Accuracy    float64
	BrierScore  float64
	Tiers       []domain.TierStats
	Calibration []CalibrationBucket
}

// ApplyTo copies the summary's metrics onto run.
func (s *Summary) ApplyTo(run *domain.BacktestRun) {
	run.TruePositives = s.Confusion.TruePositives
	run.FalsePositives = s.Confusion.FalsePositives
	run.TrueNegatives = s.Confusion.TrueNegatives
	run.FalseNegatives = s.Confusion.FalseNegatives
	run.Precision = s.Precision
	run.Recall = s.Recall
	run.F1 = s.F1
	run.Accuracy = s.Accuracy
	run.BrierScore = s.BrierScore
	run.Tiers = append([]domain.TierStats(nil), s.Tiers...)
}

// DefaultCalibrationBuckets is the number of equal-width buckets over [0, 1].
const DefaultCalibrationBuckets = 10

// Compute calculates all metrics over records. Records whose outcome is not
// resolved are ignored. Records are sorted by EventID, AnalysisID first so
// floating point sums do not depend on input order.
func Compute(records []*domain.AnalysisRecord, buckets int) *Summary {
	resolved := make([]*domain.AnalysisRecord, 0, len(records))
	for _, r := range records {
		if r != nil && r.ActualOutcome.IsResolved() {
			resolved = append(resolved, r)
		}
	}
	sort.Slice(resolved, func(i, j int) bool {
		if resolved[i].EventID != resolved[j].EventID {
			return resolved[i].EventID < resolved[j].EventID
		}
		return resolved[i].AnalysisID < resolved[j].AnalysisID
	})

	cm := computeConfusion(resolved)
	return &Summary{
		Confusion:   cm,
		Precision:   cm.Precision(),
		Recall:      cm.Recall(),
		F1:          cm.F1(),
		Accuracy:    cm.Accuracy(),
		BrierScore:  computeBrier(resolved),
		Tiers:       computeTierStats(resolved),
		Calibration: computeCalibration(resolved, buckets),
	}
}

func computeConfusion(records []*domain.AnalysisRecord) ConfusionMatrix {
	var cm ConfusionMatrix
	for _, r := range records {
		actualCRL := r.ActualOutcome == domain.OutcomeCRL
		switch {
		case r.PredictedCRL && actualCRL:
			cm.TruePositives++
		case r.PredictedCRL && !actualCRL:
			cm.FalsePositives++
		case !r.PredictedCRL && actualCRL:
			cm.FalseNegatives++
		default:
			cm.TrueNegatives++
		}
	}
	return cm
}

// computeBrier is the mean squared error of the CRL probability against the
// 0/1 outcome. Lower is better; 0.25 is a constant 0.5 forecast.
func computeBrier(records []*domain.AnalysisRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range records {
		y := 0.0
		if r.ActualOutcome == domain.OutcomeCRL {
			y = 1
		}
		d := clamp01(r.CRLProbability) - y
		sum += d * d
	}
	return sum / float64(len(records))
}

// computeTierStats returns one entry per risk tier, most severe first.
// Empty tiers are included with zero counts.
func computeTierStats(records []*domain.AnalysisRecord) []domain.TierStats {
	byTier := make(map[domain.RiskTier][]float64)
	crls := make(map[domain.RiskTier]int)
	for _, r := range records {
		tier := domain.TierFor(r.CRLProbability)
		byTier[tier] = append(byTier[tier], r.CRLProbability)
		if r.ActualOutcome == domain.OutcomeCRL {
			crls[tier]++
		}
	}

	out := make([]domain.TierStats, 0, len(domain.RiskTiers()))
	for _, tier := range domain.RiskTiers() {
		probs := byTier[tier]
		out = append(out, domain.TierStats{
			Tier:               tier,
			Count:              len(probs),
			CRLs:               crls[tier],
			ObservedCRLRate:    ratio(crls[tier], len(probs)),
			MeanCRLProbability: computeMean(probs),
		})
	}
	return out
}

func computeCalibration(records []*domain.AnalysisRecord, buckets int) []CalibrationBucket {
	if buckets <= 0 {
		buckets = DefaultCalibrationBuckets
	}
	width := 1.0 / float64(buckets)

	out := make([]CalibrationBucket, buckets)
	sums := make([]float64, buckets)
	for i := range out {
		out[i].Lower = float64(i) * width
		out[i].Upper = float64(i+1) * width
	}
	out[buckets-1].Upper = 1

	for _, r := range records {
		p := clamp01(r.CRLProbability)
		i := int(math.Floor(p / width))
		if i >= buckets {
			i = buckets - 1
		}
		out[i].Count++
		sums[i] += p
		if r.ActualOutcome == domain.OutcomeCRL {
			out[i].CRLs++
		}
	}

	for i := range out {
		if out[i].Count > 0 {
			out[i].MeanCRLProbability = sums[i] / float64(out[i].Count)
			out[i].ObservedCRLRate = ratio(out[i].CRLs, out[i].Count)
		}
	}
	return out
}

// computeMean calculates arithmetic mean of values.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

package reporting

import (
	"encoding/csv"
	"strconv"
	"strings"
)

var csvHeader = []string{
	"event_id", "ticker", "drug_name", "pdufa_date",
	"probability", "crl_probability", "risk_tier", "confidence",
	"binding_cap", "predicted_crl", "actual_outcome",
}

// RenderCSV renders per-event rows as CSV string.
func RenderCSV(rows []EventRow) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	for _, r := range rows {
		pdufa := ""
		if r.PDUFADate != nil {
			pdufa = formatDate(r.PDUFADate)
		}
		rec := []string{
			r.EventID,
			r.Ticker,
			r.DrugName,
			pdufa,
			strconv.FormatFloat(r.Probability, 'f', 6, 64),
			strconv.FormatFloat(r.CRLProbability, 'f', 6, 64),
			string(r.RiskTier),
			strconv.FormatFloat(r.Confidence, 'f', 6, 64),
			r.BindingCap,
			strconv.FormatBool(r.PredictedCRL),
			string(r.Actual),
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

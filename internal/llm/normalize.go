package llm

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/naduri/naduri-backend/internal/models"
)

// Limits applied to free text coming back from the evaluator
const (
	MaxSummaryRunes  = 800
	MaxEvidenceRunes = 200
	MaxEvidenceItems = 8
)

// NormalizeEvaluation turns an arbitrary decoded object into a bounded Evaluation.
// It never fails: wrong types and missing fields become zero values.
func NormalizeEvaluation(obj map[string]interface{}) *models.Evaluation {
	semantic := subObject(obj, "semantic_impairment")
	info := subObject(obj, "information_impairment")
	synt := subObject(obj, "syntactic_impairment")
	rationale := subObject(obj, "rationale")

	return &models.Evaluation{
		SemanticImpairment: models.SemanticImpairment{
			PronounOveruse: markerScore(semantic["pronoun_overuse"]),
			Vagueness:      markerScore(semantic["vagueness"]),
			LexicalPoverty: markerScore(semantic["lexical_poverty"]),
			Repetition:     markerScore(semantic["repetition"]),
		},
		InformationImpairment: models.InformationImpairment{
			MissingCoreInfo:        markerScore(info["missing_core_info"]),
			LowSpecificity:         markerScore(info["low_specificity"]),
			InappropriateReference: markerScore(info["inappropriate_reference"]),
		},
		SyntacticImpairment: models.SyntacticImpairment{
			VerbReduction:           markerScore(synt["verb_reduction"]),
			SentenceFragments:       markerScore(synt["sentence_fragments"]),
			SyntacticSimplification: markerScore(synt["syntactic_simplification"]),
		},
		AcousticAbnormality: models.AcousticAbnormality{NotEvaluated: true},
		RiskProbability:     ClampFloat(obj["risk_probability"], 0, 1),
		Rationale: models.Rationale{
			Summary:           truncateRunes(stringValue(rationale["summary"]), MaxSummaryRunes),
			EvidenceSentences: evidence(rationale["evidence_sentences"]),
		},
	}
}

// NormalizeReport bounds a decoded final report
func NormalizeReport(obj map[string]interface{}) *models.Report {
	return &models.Report{
		FinalRiskScore: ClampFloat(obj["final_risk_score"], 0, 1),
		SummaryText:    truncateRunes(stringValue(obj["summary_text"]), MaxSummaryRunes),
	}
}

// ClampEvaluation returns a copy of e with every score and text field inside its bounds.
// It applies the same limits as NormalizeEvaluation to an already typed value.
func ClampEvaluation(e *models.Evaluation) *models.Evaluation {
	if e == nil {
		return nil
	}
	out := *e

	s := &out.SemanticImpairment
	s.PronounOveruse = markerScore(s.PronounOveruse)
	s.Vagueness = markerScore(s.Vagueness)
	s.LexicalPoverty = markerScore(s.LexicalPoverty)
	s.Repetition = markerScore(s.Repetition)

	i := &out.InformationImpairment
	i.MissingCoreInfo = markerScore(i.MissingCoreInfo)
	i.LowSpecificity = markerScore(i.LowSpecificity)
	i.InappropriateReference = markerScore(i.InappropriateReference)

	y := &out.SyntacticImpairment
	y.VerbReduction = markerScore(y.VerbReduction)
	y.SentenceFragments = markerScore(y.SentenceFragments)
	y.SyntacticSimplification = markerScore(y.SyntacticSimplification)

	out.AcousticAbnormality = models.AcousticAbnormality{NotEvaluated: true}
	out.RiskProbability = ClampFloat(e.RiskProbability, 0, 1)

	items := make([]interface{}, len(e.Rationale.EvidenceSentences))
	for n, sentence := range e.Rationale.EvidenceSentences {
		items[n] = sentence
	}
	out.Rationale = models.Rationale{
		Summary:           truncateRunes(e.Rationale.Summary, MaxSummaryRunes),
		EvidenceSentences: evidence(items),
	}
	return &out
}

// ClampReport returns a copy of r with the score in [0, 1] and the summary bounded
func ClampReport(r *models.Report) *models.Report {
	if r == nil {
		return nil
	}
	out := *r
	out.FinalRiskScore = ClampFloat(r.FinalRiskScore, 0, 1)
	out.SummaryText = truncateRunes(r.SummaryText, MaxSummaryRunes)
	return &out
}

func markerScore(v interface{}) int {
	return ClampInt(v, models.MinMarkerScore, models.MaxMarkerScore)
}

// ClampInt converts v to an integer in [lo, hi]; unconvertible values yield lo
func ClampInt(v interface{}, lo, hi int) int {
	var x int
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) {
			return lo
		}
		if t > float64(hi) {
			return hi
		}
		if t < float64(lo) {
			return lo
		}
		x = int(t)
	case int:
		x = t
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			f, ferr := t.Float64()
			if ferr != nil {
				return lo
			}
			return ClampInt(f, lo, hi)
		}
		return ClampInt(float64(n), lo, hi)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return lo
		}
		x = n
	case bool:
		if t {
			x = 1
		}
	default:
		return lo
	}

	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// ClampFloat converts v to a float in [lo, hi]; unconvertible values yield lo
func ClampFloat(v interface{}, lo, hi float64) float64 {
	var x float64
	switch t := v.(type) {
	case float64:
		x = t
	case int:
		x = float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return lo
		}
		x = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return lo
		}
		x = f
	case bool:
		if t {
			x = 1
		}
	default:
		return lo
	}

	if math.IsNaN(x) {
		return lo
	}
	return math.Max(lo, math.Min(hi, x))
}

func subObject(obj map[string]interface{}, key string) map[string]interface{} {
	if m, ok := obj[key].(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

func stringValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func evidence(v interface{}) []string {
	items, _ := v.([]interface{})
	cleaned := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		cleaned = append(cleaned, truncateRunes(s, MaxEvidenceRunes))
		if len(cleaned) == MaxEvidenceItems {
			break
		}
	}
	return cleaned
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

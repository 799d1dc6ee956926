package models

// Score bounds for the per-marker ratings
const (
	MinMarkerScore = 0
	MaxMarkerScore = 3
)

// SemanticImpairment groups the meaning-level markers
type SemanticImpairment struct {
	PronounOveruse int `json:"pronoun_overuse"`
	Vagueness      int `json:"vagueness"`
	LexicalPoverty int `json:"lexical_poverty"`
	Repetition     int `json:"repetition"`
}

// InformationImpairment groups the information-transfer markers
type InformationImpairment struct {
	MissingCoreInfo        int `json:"missing_core_info"`
	LowSpecificity         int `json:"low_specificity"`
	InappropriateReference int `json:"inappropriate_reference"`
}

// SyntacticImpairment groups the sentence-structure markers
type SyntacticImpairment struct {
	VerbReduction           int `json:"verb_reduction"`
	SentenceFragments       int `json:"sentence_fragments"`
	SyntacticSimplification int `json:"syntactic_simplification"`
}

// AcousticAbnormality is a placeholder; audio features are not evaluated
type AcousticAbnormality struct {
	NotEvaluated bool `json:"not_evaluated"`
}

// Rationale explains an evaluation with quotes from the user's speech
type Rationale struct {
	Summary           string   `json:"summary"`
	EvidenceSentences []string `json:"evidence_sentences"`
}

// Evaluation is the linguistic risk assessment of a single user turn
type Evaluation struct {
	SemanticImpairment    SemanticImpairment    `json:"semantic_impairment"`
	InformationImpairment InformationImpairment `json:"information_impairment"`
	SyntacticImpairment   SyntacticImpairment   `json:"syntactic_impairment"`
	AcousticAbnormality   AcousticAbnormality   `json:"acoustic_abnormality"`
	RiskProbability       float64               `json:"risk_probability"`
	Rationale             Rationale             `json:"rationale"`
}

// NewZeroEvaluation returns a zero-risk evaluation carrying the given summary
func NewZeroEvaluation(summary string) *Evaluation {
	return &Evaluation{
		AcousticAbnormality: AcousticAbnormality{NotEvaluated: true},
		Rationale: Rationale{
			Summary:           summary,
			EvidenceSentences: []string{},
		},
	}
}

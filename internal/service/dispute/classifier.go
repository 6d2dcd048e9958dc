package dispute

import (
	"strings"

	"github.com/voyagehq/bookingcore/internal/domain"
)

// Classifier decides at creation time whether a dispute is a subjective
// complaint. The decision is stored on the dispute and never recomputed.
// It is an interface because the keyword heuristic is provisional; a better
// model can be swapped in without touching the lifecycle code.
type Classifier interface {
	IsSubjective(category domain.DisputeCategory, description string) bool
}

// KeywordClassifier flags a dispute as subjective when its free-text
// description contains any of the configured phrases (case-insensitive
// substring match). Objective categories are exempt from the scan: a safety
// report stays objective no matter how it is phrased.
type KeywordClassifier struct {
	phrases []string
}

func NewKeywordClassifier(phrases []string) *KeywordClassifier {
	lowered := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			lowered = append(lowered, p)
		}
	}
	return &KeywordClassifier{phrases: lowered}
}

func (c *KeywordClassifier) IsSubjective(category domain.DisputeCategory, description string) bool {
	switch category {
	case domain.DisputeCategoryServiceNotProvided, domain.DisputeCategorySafety:
		return false
	}

	text := strings.ToLower(description)
	for _, phrase := range c.phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

var _ Classifier = (*KeywordClassifier)(nil)

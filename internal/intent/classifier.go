package intent

import (
	"strings"

	"go.uber.org/zap"

	"github.com/xaenox/storebot/internal/models"
)

// Scorer scores a normalized instruction for one intent. Scorers must be
// pure: no side effects, no stored state between calls.
type Scorer interface {
	Name() string
	Score(text string, context map[string]any) (models.Intent, float64)
}

// Classifier holds an ordered collection of scorers. The highest score
// wins; ties are broken by registration order, earlier registration first.
type Classifier struct {
	scorers   []Scorer
	threshold float64
	logger    *zap.Logger
}

func NewClassifier(threshold float64, logger *zap.Logger) *Classifier {
	return &Classifier{
		threshold: threshold,
		logger:    logger,
	}
}

// Register appends a scorer. Order matters: it is the tie-break.
func (c *Classifier) Register(s Scorer) {
	c.scorers = append(c.scorers, s)
}

// Classify normalizes the input, runs every scorer and returns the best
// intent, or the fallback intent when no score reaches the threshold.
func (c *Classifier) Classify(input string, context map[string]any) models.Classification {
	text := strings.ToLower(strings.TrimSpace(input))

	best := models.Classification{Intent: models.IntentFallback}
	for _, s := range c.scorers {
		intent, score := s.Score(text, context)
		if score > best.Score {
			best = models.Classification{Intent: intent, Score: score, Scorer: s.Name()}
		}
	}

	if best.Score < c.threshold {
		c.logger.Debug("no intent above threshold, using fallback",
			zap.String("input", input),
			zap.Float64("best_score", best.Score))
		return models.Classification{Intent: models.IntentFallback, Score: best.Score}
	}

	c.logger.Debug("classified intent",
		zap.String("intent", string(best.Intent)),
		zap.Float64("score", best.Score),
		zap.String("scorer", best.Scorer))
	return best
}

package evaluator

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/layer-3/questproof/core"
	"github.com/layer-3/questproof/ports"
)

// Heuristic grades answers by keyword coverage and length
type Heuristic struct{}

// NewHeuristic creates the deterministic evaluator
func NewHeuristic() ports.Evaluator {
	return Heuristic{}
}

// Evaluate gives up to 70 points for keyword coverage and up to 30 for length
func (Heuristic) Evaluate(ctx context.Context, quest *core.Quest, answer string) core.Evaluation {
	lower := strings.ToLower(answer)

	var matched []string
	for _, kw := range quest.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}

	coverage := 70
	if len(quest.Keywords) > 0 {
		coverage = 70 * len(matched) / len(quest.Keywords)
	}

	target := quest.MinAnswerLength * 2
	if target <= 0 {
		target = 200
	}
	length := utf8.RuneCountInString(answer)
	depth := 30 * length / target
	if depth > 30 {
		depth = 30
	}

	score := clampScore(coverage + depth)

	var reasoning string
	if len(quest.Keywords) == 0 {
		reasoning = fmt.Sprintf("Scored on length: %d characters.", length)
	} else {
		reasoning = fmt.Sprintf("Covered %d of %d key ideas", len(matched), len(quest.Keywords))
		if len(matched) > 0 {
			reasoning += " (" + strings.Join(matched, ", ") + ")"
		}
		reasoning += fmt.Sprintf("; %d characters.", length)
	}

	return core.Evaluation{Score: score, Reasoning: reasoning}
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

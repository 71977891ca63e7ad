package dialogue

import (
	"fmt"

	"github.com/pavelanni/socratic/internal/model"
)

// conservativeStopIteration is the round from which a persistently
// unparseable dean ends the dialogue instead of continuing.
const conservativeStopIteration = 3

// Arbitrate applies the override rules to a decoded verdict, in order:
// the correctness override, then the ceiling override. A verdict already
// forced to satisfactory by the first rule is left as is by the second.
//
// Only the ceiling may end a dialogue as max_reached: a dean that claims
// max_reached before the ceiling is read as continue.
func Arbitrate(v model.DeanVerdict, iteration, maxIterations int) model.DeanVerdict {
	if v.Verdict == model.VerdictMaxReached && iteration < maxIterations {
		v.Verdict = model.VerdictContinue
	}

	if v.AnswerCorrectness == model.CorrectnessCorrect &&
		(v.Understanding == model.UnderstandingGood || v.Understanding == model.UnderstandingExcellent) &&
		v.Verdict == model.VerdictContinue {
		v.Verdict = model.VerdictSatisfactory
		v.Reasoning = "Answer is correct with good understanding. " + v.Reasoning
	}

	if iteration >= maxIterations && v.Verdict == model.VerdictContinue {
		v.Verdict = model.VerdictMaxReached
		v.Reasoning = fmt.Sprintf("Maximum iterations (%d) reached. ", maxIterations) + v.Reasoning
	}

	return v
}

// Fallback is the verdict used when the dean response cannot be decoded.
// It depends only on iteration and maxIterations.
func Fallback(iteration, maxIterations int) model.DeanVerdict {
	switch {
	case iteration >= maxIterations:
		return model.DeanVerdict{
			Verdict:           model.VerdictMaxReached,
			Understanding:     model.UnderstandingDeveloping,
			AnswerCorrectness: model.CorrectnessUnknown,
			Reasoning:         "Maximum iterations reached, ending dialogue",
			Insights:          []string{"Assessment incomplete due to parsing error"},
			Gaps:              []string{"Unable to assess due to error"},
		}
	case iteration >= conservativeStopIteration:
		return model.DeanVerdict{
			Verdict:           model.VerdictSatisfactory,
			Understanding:     model.UnderstandingDeveloping,
			AnswerCorrectness: model.CorrectnessUnknown,
			Reasoning:         "Ending dialogue due to parsing error after multiple rounds",
			Insights:          []string{"Some progress observed"},
			Gaps:              []string{"Assessment incomplete"},
		}
	default:
		return model.DeanVerdict{
			Verdict:           model.VerdictContinue,
			Understanding:     model.UnderstandingDeveloping,
			AnswerCorrectness: model.CorrectnessUnknown,
			Reasoning:         "Continuing dialogue despite parsing error",
			Insights:          []string{"Assessment incomplete"},
			Gaps:              []string{"Unable to assess due to error"},
		}
	}
}

// Decide turns raw dean text into the final verdict for this round: a
// decoded verdict goes through Arbitrate, anything else through Fallback.
func Decide(raw string, iteration, maxIterations int) model.DeanVerdict {
	v, err := DecodeDean(raw)
	if err != nil {
		reportParseFailure(err)
		return Fallback(iteration, maxIterations)
	}
	return Arbitrate(v, iteration, maxIterations)
}

package domain

import "fmt"

// AggregateScore computes the weighted average of category grades:
//
//	sum(score * importance) / sum(importance)
//
// rendered to exactly two decimals with round-half-even. The whole computation
// is integer arithmetic on the exact rational, so two runs over the same
// grades and rubric always produce the byte-identical string. The model is
// never asked for this number.
//
// Grades must already be validated against the rubric (ValidateGrades).
func AggregateScore(grades []CategoryGrade, rubric RubricSpec) (string, error) {
	if err := ValidateGrades(grades, rubric); err != nil {
		return "", err
	}
	weights := make(map[string]int, len(rubric.Categories))
	for _, c := range rubric.Categories {
		weights[c.Name] = c.Importance
	}

	var num, den int64
	for _, g := range grades {
		num += int64(g.Score) * int64(weights[g.Category])
		den += int64(weights[g.Category])
	}

	// Scale to hundredths and split into quotient and remainder, then apply
	// the half-even tie-break on the exact remainder.
	scaled := num * 100
	q := scaled / den
	r := scaled % den
	switch {
	case 2*r > den:
		q++
	case 2*r == den && q%2 != 0:
		q++
	}

	return fmt.Sprintf("%d.%02d", q/100, q%100), nil
}

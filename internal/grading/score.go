package grading

// FinalScore subtracts the combined penalties from a perfect 100, clamped at
// zero.
func FinalScore(bendPenalty, otherPenalties int) int {
	score := 100 - (bendPenalty + otherPenalties)
	if score < 0 {
		return 0
	}
	return score
}

// GradeLetter maps a final score onto the discrete condition grade.
func GradeLetter(score int) string {
	switch {
	case score >= 98:
		return "S+"
	case score >= 95:
		return "S"
	case score >= 90:
		return "A"
	case score >= 85:
		return "B"
	case score >= 80:
		return "C"
	default:
		return "D"
	}
}

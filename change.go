package main

import "math"

// percentChange is the magnitude of the move from previous to current, in
// percent rounded to 2 places. A zero previous gives +Inf.
func percentChange(current, previous float64) float64 {
	if current == previous {
		return 0
	}
	if previous == 0 {
		return math.Inf(1)
	}
	return math.Round(math.Abs(current-previous)/previous*100*100) / 100
}

func changeSign(current, previous float64) string {
	if current >= previous {
		return "+"
	}
	return "-"
}

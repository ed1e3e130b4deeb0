package verify

// combineHopConfidences applies the weakest-link rule: a multi-hop claim is
// never more trustworthy than its least-supported step.
func combineHopConfidences(confs []float64) float64 {
	if len(confs) == 0 {
		return 0
	}
	min := confs[0]
	for _, c := range confs[1:] {
		if c < min {
			min = c
		}
	}
	return min
}

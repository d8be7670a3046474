package marketdata

// Returns converts a chronological closing price series into fractional
// daily returns. A series of n closes yields n-1 returns. Bars with a zero
// close are skipped rather than producing an infinite return.
func Returns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
	}
	return returns
}

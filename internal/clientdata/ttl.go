package clientdata

import "time"

// TTL constants per data class. Added to time.Now() when storing to
// calculate expires_at.
const (
	// Static company info changes with filings at most
	TTLCompanyOverview = 7 * 24 * time.Hour

	// Daily bars only change after the next close
	TTLDailySeries = 24 * time.Hour

	// ESG metrics refresh with reporting cycles
	TTLESGMetrics = 30 * 24 * time.Hour

	// Quotes go stale within the trading day
	TTLQuote = 15 * time.Minute
)

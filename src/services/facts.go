package services

// GoldFacts is the static educational payload served alongside price and
// question responses.
type GoldFacts struct {
	Facts    []string `json:"facts"`
	Benefits []string `json:"benefits"`
}

func InvestmentFacts() GoldFacts {
	return GoldFacts{
		Facts: []string{
			"Gold has been used as a form of currency and store of value for over 5,000 years.",
			"Gold is considered a safe-haven asset during economic uncertainty.",
			"Digital gold offers 24/7 liquidity and no storage concerns.",
			"Gold has historically maintained its purchasing power over long periods.",
			"Gold can provide portfolio diversification benefits.",
			"Digital gold can be purchased in small amounts, making it accessible to all investors.",
			"Gold prices are influenced by factors like inflation, currency fluctuations, and geopolitical events.",
			"Digital gold certificates are backed by physical gold stored in secure vaults.",
		},
		Benefits: []string{
			"Inflation hedge",
			"Portfolio diversification",
			"Safe-haven asset",
			"No storage costs",
			"High liquidity",
			"Accessible investment",
		},
	}
}

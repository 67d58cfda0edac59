package usecase

// guardrailCategories are the predefined keyword sets a tenant can enable by name.
var guardrailCategories = map[string][]string{
	"legal_advice": {
		"legal advice", "lawsuit", "sue you", "liable", "liability", "litigation",
		"attorney", "binding agreement", "court order", "pursuant to", "pursuant",
		"hereby", "indemnify", "in accordance with the law",
	},
	"medical_advice": {
		"diagnosis", "diagnose", "prescription", "dosage", "medication",
		"treatment plan", "medical advice",
	},
	"financial_advice": {
		"investment advice", "guaranteed return", "guaranteed returns", "financial advice",
		"buy this stock", "tax advice", "insider",
	},
	"pricing_commitment": {
		"discount", "free of charge", "refund", "price match", "we will waive", "lifetime deal",
	},
	"competitor_mentions": {
		"competitor", "cheaper alternative", "switch to",
	},
	"confidential": {
		"confidential", "internal only", "nda", "trade secret", "password", "api key",
	},
	"profanity": {
		"damn", "hell", "crap", "wtf", "stupid",
	},
	"harassment": {
		"idiot", "moron", "shut up", "loser", "worthless",
	},
}

// KnownGuardrailCategories lists the category names, for validation and docs.
func KnownGuardrailCategories() []string {
	out := make([]string, 0, len(guardrailCategories))
	for k := range guardrailCategories {
		out = append(out, k)
	}
	return out
}

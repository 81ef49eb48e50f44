package relevance

// Keyword profiles used to sort news items into candidate pools. Matching is
// case-insensitive substring presence, so some entries carry padding spaces
// to avoid matching inside longer words.

var (
	// AIKeywords mark an item as being about AI.
	AIKeywords = []string{
		"artificial intelligence",
		" ai ",
		"genai",
		"llm",
		"foundation model",
		"openai",
		"anthropic",
		"gemini",
		"chatgpt",
		"copilot",
		"machine learning",
	}

	// BankingKeywords mark an item as being about banking or financial services.
	BankingKeywords = []string{
		"bank",
		"banking",
		"fintech",
		"payments",
		"payment",
		"credit",
		"lending",
		"lender",
		"loan",
		"mortgage",
		"fraud",
		"risk",
		"compliance",
		"regulation",
		"regulator",
		"aml",
		"kyc",
		"treasury",
		"insurance",
		"insurer",
		"capital markets",
		"wealth management",
		"financial services",
		"financial institution",
		"neobank",
		"digital wallet",
		"swift",
		"trade finance",
		"underwriting",
		"asset management",
		"hedge fund",
		"private equity",
		"investment bank",
		"retail banking",
		"commercial bank",
		"central bank",
		"fdic",
		"occ",
		"cfpb",
		"fed reserve",
		"federal reserve",
		"sec ",
		"cftc",
		"fca ",
		"money laundering",
		"sanctions",
		"deposit",
		"debit",
		"interchange",
		"stablecoin",
		"crypto exchange",
		"defi",
		"cbdc",
	}

	// ExcludeKeywords mark consumer entertainment content.
	ExcludeKeywords = []string{
		"film",
		"streaming",
		"gaming",
		"box office",
		"celebrity",
		"entertainment",
		"watch now",
		"trailer",
	}

	// ExcludedURLPatterns mark media pages that never make a digest.
	ExcludedURLPatterns = []string{
		"/video/",
		"/videos/",
		"youtube.com",
		"youtu.be",
		"tiktok.com",
		"/podcast/",
	}
)

// Banking score weights.
const (
	aiHitWeight        = 3
	bankingHitWeight   = 4
	excludeHitPenalty  = 10
	excludedURLPenalty = 100
)

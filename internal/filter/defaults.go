package filter

// Default rule set. Patterns run on normalized (lower-cased) text.

var defaultBlocklist = []string{
	"child porn",
	"how to make a bomb",
	"buy cocaine",
}

var defaultPatterns = []PatternRule{
	{Name: "profanity", Category: "profanity", Pattern: `\b(fuck|shit|damn|bitch)\b`},
	{Name: "threat_of_harm", Category: "threat", Pattern: `\b(kill|murder|die)\s+(you|yourself|them)\b`},
	{Name: "group_hate", Category: "hate_speech", Pattern: `\b(hate|kill)\s+all\s+\w+\b`},
	{Name: "self_harm_instruction", Category: "self_harm", Pattern: `\b(how to|ways to)\s+(kill|hurt|cut)\s+(yourself|myself)\b`},
	{Name: "short_link", Category: "suspicious_link", Pattern: `bit\.ly/[0-9a-z]+`},
	{Name: "adult_site", Category: "adult_link", Pattern: `pornhub\.com|\bxxx\.`},
	{Name: "onion_link", Category: "darknet_link", Pattern: `\.onion\b`},
}

var defaultBlockedDomains = []string{
	"pornhub.com",
	"xvideos.com",
	"xhamster.com",
}

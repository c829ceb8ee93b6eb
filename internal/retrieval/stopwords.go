package retrieval

// DefaultStopwords are function words excluded from keyword scoring so that
// generic words do not dominate the ranking.
var DefaultStopwords = []string{
	"like", "what", "does", "his", "her", "their", "the", "and", "for", "are",
	"how", "when", "where", "which", "who", "about", "with", "have", "has",
	"that", "this", "from", "into", "more", "some", "would", "could", "should",
	"did", "can", "will", "want", "know", "tell", "get", "than", "them", "they",
	"been", "being", "were", "said", "each", "other", "these", "those", "then",
	"just", "only", "very", "also", "over", "such", "here",
	// short function words reachable with the three-letter minimum
	"was", "you", "your", "him", "she", "its", "our", "why", "not", "but",
	"all", "any", "had", "got", "too", "out", "one", "may", "yes", "hey",
	"please", "there", "much", "many", "what's", "he's", "she's",
}

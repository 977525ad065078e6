package categorize

import (
	"regexp"
	"strings"

	"github.com/nikhilbhutani/paperledger/internal/models"
)

// issuerFields name the party that issued the document; receiverFields the
// party it was issued to. Which side the tenant's company matches decides
// sale vs purchase.
var issuerFields = []string{
	"issuer_name", "vendor_name", "store_name", "merchant_name", "seller_name", "from_company",
}

var receiverFields = []string{
	"receiver_name", "customer_name", "client_name", "buyer_name", "to_company", "bill_to",
}

var suffixPattern = regexp.MustCompile(`(?i)\b(pvt\.?\s*ltd\.?|private\s+limited|ltd\.?|limited|inc\.?|incorporated|llc|corp\.?|corporation|co\.?|company|p\.?l\.?c\.?)\b`)

var (
	wsPattern      = regexp.MustCompile(`\s+`)
	nonWordPattern = regexp.MustCompile(`[^\w\s]`)
)

// Categorizer decides whether a parsed document records a purchase or a
// sale for the tenant's company, by fuzzy-matching the company name against
// the document's party fields.
type Categorizer struct {
	threshold float64
}

func New(threshold float64) *Categorizer {
	if threshold <= 0 {
		threshold = 0.85
	}
	return &Categorizer{threshold: threshold}
}

// Categorize returns the category and the match confidence. Below the
// threshold the document stays uncategorized ("others").
func (c *Categorizer) Categorize(fields models.FieldMap, companyName string) (string, float64) {
	if companyName == "" || len(fields) == 0 {
		return models.CategoryOthers, 0
	}

	issuerScore := c.bestMatch(companyName, fields, issuerFields)
	receiverScore := c.bestMatch(companyName, fields, receiverFields)

	if issuerScore < c.threshold && receiverScore < c.threshold {
		return models.CategoryOthers, max(issuerScore, receiverScore)
	}

	// Company issued the document: it sold. Company received it: it bought.
	if issuerScore >= receiverScore {
		return models.CategorySale, issuerScore
	}
	return models.CategoryPurchase, receiverScore
}

func (c *Categorizer) bestMatch(companyName string, fields models.FieldMap, candidates []string) float64 {
	best := 0.0
	for _, field := range candidates {
		name := fields.String(field)
		if name == "" {
			if v, ok := fields.Nested(field, "name"); ok {
				name = v.AsString()
			}
		}
		if name == "" {
			continue
		}
		if score := Similarity(companyName, name); score > best {
			best = score
		}
	}
	return best
}

// NormalizeCompanyName lowercases, strips legal suffixes and punctuation,
// and collapses whitespace.
func NormalizeCompanyName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = suffixPattern.ReplaceAllString(n, "")
	n = nonWordPattern.ReplaceAllString(n, "")
	n = wsPattern.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}

// Similarity scores two company names in [0,1] after normalization. Exact
// normalized matches score 1; substring containment floors the score at
// 0.85; otherwise a normalized edit-distance ratio.
func Similarity(a, b string) float64 {
	na, nb := NormalizeCompanyName(a), NormalizeCompanyName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	score := ratio(na, nb)
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		if score < 0.85 {
			score = 0.85
		}
	}
	return score
}

func ratio(a, b string) float64 {
	la, lb := len(a), len(b)
	longer := la
	if lb > longer {
		longer = lb
	}
	if longer == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longer)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)

	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(min(curr[j-1]+1, prev[j]+1), prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

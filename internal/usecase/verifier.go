package usecase

import (
	"strings"

	"github.com/menuscout/backend/internal/domain"
	"github.com/menuscout/backend/internal/menutext"
)

// Confidence score components, additive, capped at 100.
const (
	domainAffinityBonus = 30 // restaurant name token appears in the domain
	sectionCountBonus   = 30 // at least minPlausibleSections sections
	priceDensityBonus   = 20 // at least one price-like item
	noJunkBonus         = 20 // no ordering-UI junk phrasing

	minPlausibleSections     = 3
	defaultApprovalThreshold = 75
)

// insignificantNameTokens never count as the restaurant name's first
// significant token.
var insignificantNameTokens = map[string]bool{
	"the": true, "a": true, "an": true, "la": true, "le": true, "el": true,
	"los": true, "las": true, "il": true, "restaurant": true, "cafe": true,
}

// Verifier scores an extracted menu for plausibility and decides approval.
type Verifier struct {
	approvalThreshold int
}

// NewVerifier creates a verifier. threshold <= 0 uses the default.
func NewVerifier(approvalThreshold int) *Verifier {
	if approvalThreshold <= 0 {
		approvalThreshold = defaultApprovalThreshold
	}
	return &Verifier{approvalThreshold: approvalThreshold}
}

// Verify scores the menu against the originating identity. Reasons
// accumulate for observability even when the score still clears the
// threshold.
func (v *Verifier) Verify(query *domain.RestaurantQuery, resolvedDomain string, sections []domain.MenuSection) (int, bool, []string) {
	score := 0
	var reasons []string

	if domainMatchesName(query.Name, resolvedDomain) {
		score += domainAffinityBonus
	} else {
		reasons = append(reasons, "restaurant name not reflected in domain")
	}

	if len(sections) >= minPlausibleSections {
		score += sectionCountBonus
	} else {
		reasons = append(reasons, "fewer than 3 menu sections")
	}

	if anyItemHasPrice(sections) {
		score += priceDensityBonus
	} else {
		reasons = append(reasons, "no price-like patterns found")
	}

	if !anyItemIsJunk(sections) {
		score += noJunkBonus
	} else {
		reasons = append(reasons, "ordering-UI junk phrasing present")
	}

	if score > 100 {
		score = 100
	}
	return score, score >= v.approvalThreshold, reasons
}

// domainMatchesName checks whether the first significant token of the
// restaurant name appears in the resolved domain.
func domainMatchesName(name, resolvedDomain string) bool {
	if resolvedDomain == "" {
		return false
	}
	domainLower := strings.ToLower(resolvedDomain)
	for _, token := range strings.Fields(strings.ToLower(name)) {
		token = strings.Trim(token, "'&.-")
		if len(token) < 3 || insignificantNameTokens[token] {
			continue
		}
		return strings.Contains(domainLower, token)
	}
	return false
}

func anyItemHasPrice(sections []domain.MenuSection) bool {
	for _, section := range sections {
		for _, item := range section.Items {
			if item.Price != nil {
				return true
			}
			if menutext.HasPrice(item.Description) {
				return true
			}
		}
	}
	return false
}

func anyItemIsJunk(sections []domain.MenuSection) bool {
	for _, section := range sections {
		for _, item := range section.Items {
			if junkNameRegex.MatchString(item.Name) || junkNameRegex.MatchString(item.Description) {
				return true
			}
		}
	}
	return false
}

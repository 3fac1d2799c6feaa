package usecase

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/menuscout/backend/internal/domain"
	"github.com/menuscout/backend/internal/menutext"
)

// junkNameRegex matches ordering-UI chrome that must never become a menu
// item.
var junkNameRegex = regexp.MustCompile(`(?i)\b(view cart|add to cart|checkout|order online|order now|sign in|log in|my account|gift cards?)\b`)

// headingSelector matches the headings that anchor menu sections.
const headingSelector = "h1, h2, h3, h4"

// cardSelector matches "card"-like item containers used by grid menus.
const cardSelector = ".menu-item, .menu_item, .card, .item, [class*='menu-item'], [class*='MenuItem']"

// StructuralExtractor turns raw HTML into menu sections using layout
// heuristics, without any language model.
type StructuralExtractor struct{}

// NewStructuralExtractor creates a structural extractor.
func NewStructuralExtractor() *StructuralExtractor {
	return &StructuralExtractor{}
}

// Extract runs the heuristic cascade over the HTML; the first heuristic to
// produce sections wins. A page that only embeds a third-party ordering
// iframe gets a single placeholder reference rather than fabricated content.
func (e *StructuralExtractor) Extract(html string) (*domain.ExtractionResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	// Ordered cascade of pure heuristics, first non-empty result wins.
	heuristics := []func(*goquery.Document) []domain.MenuSection{
		extractByHeadings,
		extractBareTables,
		extractCardGrids,
		extractFlatListItems,
	}
	for _, heuristic := range heuristics {
		sections := CleanSections(heuristic(doc))
		if len(sections) > 0 {
			return &domain.ExtractionResult{
				Sections:          sections,
				Method:            domain.MethodStructural,
				RawCandidateCount: countItems(sections),
			}, nil
		}
	}

	if hasAggregatorIframe(doc) {
		return &domain.ExtractionResult{
			Sections: []domain.MenuSection{{
				SectionName: "Embedded Ordering",
				Items: []domain.MenuItem{{
					Name:        "Embedded Ordering",
					Description: "Menu is served through a third-party ordering widget",
				}},
			}},
			Method: domain.MethodEmbeddedIframe,
		}, nil
	}

	return &domain.ExtractionResult{Method: domain.MethodStructural}, nil
}

// ExtractFromText is the plain-text structural pass used for PDF text. Lines
// carrying a price become items; short unpriced lines open new sections;
// other unpriced lines extend the previous item's description.
func (e *StructuralExtractor) ExtractFromText(text string) (*domain.ExtractionResult, error) {
	var sections []domain.MenuSection
	current := domain.MenuSection{SectionName: "Menu"}

	flush := func() {
		if len(current.Items) > 0 {
			sections = append(sections, current)
		}
	}

	for _, rawLine := range strings.Split(text, "\n") {
		line := menutext.CollapseWhitespace(rawLine)
		if line == "" || junkNameRegex.MatchString(line) {
			continue
		}

		if menutext.HasPrice(line) {
			if item, ok := itemFromLine(line); ok {
				current.Items = append(current.Items, item)
			}
			continue
		}

		if looksLikeSectionHeader(line) {
			flush()
			current = domain.MenuSection{SectionName: line}
			continue
		}

		// Unpriced continuation line extends the previous item's description.
		if n := len(current.Items); n > 0 {
			prev := &current.Items[n-1]
			if prev.Description == "" {
				prev.Description = line
			}
		}
	}
	flush()

	sections = CleanSections(sections)
	return &domain.ExtractionResult{
		Sections:          sections,
		Method:            domain.MethodPDFText,
		RawCandidateCount: countItems(sections),
	}, nil
}

// extractByHeadings walks each H1-H4 and collects items from the sibling
// content that follows it, up to the next heading.
func extractByHeadings(doc *goquery.Document) []domain.MenuSection {
	var sections []domain.MenuSection

	doc.Find(headingSelector).Each(func(_ int, heading *goquery.Selection) {
		name := menutext.CollapseWhitespace(heading.Text())
		if name == "" {
			return
		}

		var items []domain.MenuItem
		heading.NextUntil(headingSelector).Each(func(_ int, sibling *goquery.Selection) {
			items = append(items, itemsFromContainer(sibling)...)
		})

		if len(items) > 0 {
			sections = append(sections, domain.MenuSection{SectionName: name, Items: items})
		}
	})

	return sections
}

// extractBareTables handles menus laid out as tables with no usable heading
// structure, naming each section from the nearest preceding heading or
// "Menu".
func extractBareTables(doc *goquery.Document) []domain.MenuSection {
	var sections []domain.MenuSection

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		items := itemsFromTable(table)
		if len(items) == 0 {
			return
		}

		name := "Menu"
		if prev := table.PrevAllFiltered(headingSelector).First(); prev.Length() > 0 {
			if text := menutext.CollapseWhitespace(prev.Text()); text != "" {
				name = text
			}
		}
		sections = append(sections, domain.MenuSection{SectionName: name, Items: items})
	})

	return sections
}

// extractCardGrids scans card/grid item containers site-wide.
func extractCardGrids(doc *goquery.Document) []domain.MenuSection {
	var items []domain.MenuItem
	doc.Find(cardSelector).Each(func(_ int, card *goquery.Selection) {
		if item, ok := itemFromCard(card); ok {
			items = append(items, item)
		}
	})
	if len(items) == 0 {
		return nil
	}
	return []domain.MenuSection{{SectionName: "Menu", Items: items}}
}

// extractFlatListItems is the last-resort scan over every list item that
// carries a price.
func extractFlatListItems(doc *goquery.Document) []domain.MenuSection {
	var items []domain.MenuItem
	doc.Find("li").Each(func(_ int, li *goquery.Selection) {
		text := menutext.CollapseWhitespace(li.Text())
		if !menutext.HasPrice(text) {
			return
		}
		if item, ok := itemFromLine(text); ok {
			items = append(items, item)
		}
	})
	if len(items) == 0 {
		return nil
	}
	return []domain.MenuSection{{SectionName: "Menu", Items: items}}
}

// itemsFromContainer collects items from one sibling element under a
// heading: lists, tables, cards, and price-bearing paragraphs.
func itemsFromContainer(s *goquery.Selection) []domain.MenuItem {
	var items []domain.MenuItem

	if goquery.NodeName(s) == "table" {
		return itemsFromTable(s)
	}
	if tables := s.Find("table"); tables.Length() > 0 {
		tables.Each(func(_ int, table *goquery.Selection) {
			items = append(items, itemsFromTable(table)...)
		})
		if len(items) > 0 {
			return items
		}
	}

	if cards := s.Find(cardSelector); cards.Length() > 0 {
		cards.Each(func(_ int, card *goquery.Selection) {
			if item, ok := itemFromCard(card); ok {
				items = append(items, item)
			}
		})
		if len(items) > 0 {
			return items
		}
	}

	listItems := s.Find("li")
	if goquery.NodeName(s) == "li" {
		listItems = s
	}
	listItems.Each(func(_ int, li *goquery.Selection) {
		if item, ok := itemFromLine(menutext.CollapseWhitespace(li.Text())); ok {
			items = append(items, item)
		}
	})
	if len(items) > 0 {
		return items
	}

	// Price-bearing paragraphs.
	paragraphs := s.Find("p")
	if goquery.NodeName(s) == "p" {
		paragraphs = s
	}
	paragraphs.Each(func(_ int, p *goquery.Selection) {
		text := menutext.CollapseWhitespace(p.Text())
		if !menutext.HasPrice(text) {
			return
		}
		if item, ok := itemFromLine(text); ok {
			items = append(items, item)
		}
	})

	return items
}

// itemsFromTable reads one item per row: first cell name, last price-like
// cell price, the rest description.
func itemsFromTable(table *goquery.Selection) []domain.MenuItem {
	var items []domain.MenuItem
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() == 0 {
			return
		}

		var name, description string
		var price *float64
		cells.Each(func(i int, cell *goquery.Selection) {
			text := menutext.CollapseWhitespace(cell.Text())
			switch {
			case i == 0:
				name = text
			case menutext.HasPrice(text) && price == nil:
				price = menutext.ParsePrice(text)
			case text != "":
				if description != "" {
					description += " "
				}
				description += text
			}
		})

		if name == "" {
			return
		}
		if row.Find("th").Length() == cells.Length() {
			return // header row
		}
		items = append(items, domain.MenuItem{Name: name, Description: description, Price: price})
	})
	return items
}

// itemFromCard reads a card-like container: title element for the name, a
// price-marked element or the card text for the price, paragraphs for the
// description.
func itemFromCard(card *goquery.Selection) (domain.MenuItem, bool) {
	name := menutext.CollapseWhitespace(card.Find("h3, h4, h5, .title, .name, strong, b").First().Text())
	if name == "" {
		// Cards without an explicit title fall back to line parsing.
		return itemFromLine(menutext.CollapseWhitespace(card.Text()))
	}

	var price *float64
	if priceText := card.Find(".price, [class*='price']").First().Text(); priceText != "" {
		price = menutext.ParsePrice(priceText)
	}
	cardText := menutext.CollapseWhitespace(card.Text())
	if price == nil && menutext.HasPrice(cardText) {
		price = menutext.ParsePrice(priceAnchoredRegex.FindString(cardText))
	}

	description := menutext.CollapseWhitespace(card.Find("p, .description").First().Text())
	description = stripPriceSuffix(description)

	return domain.MenuItem{Name: name, Description: description, Price: price}, true
}

// priceAnchoredRegex locates the price token inside a free-text line.
var priceAnchoredRegex = regexp.MustCompile(`\$\s*\d{1,4}(?:\.\d{1,2})?|\b\d{1,4}\.\d{2}\b`)

// nameSeparators split an item name from its description in a flat line.
var nameSeparatorRegex = regexp.MustCompile(`\s+[-–—|]\s+|\.{2,}\s*`)

// itemFromLine parses "Crab Cakes - lump crab, remoulade $14.50" style lines.
func itemFromLine(line string) (domain.MenuItem, bool) {
	if line == "" || junkNameRegex.MatchString(line) {
		return domain.MenuItem{}, false
	}

	var price *float64
	if loc := priceAnchoredRegex.FindStringIndex(line); loc != nil {
		price = menutext.ParsePrice(line[loc[0]:loc[1]])
		line = menutext.CollapseWhitespace(line[:loc[0]] + " " + line[loc[1]:])
	}

	name := line
	description := ""
	if loc := nameSeparatorRegex.FindStringIndex(line); loc != nil {
		name = strings.TrimSpace(line[:loc[0]])
		description = strings.TrimSpace(line[loc[1]:])
	}

	name = strings.Trim(name, " .-–—|")
	if name == "" {
		return domain.MenuItem{}, false
	}
	return domain.MenuItem{Name: name, Description: description, Price: price}, true
}

// looksLikeSectionHeader flags short, unpriced, non-sentence lines in plain
// text as section headings.
func looksLikeSectionHeader(line string) bool {
	if len(line) > 40 || strings.HasSuffix(line, ".") {
		return false
	}
	words := strings.Fields(line)
	return len(words) > 0 && len(words) <= 5
}

// stripPriceSuffix removes a trailing price token from description text.
func stripPriceSuffix(s string) string {
	return menutext.CollapseWhitespace(priceAnchoredRegex.ReplaceAllString(s, ""))
}

// hasAggregatorIframe reports whether the page embeds a third-party ordering
// iframe from a denylisted domain.
func hasAggregatorIframe(doc *goquery.Document) bool {
	found := false
	doc.Find("iframe[src]").EachWithBreak(func(_ int, iframe *goquery.Selection) bool {
		src, _ := iframe.Attr("src")
		parsed, err := url.Parse(src)
		if err == nil && IsAggregatorHost(parsed.Hostname()) {
			found = true
			return false
		}
		return true
	})
	return found
}

// CleanSections applies the shared invariants: trimmed non-empty names, junk
// filter, case-insensitive per-section dedupe (first occurrence wins), and
// no empty sections. Running it twice yields the same result.
func CleanSections(sections []domain.MenuSection) []domain.MenuSection {
	var out []domain.MenuSection
	for _, section := range sections {
		seen := make(map[string]bool)
		cleaned := domain.MenuSection{SectionName: menutext.CollapseWhitespace(section.SectionName)}
		for _, item := range section.Items {
			name := menutext.CollapseWhitespace(item.Name)
			if name == "" || junkNameRegex.MatchString(name) {
				continue
			}
			key := strings.ToLower(name)
			if seen[key] {
				continue
			}
			seen[key] = true
			item.Name = name
			item.Description = menutext.CollapseWhitespace(item.Description)
			cleaned.Items = append(cleaned.Items, item)
		}
		if len(cleaned.Items) > 0 {
			out = append(out, cleaned)
		}
	}
	return out
}

func countItems(sections []domain.MenuSection) int {
	n := 0
	for _, s := range sections {
		n += len(s.Items)
	}
	return n
}

package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseURLSuggestions(t *testing.T) {
	t.Run("bare JSON array", func(t *testing.T) {
		urls := ParseURLSuggestions(`["https://a.com/menu", "https://a.com/dinner"]`)
		assert.Equal(t, []string{"https://a.com/menu", "https://a.com/dinner"}, urls)
	})

	t.Run("wrapped urls object", func(t *testing.T) {
		urls := ParseURLSuggestions(`{"urls": ["https://a.com/menu"]}`)
		assert.Equal(t, []string{"https://a.com/menu"}, urls)
	})

	t.Run("malformed JSON falls back to regex scan", func(t *testing.T) {
		urls := ParseURLSuggestions(`Sure! Try https://a.com/menu and maybe https://a.com/menus/dinner.pdf`)
		assert.Len(t, urls, 2)
		assert.Equal(t, "https://a.com/menu", urls[0])
	})

	t.Run("total garbage yields empty set", func(t *testing.T) {
		assert.Empty(t, ParseURLSuggestions("no links here"))
		assert.Empty(t, ParseURLSuggestions(""))
	})

	t.Run("caps at three suggestions", func(t *testing.T) {
		urls := ParseURLSuggestions(`["https://a.com/1","https://a.com/2","https://a.com/3","https://a.com/4"]`)
		assert.Len(t, urls, 3)
	})

	t.Run("drops empty entries", func(t *testing.T) {
		urls := ParseURLSuggestions(`["", "https://a.com/menu", "  "]`)
		assert.Equal(t, []string{"https://a.com/menu"}, urls)
	})
}

package feed

import (
	"testing"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
)

func TestFeedAdapter_GetLinks(t *testing.T) {
	tests := []struct {
		name     string
		feed     *gofeed.Feed
		expected []string
	}{
		{
			name: "全アイテムのリンクが抽出される",
			feed: &gofeed.Feed{
				Items: []*gofeed.Item{
					{Link: "https://example.com/a"},
					{Link: "https://example.com/b"},
				},
			},
			expected: []string{"https://example.com/a", "https://example.com/b"},
		},
		{
			name: "空のリンクはスキップされる",
			feed: &gofeed.Feed{
				Items: []*gofeed.Item{
					{Link: "https://example.com/a"},
					{Link: ""},
					{Link: "https://example.com/c"},
				},
			},
			expected: []string{"https://example.com/a", "https://example.com/c"},
		},
		{
			name:     "アイテムなし",
			feed:     &gofeed.Feed{},
			expected: []string{},
		},
		{
			name:     "nilフィード",
			feed:     nil,
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := NewFeedAdapter(tt.feed)
			assert.Equal(t, tt.expected, adapter.GetLinks())
		})
	}
}

func TestGetAllLinks(t *testing.T) {
	t.Run("LinkSource経由でリンクが取得できる", func(t *testing.T) {
		adapter := NewFeedAdapter(&gofeed.Feed{
			Items: []*gofeed.Item{{Link: "https://example.com/a"}},
		})
		assert.Equal(t, []string{"https://example.com/a"}, GetAllLinks(adapter))
	})

	t.Run("nilのLinkSourceは空スライスを返す", func(t *testing.T) {
		assert.Equal(t, []string{}, GetAllLinks(nil))
	})
}

package cmd

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureScheme(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{
			name:     "スキームなしはhttpsが補完される",
			input:    "example.com/page",
			expected: "https://example.com/page",
		},
		{
			name:     "httpスキームは尊重される",
			input:    "http://example.com",
			expected: "http://example.com",
		},
		{
			name:     "httpsスキームは尊重される",
			input:    "https://example.com",
			expected: "https://example.com",
		},
		{
			name:    "ftpスキームはエラー",
			input:   "ftp://example.com",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ensureScheme(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseHeaderFlags(t *testing.T) {
	t.Run("複数ヘッダーのパース", func(t *testing.T) {
		header, err := parseHeaderFlags([]string{
			"Accept: application/json",
			"X-Token: abc:def", // 値側のコロンは保持される
		})
		require.NoError(t, err)
		assert.Equal(t, "application/json", header.Get("Accept"))
		assert.Equal(t, "abc:def", header.Get("X-Token"))
	})

	t.Run("同じキーの複数指定は追記される", func(t *testing.T) {
		header, err := parseHeaderFlags([]string{
			"Accept: text/html",
			"Accept: application/json",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"text/html", "application/json"}, header[http.CanonicalHeaderKey("Accept")])
	})

	t.Run("空の入力はnilを返す", func(t *testing.T) {
		header, err := parseHeaderFlags(nil)
		require.NoError(t, err)
		assert.Nil(t, header)
	})

	t.Run("コロンがない場合はエラー", func(t *testing.T) {
		_, err := parseHeaderFlags([]string{"invalid-header"})
		assert.Error(t, err)
	})

	t.Run("キーが空の場合はエラー", func(t *testing.T) {
		_, err := parseHeaderFlags([]string{": value-only"})
		assert.Error(t, err)
	})
}

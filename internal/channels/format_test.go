package channels

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk(t *testing.T) {
	tests := []struct {
		name   string
		length int
		limit  int
		want   []int
	}{
		{"short", 10, 2000, []int{10}},
		{"exact", 2000, 2000, []int{2000}},
		{"discord overflow", 2731, 2000, []int{2000, 731}},
		{"telegram", 9000, 4096, []int{4096, 4096, 808}},
		{"empty", 0, 2000, []int{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := strings.Repeat("x", tt.length)
			chunks := Chunk(text, tt.limit)
			require.Len(t, chunks, len(tt.want))
			for i, n := range tt.want {
				assert.Equal(t, n, utf8.RuneCountInString(chunks[i]))
			}
			assert.Equal(t, text, strings.Join(chunks, ""))
		})
	}
}

func TestChunk_MultibyteRunesStayWhole(t *testing.T) {
	text := strings.Repeat("привет🤖", 300)

	chunks := Chunk(text, 1000)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 1000)
	}
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestHeaders(t *testing.T) {
	assert.Equal(t, "🤖 [ops/heartbeat]", FormatHeader("ops", "heartbeat"))
	assert.Equal(t, "💬 [ops · reply]", FormatReply("ops"))
	assert.Equal(t, "🤖 [ops/a]\n\nhello", WithHeader(FormatHeader("ops", "a"), "hello"))
	assert.Equal(t, "hello", WithHeader("", "hello"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "пр", Truncate("привет", 2))
}

func TestMessages_HeaderDoesNotChangeChunking(t *testing.T) {
	header := FormatHeader("ops", "nightly")

	t.Run("header fits into first chunk", func(t *testing.T) {
		text := strings.Repeat("x", 1500)
		msgs := Messages(header, text, 2000)
		require.Len(t, msgs, 1)
		assert.Equal(t, WithHeader(header, text), msgs[0])
	})

	t.Run("2731 on discord", func(t *testing.T) {
		text := strings.Repeat("x", 2731)
		msgs := Messages(header, text, 2000)
		require.Len(t, msgs, 3)
		assert.Equal(t, header, msgs[0])
		assert.Equal(t, 2000, utf8.RuneCountInString(msgs[1]))
		assert.Equal(t, 731, utf8.RuneCountInString(msgs[2]))
		assert.Equal(t, text, strings.Join(msgs[1:], ""))
	})

	t.Run("8190 on telegram", func(t *testing.T) {
		text := strings.Repeat("x", 8190)
		msgs := Messages(header, text, 4096)
		require.Len(t, msgs, 3)
		assert.Equal(t, text, strings.Join(msgs[1:], ""))
	})

	t.Run("short tail with header", func(t *testing.T) {
		text := strings.Repeat("x", 3990)
		msgs := Messages(header, text, 2000)
		require.Len(t, msgs, 3)
		for _, m := range msgs {
			assert.LessOrEqual(t, utf8.RuneCountInString(m), 2000)
		}
	})

	t.Run("no header", func(t *testing.T) {
		msgs := Messages("", strings.Repeat("x", 2731), 2000)
		require.Len(t, msgs, 2)
	})
}

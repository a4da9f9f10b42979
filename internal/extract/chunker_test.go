package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkEmptyInput(t *testing.T) {
	require.Empty(t, Chunk("", DefaultMaxChunkSize, DefaultOverlapHint))
	require.Empty(t, Chunk("   \n\t  ", DefaultMaxChunkSize, DefaultOverlapHint))
}

func TestChunkShortTextSingleChunk(t *testing.T) {
	chunks := Chunk("Just one short sentence.", DefaultMaxChunkSize, DefaultOverlapHint)
	require.Equal(t, []string{"Just one short sentence."}, chunks)
}

func TestChunkCollapsesWhitespace(t *testing.T) {
	chunks := Chunk("hello\n\n   world\t again", DefaultMaxChunkSize, DefaultOverlapHint)
	require.Equal(t, []string{"hello world again"}, chunks)
}

func TestChunkRespectsMaxSize(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("This sentence pads the input with ordinary words. ")
	}
	chunks := Chunk(b.String(), 500, 50)
	require.GreaterOrEqual(t, len(chunks), 5)
	for _, chunk := range chunks {
		require.LessOrEqual(t, len(chunk), 500)
		require.NotEmpty(t, chunk)
	}
}

func TestChunkKeepsAllWords(t *testing.T) {
	text := "First sentence here. Second sentence follows. Third one closes it."
	chunks := Chunk(text, 30, 5)
	joined := strings.Join(chunks, " ")
	for _, word := range strings.Fields(text) {
		require.Contains(t, joined, word)
	}
}

func TestChunkSplitsSentenceLongerThanMax(t *testing.T) {
	long := strings.Repeat("word ", 100) + "end"
	chunks := Chunk(long, 50, 0)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		require.LessOrEqual(t, len(chunk), 50)
	}
}

func TestChunkHardCutsOversizedWord(t *testing.T) {
	word := strings.Repeat("x", 120)
	chunks := Chunk(word, 50, 0)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		require.LessOrEqual(t, len(chunk), 50)
	}
	require.Equal(t, word, strings.Join(chunks, ""))
}

func TestSplitSentencesTerminalPunctuation(t *testing.T) {
	got := splitSentences("One stops here. Two asks? Three shouts! Four trails off")
	require.Len(t, got, 4)
	require.Equal(t, "One stops here.", strings.TrimSpace(got[0]))
	require.Equal(t, "Four trails off", strings.TrimSpace(got[3]))
}

func TestEstimateTokens(t *testing.T) {
	require.Zero(t, EstimateTokens(""))
	require.Equal(t, 3, EstimateTokens("three short words"))
	// Non-ASCII runes count on top of whitespace-separated words.
	require.Greater(t, EstimateTokens("héllo wörld"), 2)
}

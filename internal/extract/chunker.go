package extract

import "strings"

const (
	DefaultMaxChunkSize = 500
	DefaultOverlapHint  = 50
)

// Chunk splits text into fragments of at most maxSize characters. Whitespace
// runs are collapsed first; the text is then packed sentence by sentence, and
// a sentence longer than maxSize is packed word by word. Deterministic, pure
// function of its input.
//
// overlapHint is accepted for interface symmetry but the packing never
// duplicates text across chunk boundaries; whether true overlap is needed for
// retrieval quality is an open product question, so the parameter is kept
// without being acted on.
func Chunk(text string, maxSize int, overlapHint int) []string {
	_ = overlapHint
	if maxSize <= 0 {
		maxSize = DefaultMaxChunkSize
	}
	collapsed := strings.Join(strings.Fields(text), " ")
	if collapsed == "" {
		return nil
	}
	if len(collapsed) <= maxSize {
		return []string{collapsed}
	}

	var chunks []string
	var buf strings.Builder
	flush := func() {
		if buf.Len() > 0 {
			chunks = append(chunks, buf.String())
			buf.Reset()
		}
	}
	appendPiece := func(piece string) {
		if buf.Len() == 0 {
			buf.WriteString(piece)
			return
		}
		buf.WriteString(" ")
		buf.WriteString(piece)
	}

	for _, sentence := range splitSentences(collapsed) {
		if len(sentence) > maxSize {
			// Word-level fallback for an oversized sentence.
			for _, word := range strings.Fields(sentence) {
				for len(word) > maxSize {
					flush()
					chunks = append(chunks, word[:maxSize])
					word = word[maxSize:]
				}
				if word == "" {
					continue
				}
				if buf.Len() > 0 && buf.Len()+1+len(word) > maxSize {
					flush()
				}
				appendPiece(word)
			}
			continue
		}
		joined := len(sentence)
		if buf.Len() > 0 {
			joined += buf.Len() + 1
		}
		if joined > maxSize {
			flush()
		}
		appendPiece(sentence)
	}
	flush()
	return chunks
}

// splitSentences cuts on terminal punctuation followed by a space. The input
// is already whitespace-collapsed.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		// Consume a punctuation run ("?!", "...").
		end := i
		for end+1 < len(text) && (text[end+1] == '.' || text[end+1] == '!' || text[end+1] == '?') {
			end++
		}
		if end+1 < len(text) && text[end+1] != ' ' {
			i = end
			continue
		}
		sentence := strings.TrimSpace(text[start : end+1])
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = end + 1
		i = end
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// EstimateTokens is a cheap token-count heuristic: words for ASCII text plus
// one per non-ASCII rune.
func EstimateTokens(text string) int {
	count := 0
	for _, r := range text {
		if r > 127 {
			count++
		}
	}
	count += len(strings.Fields(text))
	if count == 0 && len(text) > 0 {
		return 1
	}
	return count
}

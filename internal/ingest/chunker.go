package ingest

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultChunkSize is the maximum chunk length in characters.
const DefaultChunkSize = 1000

var (
	paragraphBreak  = regexp.MustCompile(`\n[ \t]*\n`)
	horizontalSpace = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	excessNewlines  = regexp.MustCompile(`\n{3,}`)
)

// Normalize collapses runs of horizontal whitespace, trims every line and keeps at
// most one blank line between paragraphs.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = horizontalSpace.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = excessNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Chunk splits text into pieces of at most size characters. Sentences are packed
// greedily; a sentence longer than size is split on rune boundaries, preferring the
// last space in the window.
func Chunk(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}

	var (
		chunks  []string
		current strings.Builder
		curLen  int
	)
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			curLen = 0
		}
	}

	for _, sentence := range Sentences(text) {
		n := utf8.RuneCountInString(sentence)
		switch {
		case n > size:
			flush()
			chunks = append(chunks, hardSplit(sentence, size)...)
		case curLen == 0:
			current.WriteString(sentence)
			curLen = n
		case curLen+1+n <= size:
			current.WriteByte(' ')
			current.WriteString(sentence)
			curLen += 1 + n
		default:
			flush()
			current.WriteString(sentence)
			curLen = n
		}
	}
	flush()

	return chunks
}

// Sentences splits text at '.', '!' or '?' followed by whitespace or the end of
// text. Paragraph breaks also end a sentence; single newlines are folded into spaces.
func Sentences(text string) []string {
	var sentences []string
	for _, paragraph := range paragraphBreak.Split(Normalize(text), -1) {
		paragraph = strings.Join(strings.Fields(paragraph), " ")
		if paragraph == "" {
			continue
		}

		runes := []rune(paragraph)
		start := 0
		for i, r := range runes {
			if r != '.' && r != '!' && r != '?' {
				continue
			}
			if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
				continue
			}
			if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

func hardSplit(sentence string, size int) []string {
	runes := []rune(sentence)
	var parts []string
	for len(runes) > size {
		cut := size
		for i := size; i > size/2; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
		if part := strings.TrimSpace(string(runes[:cut])); part != "" {
			parts = append(parts, part)
		}
		runes = []rune(strings.TrimLeftFunc(string(runes[cut:]), unicode.IsSpace))
	}
	if part := strings.TrimSpace(string(runes)); part != "" {
		parts = append(parts, part)
	}
	return parts
}

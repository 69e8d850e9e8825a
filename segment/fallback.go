package segment

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)

// Split is the deterministic fallback splitter. It splits text on blank-line
// paragraph boundaries and accumulates paragraphs until the character budget
// would be exceeded; a paragraph that alone exceeds the budget is further
// split on sentence boundaries. No input is ever dropped, and no fragment
// exceeds the budget except a single unsplittable sentence.
func Split(text string, budget int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if budget <= 0 {
		budget = DefaultChunkChars
	}

	var fragments []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if curLen > 0 {
			fragments = append(fragments, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, para := range paragraphBreak.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		n := utf8.RuneCountInString(para)
		if n > budget {
			flush()
			fragments = append(fragments, packSentences(para, budget)...)
			continue
		}
		if curLen > 0 && curLen+2+n > budget {
			flush()
		}
		if curLen > 0 {
			cur.WriteString("\n\n")
			curLen += 2
		}
		cur.WriteString(para)
		curLen += n
	}
	flush()
	return fragments
}

// packSentences greedily packs the paragraph's sentences into fragments
// within the budget. A single sentence over the budget is emitted alone.
func packSentences(paragraph string, budget int) []string {
	var out []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if curLen > 0 {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, sentence := range splitSentences(paragraph) {
		n := utf8.RuneCountInString(sentence)
		if n > budget {
			flush()
			out = append(out, sentence)
			continue
		}
		if curLen > 0 && curLen+1+n > budget {
			flush()
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(sentence)
		curLen += n
	}
	flush()
	return out
}

// splitSentences splits on terminal punctuation followed by whitespace or
// end of input, keeping trailing closers with their sentence.
func splitSentences(s string) []string {
	var sentences []string
	runes := []rune(s)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		j := i + 1
		for j < len(runes) && (isTerminal(runes[j]) || isCloser(runes[j])) {
			j++
		}
		if j < len(runes) && !unicode.IsSpace(runes[j]) {
			continue
		}
		if sentence := strings.TrimSpace(string(runes[start:j])); sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = j
		i = j - 1
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCloser(r rune) bool {
	return r == '"' || r == '\'' || r == ')' || r == ']' || r == '»' || r == '”'
}

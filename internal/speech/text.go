package speech

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// DefaultMaxChars bounds the text sent for synthesis.
const DefaultMaxChars = 1200

var markup = strings.NewReplacer("*", "", "#", "")

var (
	tokenizerOnce sync.Once
	tokenizer     *sentences.DefaultSentenceTokenizer
)

func sentenceTokenizer() *sentences.DefaultSentenceTokenizer {
	tokenizerOnce.Do(func() {
		t, err := english.NewSentenceTokenizer(nil)
		if err == nil {
			tokenizer = t
		}
	})
	return tokenizer
}

// PrepareText strips markdown emphasis and heading marks, collapses whitespace
// and bounds the result to maxChars characters. Truncation keeps whole
// sentences where at least one fits, otherwise it cuts at maxChars.
func PrepareText(text string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	text = strings.Join(strings.Fields(markup.Replace(text)), " ")
	if utf8.RuneCountInString(text) <= maxChars {
		return text
	}

	if t := sentenceTokenizer(); t != nil {
		kept := leadingSentences(t.Tokenize(text), maxChars)
		if kept != "" && 2*utf8.RuneCountInString(kept) >= maxChars {
			return kept
		}
	}
	return truncateRunes(text, maxChars)
}

func leadingSentences(sents []*sentences.Sentence, maxChars int) string {
	var b strings.Builder
	n := 0
	for _, s := range sents {
		st := strings.TrimSpace(s.Text)
		if st == "" {
			continue
		}
		need := utf8.RuneCountInString(st)
		if n > 0 {
			need++
		}
		if n+need > maxChars {
			break
		}
		if n > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(st)
		n += need
	}
	return b.String()
}

func truncateRunes(s string, maxChars int) string {
	i := 0
	for pos := range s {
		if i == maxChars {
			return strings.TrimSpace(s[:pos])
		}
		i++
	}
	return s
}

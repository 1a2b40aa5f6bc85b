package model

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
)

const subwordPrefix = "##"

// Tokenizer is a WordPiece tokenizer over a vocab.txt file (one token per
// line, line number = token id). It covers what the text decoder needs:
// greedy longest-match encoding and subword-merging decoding.
type Tokenizer struct {
	vocab  map[string]int64
	tokens []string
	unkID  int64
	lower  bool
}

func LoadTokenizer(vocabPath string, lower bool) (*Tokenizer, error) {
	f, err := os.Open(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocab: %w", err)
	}
	defer f.Close()

	t := &Tokenizer{
		vocab: make(map[string]int64),
		lower: lower,
		unkID: -1,
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		token := strings.TrimRight(scanner.Text(), "\r\n")
		t.vocab[token] = int64(len(t.tokens))
		t.tokens = append(t.tokens, token)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vocab: %w", err)
	}

	unk, ok := t.vocab["[UNK]"]
	if !ok {
		return nil, fmt.Errorf("vocab %s has no [UNK] token", vocabPath)
	}
	t.unkID = unk

	return t, nil
}

// Encode splits text on whitespace and punctuation, then applies greedy
// longest-match WordPiece to each word. Words with no matching piece map to
// [UNK].
func (t *Tokenizer) Encode(text string) []int64 {
	if t.lower {
		text = strings.ToLower(text)
	}

	var ids []int64
	for _, word := range splitWords(text) {
		ids = append(ids, t.wordToIDs(word)...)
	}
	return ids
}

func (t *Tokenizer) wordToIDs(word string) []int64 {
	var out []int64
	runes := []rune(word)
	start := 0
	for start < len(runes) {
		matched := int64(-1)
		end := len(runes)
		for end > start {
			piece := string(runes[start:end])
			if start > 0 {
				piece = subwordPrefix + piece
			}
			if id, ok := t.vocab[piece]; ok {
				matched = id
				break
			}
			end--
		}
		if matched < 0 {
			return []int64{t.unkID}
		}
		out = append(out, matched)
		start = end
	}
	return out
}

// Decode turns token ids back into text, skipping the given special ids and
// merging ## continuations into their preceding word.
func (t *Tokenizer) Decode(ids []int64, skip map[int64]bool) string {
	var sb strings.Builder
	for _, id := range ids {
		if skip[id] || id < 0 || id >= int64(len(t.tokens)) {
			continue
		}
		token := t.tokens[id]
		if rest, ok := strings.CutPrefix(token, subwordPrefix); ok {
			sb.WriteString(rest)
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(token)
	}
	return cleanUpSpacing(sb.String())
}

var spacingCleaner = strings.NewReplacer(
	" .", ".",
	" ,", ",",
	" !", "!",
	" ?", "?",
	" ;", ";",
	" :", ":",
	" '", "'",
)

func cleanUpSpacing(s string) string {
	return spacingCleaner.Replace(s)
}

func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}

	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			words = append(words, string(r))
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return words
}

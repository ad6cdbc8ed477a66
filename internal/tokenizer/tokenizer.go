// Package tokenizer implements BERT-style WordPiece tokenization over a model directory's vocab.
package tokenizer

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// File names looked up inside a model directory.
const (
	VocabFile  = "vocab.txt"
	ConfigFile = "tokenizer_config.json"
)

const defaultMaxWordChars = 100

// Encoding is a padded batch of token ids ready for a classifier forward pass.
// All rows have length SeqLen.
type Encoding struct {
	InputIDs      [][]int64
	AttentionMask [][]int64
	TokenTypeIDs  [][]int64
	SeqLen        int
}

// BatchSize returns the number of rows in the encoding.
func (e Encoding) BatchSize() int { return len(e.InputIDs) }

// Tokenizer turns raw texts into a padded batch encoding.
type Tokenizer interface {
	EncodeBatch(texts []string, maxLen int) (Encoding, error)
}

type fileConfig struct {
	DoLowerCase *bool      `json:"do_lower_case"`
	UnkToken    tokenField `json:"unk_token"`
	ClsToken    tokenField `json:"cls_token"`
	SepToken    tokenField `json:"sep_token"`
	PadToken    tokenField `json:"pad_token"`
}

// tokenField accepts both "[UNK]" and {"content": "[UNK]", ...} forms.
type tokenField string

func (f *tokenField) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = tokenField(s)
		return nil
	}
	var obj struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("token field: %w", err)
	}
	*f = tokenField(obj.Content)
	return nil
}

// WordPiece is a stateful tokenizer: it reuses scratch buffers between calls
// and must not be shared between goroutines. Pool it instead.
type WordPiece struct {
	vocab        map[string]int64
	lowercase    bool
	unkID        int64
	clsID        int64
	sepID        int64
	padID        int64
	maxWordChars int

	words  []string
	pieces []int64
	sb     strings.Builder
}

var _ Tokenizer = (*WordPiece)(nil)

// Load reads vocab.txt and the optional tokenizer_config.json from dir.
func Load(dir string) (*WordPiece, error) {
	vocab, err := readVocab(filepath.Join(dir, VocabFile))
	if err != nil {
		return nil, err
	}

	cfg := fileConfig{UnkToken: "[UNK]", ClsToken: "[CLS]", SepToken: "[SEP]", PadToken: "[PAD]"}
	if err := readConfig(filepath.Join(dir, ConfigFile), &cfg); err != nil {
		return nil, err
	}

	lowercase := true
	if cfg.DoLowerCase != nil {
		lowercase = *cfg.DoLowerCase
	}

	return NewWordPiece(vocab, lowercase,
		string(cfg.UnkToken), string(cfg.ClsToken), string(cfg.SepToken), string(cfg.PadToken))
}

// NewWordPiece builds a tokenizer from an in-memory vocabulary.
func NewWordPiece(vocab map[string]int64, lowercase bool, unk, cls, sep, pad string) (*WordPiece, error) {
	t := &WordPiece{vocab: vocab, lowercase: lowercase, maxWordChars: defaultMaxWordChars}

	special := []struct {
		token string
		dst   *int64
	}{{unk, &t.unkID}, {cls, &t.clsID}, {sep, &t.sepID}, {pad, &t.padID}}
	for _, s := range special {
		id, ok := vocab[s.token]
		if !ok {
			return nil, fmt.Errorf("tokenizer: special token %q missing from vocab", s.token)
		}
		*s.dst = id
	}
	return t, nil
}

// EncodeBatch tokenizes texts, truncates each to maxLen ids including [CLS] and [SEP],
// and right-pads every row to the longest row in the batch.
func (t *WordPiece) EncodeBatch(texts []string, maxLen int) (Encoding, error) {
	if maxLen < 2 {
		return Encoding{}, fmt.Errorf("tokenizer: max length must be at least 2, got %d", maxLen)
	}

	rows := make([][]int64, len(texts))
	seqLen := 0
	for i, text := range texts {
		ids := t.encode(text, maxLen-2)
		row := make([]int64, 0, len(ids)+2)
		row = append(row, t.clsID)
		row = append(row, ids...)
		row = append(row, t.sepID)
		rows[i] = row
		seqLen = max(seqLen, len(row))
	}

	enc := Encoding{
		InputIDs:      make([][]int64, len(texts)),
		AttentionMask: make([][]int64, len(texts)),
		TokenTypeIDs:  make([][]int64, len(texts)),
		SeqLen:        seqLen,
	}
	for i, row := range rows {
		ids := make([]int64, seqLen)
		mask := make([]int64, seqLen)
		copy(ids, row)
		for j := range ids {
			if j < len(row) {
				mask[j] = 1
			} else {
				ids[j] = t.padID
			}
		}
		enc.InputIDs[i] = ids
		enc.AttentionMask[i] = mask
		enc.TokenTypeIDs[i] = make([]int64, seqLen)
	}
	return enc, nil
}

// Tokens returns the WordPiece strings for text, without special tokens. Used for debugging.
func (t *WordPiece) Tokens(text string) []string {
	inv := make(map[int64]string, len(t.vocab))
	for tok, id := range t.vocab {
		inv[id] = tok
	}
	ids := t.encode(text, -1)
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = inv[id]
	}
	return out
}

// encode returns at most limit ids for text; limit < 0 means unlimited.
func (t *WordPiece) encode(text string, limit int) []int64 {
	t.pieces = t.pieces[:0]
	for _, word := range t.basicTokens(text) {
		t.pieces = t.wordPiece(word, t.pieces)
		if limit >= 0 && len(t.pieces) >= limit {
			t.pieces = t.pieces[:limit]
			break
		}
	}
	out := make([]int64, len(t.pieces))
	copy(out, t.pieces)
	return out
}

// basicTokens cleans text, splits on whitespace and punctuation, isolates CJK
// ideographs and optionally lowercases with accent stripping.
func (t *WordPiece) basicTokens(text string) []string {
	t.words = t.words[:0]

	for _, field := range strings.Fields(t.clean(text)) {
		if t.lowercase {
			field = stripAccents(strings.ToLower(field))
		}
		t.words = splitPunct(field, t.words, &t.sb)
	}
	return t.words
}

func (t *WordPiece) clean(text string) string {
	t.sb.Reset()
	for _, r := range text {
		switch {
		case r == 0 || r == unicode.ReplacementChar || isControl(r):
			continue
		case unicode.IsSpace(r):
			t.sb.WriteByte(' ')
		case isCJK(r):
			t.sb.WriteByte(' ')
			t.sb.WriteRune(r)
			t.sb.WriteByte(' ')
		default:
			t.sb.WriteRune(r)
		}
	}
	return t.sb.String()
}

// wordPiece appends the greedy longest-match-first pieces of word to dst.
func (t *WordPiece) wordPiece(word string, dst []int64) []int64 {
	runes := []rune(word)
	if len(runes) > t.maxWordChars {
		return append(dst, t.unkID)
	}

	mark := len(dst)
	for start := 0; start < len(runes); {
		end := len(runes)
		found := int64(-1)
		for end > start {
			sub := string(runes[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if id, ok := t.vocab[sub]; ok {
				found = id
				break
			}
			end--
		}
		if found < 0 {
			return append(dst[:mark], t.unkID)
		}
		dst = append(dst, found)
		start = end
	}
	return dst
}

func splitPunct(word string, dst []string, sb *strings.Builder) []string {
	sb.Reset()
	for _, r := range word {
		if isPunct(r) {
			if sb.Len() > 0 {
				dst = append(dst, sb.String())
				sb.Reset()
			}
			dst = append(dst, string(r))
			continue
		}
		sb.WriteRune(r)
	}
	if sb.Len() > 0 {
		dst = append(dst, sb.String())
	}
	return dst
}

func stripAccents(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	// Left decomposed: Hangul syllables become conjoining jamo, matching lowercasing BERT vocabs.
	return b.String()
}

func isControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.IsControl(r) || unicode.In(r, unicode.Cf)
}

// isPunct treats every non-alphanumeric ASCII symbol as punctuation, like BERT does.
func isPunct(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0x2A700 && r <= 0x2B73F) ||
		(r >= 0x2B740 && r <= 0x2B81F) ||
		(r >= 0x2B820 && r <= 0x2CEAF) ||
		(r >= 0xF900 && r <= 0xFAFF) ||
		(r >= 0x2F800 && r <= 0x2FA1F)
}

func readVocab(path string) (map[string]int64, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("tokenizer: open vocab: %w", err)
	}
	defer func() { _ = f.Close() }()

	vocab := make(map[string]int64)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var id int64
	for sc.Scan() {
		tok := strings.TrimRight(sc.Text(), "\r")
		if _, dup := vocab[tok]; !dup {
			vocab[tok] = id
		}
		id++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("tokenizer: read vocab: %w", err)
	}
	if len(vocab) == 0 {
		return nil, fmt.Errorf("tokenizer: empty vocab %s", path)
	}
	return vocab, nil
}

func readConfig(path string, cfg *fileConfig) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("tokenizer: read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("tokenizer: parse config: %w", err)
	}
	return nil
}

package conversation

import "strings"

// SplitSentences splits a turn's text into sentence-like chunks so that audio
// timing can be attached per sentence. Splits on '.', '?', '!' and newlines,
// retaining punctuation.
func SplitSentences(text string) []string {
	txt := strings.TrimSpace(text)
	if txt == "" {
		return nil
	}
	var chunks []string
	var b strings.Builder
	flush := func() {
		chunk := strings.TrimSpace(b.String())
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		b.Reset()
	}
	for _, r := range txt {
		switch r {
		case '.', '!', '?', '。', '！', '？':
			b.WriteRune(r)
			flush()
		case '\n', '\r':
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return chunks
}

// FirstBlock cuts generated text at the first blank-line boundary. Guards
// against the generator producing extra turns in a single response.
func FirstBlock(text string) string {
	txt := strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if idx := strings.Index(txt, "\n\n"); idx >= 0 {
		txt = txt[:idx]
	}
	return strings.TrimSpace(txt)
}

// TimedSentences distributes a clip duration over sentence chunks in
// proportion to their rune length, producing the per-sentence timings the
// subtitle clock consumes. Used when the synthesizer does not report exact
// per-sentence boundaries.
func TimedSentences(chunks []string, totalSeconds float64) []Sentence {
	if len(chunks) == 0 {
		return nil
	}
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	total := 0
	for _, c := range chunks {
		total += len([]rune(c))
	}
	sentences := make([]Sentence, 0, len(chunks))
	cursor := 0.0
	for i, c := range chunks {
		var dur float64
		if total > 0 {
			dur = totalSeconds * float64(len([]rune(c))) / float64(total)
		}
		end := cursor + dur
		if i == len(chunks)-1 {
			end = totalSeconds
		}
		sentences = append(sentences, Sentence{Text: c, Start: cursor, End: end})
		cursor = end
	}
	return sentences
}

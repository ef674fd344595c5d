// Package segment implements the document-segmenter tool: a deterministic
// text chunker used by retrieval-oriented agents to keep each stored or
// embedded piece of a long document within a token budget, ported from the
// original engine's LLM-driven segmenter extension into a plain heuristic
// tool (no completion call, no external dependency: splitting text on
// paragraph/sentence boundaries is a pure string operation no library in
// the pack does any better than strings.Cut/strings.Fields).
package segment

import (
	"strings"

	ectx "github.com/xiaoyuanxun/anda-sub000/engine/context"
	"github.com/xiaoyuanxun/anda-sub000/tool"
	"github.com/xiaoyuanxun/anda-sub000/types"
)

// Args is the tool's input: the document to split and the per-segment
// token budget (defaults applied by New when zero).
type Args struct {
	Content       string `json:"content"`
	SegmentTokens int    `json:"segment_tokens,omitempty"`
}

// Output mirrors the original extension's SegmentOutput shape.
type Output struct {
	Segments []string `json:"segments"`
}

const (
	defaultSegmentTokens = 500
	defaultMaxTokens     = 8000
)

// New builds the document_segmenter tool.
func New() (*tool.TypedTool[Args, Output], error) {
	return tool.NewTypedTool("document_segmenter",
		"Split a lengthy document into semantically coherent segments that each stay under a token budget.",
		false, false,
		func(_ *ectx.BaseCtx, args Args, _ []types.Resource) (Output, []types.Resource, error) {
			return Output{Segments: Split(args.Content, segmentTokensOrDefault(args.SegmentTokens))}, nil, nil
		})
}

func segmentTokensOrDefault(n int) int {
	if n <= 0 {
		return defaultSegmentTokens
	}
	return n
}

// Split breaks content into segments that each stay within segmentTokens,
// preferring paragraph boundaries, then sentence boundaries, then a hard
// word-count cut as a last resort, matching the original's token-budget
// intent without invoking a model.
func Split(content string, segmentTokens int) []string {
	if types.EvaluateTokens(content) <= segmentTokens {
		if strings.TrimSpace(content) == "" {
			return nil
		}
		return []string{content}
	}

	paragraphs := strings.Split(content, "\n\n")
	var segments []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			segments = append(segments, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if types.EvaluateTokens(p) > segmentTokens {
			flush()
			segments = append(segments, splitBySentence(p, segmentTokens)...)
			continue
		}
		candidate := current.String()
		if candidate != "" {
			candidate += "\n\n"
		}
		candidate += p
		if types.EvaluateTokens(candidate) > segmentTokens {
			flush()
			current.WriteString(p)
		} else {
			current.Reset()
			current.WriteString(candidate)
		}
	}
	flush()
	return segments
}

// splitBySentence handles a single paragraph too large to fit in one
// segment, cutting on sentence-ending punctuation and falling back to a
// word-count cut if a single sentence still exceeds the budget.
func splitBySentence(paragraph string, segmentTokens int) []string {
	sentences := splitSentences(paragraph)
	var segments []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			segments = append(segments, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, s := range sentences {
		if types.EvaluateTokens(s) > segmentTokens {
			flush()
			segments = append(segments, splitByWords(s, segmentTokens)...)
			continue
		}
		candidate := current.String()
		if candidate != "" {
			candidate += " "
		}
		candidate += s
		if types.EvaluateTokens(candidate) > segmentTokens {
			flush()
			current.WriteString(s)
		} else {
			current.Reset()
			current.WriteString(candidate)
		}
	}
	flush()
	return segments
}

func splitSentences(s string) []string {
	var out []string
	start := 0
	for i, r := range s {
		switch r {
		case '.', '!', '?':
			if i+1 <= len(s) {
				out = append(out, strings.TrimSpace(s[start:i+1]))
				start = i + 1
			}
		}
	}
	if start < len(s) {
		if rest := strings.TrimSpace(s[start:]); rest != "" {
			out = append(out, rest)
		}
	}
	return out
}

func splitByWords(s string, segmentTokens int) []string {
	words := strings.Fields(s)
	var segments []string
	var current []string
	for _, w := range words {
		current = append(current, w)
		if types.EvaluateTokens(strings.Join(current, " ")) > segmentTokens {
			current = current[:len(current)-1]
			if len(current) > 0 {
				segments = append(segments, strings.Join(current, " "))
			}
			current = []string{w}
		}
	}
	if len(current) > 0 {
		segments = append(segments, strings.Join(current, " "))
	}
	return segments
}

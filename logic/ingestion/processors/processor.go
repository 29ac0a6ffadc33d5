package processors

import (
	"context"
	"regexp"
	"strings"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"lexanalyzer/pkg/logger"
)

var (
	controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	inlineSpace  = regexp.MustCompile(`[ \t\p{Zs}]+`)
	blankLines   = regexp.MustCompile(`\n\s*\n(\s*\n)+`)
)

// CleanText 清洗文本: drops NUL/control bytes and invalid UTF-8 left behind
// by PDF extraction, collapses runs of spaces and keeps at most one blank
// line between paragraphs.
func CleanText(text string) string {
	text = strings.ToValidUTF8(text, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = controlChars.ReplaceAllString(text, "")
	text = inlineSpace.ReplaceAllString(text, " ")
	text = blankLines.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Processor cleans every document in place and drops the ones left empty.
func Processor(ctx context.Context, src []*schema.Document) []*schema.Document {
	cleanDocs := make([]*schema.Document, 0, len(src))
	skipped := 0
	for _, doc := range src {
		if doc == nil {
			continue
		}
		doc.Content = CleanText(doc.Content)
		// 空文档直接跳过
		if doc.Content == "" {
			skipped++
			continue
		}
		cleanDocs = append(cleanDocs, doc)
	}
	if skipped > 0 {
		logger.WithContext(ctx).Warn("skipped empty documents", zap.Int("skipped", skipped))
	}
	return cleanDocs
}

// Join concatenates document contents into one text, one blank line apart.
func Join(docs []*schema.Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, d.Content)
	}
	return strings.Join(parts, "\n\n")
}

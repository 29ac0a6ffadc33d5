package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"lexanalyzer/logic/ingestion/processors"
	"lexanalyzer/pkg/logger"
)

var (
	ErrUnsupportedFile = errors.New("unsupported file type, expected .pdf, .txt or .md")
	ErrEmptyDocument   = errors.New("document contains no extractable text")
)

var supportedExt = map[string]bool{".pdf": true, ".txt": true, ".md": true}

// UploadService turns uploaded or local contract files into clean text.
type UploadService struct {
	parser parser.Parser
}

// NewUploadService parses PDFs with the eino PDF parser and everything else
// as plain text.
func NewUploadService(ctx context.Context) (*UploadService, error) {
	pdfParser, err := pdf.NewPDFParser(ctx, &pdf.Config{ToPages: false})
	if err != nil {
		return nil, fmt.Errorf("new pdf parser: %w", err)
	}
	extParser, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		Parsers:        map[string]parser.Parser{".pdf": pdfParser},
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("new ext parser: %w", err)
	}
	return NewUploadServiceWithParser(extParser), nil
}

func NewUploadServiceWithParser(p parser.Parser) *UploadService {
	return &UploadService{parser: p}
}

func checkExt(filename string) error {
	if !supportedExt[strings.ToLower(filepath.Ext(filename))] {
		return fmt.Errorf("%w: %s", ErrUnsupportedFile, filename)
	}
	return nil
}

// ExtractText parses an uploaded file.
func (s *UploadService) ExtractText(ctx context.Context, r io.Reader, filename string) (string, error) {
	if err := checkExt(filename); err != nil {
		return "", err
	}
	docs, err := s.parser.Parse(ctx, r, parser.WithURI(filename))
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", filename, err)
	}
	return s.clean(ctx, docs, filename)
}

// LoadFile reads and parses a contract from the local filesystem.
func (s *UploadService) LoadFile(ctx context.Context, path string) (string, error) {
	if err := checkExt(path); err != nil {
		return "", err
	}
	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      s.parser,
	})
	if err != nil {
		return "", fmt.Errorf("new file loader: %w", err)
	}
	docs, err := loader.Load(ctx, document.Source{URI: path})
	if err != nil {
		return "", fmt.Errorf("load %s: %w", path, err)
	}
	return s.clean(ctx, docs, filepath.Base(path))
}

func (s *UploadService) clean(ctx context.Context, docs []*schema.Document, filename string) (string, error) {
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		if doc.MetaData == nil {
			doc.MetaData = make(map[string]any)
		}
		doc.MetaData[file.MetaKeyFileName] = filename
	}
	docs = processors.Processor(ctx, docs)
	text := processors.Join(docs)
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyDocument, filename)
	}
	logger.WithContext(ctx).Info("document parsed", zap.String("file", filename), zap.Int("chars", len([]rune(text))))
	return text, nil
}

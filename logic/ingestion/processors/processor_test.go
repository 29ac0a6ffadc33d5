package processors

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	in := "  PAYMENT\x00 TERMS\r\n\tNet  30   days.\x07\n\n\n\n  Late fee\xff applies.  "
	assert.Equal(t, "PAYMENT TERMS\nNet 30 days.\n\nLate fee applies.", CleanText(in))
	assert.Equal(t, "", CleanText(" \x00\n\t "))
}

func TestProcessorDropsEmpty(t *testing.T) {
	docs := []*schema.Document{
		{ID: "1", Content: "Section 1.\x00 Term"},
		{ID: "2", Content: "\x00 \n "},
		nil,
		{ID: "3", Content: "Section 2"},
	}
	got := Processor(context.Background(), docs)
	require.Len(t, got, 2)
	assert.Equal(t, "Section 1. Term", got[0].Content)
	assert.Equal(t, "Section 1. Term\n\nSection 2", Join(got))
}

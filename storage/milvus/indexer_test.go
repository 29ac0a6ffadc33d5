package milvus

import (
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeedsVectorIndex(t *testing.T) {
	hnsw, err := entity.NewIndexHNSW(entity.COSINE, 16, 200)
	require.NoError(t, err)
	described := entity.NewGenericIndex("vector", entity.HNSW, hnsw.Params())

	tests := []struct {
		name string
		idxs []entity.Index
		want bool
	}{
		{"no index", nil, true},
		{"hnsw cosine", []entity.Index{described}, false},
		{"lowercase metric", []entity.Index{entity.NewGenericIndex("vector", entity.HNSW, map[string]string{"metric_type": "cosine"})}, false},
		{"default l2 autoindex", []entity.Index{entity.NewGenericIndex("vector", entity.AUTOINDEX, map[string]string{"metric_type": "L2"})}, true},
		{"hnsw with l2", []entity.Index{entity.NewGenericIndex("vector", entity.HNSW, map[string]string{"metric_type": "L2"})}, true},
		{"nil entry", []entity.Index{nil}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, needsVectorIndex(tt.idxs))
		})
	}
}

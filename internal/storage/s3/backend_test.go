package s3

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{Region: "us-east-1"}, nil)
	require.Error(t, err)
}

func TestObjectKeyPrefix(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{"no prefix", "", "abc.svg", "abc.svg"},
		{"plain prefix", "artifacts", "abc.svg", "artifacts/abc.svg"},
		{"prefix with slashes trimmed", "/artifacts/", "abc.svg", "artifacts/abc.svg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := New(context.Background(), Config{
				Bucket: "render-artifacts",
				Region: "us-east-1",
				Prefix: tt.prefix,
			}, slog.Default())
			require.NoError(t, err)
			assert.Equal(t, tt.want, backend.objectKey(tt.key))
		})
	}
}

package s3

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yxiaowhut/streamit/pkg/store/block"
)

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"no such key", &types.NoSuchKey{}, true},
		{"not found", fmt.Errorf("get: %w", &types.NotFound{}), true},
		{"api error code", &smithy.GenericAPIError{Code: "NoSuchKey"}, true},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"plain", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNotFound(tt.err))
		})
	}
}

func TestStore_FullKey(t *testing.T) {
	s := New(nil, Config{Bucket: "b", KeyPrefix: "streamit/"})
	assert.Equal(t, "streamit/ea/page-000000000001", s.fullKey("ea/page-000000000001"))
}

func TestStore_ClosedShortCircuits(t *testing.T) {
	s := New(nil, Config{Bucket: "b"})
	require.NoError(t, s.Close())

	_, err := s.ReadBlock(t.Context(), "k")
	assert.ErrorIs(t, err, block.ErrStoreClosed)
	assert.ErrorIs(t, s.HealthCheck(t.Context()), block.ErrStoreClosed)
}

func TestNewFromConfig_RequiresBucket(t *testing.T) {
	_, err := NewFromConfig(t.Context(), Config{})
	assert.Error(t, err)
}

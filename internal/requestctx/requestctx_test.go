package requestctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"hrerp/internal/domain/auth"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "abc")
	assert.Equal(t, "abc", GetRequestID(ctx))
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestIdentityRequiresUserID(t *testing.T) {
	_, ok := GetIdentity(context.Background())
	assert.False(t, ok)

	_, ok = GetIdentity(WithIdentity(context.Background(), auth.Identity{Role: auth.RoleAdmin}))
	assert.False(t, ok)

	id, ok := GetIdentity(WithIdentity(context.Background(), auth.Identity{UserID: "u1", Role: auth.RoleAdmin}))
	assert.True(t, ok)
	assert.True(t, id.IsAdmin())
}

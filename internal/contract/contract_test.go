package contract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/svcmesh/internal/contract"
)

func TestVerify(t *testing.T) {
	assert.NoError(t, contract.Verify("mirror@v2", "mirror@v2"))

	err := contract.Verify("mirror@v1", "mirror@v2")
	require.Error(t, err)
	var ce *contract.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "contract_id_mismatch", ce.Code)
	assert.Equal(t, 400, ce.Status)
}

func TestNormalizeSlug(t *testing.T) {
	ok, err := contract.NormalizeSlug("billing-svc")
	require.NoError(t, err)
	assert.Equal(t, "billing-svc", ok)

	_, err = contract.NormalizeSlug("Billing")
	assert.Error(t, err, "uppercase slugs must be rejected, not silently lowercased")

	_, err = contract.NormalizeSlug("")
	assert.Error(t, err)

	_, err = contract.NormalizeSlug("1leading-digit")
	assert.Error(t, err)
}

func TestNormalizeMethod(t *testing.T) {
	m, err := contract.NormalizeMethod("get")
	require.NoError(t, err)
	assert.Equal(t, "GET", m)

	_, err = contract.NormalizeMethod("TRACE")
	assert.Error(t, err)
}

func TestNormalizePath(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"/a/b", "/a/b"},
		{"a/b", "/a/b"},
		{"/a//b", "/a/b"},
		{"/a/b/", "/a/b"},
		{"/", "/"},
	}
	for _, c := range cases {
		got, err := contract.NormalizePath(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}

	_, err := contract.NormalizePath("/a?b=1")
	assert.Error(t, err)
	_, err = contract.NormalizePath("/a#frag")
	assert.Error(t, err)
}

func TestNormalizePath_Idempotent(t *testing.T) {
	once, err := contract.NormalizePath("/a//b/c/")
	require.NoError(t, err)
	twice, err := contract.NormalizePath(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

package gatewaysvc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arc-self/svcmesh/internal/gatewaysvc"
)

func TestParsePath(t *testing.T) {
	cases := []struct {
		name    string
		path    string
		wantOK  bool
		slug    string
		version int
		subpath string
	}{
		{"root", "/api/widgets/v1", true, "widgets", 1, "/"},
		{"with-subpath", "/api/widgets/v2/items/42", true, "widgets", 2, "/items/42"},
		{"multi-digit-version", "/api/widgets/v10/x", true, "widgets", 10, "/x"},
		{"hyphenated-slug", "/api/my-service/v1/x", true, "my-service", 1, "/x"},
		{"version-zero-rejected", "/api/widgets/v0", false, "", 0, ""},
		{"missing-version", "/api/widgets", false, "", 0, ""},
		{"uppercase-slug-rejected", "/api/Widgets/v1", false, "", 0, ""},
		{"not-api-prefixed", "/widgets/v1", false, "", 0, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := gatewaysvc.ParsePath(tc.path)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.slug, got.Slug)
				assert.Equal(t, tc.version, got.Version)
				assert.Equal(t, tc.subpath, got.Subpath)
			}
		})
	}
}

func TestIsHealthSubpath(t *testing.T) {
	assert.True(t, gatewaysvc.IsHealthSubpath("/health"))
	assert.True(t, gatewaysvc.IsHealthSubpath("/health/readiness"))
	assert.False(t, gatewaysvc.IsHealthSubpath("/health/not/allowed"))
	assert.False(t, gatewaysvc.IsHealthSubpath("/widgets"))
}

func TestIsUnroutableHost(t *testing.T) {
	assert.True(t, gatewaysvc.IsUnroutableHost("0.0.0.0"))
	assert.True(t, gatewaysvc.IsUnroutableHost("::"))
	assert.False(t, gatewaysvc.IsUnroutableHost("widgets.internal"))
}

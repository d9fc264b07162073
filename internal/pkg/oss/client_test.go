package oss

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScreenshotKey(t *testing.T) {
	assert.Equal(t, "screenshots/7/app_7_review_1700000000.png", ScreenshotKey(7, "app_7_review_1700000000.png"))
	assert.Equal(t, "screenshots/7/evil.png", ScreenshotKey(7, "../../evil.png"))
}

func TestObjectKey(t *testing.T) {
	key, ok := ObjectKey("oss://screenshots/1/a.png")
	assert.True(t, ok)
	assert.Equal(t, "screenshots/1/a.png", key)

	_, ok = ObjectKey("local:///data/screenshots/a.png")
	assert.False(t, ok)
}

func TestGetContentType(t *testing.T) {
	tests := map[string]string{
		".png":  "image/png",
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".webp": "image/webp",
		".bin":  "application/octet-stream",
	}
	for ext, want := range tests {
		assert.Equal(t, want, getContentType(ext), ext)
	}
}

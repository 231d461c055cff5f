// Package uploads derives storage keys for user uploaded assets.
package uploads

import (
	"path"
	"strings"

	"github.com/dmitrijs2005/recipekeeper/internal/server/models"
	"github.com/google/uuid"
)

// RecipeImageDir is the key prefix of every recipe image.
const RecipeImageDir = "uploads/recipe"

// MaxExtensionLen bounds the extension kept from an uploaded filename.
const MaxExtensionLen = 16

// newUUID is a seam for tests.
var newUUID = func() string {
	return uuid.NewString()
}

// RecipeImagePath returns a fresh key of the form uploads/recipe/<uuid>.<ext>
// for an image uploaded under filename. Only the extension of filename is
// kept, case preserved; a filename without one yields uploads/recipe/<uuid>.
// recipe is accepted for parity with other key builders and is not used.
func RecipeImagePath(recipe *models.Recipe, filename string) string {
	name := newUUID()
	if ext := extension(filename); ext != "" {
		name += "." + ext
	}
	return path.Join(RecipeImageDir, name)
}

func extension(filename string) string {
	base := filename
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	i := strings.LastIndexByte(base, '.')
	if i < 0 {
		return ""
	}
	return base[i+1:]
}

// ValidExtension reports whether the extension of filename is short and
// plain ASCII alphanumeric. A filename without an extension is valid.
func ValidExtension(filename string) bool {
	ext := extension(filename)
	if len(ext) > MaxExtensionLen {
		return false
	}
	for i := 0; i < len(ext); i++ {
		c := ext[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return false
		}
	}
	return true
}

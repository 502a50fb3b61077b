package domain

import "math/rand"

// Palette is the fixed set of participant display colors. Color is cosmetic:
// once all palette entries are taken, further participants share colors.
var Palette = []string{
	"#FF6B6B",
	"#4ECDC4",
	"#45B7D1",
	"#FFA07A",
	"#98D8C8",
	"#F7DC6F",
	"#BB8FCE",
	"#85C1E9",
}

// PickColor returns the first palette color not present in taken, falling
// back to a uniform-random palette entry when every color is in use.
func PickColor(taken map[string]bool) string {
	for _, color := range Palette {
		if !taken[color] {
			return color
		}
	}

	return Palette[rand.Intn(len(Palette))]
}

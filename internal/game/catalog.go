package game

import "math/rand/v2"

// catalog is the fixed menu. Customers request one of these and items are
// spawned from the same list, so every request can be satisfied.
var catalog = []string{
	"MILK",
	"COFFEE",
	"TEA",
	"BREAD",
	"CAKE",
	"DONUT",
}

// Catalog returns a copy of the menu.
func Catalog() []string {
	out := make([]string, len(catalog))
	copy(out, catalog)
	return out
}

// ValidItem reports whether name is on the menu.
func ValidItem(name string) bool {
	for _, c := range catalog {
		if c == name {
			return true
		}
	}
	return false
}

// RandomItem picks a menu entry using rng.
func RandomItem(rng *rand.Rand) string {
	return catalog[rng.IntN(len(catalog))]
}

package lights

import (
	"cmp"
	"math/rand/v2"
	"slices"
)

// Device is a controllable light. ID is its identity; Label only orders the inventory.
type Device struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Inventory is the ordered list of devices a palette is mapped onto.
type Inventory []Device

// NewInventory returns a copy of devices sorted by label.
// Devices sharing a label keep the order they were given in.
func NewInventory(devices []Device) Inventory {
	inv := make(Inventory, len(devices))
	copy(inv, devices)
	slices.SortStableFunc(inv, func(a, b Device) int {
		return cmp.Compare(a.Label, b.Label)
	})
	return inv
}

// IDs returns the device IDs in inventory order.
func (inv Inventory) IDs() []string {
	ids := make([]string, len(inv))
	for i, d := range inv {
		ids[i] = d.ID
	}
	return ids
}

// Color is an opaque colour token understood by the LIFX API
// (for example "#ff0000", "red" or "hue:120 saturation:1.0").
type Color string

// Palette is a colour list as broadcast, possibly with duplicates.
type Palette []Color

// Canonical returns the palette without duplicates, keeping the position
// of each colour's first occurrence.
func (p Palette) Canonical() Palette {
	seen := make(map[Color]struct{}, len(p))
	out := make(Palette, 0, len(p))
	for _, c := range p {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Assignment is the state to apply to one device.
type Assignment struct {
	DeviceID   string
	Color      Color
	Brightness float64
	Duration   float64
}

// Options carry the per-pass parameters that do not come from the palette.
type Options struct {
	Brightness float64
	Duration   float64
	Shuffle    bool

	// Rand drives the shuffle. Nil uses the global source.
	Rand *rand.Rand
}

// Assign maps palette onto inv. Device i receives colour i modulo the
// number of distinct colours. With Shuffle set, the distinct colours are
// permuted once before mapping.
//
// Returns ErrEmptyPalette when palette has no colours. An empty inventory
// yields an empty, non-nil result.
func Assign(inv Inventory, palette Palette, opts Options) ([]Assignment, error) {
	colors := palette.Canonical()
	if len(colors) == 0 {
		return nil, ErrEmptyPalette
	}

	if opts.Shuffle {
		shuffle := rand.Shuffle
		if opts.Rand != nil {
			shuffle = opts.Rand.Shuffle
		}
		shuffle(len(colors), func(i, j int) {
			colors[i], colors[j] = colors[j], colors[i]
		})
	}

	out := make([]Assignment, len(inv))
	for i, d := range inv {
		out[i] = Assignment{
			DeviceID:   d.ID,
			Color:      colors[i%len(colors)],
			Brightness: opts.Brightness,
			Duration:   opts.Duration,
		}
	}
	return out, nil
}

package lights

import "errors"

// ErrEmptyPalette is returned by Assign when the palette has no colours.
var ErrEmptyPalette = errors.New("lights: palette has no colors")

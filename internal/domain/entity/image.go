package entity

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Orientation is the display orientation a cached image was generated for.
type Orientation string

const (
	OrientationLandscape Orientation = "landscape"
	OrientationPortrait  Orientation = "portrait"
)

// ParseOrientation parses an orientation name.
func ParseOrientation(s string) (Orientation, error) {
	switch Orientation(strings.ToLower(strings.TrimSpace(s))) {
	case OrientationLandscape:
		return OrientationLandscape, nil
	case OrientationPortrait:
		return OrientationPortrait, nil
	default:
		return "", fmt.Errorf("invalid orientation %q (must be landscape or portrait)", s)
	}
}

// OrientationFor returns portrait when the surface is taller than it is wide.
func OrientationFor(width, height int) Orientation {
	if width < height {
		return OrientationPortrait
	}
	return OrientationLandscape
}

// Dimensions returns the image size generated for the orientation.
func (o Orientation) Dimensions(long, short int) (width, height int) {
	if o == OrientationPortrait {
		return short, long
	}
	return long, short
}

const maxStyleLength = 128

// ParseStyle checks that a remote style identifier can name a partition
// directory. The empty style is the default pool.
func ParseStyle(s string) (string, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return "", nil
	case len(s) > maxStyleLength:
		return "", fmt.Errorf("invalid style %q: longer than %d characters", s, maxStyleLength)
	case strings.HasPrefix(s, "."):
		return "", fmt.Errorf("invalid style %q: must not start with a dot", s)
	case strings.ContainsAny(s, "/\\\x00"):
		return "", fmt.Errorf("invalid style %q: must not contain path separators", s)
	}
	if _, err := ParseOrientation(s); err == nil {
		return "", fmt.Errorf("invalid style %q: reserved for the default pool", s)
	}
	return s, nil
}

// Partition identifies one independently refilled and pruned region of the cache.
type Partition struct {
	Orientation Orientation
	// Style is empty unless the user overrides the default style.
	Style string
}

// Validate reports whether the partition can be mapped to a directory.
func (p Partition) Validate() error {
	if _, err := ParseOrientation(string(p.Orientation)); err != nil {
		return err
	}
	style, err := ParseStyle(p.Style)
	if err != nil {
		return err
	}
	if style != p.Style {
		return fmt.Errorf("invalid style %q: surrounding whitespace", p.Style)
	}
	return nil
}

// Dir returns the partition directory relative to the cache root.
func (p Partition) Dir() string {
	if p.Style == "" {
		return string(p.Orientation)
	}
	return filepath.Join(p.Style, string(p.Orientation))
}

// String returns a label suitable for logs and metrics.
func (p Partition) String() string {
	if p.Style == "" {
		return string(p.Orientation)
	}
	return p.Style + "/" + string(p.Orientation)
}

// CachedImageEntry is one image file owned by the local store.
type CachedImageEntry struct {
	// Name is the file name, which sorts chronologically.
	Name      string
	Path      string
	Partition Partition
	CreatedAt time.Time
}

// IsZero reports whether the entry is empty.
func (e CachedImageEntry) IsZero() bool {
	return e.Path == ""
}

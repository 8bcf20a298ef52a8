package entity

// Layer is one of the two stacked image layers of the slideshow.
type Layer int

const (
	LayerBottom Layer = iota
	LayerTop
)

// Other returns the opposite layer.
func (l Layer) Other() Layer {
	if l == LayerTop {
		return LayerBottom
	}
	return LayerTop
}

// String returns the layer name.
func (l Layer) String() string {
	if l == LayerTop {
		return "top"
	}
	return "bottom"
}

// LayerState is the presentation state of a single layer.
type LayerState int

const (
	LayerHidden LayerState = iota
	LayerFadingIn
	LayerVisible
	LayerFadingOut
)

// String returns the state name.
func (s LayerState) String() string {
	switch s {
	case LayerHidden:
		return "hidden"
	case LayerFadingIn:
		return "fading-in"
	case LayerVisible:
		return "visible"
	case LayerFadingOut:
		return "fading-out"
	default:
		return "unknown"
	}
}

// Opacity returns the resting opacity of the state.
// Mid-fade states report the opacity they are heading to.
func (s LayerState) Opacity() float64 {
	switch s {
	case LayerFadingIn, LayerVisible:
		return 1
	default:
		return 0
	}
}

// RotationState is a snapshot of the double-buffered presentation.
type RotationState struct {
	TopOpacity    float64
	BottomOpacity float64
	Top           LayerState
	Bottom        LayerState
	TopImage      CachedImageEntry
	BottomImage   CachedImageEntry
	Animating     bool
}

package domain

// TilePlacement says where a tile sits in the rendered frame.
type TilePlacement string

const (
	PlacementFull    TilePlacement = "full"    // full-frame
	PlacementMain    TilePlacement = "main"    // large side of a presentation split
	PlacementStrip   TilePlacement = "strip"   // scrollable strip beside the main tile
	PlacementOverlay TilePlacement = "overlay" // small tile overlaid on the focus
	PlacementHalf    TilePlacement = "half"    // one of two equal panes
	PlacementCell    TilePlacement = "cell"    // equal-weight grid cell
)

// Tile is one rendered box in the program frame.
type Tile struct {
	ParticipantID string        `json:"participant_id"`
	Source        TrackSource   `json:"source"`
	Placement     TilePlacement `json:"placement"`
}

// RenderPlan is the deterministic output of the program compositor. It is
// built from slices only so two plans from identical inputs compare equal
// with reflect.DeepEqual.
type RenderPlan struct {
	Layout LayoutMode `json:"layout"`

	// Placeholder is set when nobody is on stage; the renderer shows an
	// explicit "nobody on stage" frame, never an undefined blank one.
	Placeholder bool `json:"placeholder,omitempty"`

	Tiles []Tile `json:"tiles,omitempty"`
}

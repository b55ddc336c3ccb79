package compositor

import (
	"reflect"
	"testing"

	"github.com/genialityco/gen-live-web-sub001/internal/domain"
)

func onStage(ids ...string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func cam(pid string) domain.LiveTrack {
	return domain.LiveTrack{ParticipantID: pid, Source: domain.SourceCamera}
}

func screen(pid string) domain.LiveTrack {
	return domain.LiveTrack{ParticipantID: pid, Source: domain.SourceScreenshare}
}

func TestCompose_deterministic(t *testing.T) {
	tracks := []domain.LiveTrack{cam("a"), screen("b"), cam("c")}
	stage := onStage("a", "b", "c")

	for _, layout := range []domain.LayoutMode{
		domain.LayoutSpeaker, domain.LayoutGrid, domain.LayoutPresentation,
		domain.LayoutPiP, domain.LayoutSideBySide,
	} {
		p1 := Compose(layout, stage, "a", tracks)
		p2 := Compose(layout, stage, "a", tracks)
		if !reflect.DeepEqual(p1, p2) {
			t.Errorf("layout %s: identical inputs produced different plans:\n%+v\n%+v", layout, p1, p2)
		}
	}
}

func TestCompose_pinBeatsScreenshare(t *testing.T) {
	// Pinned A has only a camera; B is screensharing. The explicit pin wins.
	tracks := []domain.LiveTrack{cam("a"), screen("b")}
	plan := Compose(domain.LayoutSpeaker, onStage("a", "b"), "a", tracks)

	if len(plan.Tiles) != 1 {
		t.Fatalf("speaker layout should have one tile, got %d", len(plan.Tiles))
	}
	got := plan.Tiles[0]
	if got.ParticipantID != "a" || got.Source != domain.SourceCamera {
		t.Errorf("focus should be a's camera, got %+v", got)
	}
}

func TestCompose_pinPrefersOwnScreenshare(t *testing.T) {
	tracks := []domain.LiveTrack{cam("a"), screen("a"), screen("b")}
	plan := Compose(domain.LayoutSpeaker, onStage("a", "b"), "a", tracks)

	got := plan.Tiles[0]
	if got.ParticipantID != "a" || got.Source != domain.SourceScreenshare {
		t.Errorf("focus should be a's screenshare, got %+v", got)
	}
}

func TestCompose_noPinScreenshareWins(t *testing.T) {
	tracks := []domain.LiveTrack{cam("a"), screen("b")}
	plan := Compose(domain.LayoutSpeaker, onStage("a", "b"), "", tracks)

	got := plan.Tiles[0]
	if got.ParticipantID != "b" || got.Source != domain.SourceScreenshare {
		t.Errorf("focus should fall back to b's screenshare, got %+v", got)
	}
}

func TestCompose_pinWithNoTracksDegrades(t *testing.T) {
	// Pinned participant publishes nothing: degrade to automatic selection
	// instead of erroring or rendering an empty focus.
	tracks := []domain.LiveTrack{screen("b"), cam("c")}
	plan := Compose(domain.LayoutSpeaker, onStage("a", "b", "c"), "a", tracks)

	got := plan.Tiles[0]
	if got.ParticipantID != "b" || got.Source != domain.SourceScreenshare {
		t.Errorf("pin with no visible track should degrade to b's screenshare, got %+v", got)
	}
}

func TestCompose_backstageNeverComposited(t *testing.T) {
	// B is connected and screensharing but was never promoted.
	tracks := []domain.LiveTrack{cam("a"), screen("b")}
	plan := Compose(domain.LayoutGrid, onStage("a"), "", tracks)

	if len(plan.Tiles) != 1 || plan.Tiles[0].ParticipantID != "a" {
		t.Errorf("backstage track leaked into plan: %+v", plan.Tiles)
	}
}

func TestCompose_emptyStagePlaceholder(t *testing.T) {
	tracks := []domain.LiveTrack{cam("a")}
	plan := Compose(domain.LayoutSpeaker, onStage(), "", tracks)

	if !plan.Placeholder || len(plan.Tiles) != 0 {
		t.Errorf("empty stage should render placeholder, got %+v", plan)
	}
}

func TestCompose_grid(t *testing.T) {
	tracks := []domain.LiveTrack{cam("a"), screen("b"), cam("c")}
	plan := Compose(domain.LayoutGrid, onStage("a", "b", "c"), "b", tracks)

	if len(plan.Tiles) != 3 {
		t.Fatalf("grid should hold all staged tracks, got %d", len(plan.Tiles))
	}
	for _, tile := range plan.Tiles {
		if tile.Placement != domain.PlacementCell {
			t.Errorf("grid has no focus distinction, got placement %s", tile.Placement)
		}
	}
}

func TestCompose_presentationStrip(t *testing.T) {
	tracks := []domain.LiveTrack{cam("a"), screen("b"), cam("c")}
	plan := Compose(domain.LayoutPresentation, onStage("a", "b", "c"), "", tracks)

	if plan.Tiles[0].ParticipantID != "b" || plan.Tiles[0].Placement != domain.PlacementMain {
		t.Fatalf("main tile should be b's screenshare, got %+v", plan.Tiles[0])
	}
	rest := plan.Tiles[1:]
	if len(rest) != 2 {
		t.Fatalf("strip should hold the other 2 tracks, got %d", len(rest))
	}
	for _, tile := range rest {
		if tile.Placement != domain.PlacementStrip {
			t.Errorf("expected strip placement, got %s", tile.Placement)
		}
	}
}

func TestCompose_pipOverlays(t *testing.T) {
	tracks := []domain.LiveTrack{cam("a"), cam("b")}
	plan := Compose(domain.LayoutPiP, onStage("a", "b"), "a", tracks)

	if plan.Tiles[0].Placement != domain.PlacementFull {
		t.Errorf("pip focus should be full-frame, got %s", plan.Tiles[0].Placement)
	}
	if len(plan.Tiles) != 2 || plan.Tiles[1].Placement != domain.PlacementOverlay {
		t.Errorf("other tracks should be overlays, got %+v", plan.Tiles)
	}
}

func TestCompose_sideBySide(t *testing.T) {
	tracks := []domain.LiveTrack{cam("a"), cam("b"), cam("c")}
	plan := Compose(domain.LayoutSideBySide, onStage("a", "b", "c"), "", tracks)

	if len(plan.Tiles) != 2 {
		t.Fatalf("side_by_side shows exactly the first two tracks, got %d", len(plan.Tiles))
	}
	if plan.Tiles[0].ParticipantID != "a" || plan.Tiles[1].ParticipantID != "b" {
		t.Errorf("expected a and b, got %+v", plan.Tiles)
	}
	for _, tile := range plan.Tiles {
		if tile.Placement != domain.PlacementHalf {
			t.Errorf("expected half placement, got %s", tile.Placement)
		}
	}
}

func TestCompose_sideBySide_singleFillsFrame(t *testing.T) {
	tracks := []domain.LiveTrack{cam("a")}
	plan := Compose(domain.LayoutSideBySide, onStage("a"), "", tracks)

	if len(plan.Tiles) != 1 || plan.Tiles[0].Placement != domain.PlacementFull {
		t.Errorf("single staged track should fill the frame, got %+v", plan.Tiles)
	}
}

func TestCompose_sideBySide_emptyPlaceholder(t *testing.T) {
	plan := Compose(domain.LayoutSideBySide, onStage(), "", nil)
	if !plan.Placeholder {
		t.Error("empty stage should render placeholder")
	}
}

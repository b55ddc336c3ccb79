package compositor

import (
	"github.com/genialityco/gen-live-web-sub001/internal/domain"
)

// Compose turns "who is on stage" into a render plan. It is a pure function:
// identical inputs always yield an identical plan, independent of call
// history, so the host preview and the unattended program renderer can run
// the same logic without ever diverging.
//
// tracks is the live track set from the conferencing layer, in its published
// order; that order is the stable tie-break for automatic focus selection.
func Compose(layout domain.LayoutMode, onStage map[string]bool, activeID string, tracks []domain.LiveTrack) domain.RenderPlan {
	staged := stagedTracks(onStage, tracks)
	if len(staged) == 0 {
		return domain.RenderPlan{Layout: layout, Placeholder: true}
	}

	switch layout {
	case domain.LayoutGrid:
		return composeGrid(staged)
	case domain.LayoutPresentation:
		return composeSplit(staged, activeID, domain.LayoutPresentation, domain.PlacementMain, domain.PlacementStrip)
	case domain.LayoutPiP:
		return composeSplit(staged, activeID, domain.LayoutPiP, domain.PlacementFull, domain.PlacementOverlay)
	case domain.LayoutSideBySide:
		return composeSideBySide(staged)
	default:
		// speaker, and any unknown mode written by a newer client
		return composeSpeaker(staged, activeID)
	}
}

// stagedTracks filters the live track set to participants the host has
// promoted. Backstage participants are never composited, connected or not.
func stagedTracks(onStage map[string]bool, tracks []domain.LiveTrack) []domain.LiveTrack {
	staged := make([]domain.LiveTrack, 0, len(tracks))
	for _, t := range tracks {
		if onStage[t.ParticipantID] {
			staged = append(staged, t)
		}
	}
	return staged
}

// selectFocus resolves the focus track among staged tracks.
//
//  1. A pinned participant's screenshare wins, then their camera. A pin
//     with no visible track degrades to automatic selection.
//  2. Automatic: any screenshare beats any camera; same-kind candidates
//     tie-break by first match in input order.
func selectFocus(staged []domain.LiveTrack, activeID string) domain.LiveTrack {
	if activeID != "" {
		var pinnedCam *domain.LiveTrack
		for i, t := range staged {
			if t.ParticipantID != activeID {
				continue
			}
			if t.Source == domain.SourceScreenshare {
				return t
			}
			if pinnedCam == nil {
				pinnedCam = &staged[i]
			}
		}
		if pinnedCam != nil {
			return *pinnedCam
		}
	}

	for _, t := range staged {
		if t.Source == domain.SourceScreenshare {
			return t
		}
	}
	return staged[0]
}

func composeSpeaker(staged []domain.LiveTrack, activeID string) domain.RenderPlan {
	focus := selectFocus(staged, activeID)
	return domain.RenderPlan{
		Layout: domain.LayoutSpeaker,
		Tiles: []domain.Tile{
			{ParticipantID: focus.ParticipantID, Source: focus.Source, Placement: domain.PlacementFull},
		},
	}
}

func composeGrid(staged []domain.LiveTrack) domain.RenderPlan {
	tiles := make([]domain.Tile, 0, len(staged))
	for _, t := range staged {
		tiles = append(tiles, domain.Tile{
			ParticipantID: t.ParticipantID,
			Source:        t.Source,
			Placement:     domain.PlacementCell,
		})
	}
	return domain.RenderPlan{Layout: domain.LayoutGrid, Tiles: tiles}
}

// composeSplit builds the presentation and pip shapes: one focus tile plus
// every other staged track in a secondary placement.
func composeSplit(staged []domain.LiveTrack, activeID string, layout domain.LayoutMode, focusPlacement, restPlacement domain.TilePlacement) domain.RenderPlan {
	focus := selectFocus(staged, activeID)

	tiles := make([]domain.Tile, 0, len(staged))
	tiles = append(tiles, domain.Tile{
		ParticipantID: focus.ParticipantID,
		Source:        focus.Source,
		Placement:     focusPlacement,
	})
	for _, t := range staged {
		if t == focus {
			continue
		}
		tiles = append(tiles, domain.Tile{
			ParticipantID: t.ParticipantID,
			Source:        t.Source,
			Placement:     restPlacement,
		})
	}
	return domain.RenderPlan{Layout: layout, Tiles: tiles}
}

func composeSideBySide(staged []domain.LiveTrack) domain.RenderPlan {
	// With a single staged track it fills the frame, not half of it.
	if len(staged) == 1 {
		return domain.RenderPlan{
			Layout: domain.LayoutSideBySide,
			Tiles: []domain.Tile{
				{ParticipantID: staged[0].ParticipantID, Source: staged[0].Source, Placement: domain.PlacementFull},
			},
		}
	}

	tiles := make([]domain.Tile, 0, 2)
	for _, t := range staged[:2] {
		tiles = append(tiles, domain.Tile{
			ParticipantID: t.ParticipantID,
			Source:        t.Source,
			Placement:     domain.PlacementHalf,
		})
	}
	return domain.RenderPlan{Layout: domain.LayoutSideBySide, Tiles: tiles}
}

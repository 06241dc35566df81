// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/OCAP2/hlabridge/pkg/core"
)

// SessionExport is the root JSON structure
type SessionExport struct {
	Execution     string             `json:"execution"`
	Federate      string             `json:"federate"`
	SiteID        uint16             `json:"siteId"`
	ApplicationID uint16             `json:"applicationId"`
	StartTime     time.Time          `json:"startTime"`
	EndTime       time.Time          `json:"endTime"`
	Actors        []ActorJSON        `json:"actors"`
	Interactions  []core.Interaction `json:"interactions"`
}

// ActorJSON represents one actor and its states
type ActorJSON struct {
	ID         core.ActorID `json:"id"`
	Type       string       `json:"type"`
	Source     core.Source  `json:"source"`
	EntityID   string       `json:"entityId,omitempty"`
	EntityType string       `json:"entityType,omitempty"`
	Created    time.Time    `json:"created"`
	Removed    *time.Time   `json:"removed,omitempty"`
	States     []StateJSON  `json:"states"`
}

// StateJSON is one actor state. Position is [x, y, z] when known.
type StateJSON struct {
	Time     time.Time      `json:"time"`
	Position []float64      `json:"position,omitempty"`
	Values   map[string]any `json:"values"`
}

var fileNameReplacer = strings.NewReplacer(" ", "_", ":", "_", "/", "_", "\\", "_")

// exportJSON writes the session data to a JSON file, gzipped if configured
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	name := fileNameReplacer.Replace(b.session.Execution + "_" + b.session.Federate)
	timestamp := b.session.StartTime.Format("20060102_150405")

	filename := fmt.Sprintf("%s_%s.json", name, timestamp)
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := writeJSON(outputPath, export, b.cfg.CompressOutput); err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() SessionExport {
	export := SessionExport{
		Execution:     b.session.Execution,
		Federate:      b.session.Federate,
		SiteID:        b.session.SiteID,
		ApplicationID: b.session.ApplicationID,
		StartTime:     b.session.StartTime,
		EndTime:       b.session.EndTime,
		Actors:        make([]ActorJSON, 0, len(b.order)),
		Interactions:  b.interactions,
	}
	if export.Interactions == nil {
		export.Interactions = make([]core.Interaction, 0)
	}

	for _, id := range b.order {
		rec := b.actors[id]
		a := ActorJSON{
			ID:         rec.Actor.ID,
			Type:       rec.Actor.Type.String(),
			Source:     rec.Actor.Source,
			EntityID:   rec.Actor.EntityID,
			EntityType: rec.Actor.EntityType,
			Created:    rec.Actor.Created,
			States:     make([]StateJSON, 0, len(rec.States)),
		}
		if !rec.Removed.IsZero() {
			removed := rec.Removed
			a.Removed = &removed
		}
		for _, s := range rec.States {
			st := StateJSON{Time: s.Time, Values: s.Values}
			if s.Position != nil {
				st.Position = []float64{s.Position.X, s.Position.Y, s.Position.Z}
			}
			a.States = append(a.States, st)
		}
		export.Actors = append(export.Actors, a)
	}

	return export
}

func writeJSON(path string, data SessionExport, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if !compress {
		return json.NewEncoder(f).Encode(data)
	}

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}

package doseparser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tripsit/erowid-doses/doseparser/entities"
	"github.com/tripsit/erowid-doses/registry"
)

// Assemble turns the aggregated observation groups into the final document.
// Substances follow registry order; substances with no observations are
// omitted entirely rather than emitted empty. Assemble is deterministic for
// a given group map, whatever order the observations arrived in.
func Assemble(reg *registry.Registry, groups map[entities.GroupKey][]entities.DoseObservation, run entities.RunStats) *entities.ExtractionResult {
	result := &entities.ExtractionResult{Run: run}

	for _, id := range reg.Order() {
		substance, ok := reg.Get(id)
		if !ok {
			continue
		}

		var routes map[string]entities.RouteDoses
		for key, observations := range groups {
			if key.SubstanceID != id {
				continue
			}
			if routes == nil {
				routes = make(map[string]entities.RouteDoses)
			}
			routes[key.Route] = AnalyzeGroup(observations)
		}
		if routes == nil {
			continue
		}

		result.Substances = append(result.Substances, entities.SubstanceDoses{
			ID:     id,
			Name:   substance.PrettyName,
			Routes: routes,
		})
	}

	return result
}

// WriteDocument writes the result as indented JSON. The write goes through
// a temp file and rename so a crash never leaves a truncated document.
func WriteDocument(path string, result *entities.ExtractionResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result document: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".doses-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp output file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close output file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move output file into place: %w", err)
	}
	return nil
}

package evidence

import (
	"context"

	"assetizer/internal/services"
)

// ReplaceAssetUnits swaps the asset's indexed evidence for the given units in
// one transaction: re-indexing replaces, it never appends duplicates. Zero
// units is a legitimate outcome (silent video with blank frames) and leaves
// the asset with an empty index.
func (s *Store) ReplaceAssetUnits(ctx context.Context, assetID string, units []Unit) (int, error) {
	for _, unit := range units {
		if unit.SourceRef == "" {
			return 0, services.Wrap(services.ErrValidation, "index", "replace units",
				"evidence unit without source_ref", nil)
		}
		if unit.Kind != KindTranscript && unit.Kind != KindOCRFrame {
			return 0, services.Wrap(services.ErrValidation, "index", "replace units",
				"unknown evidence kind "+unit.Kind, nil)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, services.Wrap(services.ErrDataIntegrity, "index", "replace units", "begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM evidence WHERE asset_id = ?", assetID); err != nil {
		return 0, services.Wrap(services.ErrDataIntegrity, "index", "replace units", "delete prior units", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO evidence (asset_id, kind, source_ref, start_ms, end_ms, text)
        VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, services.Wrap(services.ErrDataIntegrity, "index", "replace units", "prepare insert", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, unit := range units {
		var endMs any
		if unit.EndMs != nil {
			endMs = *unit.EndMs
		}
		if _, err := stmt.ExecContext(ctx, assetID, unit.Kind, unit.SourceRef, unit.StartMs, endMs, unit.Text); err != nil {
			return 0, services.Wrap(services.ErrDataIntegrity, "index", "replace units",
				"insert unit "+unit.SourceRef, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, services.Wrap(services.ErrDataIntegrity, "index", "replace units", "commit", err)
	}
	return inserted, nil
}

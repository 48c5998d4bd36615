package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/miradorstack/habit-ml/internal/engine"
	"github.com/miradorstack/habit-ml/internal/models"
	"github.com/miradorstack/habit-ml/internal/registry"
	"github.com/miradorstack/habit-ml/internal/utils"
)

// modelArtifact is the stored form of the ensemble. ModelID ties it to its metadata.
type modelArtifact struct {
	ModelID string          `json:"model_id"`
	Booster *engine.Booster `json:"booster"`
}

// Save writes the model state to <name>.model.json and then the metadata to
// <name>_metadata.json. Existing metadata under name is removed first, so an interrupted
// save leaves a model artifact without metadata, which Load rejects.
func (p *Predictor) Save(ctx context.Context, store registry.Store, name string) error {
	const op = "predictor.Save"
	p.mu.RLock()
	if p.state == StateUntrained {
		p.mu.RUnlock()
		return notTrained(op)
	}
	modelJSON, err := json.Marshal(modelArtifact{ModelID: p.metadata.ModelID, Booster: p.booster})
	if err != nil {
		p.mu.RUnlock()
		return fmt.Errorf("%s: encode model: %w", op, err)
	}
	metaJSON, err := json.MarshalIndent(p.metadata, "", "  ")
	p.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("%s: encode metadata: %w", op, err)
	}

	if err := store.Delete(ctx, registry.MetadataArtifact(name)); err != nil {
		return fmt.Errorf("%s: remove previous metadata: %w", op, err)
	}
	if err := store.Put(ctx, registry.ModelArtifact(name), modelJSON); err != nil {
		return fmt.Errorf("%s: write model artifact: %w", op, err)
	}
	if err := store.Put(ctx, registry.MetadataArtifact(name), metaJSON); err != nil {
		return fmt.Errorf("%s: write metadata artifact: %w", op, err)
	}
	p.logger.Info("model saved", "name", name, "bytes", len(modelJSON)+len(metaJSON))
	return nil
}

// Load replaces the current model with the artifact pair stored under name. Both artifacts
// must exist and carry the same model id, the metadata must list the feature names, and the
// model width must match.
func (p *Predictor) Load(ctx context.Context, store registry.Store, name string) error {
	const op = "predictor.Load"

	metaJSON, err := store.Get(ctx, registry.MetadataArtifact(name))
	if err != nil {
		if errors.Is(err, utils.ErrArtifactNotFound) {
			return utils.NewAppError(op, fmt.Sprintf("metadata for %q is missing", name), err)
		}
		return fmt.Errorf("%s: read metadata: %w", op, err)
	}
	modelJSON, err := store.Get(ctx, registry.ModelArtifact(name))
	if err != nil {
		return fmt.Errorf("%s: read model: %w", op, err)
	}

	var meta models.ModelMetadata
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return utils.InputError(op, "decode metadata for %q: %v", name, err)
	}
	if len(meta.FeatureNames) == 0 {
		return utils.NewAppError(op, fmt.Sprintf("metadata for %q lists no feature names", name), utils.ErrSchemaMismatch)
	}
	var artifact modelArtifact
	if err := json.Unmarshal(modelJSON, &artifact); err != nil {
		return utils.InputError(op, "decode model for %q: %v", name, err)
	}
	if artifact.Booster == nil {
		return utils.InputError(op, "model artifact for %q holds no ensemble", name)
	}
	if artifact.ModelID != meta.ModelID {
		return utils.NewAppError(op,
			fmt.Sprintf("model artifact %q belongs to model %q, metadata to %q", name, artifact.ModelID, meta.ModelID),
			utils.ErrSchemaMismatch)
	}
	booster := artifact.Booster
	if err := booster.Check(len(meta.FeatureNames)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	importance := meta.FeatureImportance
	if importance == nil {
		importance = importanceMap(meta.FeatureNames, booster.FeatureImportance())
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.booster = booster
	p.featureNames = append([]string(nil), meta.FeatureNames...)
	p.importance = importance
	p.metadata = meta
	p.state = StateLoaded
	p.logger.Info("model loaded", "name", name, "model_id", meta.ModelID, "features", len(meta.FeatureNames))
	return nil
}

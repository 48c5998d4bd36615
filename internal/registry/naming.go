package registry

import "time"

// ModelBaseName prefixes every versioned habit success model.
const ModelBaseName = "habit_success_model"

// VersionedName returns habit_success_model_<YYYYMMDD> for the UTC date of at.
func VersionedName(at time.Time) string {
	return Versioned(ModelBaseName, at)
}

// Versioned returns <base>_<YYYYMMDD> for the UTC date of at. An empty base uses
// ModelBaseName.
func Versioned(base string, at time.Time) string {
	if base == "" {
		base = ModelBaseName
	}
	return base + "_" + at.UTC().Format("20060102")
}

// ModelArtifact is the artifact name holding ensemble state for name.
func ModelArtifact(name string) string { return name + ".model.json" }

// MetadataArtifact is the artifact name holding metadata for name.
func MetadataArtifact(name string) string { return name + "_metadata.json" }

// Package artifacts persists and restores the fitted components produced by
// training: the text vectorizer, the account encoder, the amount scaler and
// the classifier model, tied together by a manifest fingerprint.
package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"fjacquet/autocat/internal/classifier"
	"fjacquet/autocat/internal/features"
	"fjacquet/autocat/internal/fileutils"
	"fjacquet/autocat/internal/forest"
	"fjacquet/autocat/internal/models"
	"fjacquet/autocat/internal/pipelineerror"
	"fjacquet/autocat/internal/textnorm"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Artifact file names inside the artifact directory.
const (
	ManifestFile       = "manifest.yaml"
	VectorizerFile     = "tfidf_vectorizer.json"
	AccountEncoderFile = "account_label_encoder.json"
	AmountScalerFile   = "amount_scaler.json"
	ModelFile          = "category_classifier_model.json"
)

// Manifest describes one training run's artifact set.
type Manifest struct {
	Fingerprint     string    `yaml:"fingerprint"`
	CreatedAt       time.Time `yaml:"created_at"`
	FeatureCount    int       `yaml:"feature_count"`
	TrainingSamples int       `yaml:"training_samples"`
	Classes         []string  `yaml:"classes"`
	Accounts        []string  `yaml:"accounts"`
}

// envelope wraps every JSON artifact with the fingerprint of its run.
type envelope[T any] struct {
	Fingerprint string `json:"fingerprint"`
	Data        T      `json:"data"`
}

// Set is a consistent group of fitted artifacts.
type Set struct {
	Manifest Manifest
	Encoder  *features.Encoder
	Model    *forest.Forest
}

// NewSet stamps a freshly trained encoder and model with a new fingerprint.
func NewSet(encoder *features.Encoder, model *forest.Forest, samples int, createdAt time.Time) (*Set, error) {
	if encoder == nil || model == nil {
		return nil, errors.New("artifact set needs an encoder and a model")
	}
	if model.NumFeatures() != encoder.NumFeatures() {
		return nil, &pipelineerror.FeatureMismatchError{Expected: encoder.NumFeatures(), Got: model.NumFeatures()}
	}
	return &Set{
		Manifest: Manifest{
			Fingerprint:     uuid.New().String(),
			CreatedAt:       createdAt.UTC(),
			FeatureCount:    encoder.NumFeatures(),
			TrainingSamples: samples,
			Classes:         model.Classes(),
			Accounts:        append([]string(nil), encoder.Accounts().Classes...),
		},
		Encoder: encoder,
		Model:   model,
	}, nil
}

// Classifier wraps the model in a validating adapter.
func (s *Set) Classifier() (*classifier.Adapter, error) {
	return classifier.NewAdapter(s.Model)
}

// Save writes the four artifacts and then the manifest into dir. A partial
// save leaves fingerprints that Load rejects.
func Save(dir string, set *Set) error {
	if err := fileutils.EnsureDirectoryExists(dir); err != nil {
		return err
	}
	fp := set.Manifest.Fingerprint

	if err := writeJSON(dir, VectorizerFile, envelope[features.VectorizerState]{Fingerprint: fp, Data: set.Encoder.Vectorizer().State()}); err != nil {
		return err
	}
	if err := writeJSON(dir, AccountEncoderFile, envelope[*features.LabelEncoder]{Fingerprint: fp, Data: set.Encoder.Accounts()}); err != nil {
		return err
	}
	if err := writeJSON(dir, AmountScalerFile, envelope[*features.StandardScaler]{Fingerprint: fp, Data: set.Encoder.Amounts()}); err != nil {
		return err
	}
	if err := writeJSON(dir, ModelFile, envelope[*forest.Forest]{Fingerprint: fp, Data: set.Model}); err != nil {
		return err
	}

	data, err := yaml.Marshal(set.Manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := fileutils.WriteFileAtomic(filepath.Join(dir, ManifestFile), data, models.PermissionArtifactFile); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func writeJSON(dir, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	if err := fileutils.WriteFileAtomic(filepath.Join(dir, name), data, models.PermissionArtifactFile); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Load reads and cross-checks an artifact set. Every failure is an
// *pipelineerror.ArtifactLoadError naming the offending artifact.
func Load(dir string, normalizer *textnorm.Normalizer) (*Set, error) {
	manifestPath := filepath.Join(dir, ManifestFile)
	raw, err := fileutils.ReadFile(manifestPath)
	if err != nil {
		return nil, loadError(ManifestFile, manifestPath, err)
	}
	var manifest Manifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return nil, loadError(ManifestFile, manifestPath, err)
	}
	if manifest.Fingerprint == "" {
		return nil, loadError(ManifestFile, manifestPath, errors.New("manifest has no fingerprint"))
	}

	vecState, err := readJSON[features.VectorizerState](dir, VectorizerFile, manifest.Fingerprint)
	if err != nil {
		return nil, err
	}
	vectorizer, err := features.RestoreTfidfVectorizer(normalizer, vecState)
	if err != nil {
		return nil, loadError(VectorizerFile, filepath.Join(dir, VectorizerFile), err)
	}

	accounts, err := readJSON[features.LabelEncoder](dir, AccountEncoderFile, manifest.Fingerprint)
	if err != nil {
		return nil, err
	}
	if err := accounts.Validate(); err != nil {
		return nil, loadError(AccountEncoderFile, filepath.Join(dir, AccountEncoderFile), err)
	}

	amounts, err := readJSON[features.StandardScaler](dir, AmountScalerFile, manifest.Fingerprint)
	if err != nil {
		return nil, err
	}
	if err := amounts.Validate(); err != nil {
		return nil, loadError(AmountScalerFile, filepath.Join(dir, AmountScalerFile), err)
	}

	model, err := readJSON[forest.Forest](dir, ModelFile, manifest.Fingerprint)
	if err != nil {
		return nil, err
	}
	modelPath := filepath.Join(dir, ModelFile)
	if err := model.Validate(); err != nil {
		return nil, loadError(ModelFile, modelPath, err)
	}

	encoder, err := features.NewEncoder(vectorizer, &accounts, &amounts)
	if err != nil {
		return nil, loadError(VectorizerFile, filepath.Join(dir, VectorizerFile), err)
	}
	if model.NumFeatures() != encoder.NumFeatures() {
		return nil, loadError(ModelFile, modelPath,
			&pipelineerror.FeatureMismatchError{Expected: encoder.NumFeatures(), Got: model.NumFeatures()})
	}
	if manifest.FeatureCount != encoder.NumFeatures() {
		return nil, loadError(ManifestFile, manifestPath,
			&pipelineerror.FeatureMismatchError{Expected: manifest.FeatureCount, Got: encoder.NumFeatures()})
	}
	if !slices.Equal(manifest.Classes, model.Classes()) {
		return nil, loadError(ModelFile, modelPath, errors.New("model classes disagree with the manifest"))
	}

	return &Set{Manifest: manifest, Encoder: encoder, Model: &model}, nil
}

func readJSON[T any](dir, name, fingerprint string) (T, error) {
	var env envelope[T]
	path := filepath.Join(dir, name)

	raw, err := fileutils.ReadFile(path)
	if err != nil {
		return env.Data, loadError(name, path, err)
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return env.Data, loadError(name, path, err)
	}
	if env.Fingerprint != fingerprint {
		return env.Data, loadError(name, path,
			fmt.Errorf("fingerprint %q does not match manifest %q", env.Fingerprint, fingerprint))
	}
	return env.Data, nil
}

func loadError(artifact, path string, err error) error {
	return &pipelineerror.ArtifactLoadError{Artifact: artifact, Path: path, Err: err}
}

// Exists reports whether dir holds a manifest.
func Exists(dir string) bool {
	return fileutils.FileExists(filepath.Join(dir, ManifestFile))
}

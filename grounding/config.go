package grounding

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/malwarescan/precogs-api-sub001/identity"
)

// Config holds all grounding configuration. Validation thresholds and the
// hash algorithm are explicit here, never implicit globals, so a
// reproducibility audit can run with a recorded configuration snapshot.
type Config struct {
	DBPath        string             `yaml:"db_path"`
	HashAlgorithm identity.Algorithm `yaml:"hash_algorithm"`
	Validation    ValidationConfig   `yaml:"validation"`
	Classify      ClassifyConfig     `yaml:"classify"`
}

// ValidationConfig controls the validator and the citation-grade tier.
type ValidationConfig struct {
	// CitationMinPassRate is the minimum pass_rate for citation grade.
	CitationMinPassRate float64 `yaml:"citation_min_pass_rate"`
	// CitationMinPassed is the minimum absolute number of passing facts.
	// Both conditions are required: a handful of perfect facts must not
	// qualify a page, nor a large page slightly below the rate.
	CitationMinPassed int `yaml:"citation_min_passed"`
	// ReportCacheTTL bounds how long the HTTP layer may serve a cached
	// validation report.
	ReportCacheTTL time.Duration `yaml:"report_cache_ttl"`
}

// ClassifyConfig controls evidence-type backfill classification.
type ClassifyConfig struct {
	// MinSupportingText is the minimal supporting-text length for a fact to
	// classify as text_extraction.
	MinSupportingText int `yaml:"min_supporting_text"`
	// BackfillBatch is how many unknown facts one backfill pass classifies.
	BackfillBatch int `yaml:"backfill_batch"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "grounding.db"
	}
	if c.HashAlgorithm == "" {
		c.HashAlgorithm = identity.SHA256
	}
	if c.Validation.CitationMinPassRate <= 0 {
		c.Validation.CitationMinPassRate = 0.95
	}
	if c.Validation.CitationMinPassed <= 0 {
		c.Validation.CitationMinPassed = 10
	}
	if c.Validation.ReportCacheTTL <= 0 {
		c.Validation.ReportCacheTTL = 30 * time.Second
	}
	if c.Classify.MinSupportingText <= 0 {
		c.Classify.MinSupportingText = 20
	}
	if c.Classify.BackfillBatch <= 0 {
		c.Classify.BackfillBatch = 500
	}
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

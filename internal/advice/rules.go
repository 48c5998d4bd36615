package advice

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/habit-ml/internal/features"
	"github.com/miradorstack/habit-ml/internal/models"
)

// RuleEngine maps a scored habit to coaching recommendations.
type RuleEngine struct {
	rules  []Rule
	logger *slog.Logger
}

// Rule represents a single recommendation rule.
type Rule struct {
	ID              string    `yaml:"id"`
	Match           RuleMatch `yaml:"match"`
	Recommendations []string  `yaml:"recommendations"`
}

// RuleMatch defines optional attributes for rule matching. Every populated attribute must hold.
type RuleMatch struct {
	Risk     []models.RiskCategory `yaml:"risk"`
	Features []FeatureCondition    `yaml:"features"`
}

// FeatureCondition bounds a single feature value. Bounds are exclusive; a missing feature never
// matches.
type FeatureCondition struct {
	Name  string   `yaml:"name"`
	Above *float64 `yaml:"above"`
	Below *float64 `yaml:"below"`
}

// RuleConfigFile is the YAML root structure.
type RuleConfigFile struct {
	Rules []Rule `yaml:"rules"`
}

var defaultRecommendations = map[models.RiskCategory][]string{
	models.RiskHighSuccess: {
		"Great consistency! Consider adding challenging habits",
		"Share your strategies with others",
		"Set ambitious long-term goals",
	},
	models.RiskModerateRisk: {
		"Focus on sustainable daily habits",
		"Reduce habit difficulty during low-energy periods",
		"Build recovery strategies before breaks",
	},
	models.RiskHighRisk: {
		"Start with one very easy habit",
		"Lower your expectations temporarily",
		"Find an accountability partner",
	},
}

// NewRuleEngine loads rules from the provided path. An empty path or a missing file yields an
// engine that only serves the built-in defaults.
func NewRuleEngine(path string, logger *slog.Logger) (*RuleEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	engine := &RuleEngine{logger: logger}
	if path == "" {
		return engine, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("advice rules not found, using defaults", slog.String("path", path))
			return engine, nil
		}
		return nil, err
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("advice rules %s: %w", path, err)
	}
	engine.rules = rules
	logger.Debug("advice rules loaded", slog.String("path", path), slog.Int("rules", len(rules)))
	return engine, nil
}

// ParseRules decodes and checks a YAML rule pack.
func ParseRules(data []byte) ([]Rule, error) {
	var cfg RuleConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	known := make(map[string]struct{})
	for _, name := range features.AllNames() {
		known[name] = struct{}{}
	}
	for _, rule := range cfg.Rules {
		for _, risk := range rule.Match.Risk {
			if _, ok := defaultRecommendations[risk]; !ok {
				return nil, fmt.Errorf("rule %q: unknown risk category %q", rule.ID, risk)
			}
		}
		for _, cond := range rule.Match.Features {
			if _, ok := known[cond.Name]; !ok {
				return nil, fmt.Errorf("rule %q: unknown feature %q", rule.ID, cond.Name)
			}
			if cond.Above == nil && cond.Below == nil {
				return nil, fmt.Errorf("rule %q: feature %q has no bound", rule.ID, cond.Name)
			}
		}
	}
	return cfg.Rules, nil
}

// Recommend returns the recommendations of every matching rule in file order without duplicates.
// When no rule matches, the defaults for the risk category are returned.
func (e *RuleEngine) Recommend(risk models.RiskCategory, v features.Vector) []string {
	matched := make([]string, 0)
	if e != nil {
		for _, rule := range e.rules {
			if !riskMatches(rule.Match.Risk, risk) || !featuresMatch(rule.Match.Features, v) {
				continue
			}
			matched = appendUnique(matched, rule.Recommendations...)
		}
	}
	if len(matched) == 0 {
		return appendUnique(matched, defaultRecommendations[risk]...)
	}
	return matched
}

// Defaults returns the built-in recommendations for a risk category.
func Defaults(risk models.RiskCategory) []string {
	return appendUnique(nil, defaultRecommendations[risk]...)
}

func riskMatches(allowed []models.RiskCategory, risk models.RiskCategory) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, candidate := range allowed {
		if strings.EqualFold(string(candidate), string(risk)) {
			return true
		}
	}
	return false
}

func featuresMatch(conds []FeatureCondition, v features.Vector) bool {
	for _, cond := range conds {
		value, ok := v[cond.Name]
		if !ok {
			return false
		}
		if cond.Above != nil && !(value > *cond.Above) {
			return false
		}
		if cond.Below != nil && !(value < *cond.Below) {
			return false
		}
	}
	return true
}

func appendUnique(existing []string, additions ...string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, rec := range existing {
		seen[rec] = struct{}{}
	}
	for _, item := range additions {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		existing = append(existing, item)
		seen[item] = struct{}{}
	}
	return existing
}

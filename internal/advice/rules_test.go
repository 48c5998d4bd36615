package advice

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/miradorstack/habit-ml/internal/features"
	"github.com/miradorstack/habit-ml/internal/models"
	"github.com/miradorstack/habit-ml/internal/utils"
)

func writeRules(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	return path
}

func TestRuleEngineRecommend(t *testing.T) {
	path := writeRules(t, `rules:
  - id: solo
    match:
      risk: [high_risk]
      features:
        - name: has_accountability_partner
          below: 0.5
    recommendations: ["Find an accountability partner", "Tell a friend"]
  - id: slipping
    match:
      features:
        - name: momentum_score
          below: 0
    recommendations: ["Find an accountability partner", "Restart small"]
`)

	engine, err := NewRuleEngine(path, utils.DiscardLogger())
	if err != nil {
		t.Fatalf("new rule engine: %v", err)
	}

	v := features.Vector{features.HasAccountabilityPartner: 0, features.MomentumScore: -0.2}
	recs := engine.Recommend(models.RiskHighRisk, v)
	want := []string{"Find an accountability partner", "Tell a friend", "Restart small"}
	if len(recs) != len(want) {
		t.Fatalf("expected %v, got %v", want, recs)
	}
	for i := range want {
		if recs[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, recs)
		}
	}

	recs = engine.Recommend(models.RiskModerateRisk, v)
	if len(recs) != 2 || recs[1] != "Restart small" {
		t.Fatalf("risk filter not applied: %v", recs)
	}
}

func TestRuleEngineFallsBackToDefaults(t *testing.T) {
	path := writeRules(t, `rules:
  - id: strong
    match:
      features:
        - name: momentum_score
          above: 0.5
    recommendations: ["Keep going"]
`)
	engine, err := NewRuleEngine(path, nil)
	if err != nil {
		t.Fatalf("new rule engine: %v", err)
	}

	recs := engine.Recommend(models.RiskHighSuccess, features.Vector{features.MomentumScore: 0.1})
	if len(recs) != 3 || recs[0] != "Great consistency! Consider adding challenging habits" {
		t.Fatalf("expected high-success defaults, got %v", recs)
	}

	// absent feature never matches
	recs = engine.Recommend(models.RiskHighRisk, features.Vector{})
	if recs[0] != "Start with one very easy habit" {
		t.Fatalf("expected high-risk defaults, got %v", recs)
	}
}

func TestRuleEngineNoFile(t *testing.T) {
	engine, err := NewRuleEngine("non-existent", nil)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if recs := engine.Recommend(models.RiskModerateRisk, nil); len(recs) != 3 {
		t.Fatalf("expected moderate defaults, got %v", recs)
	}

	var nilEngine *RuleEngine
	if recs := nilEngine.Recommend(models.RiskHighRisk, nil); len(recs) != 3 {
		t.Fatalf("nil engine should serve defaults, got %v", recs)
	}
}

func TestParseRulesRejectsUnknownNames(t *testing.T) {
	cases := map[string]string{
		"feature": `rules:
  - id: x
    match:
      features:
        - name: not_a_feature
          above: 1
`,
		"risk": `rules:
  - id: x
    match:
      risk: [doomed]
`,
		"unbounded": `rules:
  - id: x
    match:
      features:
        - name: momentum_score
`,
	}
	for name, body := range cases {
		if _, err := ParseRules([]byte(body)); err == nil {
			t.Fatalf("%s: expected parse error", name)
		}
	}
}

func TestDefaultRulePackParses(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "configs", "advice", "default.yaml"))
	if err != nil {
		t.Fatalf("read default rules: %v", err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		t.Fatalf("parse default rules: %v", err)
	}
	if len(rules) == 0 {
		t.Fatalf("expected rules in default pack")
	}
}

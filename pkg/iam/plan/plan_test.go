package plan_test

import (
	"net/http"
	"testing"

	"github.com/Abraxas-365/gatekit/pkg/iam/plan"
)

func TestNormalizeCanonicalKeys(t *testing.T) {
	for _, k := range []plan.Key{
		plan.KeyFree, plan.KeyStarter, plan.KeyPro,
		plan.KeyTeam, plan.KeyEnterprise, plan.KeyCorporation,
	} {
		if got := plan.Normalize(string(k)); got != k {
			t.Errorf("Normalize(%q) = %q, want %q", k, got, k)
		}
	}
}

func TestNormalizeIsTotal(t *testing.T) {
	cases := map[string]plan.Key{
		"":              plan.KeyFree,
		"   ":           plan.KeyFree,
		"garbage":       plan.KeyFree,
		"FREE":          plan.KeyFree,
		"  Pro  ":       plan.KeyPro,
		"ENTERPRISE":    plan.KeyEnterprise,
		"basic":         plan.KeyStarter,
		"professional":  plan.KeyPro,
		"business":      plan.KeyTeam,
		"corp":          plan.KeyCorporation,
		"plan-del-2019": plan.KeyFree,
	}
	for raw, want := range cases {
		if got := plan.Normalize(raw); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestRequireFeaturePolicyTable(t *testing.T) {
	type check struct {
		key     plan.Key
		feature plan.Feature
		allowed bool
	}
	checks := []check{
		{plan.KeyFree, plan.FeatureChat, true},
		{plan.KeyFree, plan.FeatureDocumentUpload, true},
		{plan.KeyFree, plan.FeatureScheduling, false},
		{plan.KeyFree, plan.FeatureExtraction, false},
		{plan.KeyFree, plan.FeatureMediaUpload, false},

		{plan.KeyStarter, plan.FeatureChat, true},
		{plan.KeyStarter, plan.FeatureScheduling, true},
		{plan.KeyStarter, plan.FeatureExtraction, true},
		{plan.KeyStarter, plan.FeatureMediaUpload, false},

		{plan.KeyPro, plan.FeatureScheduling, true},
		{plan.KeyPro, plan.FeatureMediaUpload, false},

		{plan.KeyTeam, plan.FeatureMediaUpload, true},
		{plan.KeyEnterprise, plan.FeatureMediaUpload, true},
		{plan.KeyCorporation, plan.FeatureMediaUpload, true},
	}
	for _, c := range checks {
		d := plan.RequireFeature(c.key, c.feature)
		if d.Allowed != c.allowed {
			t.Errorf("RequireFeature(%s, %s) = %v, want %v", c.key, c.feature, d.Allowed, c.allowed)
		}
	}
}

func TestRequireFeatureDenialCarriesUpgradeHint(t *testing.T) {
	d := plan.RequireFeature(plan.KeyFree, plan.FeatureMediaUpload)
	if d.Allowed {
		t.Fatal("free must not allow media-upload")
	}
	if d.ReasonCode != plan.ReasonUpgradeRequired {
		t.Fatalf("expected %s, got %s", plan.ReasonUpgradeRequired, d.ReasonCode)
	}
	if d.SuggestedStatus != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", d.SuggestedStatus)
	}
}

func TestRequireFeatureUnknownFeatureDeniedForAll(t *testing.T) {
	for _, k := range []plan.Key{
		plan.KeyFree, plan.KeyStarter, plan.KeyPro,
		plan.KeyTeam, plan.KeyEnterprise, plan.KeyCorporation,
	} {
		d := plan.RequireFeature(k, plan.Feature("time-travel"))
		if d.Allowed {
			t.Errorf("unknown feature allowed for plan %s", k)
		}
		if d.ReasonCode != plan.ReasonUnknownFeature {
			t.Errorf("plan %s: expected %s, got %s", k, plan.ReasonUnknownFeature, d.ReasonCode)
		}
		if d.SuggestedStatus != http.StatusForbidden {
			t.Errorf("plan %s: expected 403, got %d", k, d.SuggestedStatus)
		}
	}
}

func TestErrFeatureNotAllowedUsesSuggestedStatus(t *testing.T) {
	d := plan.RequireFeature(plan.KeyFree, plan.Feature("time-travel"))
	err := plan.ErrFeatureNotAllowed(d, plan.Feature("time-travel"))
	if err.HTTPStatus != http.StatusForbidden {
		t.Fatalf("expected 403 for unknown feature, got %d", err.HTTPStatus)
	}
	if err.Code != "PLAN_FEATURE_NOT_ALLOWED" {
		t.Fatalf("unexpected code %s", err.Code)
	}

	d = plan.RequireFeature(plan.KeyFree, plan.FeatureScheduling)
	err = plan.ErrFeatureNotAllowed(d, plan.FeatureScheduling)
	if err.HTTPStatus != http.StatusPaymentRequired {
		t.Fatalf("expected 402 for upgradeable feature, got %d", err.HTTPStatus)
	}
}

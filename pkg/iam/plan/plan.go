package plan

import (
	"net/http"
	"strings"

	"github.com/Abraxas-365/gatekit/pkg/errx"
)

// ============================================================================
// Domain Types
// ============================================================================

// Key es el identificador canónico del plan de suscripción de un tenant
type Key string

const (
	KeyFree        Key = "free"
	KeyStarter     Key = "starter"
	KeyPro         Key = "pro"
	KeyTeam        Key = "team"
	KeyEnterprise  Key = "enterprise"
	KeyCorporation Key = "corporation"
)

// Feature es una capacidad del producto gateada por plan
type Feature string

const (
	FeatureChat           Feature = "chat"
	FeatureDocumentUpload Feature = "document-upload"
	FeatureScheduling     Feature = "scheduling"
	FeatureExtraction     Feature = "extraction"
	FeatureMediaUpload    Feature = "media-upload"
)

// Decision es el resultado de evaluar (plan, feature)
type Decision struct {
	Allowed         bool   `json:"allowed"`
	ReasonCode      string `json:"reason_code,omitempty"`
	SuggestedStatus int    `json:"suggested_status,omitempty"`
}

const (
	// ReasonUpgradeRequired indica que un plan superior desbloquea la feature
	ReasonUpgradeRequired = "upgrade_required"
	// ReasonUnknownFeature indica una feature que ningún plan habilita
	ReasonUnknownFeature = "unknown_feature"
)

// tier ordena los planes de menor a mayor privilegio. Normalize garantiza
// que toda Key consultada acá existe.
var tier = map[Key]int{
	KeyFree:        0,
	KeyStarter:     1,
	KeyPro:         2,
	KeyTeam:        3,
	KeyEnterprise:  4,
	KeyCorporation: 5,
}

// minTier es el plan mínimo que habilita cada feature conocida.
var minTier = map[Feature]int{
	FeatureChat:           tier[KeyFree],
	FeatureDocumentUpload: tier[KeyFree],
	FeatureScheduling:     tier[KeyStarter],
	FeatureExtraction:     tier[KeyStarter],
	FeatureMediaUpload:    tier[KeyTeam],
}

// legacyAliases mapea strings de planes históricos a su Key canónica.
var legacyAliases = map[string]Key{
	"basic":        KeyStarter,
	"professional": KeyPro,
	"business":     KeyTeam,
	"corp":         KeyCorporation,
}

// ============================================================================
// Policy Functions
// ============================================================================

// Normalize mapea un string de plan arbitrario (vacío, legacy, con
// mayúsculas o basura) a una Key canónica. Es total: toda entrada produce
// una Key, y lo desconocido cae a free como default de menor privilegio.
func Normalize(raw string) Key {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := tier[Key(cleaned)]; ok {
		return Key(cleaned)
	}
	if k, ok := legacyAliases[cleaned]; ok {
		return k
	}
	return KeyFree
}

// RequireFeature decide si un plan habilita una feature. Es pura y total:
// todo par (plan, feature) tiene respuesta definida. Una feature
// desconocida se niega para todos los planes.
func RequireFeature(k Key, f Feature) Decision {
	required, known := minTier[f]
	if !known {
		return Decision{
			Allowed:         false,
			ReasonCode:      ReasonUnknownFeature,
			SuggestedStatus: http.StatusForbidden,
		}
	}
	if tier[k] >= required {
		return Decision{Allowed: true}
	}
	// un plan superior la desbloquea: 402 invita al upgrade
	return Decision{
		Allowed:         false,
		ReasonCode:      ReasonUpgradeRequired,
		SuggestedStatus: http.StatusPaymentRequired,
	}
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("PLAN")

var (
	CodeFeatureNotAllowed = ErrRegistry.Register("FEATURE_NOT_ALLOWED", errx.TypePayment, http.StatusPaymentRequired, "Feature not available on current plan")
)

// ErrFeatureNotAllowed construye el error de denegación a partir de la
// decisión, respetando el status que la política sugiere.
func ErrFeatureNotAllowed(d Decision, f Feature) *errx.Error {
	err := ErrRegistry.New(CodeFeatureNotAllowed).
		WithDetail("feature", string(f)).
		WithDetail("reason", d.ReasonCode)
	if d.SuggestedStatus != 0 {
		err.HTTPStatus = d.SuggestedStatus
	}
	return err
}

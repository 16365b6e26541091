package client

import "fmt"

// Default service roots of the two Recall data models.
const (
	DefaultNativeBaseURL = "https://dsdata01.qa.dsis.equinor.com:8443/dsdataserver/dsl.svc" +
		"/recall/500010/recall_RecallProd-RecallProd"
	DefaultCommonBaseURL = "https://dsdata01.qa.dsis.equinor.com:8443/dsdataserver/dsl.svc" +
		"/RecallCommonModel/500010/RecallCommonModel_OFDB_RecallProd-RecallProd"
)

// EntityKind is a category of record in the Recall data model.
type EntityKind int

const (
	KindWell EntityKind = iota
	KindLog
	KindCurve
)

// String returns the kind name used in logs and metrics.
func (k EntityKind) String() string {
	switch k {
	case KindWell:
		return "well"
	case KindLog:
		return "log"
	case KindCurve:
		return "curve"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Model is one of the two parallel naming schemes for the same Recall
// entities, together with the service root it is served under.
// A Client keeps the Model it was built with for its whole lifetime.
type Model struct {
	// Name identifies the model in logs and cache keys
	Name    string
	BaseURL string

	// Entity set names
	Well  string
	Log   string
	Curve string
}

// NativeModel returns the Recall native model (WELL, LOG, CURVE).
func NativeModel() Model {
	return Model{
		Name:    "recall",
		BaseURL: DefaultNativeBaseURL,
		Well:    "WELL",
		Log:     "LOG",
		Curve:   "CURVE",
	}
}

// CommonModel returns the DSIS common model (Well, WellLog, LogCurve).
func CommonModel() Model {
	return Model{
		Name:    "RecallCommonModel",
		BaseURL: DefaultCommonBaseURL,
		Well:    "Well",
		Log:     "WellLog",
		Curve:   "LogCurve",
	}
}

// ModelFor selects the native model when native is true, the common model
// otherwise.
func ModelFor(native bool) Model {
	if native {
		return NativeModel()
	}
	return CommonModel()
}

// WithBaseURL returns a copy of m served from baseURL.
func (m Model) WithBaseURL(baseURL string) Model {
	m.BaseURL = baseURL
	return m
}

// Entity returns the entity set name of kind in this model.
func (m Model) Entity(kind EntityKind) string {
	switch kind {
	case KindWell:
		return m.Well
	case KindLog:
		return m.Log
	case KindCurve:
		return m.Curve
	default:
		return ""
	}
}

func (m Model) validate() error {
	if m.BaseURL == "" {
		return fmt.Errorf("model base URL is required")
	}
	if m.Well == "" || m.Log == "" || m.Curve == "" {
		return fmt.Errorf("model %q is missing entity names", m.Name)
	}
	return nil
}

package model

// Pillar identifies one of the fixed business dimensions used to structure
// the evaluation. The "general" pillar exists only as an evidence tag for
// chunks that apply everywhere; it is never scored.
type Pillar string

const (
	PillarFinancialHealth      Pillar = "financial_health"
	PillarGTMEngine            Pillar = "gtm_engine"
	PillarCustomerHealth       Pillar = "customer_health"
	PillarProductTechnical     Pillar = "product_technical"
	PillarOperationalMaturity  Pillar = "operational_maturity"
	PillarLeadershipTransition Pillar = "leadership_transition"
	PillarEcosystemDependency  Pillar = "ecosystem_dependency"
	PillarServiceSoftwareRatio Pillar = "service_software_ratio"
	PillarGeneral              Pillar = "general"
)

// ScoringPillars returns the eight pillars that receive scores, in the fixed
// order the orchestrator processes them.
func ScoringPillars() []Pillar {
	return []Pillar{
		PillarFinancialHealth,
		PillarGTMEngine,
		PillarCustomerHealth,
		PillarProductTechnical,
		PillarOperationalMaturity,
		PillarLeadershipTransition,
		PillarEcosystemDependency,
		PillarServiceSoftwareRatio,
	}
}

// Valid reports whether p names a known pillar (scoring or general).
func (p Pillar) Valid() bool {
	switch p {
	case PillarFinancialHealth, PillarGTMEngine, PillarCustomerHealth,
		PillarProductTechnical, PillarOperationalMaturity, PillarLeadershipTransition,
		PillarEcosystemDependency, PillarServiceSoftwareRatio, PillarGeneral:
		return true
	}
	return false
}

// Label returns a human-readable pillar name for reports and progress events.
func (p Pillar) Label() string {
	switch p {
	case PillarFinancialHealth:
		return "Financial Health"
	case PillarGTMEngine:
		return "GTM Engine"
	case PillarCustomerHealth:
		return "Customer Health"
	case PillarProductTechnical:
		return "Product & Technical"
	case PillarOperationalMaturity:
		return "Operational Maturity"
	case PillarLeadershipTransition:
		return "Leadership Transition"
	case PillarEcosystemDependency:
		return "Ecosystem Dependency"
	case PillarServiceSoftwareRatio:
		return "Service/Software Ratio"
	case PillarGeneral:
		return "General"
	default:
		return string(p)
	}
}

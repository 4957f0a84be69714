package registry

import "github.com/sells-group/diligence-cli/internal/model"

// builtinDefs is the built-in metric catalogue. Pure data: no behavior
// depends on anything here beyond name, type, and the critical marker.
var builtinDefs = []MetricDef{
	// Financial health
	{Name: "arr", Type: model.ValueScalar, Unit: "USD", Description: "Annual recurring revenue", Pillar: model.PillarFinancialHealth, Critical: true},
	{Name: "revenue_growth_rate", Type: model.ValueScalar, Unit: "%", Description: "Year-over-year revenue growth", Pillar: model.PillarFinancialHealth, Critical: true},
	{Name: "gross_margin", Type: model.ValueScalar, Unit: "%", Description: "Blended gross margin", Pillar: model.PillarFinancialHealth, Critical: true},
	{Name: "ebitda_margin", Type: model.ValueScalar, Unit: "%", Description: "EBITDA as a share of revenue", Pillar: model.PillarFinancialHealth},
	{Name: "cash_runway_months", Type: model.ValueScalar, Unit: "months", Description: "Months of cash at current burn", Pillar: model.PillarFinancialHealth},
	{Name: "deferred_revenue", Type: model.ValueScalar, Unit: "USD", Description: "Deferred revenue balance", Pillar: model.PillarFinancialHealth},
	{Name: "revenue_by_year", Type: model.ValueTimeSeries, Unit: "USD", Description: "Revenue by fiscal year", Pillar: model.PillarFinancialHealth},
	{Name: "audited_financials", Type: model.ValueBoolean, Description: "Financial statements are audited", Pillar: model.PillarFinancialHealth},

	// GTM engine
	{Name: "cac", Type: model.ValueScalar, Unit: "USD", Description: "Customer acquisition cost", Pillar: model.PillarGTMEngine},
	{Name: "sales_cycle_days", Type: model.ValueScalar, Unit: "days", Description: "Average sales cycle length", Pillar: model.PillarGTMEngine},
	{Name: "pipeline_coverage", Type: model.ValueScalar, Unit: "x", Description: "Pipeline to quota coverage ratio", Pillar: model.PillarGTMEngine, Critical: true},
	{Name: "win_rate", Type: model.ValueScalar, Unit: "%", Description: "Opportunity win rate", Pillar: model.PillarGTMEngine},
	{Name: "lead_sources", Type: model.ValueRecordList, Description: "Lead volume by source channel", Pillar: model.PillarGTMEngine},
	{Name: "founder_led_sales", Type: model.ValueBoolean, Description: "Sales still depend on the founder", Pillar: model.PillarGTMEngine, Critical: true},

	// Customer health
	{Name: "net_revenue_retention", Type: model.ValueScalar, Unit: "%", Description: "Net revenue retention", Pillar: model.PillarCustomerHealth, Critical: true},
	{Name: "gross_churn_rate", Type: model.ValueScalar, Unit: "%", Description: "Annual gross logo churn", Pillar: model.PillarCustomerHealth, Critical: true},
	{Name: "nps", Type: model.ValueScalar, Description: "Net promoter score", Pillar: model.PillarCustomerHealth},
	{Name: "customer_count", Type: model.ValueScalar, Description: "Active customer count", Pillar: model.PillarCustomerHealth},
	{Name: "top_accounts", Type: model.ValueRecordList, Description: "Largest accounts with revenue share", Pillar: model.PillarCustomerHealth, Critical: true},
	{Name: "customer_concentration_pct", Type: model.ValueScalar, Unit: "%", Description: "Revenue share of top 5 accounts", Pillar: model.PillarCustomerHealth},
	{Name: "support_ticket_trend", Type: model.ValueTimeSeries, Description: "Monthly support ticket volume", Pillar: model.PillarCustomerHealth},

	// Product / technical
	{Name: "uptime_pct", Type: model.ValueScalar, Unit: "%", Description: "Trailing 12-month uptime", Pillar: model.PillarProductTechnical},
	{Name: "release_cadence_weeks", Type: model.ValueScalar, Unit: "weeks", Description: "Typical release interval", Pillar: model.PillarProductTechnical},
	{Name: "tech_debt_assessment", Type: model.ValueText, Description: "Qualitative technical-debt assessment", Pillar: model.PillarProductTechnical, Critical: true},
	{Name: "cloud_native", Type: model.ValueBoolean, Description: "Product is cloud native", Pillar: model.PillarProductTechnical},
	{Name: "security_certifications", Type: model.ValueRecordList, Description: "Security and compliance certifications", Pillar: model.PillarProductTechnical},
	{Name: "engineering_headcount", Type: model.ValueScalar, Description: "Engineering team size", Pillar: model.PillarProductTechnical},

	// Operational maturity
	{Name: "documented_processes", Type: model.ValueBoolean, Description: "Core processes are documented", Pillar: model.PillarOperationalMaturity, Critical: true},
	{Name: "employee_count", Type: model.ValueScalar, Description: "Total headcount", Pillar: model.PillarOperationalMaturity},
	{Name: "employee_turnover_pct", Type: model.ValueScalar, Unit: "%", Description: "Annual employee turnover", Pillar: model.PillarOperationalMaturity},
	{Name: "erp_in_use", Type: model.ValueBoolean, Description: "Company runs an ERP or equivalent", Pillar: model.PillarOperationalMaturity},
	{Name: "org_chart", Type: model.ValueRecordList, Description: "Org structure by function", Pillar: model.PillarOperationalMaturity},

	// Leadership transition
	{Name: "founder_involvement", Type: model.ValueText, Description: "Founder's current operating role", Pillar: model.PillarLeadershipTransition, Critical: true},
	{Name: "second_layer_strength", Type: model.ValueText, Description: "Depth of the second management layer", Pillar: model.PillarLeadershipTransition, Critical: true},
	{Name: "key_person_dependencies", Type: model.ValueRecordList, Description: "Individuals the business depends on", Pillar: model.PillarLeadershipTransition},
	{Name: "succession_plan", Type: model.ValueBoolean, Description: "A succession plan exists", Pillar: model.PillarLeadershipTransition},

	// Ecosystem dependency
	{Name: "platform_dependency", Type: model.ValueText, Description: "Primary platform or ecosystem dependency", Pillar: model.PillarEcosystemDependency, Critical: true},
	{Name: "partner_revenue_pct", Type: model.ValueScalar, Unit: "%", Description: "Revenue through partners", Pillar: model.PillarEcosystemDependency},
	{Name: "vendor_lock_in_risk", Type: model.ValueText, Description: "Assessment of vendor lock-in exposure", Pillar: model.PillarEcosystemDependency},
	{Name: "integration_count", Type: model.ValueScalar, Description: "Number of shipped integrations", Pillar: model.PillarEcosystemDependency},

	// Service / software ratio
	{Name: "recurring_revenue_pct", Type: model.ValueScalar, Unit: "%", Description: "Share of revenue that is recurring", Pillar: model.PillarServiceSoftwareRatio, Critical: true},
	{Name: "services_revenue_pct", Type: model.ValueScalar, Unit: "%", Description: "Share of revenue from services", Pillar: model.PillarServiceSoftwareRatio, Critical: true},
	{Name: "services_attach_rate", Type: model.ValueScalar, Unit: "%", Description: "Deals requiring implementation services", Pillar: model.PillarServiceSoftwareRatio},
	{Name: "license_mix", Type: model.ValueRecordList, Description: "Revenue mix by license type", Pillar: model.PillarServiceSoftwareRatio},
}

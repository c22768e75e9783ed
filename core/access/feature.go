package access

// Feature is a named capability area owning an independent permission table.
type Feature string

const (
	FeatureRegulationYears   Feature = "regulation-years"
	FeatureRevisionWorkflow  Feature = "revision-workflow"
	FeatureAcademicStructure Feature = "academic-structure"
	FeatureCreditConfig      Feature = "credit-config"
	FeatureElectiveSelection Feature = "elective-selection"
	FeatureOBEConfig         Feature = "obe-config"
	FeatureSyllabusTracking  Feature = "syllabus-tracking"
	FeatureIntegration       Feature = "integration"
)

var Features = []Feature{
	FeatureRegulationYears,
	FeatureRevisionWorkflow,
	FeatureAcademicStructure,
	FeatureCreditConfig,
	FeatureElectiveSelection,
	FeatureOBEConfig,
	FeatureSyllabusTracking,
	FeatureIntegration,
}

// Action is matched as a free-form string against the actions a feature defines.
type Action string

// CRUD
const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Feature-specific extras
const (
	ActionApprove   Action = "approve"
	ActionSelect    Action = "select"
	ActionRecommend Action = "recommend"
	ActionOverride  Action = "override"
	ActionUpload    Action = "upload"
	ActionTrack     Action = "track"
	ActionAnalytics Action = "analytics"
	ActionManage    Action = "manage"
)

var Actions = []Action{
	ActionView, ActionCreate, ActionEdit, ActionDelete,
	ActionApprove, ActionSelect, ActionRecommend, ActionOverride,
	ActionUpload, ActionTrack, ActionAnalytics, ActionManage,
}

func (f Feature) String() string { return string(f) }
func (a Action) String() string  { return string(a) }

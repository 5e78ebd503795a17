package store

import "time"

// Submission is one row of voice_ai_submissions. JSON tags follow the
// column names; the webhook payload is this struct.
type Submission struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CompanyName          string `json:"company_name"`
	SpecificBusinessType string `json:"specific_business_type"`
	CompanyWebsite       string `json:"company_website"`
	ContactName          string `json:"contact_name"`
	Email                string `json:"email"`

	AgentType             string   `json:"agent_type"`
	LeadSources           []string `json:"lead_sources"`
	LeadSourcesOther      string   `json:"lead_sources_other"`
	MainPurpose           string   `json:"main_purpose"`
	MainPurposeOther      string   `json:"main_purpose_other"`
	BrandPersonality      []string `json:"brand_personality"`
	BrandPersonalityOther string   `json:"brand_personality_other"`

	CurrentCallProcess       string   `json:"current_call_process"`
	SalesScripts             []string `json:"sales_scripts"`
	RequiredInformation      []string `json:"required_information"`
	RequiredInformationOther string   `json:"required_information_other"`

	SuccessCriteria          string `json:"success_criteria"`
	DisqualificationCriteria string `json:"disqualification_criteria"`

	EmotionalStates      []string `json:"emotional_states"`
	EmotionalStatesOther string   `json:"emotional_states_other"`
	CommonProblems       []string `json:"common_problems"`
	CommonObjections     string   `json:"common_objections"`

	CompanyServices    string   `json:"company_services"`
	ServiceAreas       string   `json:"service_areas"`
	KeyDifferentiators string   `json:"key_differentiators"`
	TopicsToAvoid      []string `json:"topics_to_avoid"`
	TopicsToAvoidOther string   `json:"topics_to_avoid_other"`

	TransferTriggers      []string `json:"transfer_triggers"`
	TransferTriggersOther string   `json:"transfer_triggers_other"`

	SuccessDefinition       string `json:"success_definition"`
	TargetCallLength        int    `json:"target_call_length"`
	CRMSystem               string `json:"crm_system"`
	CRMSystemOther          string `json:"crm_system_other"`
	SchedulingSoftware      string `json:"scheduling_software"`
	SchedulingSoftwareOther string `json:"scheduling_software_other"`
	EmailSystem             string `json:"email_system"`
	EmailSystemOther        string `json:"email_system_other"`
	ComplianceRequirements  string `json:"compliance_requirements"`

	AIName                      string `json:"ai_name"`
	VoiceGender                 string `json:"voice_gender"`
	ElevenLabsVoiceID           string `json:"eleven_labs_voice_id"`
	AdditionalVoiceRequirements string `json:"additional_voice_requirements"`

	Status            string `json:"status"`
	Notes             string `json:"notes"`
	CompletedSections []int  `json:"completed_sections"`
	LastSection       int    `json:"last_section"`
}

// SubmissionSummary is the operator listing projection.
type SubmissionSummary struct {
	ID                   string    `json:"id"`
	CompanyName          string    `json:"company_name"`
	ContactName          string    `json:"contact_name"`
	Email                string    `json:"email"`
	SpecificBusinessType string    `json:"specific_business_type"`
	AgentType            string    `json:"agent_type"`
	Status               string    `json:"status"`
	CompletedSections    []int     `json:"completed_sections"`
	LastSection          int       `json:"last_section"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Filter selects rows for Find. Results are ordered by updated_at descending;
// a zero Limit returns every match.
type Filter struct {
	Email    string
	Statuses []string
	Limit    int
}

// ListFilter narrows ListSubmissions. Empty Status matches every status.
type ListFilter struct {
	Status string
	Limit  int
	Offset int
}

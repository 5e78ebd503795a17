package form

// OtherOption is the sentinel tag that activates a multi-select question's
// free-text "other" field.
const OtherOption = "other"

// Record is the full set of answers a respondent has given so far.
type Record struct {
	// Basic information
	CompanyName          string `json:"companyName"`
	SpecificBusinessType string `json:"specificBusinessType"`
	CompanyWebsite       string `json:"companyWebsite"`
	ContactName          string `json:"contactName"`
	Email                string `json:"email"`

	// Voice AI purpose
	AgentType             string   `json:"agentType"`
	LeadSources           []string `json:"leadSources"`
	LeadSourcesOther      string   `json:"leadSourcesOther"`
	MainPurpose           string   `json:"mainPurpose"`
	MainPurposeOther      string   `json:"mainPurposeOther"`
	BrandPersonality      []string `json:"brandPersonality"`
	BrandPersonalityOther string   `json:"brandPersonalityOther"`

	// Call process
	CurrentCallProcess       string       `json:"currentCallProcess"`
	SalesScripts             []Attachment `json:"salesScripts"`
	RequiredInformation      []string     `json:"requiredInformation"`
	RequiredInformationOther string       `json:"requiredInformationOther"`

	// Qualification criteria
	SuccessCriteria          string `json:"successCriteria"`
	DisqualificationCriteria string `json:"disqualificationCriteria"`

	// Customer experience
	EmotionalStates      []string `json:"emotionalStates"`
	EmotionalStatesOther string   `json:"emotionalStatesOther"`
	CommonProblems       []string `json:"commonProblems"`
	CommonObjections     string   `json:"commonObjections"`

	// Agent knowledge
	CompanyServices    string   `json:"companyServices"`
	ServiceAreas       string   `json:"serviceAreas"`
	KeyDifferentiators string   `json:"keyDifferentiators"`
	TopicsToAvoid      []string `json:"topicsToAvoid"`
	TopicsToAvoidOther string   `json:"topicsToAvoidOther"`

	// Escalation protocols
	TransferTriggers      []string `json:"transferTriggers"`
	TransferTriggersOther string   `json:"transferTriggersOther"`

	// Success metrics and integrations
	SuccessDefinition       string `json:"successDefinition"`
	TargetCallLength        int    `json:"targetCallLength"`
	CRMSystem               string `json:"crmSystem"`
	CRMSystemOther          string `json:"crmSystemOther"`
	SchedulingSoftware      string `json:"schedulingSoftware"`
	SchedulingSoftwareOther string `json:"schedulingSoftwareOther"`
	EmailSystem             string `json:"emailSystem"`
	EmailSystemOther        string `json:"emailSystemOther"`
	ComplianceRequirements  string `json:"complianceRequirements"`

	// Voice preferences
	AIName                      string `json:"aiName"`
	VoiceGender                 string `json:"voiceGender"`
	ElevenLabsVoiceID           string `json:"elevenLabsVoiceId"`
	AdditionalVoiceRequirements string `json:"additionalVoiceRequirements"`
}

// NewRecord returns an empty record with every list initialised, matching
// what a fresh form shows.
func NewRecord() Record {
	var r Record
	r.Normalize()
	return r
}

// Normalize replaces nil lists with empty ones so that a record never
// carries nulls.
func (r *Record) Normalize() {
	for _, list := range []*[]string{
		&r.LeadSources, &r.BrandPersonality, &r.RequiredInformation, &r.EmotionalStates,
		&r.CommonProblems, &r.TopicsToAvoid, &r.TransferTriggers,
	} {
		if *list == nil {
			*list = []string{}
		}
	}
	if r.SalesScripts == nil {
		r.SalesScripts = []Attachment{}
	}
}

func (r Record) Clone() Record {
	out := r
	out.LeadSources = cloneStrings(r.LeadSources)
	out.BrandPersonality = cloneStrings(r.BrandPersonality)
	out.RequiredInformation = cloneStrings(r.RequiredInformation)
	out.EmotionalStates = cloneStrings(r.EmotionalStates)
	out.CommonProblems = cloneStrings(r.CommonProblems)
	out.TopicsToAvoid = cloneStrings(r.TopicsToAvoid)
	out.TransferTriggers = cloneStrings(r.TransferTriggers)
	if r.SalesScripts != nil {
		out.SalesScripts = make([]Attachment, len(r.SalesScripts))
		copy(out.SalesScripts, r.SalesScripts)
	}
	return out
}

// AttachmentFields lists the file-bearing fields by their JSON name.
var AttachmentFields = []string{"salesScripts"}

// AttachmentField returns a pointer to the named file-bearing field.
func (r *Record) AttachmentField(name string) (*[]Attachment, bool) {
	switch name {
	case "salesScripts":
		return &r.SalesScripts, true
	default:
		return nil, false
	}
}

// HasPendingAttachments reports whether any file-bearing field still holds
// a blob that has not been uploaded.
func (r *Record) HasPendingAttachments() bool {
	for _, name := range AttachmentFields {
		list, _ := r.AttachmentField(name)
		for _, item := range *list {
			if item.IsPending() {
				return true
			}
		}
	}
	return false
}

// OtherSelected reports whether a multi-select answer activates its "other" text.
func OtherSelected(tags []string) bool {
	for _, tag := range tags {
		if tag == OtherOption {
			return true
		}
	}
	return false
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

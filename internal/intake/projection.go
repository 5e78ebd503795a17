package intake

import (
	"discovery/api/internal/form"
	"discovery/api/internal/store"
)

// ToSubmission projects a record onto the row layout. Only uploaded
// attachments are carried; status and progress are left for the caller.
func ToSubmission(r form.Record) store.Submission {
	return store.Submission{
		CompanyName:          r.CompanyName,
		SpecificBusinessType: r.SpecificBusinessType,
		CompanyWebsite:       r.CompanyWebsite,
		ContactName:          r.ContactName,
		Email:                r.Email,

		AgentType:             r.AgentType,
		LeadSources:           copyStrings(r.LeadSources),
		LeadSourcesOther:      r.LeadSourcesOther,
		MainPurpose:           r.MainPurpose,
		MainPurposeOther:      r.MainPurposeOther,
		BrandPersonality:      copyStrings(r.BrandPersonality),
		BrandPersonalityOther: r.BrandPersonalityOther,

		CurrentCallProcess:       r.CurrentCallProcess,
		SalesScripts:             form.AttachmentURLs(r.SalesScripts),
		RequiredInformation:      copyStrings(r.RequiredInformation),
		RequiredInformationOther: r.RequiredInformationOther,

		SuccessCriteria:          r.SuccessCriteria,
		DisqualificationCriteria: r.DisqualificationCriteria,

		EmotionalStates:      copyStrings(r.EmotionalStates),
		EmotionalStatesOther: r.EmotionalStatesOther,
		CommonProblems:       copyStrings(r.CommonProblems),
		CommonObjections:     r.CommonObjections,

		CompanyServices:    r.CompanyServices,
		ServiceAreas:       r.ServiceAreas,
		KeyDifferentiators: r.KeyDifferentiators,
		TopicsToAvoid:      copyStrings(r.TopicsToAvoid),
		TopicsToAvoidOther: r.TopicsToAvoidOther,

		TransferTriggers:      copyStrings(r.TransferTriggers),
		TransferTriggersOther: r.TransferTriggersOther,

		SuccessDefinition:       r.SuccessDefinition,
		TargetCallLength:        r.TargetCallLength,
		CRMSystem:               r.CRMSystem,
		CRMSystemOther:          r.CRMSystemOther,
		SchedulingSoftware:      r.SchedulingSoftware,
		SchedulingSoftwareOther: r.SchedulingSoftwareOther,
		EmailSystem:             r.EmailSystem,
		EmailSystemOther:        r.EmailSystemOther,
		ComplianceRequirements:  r.ComplianceRequirements,

		AIName:                      r.AIName,
		VoiceGender:                 r.VoiceGender,
		ElevenLabsVoiceID:           r.ElevenLabsVoiceID,
		AdditionalVoiceRequirements: r.AdditionalVoiceRequirements,
	}
}

// FromSubmission maps a row back to a record. Missing lists become empty.
func FromSubmission(s store.Submission) form.Record {
	r := form.Record{
		CompanyName:          s.CompanyName,
		SpecificBusinessType: s.SpecificBusinessType,
		CompanyWebsite:       s.CompanyWebsite,
		ContactName:          s.ContactName,
		Email:                s.Email,

		AgentType:             s.AgentType,
		LeadSources:           copyStrings(s.LeadSources),
		LeadSourcesOther:      s.LeadSourcesOther,
		MainPurpose:           s.MainPurpose,
		MainPurposeOther:      s.MainPurposeOther,
		BrandPersonality:      copyStrings(s.BrandPersonality),
		BrandPersonalityOther: s.BrandPersonalityOther,

		CurrentCallProcess:       s.CurrentCallProcess,
		SalesScripts:             form.UploadedAttachments(s.SalesScripts),
		RequiredInformation:      copyStrings(s.RequiredInformation),
		RequiredInformationOther: s.RequiredInformationOther,

		SuccessCriteria:          s.SuccessCriteria,
		DisqualificationCriteria: s.DisqualificationCriteria,

		EmotionalStates:      copyStrings(s.EmotionalStates),
		EmotionalStatesOther: s.EmotionalStatesOther,
		CommonProblems:       copyStrings(s.CommonProblems),
		CommonObjections:     s.CommonObjections,

		CompanyServices:    s.CompanyServices,
		ServiceAreas:       s.ServiceAreas,
		KeyDifferentiators: s.KeyDifferentiators,
		TopicsToAvoid:      copyStrings(s.TopicsToAvoid),
		TopicsToAvoidOther: s.TopicsToAvoidOther,

		TransferTriggers:      copyStrings(s.TransferTriggers),
		TransferTriggersOther: s.TransferTriggersOther,

		SuccessDefinition:       s.SuccessDefinition,
		TargetCallLength:        s.TargetCallLength,
		CRMSystem:               s.CRMSystem,
		CRMSystemOther:          s.CRMSystemOther,
		SchedulingSoftware:      s.SchedulingSoftware,
		SchedulingSoftwareOther: s.SchedulingSoftwareOther,
		EmailSystem:             s.EmailSystem,
		EmailSystemOther:        s.EmailSystemOther,
		ComplianceRequirements:  s.ComplianceRequirements,

		AIName:                      s.AIName,
		VoiceGender:                 s.VoiceGender,
		ElevenLabsVoiceID:           s.ElevenLabsVoiceID,
		AdditionalVoiceRequirements: s.AdditionalVoiceRequirements,
	}
	r.Normalize()
	return r
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

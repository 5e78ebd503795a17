package form

import (
	"math"
	"strings"
)

// Completion is the percentage of answered fields, rounded to the nearest
// whole number. Strings count when non-blank, lists when non-empty and
// numbers when positive.
func Completion(r Record) int {
	strs := []string{
		r.CompanyName, r.SpecificBusinessType, r.CompanyWebsite, r.ContactName, r.Email,
		r.AgentType, r.LeadSourcesOther, r.MainPurpose, r.MainPurposeOther, r.BrandPersonalityOther,
		r.CurrentCallProcess, r.RequiredInformationOther,
		r.SuccessCriteria, r.DisqualificationCriteria,
		r.EmotionalStatesOther, r.CommonObjections,
		r.CompanyServices, r.ServiceAreas, r.KeyDifferentiators, r.TopicsToAvoidOther,
		r.TransferTriggersOther,
		r.SuccessDefinition, r.CRMSystem, r.CRMSystemOther, r.SchedulingSoftware, r.SchedulingSoftwareOther,
		r.EmailSystem, r.EmailSystemOther, r.ComplianceRequirements,
		r.AIName, r.VoiceGender, r.ElevenLabsVoiceID, r.AdditionalVoiceRequirements,
	}
	lists := []int{
		len(r.LeadSources), len(r.BrandPersonality), len(r.SalesScripts), len(r.RequiredInformation),
		len(r.EmotionalStates), len(r.CommonProblems), len(r.TopicsToAvoid), len(r.TransferTriggers),
	}
	numbers := []int{r.TargetCallLength}

	filled := 0
	for _, s := range strs {
		if strings.TrimSpace(s) != "" {
			filled++
		}
	}
	for _, n := range lists {
		if n > 0 {
			filled++
		}
	}
	for _, n := range numbers {
		if n > 0 {
			filled++
		}
	}
	total := len(strs) + len(lists) + len(numbers)
	return int(math.Round(float64(filled) / float64(total) * 100))
}

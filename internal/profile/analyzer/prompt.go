package analyzer

import (
	"fmt"

	"badguys/internal/profile/urlcheck"
)

const toolName = "analyze_profile"

const systemPrompt = `You are an expert at detecting fake LinkedIn profiles. Analyze profile information and identify red flags that suggest a profile might be fake or fraudulent.

Common indicators of fake profiles include:
- Generic or stock photo-like profile pictures
- Incomplete or vague work history
- Suspicious connection patterns
- Too-good-to-be-true job titles
- Recent account creation with high activity
- Inconsistent or exaggerated credentials
- Connection to known scam industries (crypto recruiting scams, job offer scams)
- Grammar/spelling issues in bio
- Unrealistic endorsements or recommendations

Provide a risk score from 0-100 (100 being definitely fake) and detailed analysis.`

// BuildUserPrompt embeds the profile reference and its identifier token.
func BuildUserPrompt(u urlcheck.URL) string {
	return fmt.Sprintf(`Analyze this LinkedIn profile for potential fraud indicators:

URL: %s
Profile Identifier: %s

The profile page itself is not available to you. Base the analysis on the URL pattern and on common characteristics of profiles with similar identifiers.

Respond by calling %s with:
- name: A plausible name that might belong to this profile
- title: A plausible job title
- riskScore: Number from 0-100
- analysis: Detailed explanation of risk factors (2-3 paragraphs)`, u.String(), u.Identifier(), toolName)
}

// toolSchema is the JSON schema of the analyze_profile function.
var toolSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"name":      map[string]any{"type": "string", "description": "Name of the profile"},
		"title":     map[string]any{"type": "string", "description": "Job title"},
		"riskScore": map[string]any{"type": "number", "description": "Risk score 0-100"},
		"analysis":  map[string]any{"type": "string", "description": "Detailed analysis"},
	},
	"required": []string{"name", "title", "riskScore", "analysis"},
}

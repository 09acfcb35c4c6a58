package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dealsense-team/dealsense/internal/domain/entities"
)

// Parser validates raw model responses before they become trusted
// internal data. Anything that does not conform is rejected and treated
// as a client failure.
type Parser struct{}

// NewParser creates a new Parser instance
func NewParser() *Parser {
	return &Parser{}
}

// ParseExtractionResponse parses the extraction model's response into a
// validated payload. The second return value is the raw decoded response,
// kept for debugging.
func (p *Parser) ParseExtractionResponse(jsonString string) (*entities.ExtractedPayload, map[string]interface{}, error) {
	// The model may wrap its output in markdown code fences
	jsonString = extractJSON(jsonString)

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(jsonString), &raw); err != nil {
		return nil, nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}

	var payload entities.ExtractedPayload
	if err := json.Unmarshal([]byte(jsonString), &payload); err != nil {
		return nil, nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}

	if err := p.ValidateExtractedPayload(&payload); err != nil {
		return nil, nil, err
	}

	return &payload, raw, nil
}

// ValidateExtractedPayload checks the payload shape and normalizes the
// classified roles. The payload is mutated in place: nil lists become
// empty, roles outside the known set collapse to unknown.
func (p *Parser) ValidateExtractedPayload(payload *entities.ExtractedPayload) error {
	if payload == nil {
		return fmt.Errorf("extraction payload is nil")
	}

	if payload.PainPoints == nil {
		payload.PainPoints = make([]string, 0)
	}
	if payload.Goals == nil {
		payload.Goals = make([]string, 0)
	}
	if payload.NextSteps == nil {
		payload.NextSteps = make([]string, 0)
	}
	if payload.People == nil {
		payload.People = make([]entities.ExtractedPerson, 0)
	}

	for _, lists := range [][]string{payload.PainPoints, payload.Goals, payload.NextSteps} {
		for _, item := range lists {
			if strings.TrimSpace(item) == "" {
				return fmt.Errorf("extraction payload contains an empty list entry")
			}
		}
	}

	if len(payload.PainPoints) == 0 && len(payload.Goals) == 0 &&
		len(payload.NextSteps) == 0 && len(payload.People) == 0 {
		return fmt.Errorf("extraction payload is empty")
	}

	for i := range payload.People {
		person := &payload.People[i]
		if strings.TrimSpace(person.Name) == "" {
			return fmt.Errorf("extracted person %d is missing a name", i)
		}
		person.ClassifiedRole = NormalizeRole(string(person.ClassifiedRole), person.RawRole)
	}

	return nil
}

// ParseRiskResponse parses the risk model's response into a validated
// risk summary
func (p *Parser) ParseRiskResponse(jsonString string) (*entities.RiskSummary, error) {
	jsonString = extractJSON(jsonString)

	var summary entities.RiskSummary
	if err := json.Unmarshal([]byte(jsonString), &summary); err != nil {
		return nil, fmt.Errorf("failed to parse risk response: %w", err)
	}

	if summary.Summary == "" {
		return nil, fmt.Errorf("missing summary in risk response")
	}

	switch summary.RiskLevel {
	case entities.RiskLevelLow, entities.RiskLevelMedium, entities.RiskLevelHigh:
	default:
		return nil, fmt.Errorf("unknown risk level %q", summary.RiskLevel)
	}

	if summary.Factors == nil {
		summary.Factors = make([]entities.RiskFactor, 0)
	}

	return &summary, nil
}

// NormalizeRole deterministically maps a model-reported role onto the
// known classification set. The classified value wins when it is already
// a member; otherwise the free-text raw role is matched on keywords.
func NormalizeRole(classified, rawRole string) entities.PersonRole {
	switch entities.PersonRole(strings.ToLower(strings.TrimSpace(classified))) {
	case entities.PersonRoleDecisionMaker:
		return entities.PersonRoleDecisionMaker
	case entities.PersonRoleChampion:
		return entities.PersonRoleChampion
	case entities.PersonRoleInfluencer:
		return entities.PersonRoleInfluencer
	case entities.PersonRoleBlocker:
		return entities.PersonRoleBlocker
	}

	role := strings.ToLower(rawRole)
	switch {
	case strings.Contains(role, "ceo"), strings.Contains(role, "cfo"),
		strings.Contains(role, "cto"), strings.Contains(role, "founder"),
		strings.Contains(role, "vp"), strings.Contains(role, "vice president"),
		strings.Contains(role, "head of"), strings.Contains(role, "director"):
		return entities.PersonRoleDecisionMaker
	case strings.Contains(role, "champion"), strings.Contains(role, "sponsor"):
		return entities.PersonRoleChampion
	case strings.Contains(role, "manager"), strings.Contains(role, "lead"),
		strings.Contains(role, "consultant"), strings.Contains(role, "analyst"):
		return entities.PersonRoleInfluencer
	case strings.Contains(role, "procurement"), strings.Contains(role, "legal"),
		strings.Contains(role, "compliance"):
		return entities.PersonRoleBlocker
	}

	return entities.PersonRoleUnknown
}

// extractJSON extracts JSON content from markdown code blocks or plain text
func extractJSON(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx != -1 {
			content = content[:idx]
		}
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx != -1 {
			content = content[:idx]
		}
	}

	return strings.TrimSpace(content)
}

package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joyax/pool-patrol/pkg/contracts"
	"github.com/joyax/pool-patrol/pkg/llm"
)

// LLMSpecialist delegates a check's judgment to a language model. It shares
// the Verifier contract with the rule-based specialists, so deployments can
// mix both.
type LLMSpecialist struct {
	checkName string
	prompt    string
	client    llm.Client
}

// NewLLMSpecialist creates a model-backed verifier. prompt describes the
// check; the roster is appended as JSON.
func NewLLMSpecialist(checkName, prompt string, client llm.Client) *LLMSpecialist {
	return &LLMSpecialist{checkName: checkName, prompt: prompt, client: client}
}

func (v *LLMSpecialist) Name() string { return v.checkName }

const llmOutputContract = `Respond with JSON only:
{"verdict": "pass" | "fail", "confidence": 1-5, "reasoning": "<text>", "evidence": [{"type": "<kind>", "data": {}}]}`

func (v *LLMSpecialist) Verify(ctx context.Context, roster *contracts.Roster) (*contracts.VerificationResult, error) {
	// A lone rider has nobody to be incompatible with; never ask the model.
	if len(roster.Riders) == 1 {
		return &contracts.VerificationResult{
			Verdict:    contracts.VerdictPass,
			Confidence: 5,
			Reasoning:  fmt.Sprintf("single rider %s; group compatibility holds trivially", roster.Riders[0].EmployeeID),
		}, nil
	}

	rosterJSON, err := json.Marshal(roster)
	if err != nil {
		return nil, fmt.Errorf("marshal roster: %w", err)
	}

	resp, err := v.client.Chat(ctx, []llm.Message{
		{Role: "system", Content: v.prompt + "\n\n" + llmOutputContract},
		{Role: "user", Content: string(rosterJSON)},
	}, &llm.SamplingOptions{Temperature: 0})
	if err != nil {
		return nil, fmt.Errorf("%s check: %w", v.checkName, err)
	}

	var result contracts.VerificationResult
	if err := json.Unmarshal([]byte(stripFences(resp.Content)), &result); err != nil {
		return nil, fmt.Errorf("%s check: unparseable verdict: %w", v.checkName, err)
	}
	if result.Verdict != contracts.VerdictPass && result.Verdict != contracts.VerdictFail {
		return nil, fmt.Errorf("%s check: unknown verdict %q", v.checkName, result.Verdict)
	}
	if result.Confidence < 1 {
		result.Confidence = 1
	}
	if result.Confidence > 5 {
		result.Confidence = 5
	}
	return &result, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

var _ Verifier = (*LLMSpecialist)(nil)

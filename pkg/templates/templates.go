// Package templates renders the initial outreach emails. Built-in copy can
// be overridden per deployment from a YAML file.
package templates

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Template keys, selected by the case's mismatch profile.
const (
	KeyShiftMismatch    = "shift_mismatch"
	KeyLocationMismatch = "location_mismatch"
	KeyBothMismatch     = "both_mismatch"
)

// Params feeds a template render.
type Params struct {
	VanpoolID       string
	ShiftDetails    string
	LocationDetails string
}

// Email is a rendered subject and body pair.
type Email struct {
	Subject string
	Body    string
}

type entry struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

// Registry holds the outreach templates.
type Registry struct {
	entries map[string]entry
}

// NewRegistry returns a registry with the built-in templates.
func NewRegistry() *Registry {
	return &Registry{entries: builtin()}
}

// LoadOverrides merges template overrides from a YAML file keyed by template
// name. Missing keys keep the built-in copy.
func (r *Registry) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read template overrides: %w", err)
	}
	var overrides map[string]entry
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("parse template overrides: %w", err)
	}
	for key, e := range overrides {
		if _, ok := r.entries[key]; !ok {
			return fmt.Errorf("unknown template key %q", key)
		}
		if e.Subject == "" || e.Body == "" {
			return fmt.Errorf("template %q override missing subject or body", key)
		}
		r.entries[key] = e
	}
	return nil
}

// KeyFor selects the template matching the mismatch profile.
func KeyFor(shiftMismatch, locationMismatch bool) string {
	switch {
	case shiftMismatch && locationMismatch:
		return KeyBothMismatch
	case shiftMismatch:
		return KeyShiftMismatch
	default:
		return KeyLocationMismatch
	}
}

// Render produces the outreach email for the given key.
func (r *Registry) Render(key string, p Params) (*Email, error) {
	e, ok := r.entries[key]
	if !ok {
		return nil, fmt.Errorf("unknown template key %q", key)
	}

	subject, err := render("subject", e.Subject, p)
	if err != nil {
		return nil, err
	}
	body, err := render("body", e.Body, p)
	if err != nil {
		return nil, err
	}
	return &Email{Subject: subject, Body: strings.TrimSpace(body)}, nil
}

func render(name, text string, p Params) (string, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("render %s template: %w", name, err)
	}
	return buf.String(), nil
}

func builtin() map[string]entry {
	return map[string]entry{
		KeyLocationMismatch: {
			Subject: "Vanpool Eligibility Review - {{.VanpoolID}} - Action Required",
			Body: `Dear {{.VanpoolID}} Vanpool Members,

As part of our routine vanpool program review, we are verifying the eligibility of all participants.

Our records indicate a potential discrepancy with one or more rider home addresses. The registered address may be outside the typical service area for this vanpool route.

{{.LocationDetails}}

Please confirm your current home address by replying to this email.

**What we need from you:**
- Confirm your current home address
- If your address has changed, please provide your updated information

Please respond within 5 business days.

Thank you for your cooperation.

Pool Patrol Team`,
		},
		KeyShiftMismatch: {
			Subject: "Vanpool Schedule Review - {{.VanpoolID}} - Action Required",
			Body: `Dear {{.VanpoolID}} Vanpool Members,

As part of our routine vanpool program review, we are verifying the eligibility of all participants.

Our records indicate a potential mismatch between your work schedule and the vanpool operating hours. The vanpool departure/arrival times may not align with your assigned shift.

{{.ShiftDetails}}

Please confirm your current work schedule by replying to this email.

**What we need from you:**
- Confirm your current work shift assignment
- Let us know if the current vanpool schedule meets your commute needs

Please respond within 5 business days.

Thank you for your cooperation.

Pool Patrol Team`,
		},
		KeyBothMismatch: {
			Subject: "Vanpool Eligibility Review - {{.VanpoolID}} - Action Required",
			Body: `Dear {{.VanpoolID}} Vanpool Members,

As part of our routine vanpool program review, we are verifying the eligibility of all participants.

Our records indicate potential discrepancies that require verification:

1. **Address Verification**: One or more rider addresses may be outside the typical service area for this route.
   {{.LocationDetails}}

2. **Schedule Alignment**: The vanpool operating hours may not align with your assigned work shift.
   {{.ShiftDetails}}

Please confirm both your current home address and work schedule by replying to this email.

**What we need from you:**
- Confirm your current home address
- Confirm your current work shift assignment
- Let us know if your situation has changed

Please respond within 5 business days.

Thank you for your cooperation.

Pool Patrol Team`,
		},
	}
}

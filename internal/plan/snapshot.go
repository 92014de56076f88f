package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/KairamCabral/terravik-sub002/internal/domain"
)

const (
	WizardSchema        = "calculator-answers/v1"
	QuickPurchaseSchema = "calculator-result/v1"
)

var ErrUnsupportedSnapshot = errors.New("unsupported snapshot schema")

type WizardSnapshot struct {
	Schema  string                 `json:"schema"`
	Step    int                    `json:"step"`
	Answers domain.CalculatorInput `json:"answers"`
	SavedAt time.Time              `json:"saved_at"`
}

type QuickPurchaseSnapshot struct {
	Schema  string                  `json:"schema"`
	Result  domain.CalculatorResult `json:"result"`
	SavedAt time.Time               `json:"saved_at"`
}

func NewWizardSnapshot(step int, answers domain.CalculatorInput, now time.Time) WizardSnapshot {
	if step < 1 {
		step = 1
	}
	if step > TotalSteps() {
		step = TotalSteps()
	}
	return WizardSnapshot{Schema: WizardSchema, Step: step, Answers: answers, SavedAt: now.UTC()}
}

func NewQuickPurchaseSnapshot(result domain.CalculatorResult, now time.Time) QuickPurchaseSnapshot {
	return QuickPurchaseSnapshot{Schema: QuickPurchaseSchema, Result: result, SavedAt: now.UTC()}
}

// DecodeWizardSnapshot accepts the current schema and untagged legacy blobs
// holding bare answers. Legacy blobs resume at the first unanswered step.
func DecodeWizardSnapshot(data []byte) (WizardSnapshot, error) {
	schema, fields, err := peekSchema(data)
	if err != nil {
		return WizardSnapshot{}, err
	}

	switch schema {
	case WizardSchema:
		var snap WizardSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return WizardSnapshot{}, fmt.Errorf("%w: %v", ErrUnsupportedSnapshot, err)
		}
		return snap, nil
	case "":
		if _, ok := fields["answers"]; ok {
			var legacy struct {
				Step    int                    `json:"step"`
				Answers domain.CalculatorInput `json:"answers"`
			}
			if err := json.Unmarshal(data, &legacy); err != nil {
				return WizardSnapshot{}, fmt.Errorf("%w: %v", ErrUnsupportedSnapshot, err)
			}
			step := legacy.Step
			if step < 1 {
				step = ResumeStep(legacy.Answers)
			}
			return NewWizardSnapshot(step, legacy.Answers, time.Time{}), nil
		}
		var answers domain.CalculatorInput
		if err := json.Unmarshal(data, &answers); err != nil {
			return WizardSnapshot{}, fmt.Errorf("%w: %v", ErrUnsupportedSnapshot, err)
		}
		return NewWizardSnapshot(ResumeStep(answers), answers, time.Time{}), nil
	default:
		return WizardSnapshot{}, fmt.Errorf("%w: %q", ErrUnsupportedSnapshot, schema)
	}
}

// DecodeQuickPurchaseSnapshot accepts the current schema and untagged legacy
// blobs holding a bare calculator result.
func DecodeQuickPurchaseSnapshot(data []byte) (QuickPurchaseSnapshot, error) {
	schema, fields, err := peekSchema(data)
	if err != nil {
		return QuickPurchaseSnapshot{}, err
	}

	switch schema {
	case QuickPurchaseSchema:
		var snap QuickPurchaseSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return QuickPurchaseSnapshot{}, fmt.Errorf("%w: %v", ErrUnsupportedSnapshot, err)
		}
		return snap, nil
	case "":
		if _, ok := fields["plan"]; !ok {
			return QuickPurchaseSnapshot{}, fmt.Errorf("%w: legacy blob has no plan", ErrUnsupportedSnapshot)
		}
		var result domain.CalculatorResult
		if err := json.Unmarshal(data, &result); err != nil {
			return QuickPurchaseSnapshot{}, fmt.Errorf("%w: %v", ErrUnsupportedSnapshot, err)
		}
		return NewQuickPurchaseSnapshot(result, time.Time{}), nil
	default:
		return QuickPurchaseSnapshot{}, fmt.Errorf("%w: %q", ErrUnsupportedSnapshot, schema)
	}
}

func peekSchema(data []byte) (string, map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrUnsupportedSnapshot, err)
	}
	raw, ok := fields["schema"]
	if !ok {
		return "", fields, nil
	}
	var schema string
	if err := json.Unmarshal(raw, &schema); err != nil || schema == "" {
		return "", nil, fmt.Errorf("%w: malformed schema tag", ErrUnsupportedSnapshot)
	}
	return schema, fields, nil
}

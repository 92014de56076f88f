package plan

import "github.com/KairamCabral/terravik-sub002/internal/domain"

// Wizard steps are 1-based; each step gates on the answers it collects.
var wizardSteps = [][]string{
	{"AreaM2"},
	{"Implantando", "Nivel"},
	{"Objetivo"},
	{"ClimaHoje", "Sol"},
	{"Irrigacao", "Pisoteio"},
}

func TotalSteps() int {
	return len(wizardSteps)
}

// CanGoNext reports whether every answer collected on the given step is valid.
func CanGoNext(step int, input domain.CalculatorInput) bool {
	if step < 1 || step > len(wizardSteps) {
		return false
	}
	return validate.StructPartial(input, wizardSteps[step-1]...) == nil
}

// ResumeStep returns the first step whose answers are still missing, or the
// last step when everything has been answered.
func ResumeStep(input domain.CalculatorInput) int {
	for step := 1; step <= len(wizardSteps); step++ {
		if !CanGoNext(step, input) {
			return step
		}
	}
	return len(wizardSteps)
}

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KairamCabral/terravik-sub002/internal/domain"
	"github.com/KairamCabral/terravik-sub002/internal/plan"
)

type planOptions struct {
	area        float64
	implantando bool
	objetivo    string
	clima       string
	sol         string
	irrigacao   string
	pisoteio    string
	nivel       string
}

func newPlanCmd(root *rootOptions) *cobra.Command {
	opts := &planOptions{}
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate a fertilizer plan from calculator answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input := opts.input(cmd)
			result, err := plan.GeneratePlan(input)
			if err != nil {
				var incomplete *plan.IncompleteInputError
				if errors.As(err, &incomplete) {
					return fmt.Errorf("missing or invalid answers: %s", strings.Join(incomplete.Fields, ", "))
				}
				return err
			}
			return root.render(cmd.OutOrStdout(), result)
		},
	}

	flags := cmd.Flags()
	flags.Float64Var(&opts.area, "area", 0, "lawn area in square meters")
	flags.BoolVar(&opts.implantando, "implantando", false, "lawn is being planted")
	flags.StringVar(&opts.objetivo, "objetivo", "", "goal (verde_intenso, crescimento, resistencia, manutencao)")
	flags.StringVar(&opts.clima, "clima", "", "current weather (quente_seco, quente_umido, ameno, frio)")
	flags.StringVar(&opts.sol, "sol", "", "sun exposure (pleno, meia_sombra, sombra)")
	flags.StringVar(&opts.irrigacao, "irrigacao", "", "watering (diaria, semanal, rara)")
	flags.StringVar(&opts.pisoteio, "pisoteio", "", "foot traffic (baixo, medio, alto)")
	flags.StringVar(&opts.nivel, "nivel", "", "lawn condition (saudavel, amarelado, ralo, falhas)")
	return cmd
}

// input leaves area and implantando unset unless their flags were given, so
// omitted answers are reported as missing.
func (o *planOptions) input(cmd *cobra.Command) domain.CalculatorInput {
	input := domain.CalculatorInput{
		Objetivo:  o.objetivo,
		ClimaHoje: o.clima,
		Sol:       o.sol,
		Irrigacao: o.irrigacao,
		Pisoteio:  o.pisoteio,
		Nivel:     o.nivel,
	}
	if cmd.Flags().Changed("area") {
		area := o.area
		input.AreaM2 = &area
	}
	if cmd.Flags().Changed("implantando") {
		implantando := o.implantando
		input.Implantando = &implantando
	}
	return input
}

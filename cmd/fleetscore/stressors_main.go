package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/beargallbladder/fleetapitest-sub000/internal/application"
	"github.com/beargallbladder/fleetapitest-sub000/internal/domain/stressor"
)

func runStressors(cmd *cobra.Command, args []string) error {
	vin, _ := cmd.Flags().GetString("vin")
	if strings.TrimSpace(vin) == "" {
		return fmt.Errorf("--vin is required")
	}

	in := stressor.ExposureInput{VIN: strings.TrimSpace(vin)}
	in.DaysOver95F, _ = cmd.Flags().GetFloat64("heat-days")
	in.DaysBelow20F, _ = cmd.Flags().GetFloat64("cold-days")
	in.ShortTripShare, _ = cmd.Flags().GetFloat64("short-trips")
	in.ElevationFt, _ = cmd.Flags().GetFloat64("elevation")
	in.SaltExposureDays, _ = cmd.Flags().GetFloat64("salt-days")

	if in.ShortTripShare < 0 || in.ShortTripShare > 1 {
		return fmt.Errorf("--short-trips must be between 0 and 1")
	}

	svc := application.NewService(application.Options{})

	ctx, cancel := context.WithTimeout(context.Background(), scoringTimeout)
	defer cancel()

	result, err := svc.AssessStressors(ctx, in)
	if err != nil {
		return fmt.Errorf("assessment failed: %w", err)
	}

	switch outputOf(cmd.Flags()) {
	case outputJSON:
		return printJSON(result)
	case outputTable:
		printStressorTable(result)
	default:
		printStressorSummary(result)
	}
	return nil
}

func printStressorSummary(res stressor.Result) {
	line := strings.Repeat("=", 64)
	fmt.Println(line)
	fmt.Println("STRESSOR EXPOSURE ASSESSMENT")
	fmt.Println(line)
	fmt.Printf("VIN:              %s\n", res.VIN)
	fmt.Printf("Base Rate:        %.1f%%\n", res.BaseRate*100)
	fmt.Printf("Adjusted Risk:    %.1f%%", res.Probability*100)
	if res.Capped {
		fmt.Printf(" (capped)")
	}
	fmt.Println()
	fmt.Printf("Tier:             %s\n", res.Tier.Name)
	fmt.Printf("Revenue Target:   $%s\n", res.Tier.ServiceRevenue.StringFixed(0))
	if res.PrimaryStressor != "" {
		fmt.Printf("Primary Stressor: %s\n", res.PrimaryStressor)
	}
	if len(res.RecommendedParts) > 0 {
		fmt.Printf("Watch Parts:      %s\n", strings.Join(res.RecommendedParts, ", "))
	}
	fmt.Println(line)
}

func printStressorTable(res stressor.Result) {
	line := strings.Repeat("=", 72)
	fmt.Println(line)
	fmt.Printf("%-16s %-10s %-14s %-10s\n", "STRESSOR", "INTENSITY", "CONTRIBUTION", "ACTIVE")
	fmt.Println(line)
	for _, s := range res.Stressors {
		active := ""
		if s.Active {
			active = "yes"
		}
		fmt.Printf("%-16s %-10.2f %-14.2f %-10s\n", s.Name, s.Intensity, s.Contribution, active)
	}
	fmt.Println(line)
	fmt.Printf("Probability %.1f%% (%s tier)\n", res.Probability*100, res.Tier.Name)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/beargallbladder/fleetapitest-sub000/internal/application"
	"github.com/beargallbladder/fleetapitest-sub000/internal/domain/risk"
)

// scoringTimeout bounds one-shot CLI scoring runs.
const scoringTimeout = 30 * time.Second

func runScore(cmd *cobra.Command, args []string) error {
	svc := application.NewService(application.Options{})

	var in risk.VehicleRiskInput
	if inputPath, _ := cmd.Flags().GetString("input"); inputPath != "" {
		loaded, err := loadVehicleInput(inputPath)
		if err != nil {
			return err
		}
		if strings.TrimSpace(loaded.VIN) == "" {
			return fmt.Errorf("input file has no vin")
		}
		in = loaded
	} else {
		built, err := vehicleInputFromFlags(cmd, svc)
		if err != nil {
			return err
		}
		in = built
	}

	ctx, cancel := context.WithTimeout(context.Background(), scoringTimeout)
	defer cancel()

	report, err := svc.ScoreVehicle(ctx, in)
	if err != nil {
		return fmt.Errorf("scoring failed: %w", err)
	}

	switch outputOf(cmd.Flags()) {
	case outputJSON:
		return printJSON(report)
	case outputTable:
		printReportTable([]application.VehicleReport{report})
	default:
		printReportSummary(report)
	}
	return nil
}

// vehicleInputFromFlags assembles one vehicle description from the score
// command's flags. A ZIP resolves the environmental scalars through the
// regional severity tables; otherwise they come from the four env flags.
func vehicleInputFromFlags(cmd *cobra.Command, svc *application.Service) (risk.VehicleRiskInput, error) {
	vin, _ := cmd.Flags().GetString("vin")
	if strings.TrimSpace(vin) == "" {
		return risk.VehicleRiskInput{}, fmt.Errorf("--vin is required")
	}

	mileage, _ := cmd.Flags().GetFloat64("mileage")
	age, _ := cmd.Flags().GetFloat64("age")
	year, _ := cmd.Flags().GetInt("year")
	health, _ := cmd.Flags().GetFloat64("health")
	recalls, _ := cmd.Flags().GetInt("recalls")
	zip, _ := cmd.Flags().GetString("zip")

	switch {
	case age >= 0:
		// explicit age wins
	case year > 0:
		age = float64(time.Now().Year() - year)
		if age < 0 {
			age = 0
		}
	default:
		return risk.VehicleRiskInput{}, fmt.Errorf("either --age or --year is required")
	}

	var env risk.EnvironmentExposure
	if zip != "" {
		resolved, err := svc.EnvironmentForZip(zip)
		if err != nil {
			return risk.VehicleRiskInput{}, fmt.Errorf("resolve environment: %w", err)
		}
		env = resolved
	} else {
		env.RustBeltSeverity, _ = cmd.Flags().GetFloat64("rust")
		env.StopGoTraffic, _ = cmd.Flags().GetFloat64("stopgo")
		env.TerrainDifficulty, _ = cmd.Flags().GetFloat64("terrain")
		env.ThermalStress, _ = cmd.Flags().GetFloat64("thermal")
	}

	in := risk.VehicleRiskInput{
		VIN:             strings.TrimSpace(vin),
		Mileage:         mileage,
		VehicleAgeYears: age,
		HealthScore:     health,
		Environment:     env,
		OpenRecalls:     recalls,
	}
	in.DTCs.Powertrain, _ = cmd.Flags().GetFloat64("dtc-powertrain")
	in.DTCs.Body, _ = cmd.Flags().GetFloat64("dtc-body")
	in.DTCs.Chassis, _ = cmd.Flags().GetFloat64("dtc-chassis")
	in.DTCs.Network, _ = cmd.Flags().GetFloat64("dtc-network")
	return in, nil
}

// loadVehicleInput reads one vehicle description in the fleet file format.
func loadVehicleInput(path string) (risk.VehicleRiskInput, error) {
	var reader io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return risk.VehicleRiskInput{}, fmt.Errorf("open input file: %w", err)
		}
		defer f.Close()
		reader = f
	}

	var in risk.VehicleRiskInput
	if err := json.NewDecoder(reader).Decode(&in); err != nil {
		return risk.VehicleRiskInput{}, fmt.Errorf("parse input file: %w", err)
	}
	return in, nil
}

func runFleet(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		return fmt.Errorf("--file is required (use '-' for stdin)")
	}
	topN, _ := cmd.Flags().GetInt("top")

	var reader io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open fleet file: %w", err)
		}
		defer f.Close()
		reader = f
	}

	var ins []risk.VehicleRiskInput
	if err := json.NewDecoder(reader).Decode(&ins); err != nil {
		return fmt.Errorf("parse fleet file: %w", err)
	}
	if len(ins) == 0 {
		return fmt.Errorf("fleet file contains no vehicles")
	}

	svc := application.NewService(application.Options{})

	ctx, cancel := context.WithTimeout(context.Background(), scoringTimeout)
	defer cancel()

	started := time.Now()
	reports, err := svc.ScoreFleet(ctx, ins)
	if err != nil {
		return fmt.Errorf("fleet scoring failed: %w", err)
	}
	elapsed := time.Since(started)

	// Highest risk first for display; scoring preserved input order.
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].PriorityScore > reports[j].PriorityScore
	})
	if topN > 0 && len(reports) > topN {
		reports = reports[:topN]
	}

	switch outputOf(cmd.Flags()) {
	case outputJSON:
		return printJSON(reports)
	case outputSummary:
		fmt.Printf("Scored %d vehicles in %v via %s engine\n", len(ins), elapsed.Round(time.Millisecond), svc.BackendName())
		for _, rep := range reports {
			fmt.Printf("   %s: score %d (%s, %s)\n",
				rep.VIN, rep.PriorityScore, rep.MileageBand, rep.Cohort.WorstStatus)
		}
	default:
		printReportTable(reports)
		fmt.Printf("%d vehicles in %v via %s engine\n", len(ins), elapsed.Round(time.Millisecond), svc.BackendName())
	}
	return nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	score, _ := cmd.Flags().GetInt("score")
	if score < 0 || score > 100 {
		return fmt.Errorf("--score must be between 0 and 100")
	}
	fleetSize, _ := cmd.Flags().GetInt("fleet")

	svc := application.NewService(application.Options{})
	comparison := svc.CompareToFleet(score, fleetSize)

	fmt.Printf("Score %d sits in the %.1f percentile of a %d-vehicle fleet\n",
		comparison.Score, comparison.Percentile, comparison.FleetSize)
	fmt.Printf("Bucket %d of %d, synthetic distribution\n",
		comparison.Bucket, len(comparison.Histogram))
	return nil
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func printReportSummary(rep application.VehicleReport) {
	line := strings.Repeat("=", 64)
	fmt.Println(line)
	fmt.Println("VEHICLE RISK SCORE")
	fmt.Println(line)
	fmt.Printf("VIN:            %s\n", rep.VIN)
	fmt.Printf("Priority Score: %d/100 (posterior %.2f%%)\n", rep.PriorityScore, rep.Posterior*100)
	fmt.Printf("Prior:          %.2f%%\n", rep.Prior*100)
	fmt.Printf("Mileage Band:   %s\n", rep.MileageBand)
	fmt.Printf("Cohort Status:  %s\n", rep.Cohort.WorstStatus)
	fmt.Printf("Likelihoods:    weather %.2f  dtc %.2f  mileage %.2f  env %.2f  recalls %.2f\n",
		rep.Likelihoods.Weather, rep.Likelihoods.DTC, rep.Likelihoods.Mileage,
		rep.Likelihoods.Environment, rep.Likelihoods.Recalls)
	fmt.Printf("Fleet Rank:     %.1f percentile of %d vehicles\n",
		rep.Fleet.Percentile, rep.Fleet.FleetSize)
	fmt.Printf("Engine:         %s\n", rep.Engine)
	fmt.Println(line)
}

func printReportTable(reports []application.VehicleReport) {
	line := strings.Repeat("=", 92)
	fmt.Println(line)
	fmt.Printf("%-20s %-6s %-10s %-12s %-18s %-10s\n",
		"VIN", "SCORE", "POSTERIOR", "BAND", "COHORT", "PCTL")
	fmt.Println(line)
	for _, rep := range reports {
		fmt.Printf("%-20s %-6d %-10.4f %-12s %-18s %-10.1f\n",
			rep.VIN, rep.PriorityScore, rep.Posterior, rep.MileageBand,
			rep.Cohort.WorstStatus, rep.Fleet.Percentile)
	}
	fmt.Println(line)
}

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "FleetScore"
	version = "v1.3.0"
)

func main() {
	// Local overrides for DSNs and addresses; absence is not an error.
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     "fleetscore",
		Short:   "Vehicle service-risk scoring engine",
		Version: version,
		Long: `FleetScore estimates near-term service risk for vehicles from mileage,
age, diagnostic trouble codes, environment, and weather, and ranks
service regions by environmental severity.

Score a single vehicle, batch-score a fleet from JSON, assess stressor
exposure, rank regional leads, or run the HTTP API.`,
		Run: runDefaultEntry,
	}

	// Single-vehicle scoring from flags
	scoreCmd := &cobra.Command{
		Use:   "score",
		Short: "Score one vehicle's service risk",
		Long:  "Compute the Bayesian service-risk score for a single vehicle from evidence flags",
		RunE:  runScore,
	}

	scoreCmd.Flags().String("input", "", "Score a vehicle JSON file instead of flags ('-' for stdin)")
	scoreCmd.Flags().String("vin", "", "Vehicle identification number (required)")
	scoreCmd.Flags().Float64("mileage", 0, "Odometer miles")
	scoreCmd.Flags().Float64("age", -1, "Vehicle age in years")
	scoreCmd.Flags().Int("year", 0, "Model year (alternative to --age)")
	scoreCmd.Flags().Float64("health", 100, "Health score 0-100, 100 meaning pristine")
	scoreCmd.Flags().Float64("dtc-powertrain", 0, "Active powertrain trouble codes")
	scoreCmd.Flags().Float64("dtc-body", 0, "Active body trouble codes")
	scoreCmd.Flags().Float64("dtc-chassis", 0, "Active chassis trouble codes")
	scoreCmd.Flags().Float64("dtc-network", 0, "Active network trouble codes")
	scoreCmd.Flags().String("zip", "", "Resolve environment exposure from a zip code")
	scoreCmd.Flags().Float64("rust", 0, "Rust belt severity 0-100")
	scoreCmd.Flags().Float64("stopgo", 0, "Stop-and-go traffic severity 0-100")
	scoreCmd.Flags().Float64("terrain", 0, "Terrain difficulty 0-100")
	scoreCmd.Flags().Float64("thermal", 0, "Thermal stress 0-100")
	scoreCmd.Flags().Int("recalls", 0, "Open recall count")
	registerOutput(scoreCmd.Flags(), outputSummary)

	// Fleet batch scoring from a JSON file
	fleetCmd := &cobra.Command{
		Use:   "fleet",
		Short: "Score a fleet from a JSON file",
		Long:  "Batch-score vehicles from a JSON array of risk requests; large batches fan out across CPU cores",
		RunE:  runFleet,
	}

	fleetCmd.Flags().String("file", "", "Path to a JSON array of vehicles, or '-' for stdin (required)")
	fleetCmd.Flags().Int("top", 0, "Only print the N highest-risk vehicles")
	registerOutput(fleetCmd.Flags(), outputTable)

	// Stressor exposure assessment
	stressorsCmd := &cobra.Command{
		Use:   "stressors",
		Short: "Assess exposure-based stressor risk",
		Long:  "Run the multiplicative stressor model over climate and usage exposure for one vehicle",
		RunE:  runStressors,
	}

	stressorsCmd.Flags().String("vin", "", "Vehicle identification number (required)")
	stressorsCmd.Flags().Float64("heat-days", 0, "Days per year above 95F")
	stressorsCmd.Flags().Float64("cold-days", 0, "Days per year below 20F")
	stressorsCmd.Flags().Float64("short-trips", 0, "Share of trips under 10 minutes (0-1)")
	stressorsCmd.Flags().Float64("elevation", 0, "Home elevation in feet")
	stressorsCmd.Flags().Float64("salt-days", 0, "Road salt exposure days per year")
	registerOutput(stressorsCmd.Flags(), outputSummary)

	// Regional lead scoring
	leadsCmd := &cobra.Command{
		Use:   "leads",
		Short: "Rank service regions by environmental severity",
		Long:  "Score zip codes on corrosion, traffic, terrain, and thermal severity and rank them as sales leads",
		RunE:  runLeads,
	}

	leadsCmd.Flags().String("zips", "", "Comma-separated list of zip codes (e.g., 60601,10001,80202)")
	leadsCmd.Flags().String("file", "", "File with one zip code per line")
	leadsCmd.Flags().Bool("demo", false, "Run demo with sample zip codes")
	leadsCmd.Flags().String("tables", "", "Severity tables YAML (default: compiled-in tables)")
	registerOutput(leadsCmd.Flags(), outputJSON)

	// Fleet comparison for a known score
	compareCmd := &cobra.Command{
		Use:   "compare",
		Short: "Place a priority score against the fleet distribution",
		Long:  "Bucket a 0-100 priority score into the synthetic fleet histogram and report its percentile",
		RunE:  runCompare,
	}

	compareCmd.Flags().Int("score", -1, "Priority score 0-100 (required)")
	compareCmd.Flags().Int("fleet", 0, "Synthetic fleet size (default 1000)")

	// HTTP API server
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scoring HTTP API",
		Long:  "Start the HTTP API with scoring, stressor, lead, history, metrics, and live feed endpoints",
		RunE:  runServe,
	}

	serveCmd.Flags().String("config", "", "Config file path (default: config/fleetscore.yaml)")
	serveCmd.Flags().String("addr", "", "Listen address override (e.g., :8080)")

	// Engine status
	backendCmd := &cobra.Command{
		Use:   "backend",
		Short: "Show which scoring engine is active",
		Long:  "Report whether the native engine passed verification or the portable fallback is serving",
		RunE:  runBackend,
	}

	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(fleetCmd)
	rootCmd.AddCommand(stressorsCmd)
	rootCmd.AddCommand(leadsCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(backendCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// runDefaultEntry routes a bare invocation: help for interactive terminals,
// automation guidance otherwise.
func runDefaultEntry(cmd *cobra.Command, args []string) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintf(os.Stderr, "%s requires a subcommand in non-interactive use:\n\n", appName)
		fmt.Fprintf(os.Stderr, "   fleetscore score --vin 1FTEW1EP5MKE00001 --mileage 75000 --age 4 --health 72\n")
		fmt.Fprintf(os.Stderr, "   fleetscore fleet --file vehicles.json --top 10\n")
		fmt.Fprintf(os.Stderr, "   fleetscore leads --demo --output summary\n")
		fmt.Fprintf(os.Stderr, "   fleetscore serve --addr :8080\n\n")
		fmt.Fprintf(os.Stderr, "   fleetscore --help for the full reference.\n")
		os.Exit(2)
	}

	_ = cmd.Help()
}

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/beargallbladder/fleetapitest-sub000/internal/geo"
)

// bucketLabels maps marketing buckets to their campaign names.
var bucketLabels = map[string]string{
	"salt_belt":           "Metric Ton of Salt",
	"transmission_cooker": "Transmission Cooker",
	"city_grinder":        "City Grinder",
	"thermal_stress":      "Thermal Stress",
	"general":             "General",
}

func runLeads(cmd *cobra.Command, args []string) error {
	zipsFlag, _ := cmd.Flags().GetString("zips")
	filePath, _ := cmd.Flags().GetString("file")
	demo, _ := cmd.Flags().GetBool("demo")
	tablesPath, _ := cmd.Flags().GetString("tables")

	var zips []string
	switch {
	case demo:
		zips = geo.DemoZips()
	case zipsFlag != "":
		for _, z := range strings.Split(zipsFlag, ",") {
			if z = strings.TrimSpace(z); z != "" {
				zips = append(zips, z)
			}
		}
	case filePath != "":
		f, err := os.Open(filePath)
		if err != nil {
			return fmt.Errorf("open zip file: %w", err)
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if z := strings.TrimSpace(scanner.Text()); z != "" {
				zips = append(zips, z)
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read zip file: %w", err)
		}
	default:
		return cmd.Help()
	}

	if len(zips) == 0 {
		return fmt.Errorf("no zip codes to score")
	}

	tables := geo.DefaultTables()
	if tablesPath != "" {
		loader := geo.NewTablesLoader()
		if err := loader.LoadFromFile(tablesPath); err != nil {
			return fmt.Errorf("load severity tables: %w", err)
		}
		loaded, err := loader.Tables()
		if err != nil {
			return err
		}
		tables = loaded
	}

	scorer := geo.NewScorer(tables)
	results := scorer.ScoreMany(zips)

	switch outputOf(cmd.Flags()) {
	case outputTable:
		printLeadsTable(results)
	case outputSummary:
		printLeadsSummary(results)
	default:
		return printJSON(results)
	}
	return nil
}

func printLeadsTable(results []geo.RegionSeverity) {
	line := strings.Repeat("=", 100)
	fmt.Println()
	fmt.Println(line)
	fmt.Printf("%-8s %-15s %-4s %-6s %-8s %-20s %-25s\n",
		"ZIP", "CITY", "ST", "SCORE", "PRIORITY", "BUCKET", "PRIMARY RISK")
	fmt.Println(line)
	for _, r := range results {
		city := r.City
		if len(city) > 14 {
			city = city[:14]
		}
		fmt.Printf("%-8s %-15s %-4s %-6d %-8s %-20s %-25s\n",
			r.Zip, city, r.State, r.TotalSeverity, r.LeadPriority, r.RiskBucket, r.PrimaryRisk)
	}
	fmt.Println(line)
	fmt.Println()
}

func printLeadsSummary(results []geo.RegionSeverity) {
	var hot, warm, cold []geo.RegionSeverity
	for _, r := range results {
		switch r.LeadPriority {
		case "hot":
			hot = append(hot, r)
		case "warm":
			warm = append(warm, r)
		default:
			cold = append(cold, r)
		}
	}

	line := strings.Repeat("=", 60)
	fmt.Println()
	fmt.Println(line)
	fmt.Println("FLEET LEAD SCORING SUMMARY")
	fmt.Println(line)

	printPriorityGroup("HOT LEADS", hot)
	printPriorityGroup("WARM LEADS", warm)
	printPriorityGroup("COLD LEADS", cold)

	buckets := map[string]int{}
	for _, r := range results {
		buckets[r.RiskBucket]++
	}

	fmt.Println()
	fmt.Println(strings.Repeat("-", 60))
	fmt.Println("MARKETING BUCKETS:")
	for bucket, count := range buckets {
		label, ok := bucketLabels[bucket]
		if !ok {
			label = bucket
		}
		fmt.Printf("   %s: %d leads\n", label, count)
	}

	fmt.Println(line)
	fmt.Println()
}

func printPriorityGroup(title string, group []geo.RegionSeverity) {
	fmt.Printf("\n%s (%d):\n", title, len(group))
	for _, r := range group {
		fmt.Printf("   %s, %s (%s): Score %d - %s\n",
			r.City, r.State, r.Zip, r.TotalSeverity, r.PrimaryRisk)
	}
}

package geo

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// TablesLoader handles loading and validation of the geographic tables.
type TablesLoader struct {
	tables *Tables
}

// NewTablesLoader creates an empty loader.
func NewTablesLoader() *TablesLoader {
	return &TablesLoader{}
}

// LoadFromFile loads geographic tables from a YAML file. Sections omitted
// from the file fall back to the compiled-in defaults so a deployment can
// override just its region directory.
func (tl *TablesLoader) LoadFromFile(configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read tables file %s: %w", configPath, err)
	}

	tables := DefaultTables()
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return fmt.Errorf("failed to parse tables YAML: %w", err)
	}

	if err := tl.validateTables(&tables); err != nil {
		return fmt.Errorf("tables validation failed: %w", err)
	}

	tl.tables = &tables
	return nil
}

// LoadDefault loads the compiled-in tables.
func (tl *TablesLoader) LoadDefault() error {
	tables := DefaultTables()
	if err := tl.validateTables(&tables); err != nil {
		return fmt.Errorf("default tables validation failed: %w", err)
	}
	tl.tables = &tables
	return nil
}

// Tables returns the loaded tables.
func (tl *TablesLoader) Tables() (Tables, error) {
	if tl.tables == nil {
		return Tables{}, fmt.Errorf("tables not loaded - call LoadFromFile or LoadDefault first")
	}
	return *tl.tables, nil
}

// validateTables checks the geography for structural sanity.
func (tl *TablesLoader) validateTables(tables *Tables) error {
	if len(tables.SaltBeltStates) == 0 {
		return fmt.Errorf("salt_belt_states must not be empty")
	}
	if len(tables.CoastalPoints) == 0 {
		return fmt.Errorf("coastal_reference_points must not be empty")
	}

	for _, p := range tables.CoastalPoints {
		if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
			return fmt.Errorf("coastal point %q has out-of-range coordinates (%.4f, %.4f)",
				p.Name, p.Lat, p.Lon)
		}
	}

	for prefix, elev := range tables.ElevationPrefixes {
		if len(prefix) != 3 {
			return fmt.Errorf("elevation prefix %q must be three digits", prefix)
		}
		if elev < 0 || elev > 15000 {
			return fmt.Errorf("elevation for prefix %s (%.0f ft) outside [0, 15000]", prefix, elev)
		}
	}

	for zip, info := range tables.Regions {
		if len(zip) != 5 {
			return fmt.Errorf("region key %q is not a five-digit ZIP", zip)
		}
		if info.State == "" {
			return fmt.Errorf("region %s has no state", zip)
		}
		if info.Lat < -90 || info.Lat > 90 || info.Lon < -180 || info.Lon > 180 {
			return fmt.Errorf("region %s has out-of-range coordinates (%.4f, %.4f)",
				zip, info.Lat, info.Lon)
		}
		if info.PopDensity < 0 {
			return fmt.Errorf("region %s has negative population density", zip)
		}
	}

	return nil
}

// DefaultTablesPath returns the default tables file location.
func DefaultTablesPath() string {
	return filepath.Join("config", "severity_tables.yaml")
}

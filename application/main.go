// Project: Multi-scale CMI coupling map of a single geophysical time series
// with Fourier-surrogate significance testing.

package main

import (
	"fmt"
	"os"
)

// The pipeline loads a 1-D monthly series, computes the four coupling-measure
// matrices over the scale grid for the observed data, persists them, then
// repeats the whole measurement on N phase-randomized surrogates using a
// worker pool and persists the stacked ensemble. Run with an optional YAML
// config path; defaults reproduce the reference study setup.

func main() {
	cfg := DefaultConfig()
	if len(os.Args) > 1 {
		loaded, err := LoadConfig(os.Args[1])
		if err != nil {
			panic(err)
		}
		cfg = loaded
	}
	if cfg.DatasetPath == "" {
		fmt.Println("Usage: enso-cmi <config.yaml>  (config must set dataset_path)")
		return
	}
	if err := run(cfg); err != nil {
		panic(err)
	}
}

func run(cfg *Config) error {
	// 1. Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// 2. Load the series
	ts, err := LoadCSVToTimeSeries(cfg.DatasetPath, cfg.Variable, cfg.SpatialMean)
	if err != nil {
		return err
	}
	fmt.Printf("Data loaded: %q with %d samples\n", ts.Name, len(ts.Values))

	// 3. Extract seasonality and build the surrogate template from the
	// deseasonalized series, before any centering touches the data.
	cycle, err := seasonalCycles(ts.Values, cfg.SeasonPeriod)
	if err != nil {
		return err
	}
	template := NewSurrogateTemplate(deseasonalize(ts.Values, cycle))

	// 4. Center the observed field
	field := append([]float64(nil), ts.Values...)
	center(field)

	scales := cfg.ScaleGrid()

	// 5. Compute for data
	fmt.Println("Starting computing for data...")
	dataBundle, err := computeInformationMeasures(field, scales, cfg)
	if err != nil {
		return err
	}
	fmt.Println("Data done!")
	PrintBundleSummary(dataBundle, scales)

	dataResults, err := NewResultsContainer(dataBundle)
	if err != nil {
		return err
	}
	if err := dataResults.Save(cfg.OutputPrefix + "_data.json"); err != nil {
		return err
	}

	// 6. Compute for surrogates
	fmt.Printf("Starting computing for %d surrogates using %d workers\n",
		cfg.NumSurrogates, cfg.Workers)
	coordinator := &SurrogateCoordinator{
		Template: template,
		Cycle:    cycle,
		Scales:   scales,
		Config:   cfg,
	}
	surrogateBundles, err := coordinator.Run(cfg.NumSurrogates, cfg.Workers, cfg.Seed)
	if err != nil {
		return err
	}
	fmt.Println("Surrogates done.")

	surrogateResults, err := NewEnsembleResultsContainer(surrogateBundles)
	if err != nil {
		return err
	}
	return surrogateResults.Save(cfg.OutputPrefix + "_surrogates.json")
}

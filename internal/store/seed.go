package store

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"mapagov/internal/catalog"
	"mapagov/internal/logging"
)

// Seed file format: areas nest macroprocesses, processes, subprocesses and
// their activities. Codes are positional: AREA.MM.PP.SSS.
type seedFile struct {
	Areas []seedArea `yaml:"areas"`
}

type seedArea struct {
	Area           string             `yaml:"area"`
	Macroprocesses []seedMacroprocess `yaml:"macroprocesses"`
}

type seedMacroprocess struct {
	Name      string        `yaml:"name"`
	Processes []seedProcess `yaml:"processes"`
}

type seedProcess struct {
	Name         string           `yaml:"name"`
	Subprocesses []seedSubprocess `yaml:"subprocesses"`
}

type seedSubprocess struct {
	Name       string   `yaml:"name"`
	Activities []string `yaml:"activities"`
}

//go:embed seed_demo.yaml
var demoSeed []byte

// SeedResult summarizes a seeding run.
type SeedResult struct {
	Inserted int
	Skipped  int
}

// SeedFromFile loads a YAML seed file and inserts its entries.
func (s *CatalogStore) SeedFromFile(path string) (SeedResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SeedResult{}, fmt.Errorf("failed to read seed file: %w", err)
	}
	return s.seed(data)
}

// SeedDemo loads the embedded demonstration catalog (CGBEN/CGTIC areas).
func (s *CatalogStore) SeedDemo() (SeedResult, error) {
	return s.seed(demoSeed)
}

func (s *CatalogStore) seed(data []byte) (SeedResult, error) {
	timer := logging.StartTimer(logging.CategoryStore, "seed")
	defer timer.Stop()

	var sf seedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return SeedResult{}, fmt.Errorf("failed to parse seed file: %w", err)
	}

	var res SeedResult
	for _, area := range sf.Areas {
		if area.Area == "" {
			return res, errors.New("seed file contains an area with no code")
		}
		for mi, macro := range area.Macroprocesses {
			for pi, proc := range macro.Processes {
				for si, sub := range proc.Subprocesses {
					for ai, activity := range sub.Activities {
						entry := catalog.Entry{
							Area:         area.Area,
							Macroprocess: macro.Name,
							Process:      proc.Name,
							Subprocess:   sub.Name,
							Activity:     activity,
							Code:         fmt.Sprintf("%s.%02d.%02d.%03d", area.Area, mi+1, pi+1, si*100+ai+1),
							CodeType:     catalog.CodeTypeOfficial,
						}
						err := s.Insert(entry)
						switch {
						case err == nil:
							res.Inserted++
						case errors.Is(err, ErrDuplicateActivity), errors.Is(err, ErrDuplicateCode):
							// Re-seeding over an existing catalog is a no-op.
							res.Skipped++
						default:
							return res, err
						}
					}
				}
			}
		}
	}

	logging.Store("Seed complete: %d inserted, %d skipped", res.Inserted, res.Skipped)
	return res, nil
}

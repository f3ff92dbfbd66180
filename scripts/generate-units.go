package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"
)

type Dependency struct {
	Name       string `yaml:"name"`
	Kind       string `yaml:"kind"`
	ImportPath string `yaml:"import_path,omitempty"`
}

type Unit struct {
	ID           string       `yaml:"id"`
	Name         string       `yaml:"name"`
	Complexity   string       `yaml:"complexity"`
	Tier         string       `yaml:"tier"`
	Dependencies []Dependency `yaml:"dependencies,omitempty"`
}

type Manifest struct {
	Units []Unit `yaml:"units"`
}

var (
	complexities = []string{"low", "medium", "high"}
	tiers        = []string{"core", "shared", "edge"}
	externals    = []string{"lodash", "react", "express", "moment"}
)

func main() {
	count := flag.Int("count", 50, "number of units")
	maxDeps := flag.Int("max-deps", 3, "maximum internal dependencies per unit")
	seed := flag.Int64("seed", 1, "random seed")
	out := flag.String("out", "units.yaml", "output manifest")
	flag.Parse()

	m := generateManifest(*count, *maxDeps, rand.New(rand.NewSource(*seed)))

	data, err := yaml.Marshal(m)
	if err != nil {
		panic(err)
	}

	if err := os.WriteFile(*out, data, 0644); err != nil {
		panic(err)
	}

	edges := 0
	for _, u := range m.Units {
		for _, d := range u.Dependencies {
			if d.Kind != "external" {
				edges++
			}
		}
	}
	fmt.Printf("✓ Generated %s\n", *out)
	fmt.Printf("  - Units: %d\n", len(m.Units))
	fmt.Printf("  - Internal edges: %d\n", edges)
}

// generateManifest builds an acyclic unit set: every unit only depends on
// units generated before it.
func generateManifest(count, maxDeps int, r *rand.Rand) *Manifest {
	m := &Manifest{}
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("unit-%03d", i)
		u := Unit{
			ID:         id,
			Name:       fmt.Sprintf("Unit %d", i),
			Complexity: complexities[r.Intn(len(complexities))],
			Tier:       tiers[r.Intn(len(tiers))],
		}

		if i > 0 {
			seen := map[int]bool{}
			for n := r.Intn(maxDeps + 1); n > 0; n-- {
				target := r.Intn(i)
				if seen[target] {
					continue
				}
				seen[target] = true
				dep := fmt.Sprintf("unit-%03d", target)
				if r.Intn(2) == 0 {
					u.Dependencies = append(u.Dependencies, Dependency{Name: dep, Kind: "internal", ImportPath: "src/" + dep})
				} else {
					u.Dependencies = append(u.Dependencies, Dependency{Name: dep, Kind: "component"})
				}
			}
		}

		if r.Intn(3) == 0 {
			u.Dependencies = append(u.Dependencies, Dependency{Name: externals[r.Intn(len(externals))], Kind: "external"})
		}

		m.Units = append(m.Units, u)
	}
	return m
}

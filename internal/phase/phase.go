package phase

import (
	"sort"

	"github.com/codesentinel/codesentinel-go/internal/errors"
)

// Phase identifies one enrichment pass over the manifest.
type Phase string

const (
	// Inventory resolves the repository and records every file.
	Inventory Phase = "1"
	// Tokens attaches token and cost accounting to analyzable files.
	Tokens Phase = "1.5"
	// Classify runs LLM classification over analyzable files.
	Classify Phase = "2.5"
	// Scan runs vulnerability scanners and risk scoring.
	Scan Phase = "3"
)

// order gives each phase its pipeline position.
var order = map[Phase]int{
	Inventory: 0,
	Tokens:    1,
	Classify:  2,
	Scan:      3,
}

// All lists every phase in pipeline order.
func All() []Phase {
	return []Phase{Inventory, Tokens, Classify, Scan}
}

// Parse validates phase selectors and returns them deduplicated in
// pipeline order. "all" expands to every phase.
func Parse(specs []string) ([]Phase, error) {
	seen := map[Phase]bool{}
	var out []Phase
	for _, spec := range specs {
		if spec == "all" {
			return All(), nil
		}
		p := Phase(spec)
		if _, ok := order[p]; !ok {
			return nil, errors.Newf(errors.KindConfigInvalid,
				"unknown phase %q (valid: 1, 1.5, 2.5, 3, all)", spec)
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, errors.New(errors.KindConfigInvalid, "no phases selected")
	}
	sort.Slice(out, func(i, j int) bool { return order[out[i]] < order[out[j]] })
	return out, nil
}

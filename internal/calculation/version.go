package calculation

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"github.com/noah-isme/sma-grade-engine/internal/models"
)

// CombineVersions derives the config version of an aggregate result from the versions
// of the results it was computed from. Order of inputs does not matter.
func CombineVersions(versions ...string) string {
	sorted := append([]string(nil), versions...)
	sort.Strings(sorted)
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.Join(sorted, "|")))
	return fmt.Sprintf("agg:%016x", h.Sum64())
}

// VersionsOf collects the config versions of the defined results.
func VersionsOf(results ...*models.CalculationResult) []string {
	versions := make([]string, 0, len(results))
	for _, result := range results {
		if result != nil {
			versions = append(versions, result.ConfigVersion)
		}
	}
	return versions
}

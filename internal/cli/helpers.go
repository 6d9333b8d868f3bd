package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/emiliopalmerini/splitlab/internal/domain"
	"github.com/emiliopalmerini/splitlab/internal/engine"
)

// parseVariants reads "control=50,variantA=50".
func parseVariants(s string) ([]domain.Variant, error) {
	var variants []domain.Variant
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, weight, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid variant %q: want name=weight", part)
		}
		w, err := strconv.Atoi(strings.TrimSpace(weight))
		if err != nil {
			return nil, fmt.Errorf("invalid weight for variant %q: %w", name, err)
		}
		variants = append(variants, domain.Variant{Name: strings.TrimSpace(name), Weight: w})
	}
	if len(variants) == 0 {
		return nil, errors.New("at least one variant is required")
	}
	return variants, nil
}

// parseProperties reads repeated key=value flags.
func parseProperties(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	props := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid property %q: want key=value", p)
		}
		props[strings.TrimSpace(k)] = v
	}
	return props, nil
}

// resolveExperiment accepts an experiment ID or name.
func resolveExperiment(ctx context.Context, eng *engine.Engine, ref string) (*domain.Experiment, error) {
	exp, err := eng.GetExperiment(ctx, ref)
	if err == nil {
		return exp, nil
	}
	if !errors.Is(err, domain.ErrExperimentNotFound) {
		return nil, err
	}
	return eng.GetExperimentByName(ctx, ref)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatVariants(variants []domain.Variant) string {
	parts := make([]string, len(variants))
	for i, v := range variants {
		parts[i] = fmt.Sprintf("%s=%d", v.Name, v.Weight)
	}
	return strings.Join(parts, ",")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package tools

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"dcagent/internal/datacommons"
)

// RegisterDataCommonsTools registers the three Data Commons tools on the
// given registry. All tools share the one client; each invocation is a
// single stateless request.
func RegisterDataCommonsTools(reg *Registry, client *datacommons.Client) error {
	for _, tool := range []*Tool{
		NewDCIDTool(client),
		NewAvailableVariablesTool(client),
		NewPopulationCountTool(client),
	} {
		if err := reg.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

// NewDCIDTool returns the place-name resolution tool.
// The not-found outcome is a report, not an error: the model should
// relay it to the user rather than see a failed call.
func NewDCIDTool(client *datacommons.Client) *Tool {
	return &Tool{
		Name:        "get_dcid",
		Description: "Retrieves the Data Commons ID (DCID) for a place such as a city, state, or country.",
		Category:    CategoryPlace,
		Schema: Schema{
			Required: []string{"place"},
			Properties: map[string]Property{
				"place": {
					Type:        "string",
					Description: "The name of the place to look up, e.g. 'Mountain View, CA'.",
				},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			place := stringArg(args, "place")
			dcid, err := client.Resolve(ctx, place)
			if err != nil {
				if errors.Is(err, datacommons.ErrPlaceNotFound) {
					return fmt.Sprintf("Could not find place data for %q.", place), nil
				}
				return "", fmt.Errorf("error fetching DCID for %q: %w", place, err)
			}
			return fmt.Sprintf("DCID for %s: %s", place, dcid), nil
		},
	}
}

// NewAvailableVariablesTool returns the variable catalog tool.
// DCIDs are passed comma-separated so the model only deals in strings.
func NewAvailableVariablesTool(client *datacommons.Client) *Tool {
	return &Tool{
		Name:        "get_available_variables",
		Description: "Lists statistical variables available for one or more place DCIDs, limited to the first 10 variables per place.",
		Category:    CategoryStats,
		Schema: Schema{
			Required: []string{"place_dcids"},
			Properties: map[string]Property{
				"place_dcids": {
					Type:        "string",
					Description: "Comma-separated DCIDs of the places to query.",
				},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			dcids := splitDCIDs(stringArg(args, "place_dcids"))
			vars, err := client.AvailableVariables(ctx, dcids)
			if err != nil {
				return "", fmt.Errorf("error fetching variables for %s: %w", strings.Join(dcids, ","), err)
			}

			var report strings.Builder
			report.WriteString("Available variables (limited to first 10 per place):\n")
			for _, dcid := range dcids {
				if len(vars[dcid]) == 0 {
					fmt.Fprintf(&report, "\nNo variables found for place %s\n", dcid)
					continue
				}
				fmt.Fprintf(&report, "\nFor place %s:\n", dcid)
				for _, variable := range vars[dcid] {
					fmt.Fprintf(&report, "  - %s\n", variable)
				}
			}
			return report.String(), nil
		},
	}
}

// NewPopulationCountTool returns the population lookup tool.
func NewPopulationCountTool(client *datacommons.Client) *Tool {
	return &Tool{
		Name:        "get_population_count",
		Description: "Retrieves the population count (Count_Person) for one or more place DCIDs, optionally at a specific date.",
		Category:    CategoryStats,
		Schema: Schema{
			Required: []string{"place_dcids"},
			Properties: map[string]Property{
				"place_dcids": {
					Type:        "string",
					Description: "Comma-separated DCIDs of the places to query.",
				},
				"date": {
					Type:        "string",
					Description: "Date to query, e.g. '2020'. Omit for the latest available observation.",
					Default:     datacommons.LatestDate,
				},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			dcids := splitDCIDs(stringArg(args, "place_dcids"))
			date := stringArg(args, "date")

			observations, err := client.PopulationCount(ctx, dcids, date)
			if err != nil {
				return "", fmt.Errorf("error fetching population for %s: %w", strings.Join(dcids, ","), err)
			}

			var report strings.Builder
			report.WriteString("Population counts:\n")
			for _, obs := range observations {
				if !obs.HasData {
					fmt.Fprintf(&report, "\n%s: no population data for the requested date", obs.DCID)
					continue
				}
				fmt.Fprintf(&report, "\n%s: %s (as of %s)", obs.DCID, formatValue(obs.Value), obs.Date)
			}
			return report.String(), nil
		},
	}
}

// stringArg extracts a string argument, returning "" for missing or
// non-string values.
func stringArg(args map[string]any, key string) string {
	value, _ := args[key].(string)
	return strings.TrimSpace(value)
}

func splitDCIDs(raw string) []string {
	parts := strings.Split(raw, ",")
	dcids := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			dcids = append(dcids, part)
		}
	}
	return dcids
}

// formatValue renders an observation value for the report, grouping
// digits of integral counts the way a human would write them.
func formatValue(value any) string {
	switch v := value.(type) {
	case float64:
		if v == float64(int64(v)) {
			return groupDigits(int64(v))
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	case nil:
		return "unknown"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func groupDigits(n int64) string {
	s := strconv.FormatInt(n, 10)
	negative := strings.HasPrefix(s, "-")
	if negative {
		s = s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if negative {
		return "-" + s
	}
	return s
}

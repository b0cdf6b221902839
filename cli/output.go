package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"rostersync/store"
	"rostersync/tracker"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

func parseFormat(s string) (OutputFormat, error) {
	f := OutputFormat(strings.ToLower(s))
	if f != FormatText && f != FormatJSON {
		return "", fmt.Errorf("invalid format: %s (must be 'text' or 'json')", s)
	}
	return f, nil
}

// WriteRoster writes the roster in the given format.
func WriteRoster(w io.Writer, clients []tracker.TrackedClient, format OutputFormat) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(clients)
	case FormatText:
		return writeText(w, clients)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func writeText(w io.Writer, clients []tracker.TrackedClient) error {
	if len(clients) == 0 {
		_, err := fmt.Fprintln(w, "Roster is empty.")
		return err
	}
	fmt.Fprintf(w, "%-6s %-20s %-6s %s\n", "ID", "NAME", "ORIGIN", "PARTICIPATION")
	for _, c := range clients {
		if _, err := fmt.Fprintf(w, "%-6d %-20s %-6s %s\n", c.ID, c.DisplayName, c.Origin, c.Participation); err != nil {
			return err
		}
	}
	return nil
}

// writeChange prints one roster change while following a stream.
func writeChange(w io.Writer, c store.Change[tracker.TrackedClient], format OutputFormat) error {
	if format == FormatJSON {
		return json.NewEncoder(w).Encode(struct {
			Version uint64                  `json:"version"`
			Clients []tracker.TrackedClient `json:"clients"`
		}{c.Version, c.Snapshot})
	}
	fmt.Fprintf(w, "-- roster v%d (%d clients)\n", c.Version, len(c.Snapshot))
	return writeText(w, c.Snapshot)
}

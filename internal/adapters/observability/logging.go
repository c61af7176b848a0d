package observability

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the process-wide logger. Development environments get a
// human-friendly console writer; everything else emits JSON lines tagged with
// the service name so pipeline runs can be traced across aggregated logs.
func NewLogger(env string) zerolog.Logger {
	out := zerolog.New(os.Stdout)
	if env == "dev" || env == "development" {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return out.With().Timestamp().Str("service", "solar-leads").Logger()
}

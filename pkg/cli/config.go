// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-manta.
//
// go-manta is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"fmt"

	"github.com/jeremyhahn/go-manta/pkg/config"
)

// DisplayConfig formats the effective configuration. Secrets are masked.
func DisplayConfig(cfg *config.Config, format OutputFormat) string {
	rows := configRows(cfg)
	switch format {
	case FormatJSON:
		m := make(map[string]string, len(rows))
		for _, r := range rows {
			m[r.key] = r.value
		}
		return formatJSON(m)
	case FormatTable:
		output := "┌──────────────────────┬────────────────────────────────────────┐\n"
		output += "│ Setting              │ Value                                  │\n"
		output += "├──────────────────────┼────────────────────────────────────────┤\n"
		for _, r := range rows {
			output += fmt.Sprintf("│ %-20s │ %-38s │\n", r.key, truncate(r.value, 38))
		}
		output += "└──────────────────────┴────────────────────────────────────────┘\n"
		return output
	default:
		var output string
		for _, r := range rows {
			output += fmt.Sprintf("%s: %s\n", r.key, r.value)
		}
		return output
	}
}

type configRow struct {
	key   string
	value string
}

func configRows(cfg *config.Config) []configRow {
	rows := []configRow{
		{config.KeyURL, cfg.URL},
		{config.KeyUser, cfg.User},
	}
	if cfg.Subuser != "" {
		rows = append(rows, configRow{config.KeySubuser, cfg.Subuser})
	}
	if cfg.KeyID != "" {
		rows = append(rows, configRow{config.KeyKeyID, cfg.KeyID})
	}
	if cfg.KeyPath != "" {
		rows = append(rows, configRow{config.KeyKeyPath, cfg.KeyPath})
	}
	if cfg.KeyContent != "" {
		rows = append(rows, configRow{config.KeyKeyContent, maskSecret(cfg.KeyContent)})
	}
	if cfg.Password != "" {
		rows = append(rows, configRow{config.KeyPassword, maskSecret(cfg.Password)})
	}
	rows = append(rows,
		configRow{config.KeyTimeout, cfg.Timeout.String()},
		configRow{config.KeyProtocol, cfg.Protocol},
	)
	if cfg.CAFile != "" {
		rows = append(rows, configRow{config.KeyCAFile, cfg.CAFile})
	}
	if cfg.InsecureSkipVerify {
		rows = append(rows, configRow{config.KeyInsecureSkipVerify, "true"})
	}
	if cfg.RequestsPerSecond > 0 {
		rows = append(rows, configRow{config.KeyRequestsPerSecond, fmt.Sprintf("%g", cfg.RequestsPerSecond)})
	}
	rows = append(rows,
		configRow{config.KeyLogLevel, cfg.LogLevel},
		configRow{config.KeyLogFormat, cfg.LogFormat},
		configRow{config.KeyOutputFormat, cfg.OutputFormat},
	)
	return rows
}

// maskSecret masks sensitive information, showing only first 4 characters.
func maskSecret(s string) string {
	if len(s) < 5 {
		return "****"
	}
	return s[:4] + "****"
}

package httptransport

import (
	"strings"
)

// reproCurl renders a webhook body as a runnable curl script so a rejected
// delivery can be replayed locally.
func reproCurl(endpoint string, body []byte) string {
	payload := strings.TrimSpace(string(body))
	if payload == "" {
		payload = "{}"
	}
	escaped := strings.ReplaceAll(payload, `'`, `'\''`)
	var b strings.Builder
	b.WriteString("#!/bin/bash\n\n")
	b.WriteString("curl -X POST '" + endpoint + "' \\\n")
	b.WriteString("  -H 'Content-Type: application/json' \\\n")
	b.WriteString("  -d '" + escaped + "'\n")
	return b.String()
}

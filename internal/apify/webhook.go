package apify

import (
	"encoding/json"
	"strings"
)

// WebhookPayload carries the fields a completion notification may deliver.
// Senders are loose about shape: each field can live at the top level or
// inside a nested "resource" object, with any key casing.
type WebhookPayload struct {
	RunID        string
	DatasetID    string
	Status       string
	ErrorMessage string
}

// ParseWebhookPayload decodes a notification body. ok is false when the
// body is empty, not JSON, or not an object; in that case nothing can be
// extracted and the caller should treat the delivery as malformed.
func ParseWebhookPayload(raw []byte) (WebhookPayload, bool) {
	body := asObject(raw)
	if body == nil {
		return WebhookPayload{}, false
	}
	resource := childObject(body, "resource")
	errObj := childObject(body, "error")

	p := WebhookPayload{
		RunID:     firstString(pickString(body, "runId"), pickString(resource, "id")),
		DatasetID: firstString(pickString(body, "datasetId"), pickString(resource, "defaultDatasetId")),
		Status:    firstString(pickString(body, "status"), pickString(resource, "status")),
		ErrorMessage: firstString(
			pickString(body, "errorMessage"),
			pickString(resource, "errorMessage"),
			pickString(errObj, "message"),
		),
	}
	return p, true
}

func asObject(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	obj, ok := v.(map[string]any)
	if !ok || len(obj) == 0 {
		return nil
	}
	return obj
}

func childObject(obj map[string]any, key string) map[string]any {
	if obj == nil {
		return nil
	}
	for k, v := range obj {
		if strings.EqualFold(k, key) {
			child, _ := v.(map[string]any)
			return child
		}
	}
	return nil
}

// pickString finds key case-insensitively and returns its trimmed string
// value, or "" when absent or not a string.
func pickString(obj map[string]any, key string) string {
	if obj == nil {
		return ""
	}
	for k, v := range obj {
		if strings.EqualFold(k, key) {
			if s, ok := v.(string); ok {
				return strings.TrimSpace(s)
			}
			return ""
		}
	}
	return ""
}

func firstString(candidates ...string) string {
	for _, s := range candidates {
		if s != "" {
			return s
		}
	}
	return ""
}

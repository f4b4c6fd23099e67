package notification

import (
	"fmt"
	"regexp"
	"strings"

	"pulse/internal/common"
)

// Notification template keys. Each key names a fixed registry entry.
const (
	TypeProjectInvitation   = "project_invitation"
	TypeProjectRemoval      = "project_removal"
	TypeJoinRequest         = "join_request"
	TypeJoinRequestApproved = "join_request_approved"
	TypeJoinRequestRejected = "join_request_rejected"
	TypeProjectAnnouncement = "project_announcement"
	TypeSystemAlert         = "system_alert"
)

// Template is a named pair of format strings plus the payload fields that
// must be present before rendering. Format strings use {name} placeholders.
type Template struct {
	TitleFormat string
	BodyFormat  string
	Required    []string
}

// registry is the fixed mapping from template key to its entry. Titles and
// bodies are localized for the platform's primary audience.
var registry = map[string]Template{
	TypeProjectInvitation: {
		TitleFormat: "Приглашение в проект",
		BodyFormat:  "Вас пригласили в проект «{project_name}».",
		Required:    []string{"project_name"},
	},
	TypeProjectRemoval: {
		TitleFormat: "Исключение из проекта",
		BodyFormat:  "Вы были исключены из проекта «{project_name}».",
		Required:    []string{"project_name"},
	},
	TypeJoinRequest: {
		TitleFormat: "Новая заявка на вступление",
		BodyFormat:  "{applicant_name} подал заявку на вступление в проект «{project_name}».",
		Required:    []string{"project_name", "applicant_name"},
	},
	TypeJoinRequestApproved: {
		TitleFormat: "Заявка одобрена",
		BodyFormat:  "Ваша заявка на вступление в проект «{project_name}» одобрена.",
		Required:    []string{"project_name"},
	},
	TypeJoinRequestRejected: {
		TitleFormat: "Заявка отклонена",
		BodyFormat:  "Ваша заявка на вступление в проект «{project_name}» отклонена.",
		Required:    []string{"project_name"},
	},
	TypeProjectAnnouncement: {
		TitleFormat: "Объявление проекта",
		BodyFormat:  "Новое объявление в проекте «{project_name}»: {message}",
		Required:    []string{"project_name", "message"},
	},
	TypeSystemAlert: {
		TitleFormat: "Системное уведомление",
		BodyFormat:  "{message}",
		Required:    []string{"message"},
	},
}

var placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// RenderTemplate renders the title and body for the given template key.
// It fails with a ValidationError for an unknown key, or when the payload
// lacks required fields. Placeholders referenced by the format strings but
// absent from the payload count as missing too: that is a payload/template
// mismatch, reported through the same aggregated error.
func RenderTemplate(templateKey string, payload map[string]any) (title, body string, err error) {
	tmpl, ok := registry[templateKey]
	if !ok {
		return "", "", common.NewValidationError(fmt.Sprintf("unknown template key: %s", templateKey))
	}

	var missing []string
	seen := make(map[string]bool)
	for _, field := range tmpl.Required {
		if _, ok := payload[field]; !ok && !seen[field] {
			seen[field] = true
			missing = append(missing, field)
		}
	}
	for _, field := range placeholders(tmpl.TitleFormat, tmpl.BodyFormat) {
		if _, ok := payload[field]; !ok && !seen[field] {
			seen[field] = true
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return "", "", common.NewValidationError(fmt.Sprintf(
			"missing payload fields for template '%s': %s", templateKey, strings.Join(missing, ", ")))
	}

	return substitute(tmpl.TitleFormat, payload), substitute(tmpl.BodyFormat, payload), nil
}

// RequiredFields returns the template contract advertised to callers:
// every template key mapped to its required payload fields. The result is
// a copy; mutating it does not affect the registry.
func RequiredFields() map[string][]string {
	out := make(map[string][]string, len(registry))
	for key, tmpl := range registry {
		fields := make([]string, len(tmpl.Required))
		copy(fields, tmpl.Required)
		out[key] = fields
	}
	return out
}

// placeholders returns every {name} reference in the given format strings,
// in order of appearance.
func placeholders(formats ...string) []string {
	var names []string
	for _, format := range formats {
		for _, m := range placeholderRe.FindAllStringSubmatch(format, -1) {
			names = append(names, m[1])
		}
	}
	return names
}

func substitute(format string, payload map[string]any) string {
	return placeholderRe.ReplaceAllStringFunc(format, func(match string) string {
		name := match[1 : len(match)-1]
		return fmt.Sprint(payload[name])
	})
}

package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/common"
)

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		payload   map[string]any
		wantTitle string
		wantBody  string
	}{
		{
			name:      "project invitation",
			key:       TypeProjectInvitation,
			payload:   map[string]any{"project_name": "Atlas"},
			wantTitle: "Приглашение в проект",
			wantBody:  "Вас пригласили в проект «Atlas».",
		},
		{
			name:      "project removal",
			key:       TypeProjectRemoval,
			payload:   map[string]any{"project_name": "Atlas"},
			wantTitle: "Исключение из проекта",
			wantBody:  "Вы были исключены из проекта «Atlas».",
		},
		{
			name:      "join request",
			key:       TypeJoinRequest,
			payload:   map[string]any{"project_name": "Atlas", "applicant_name": "Мария"},
			wantTitle: "Новая заявка на вступление",
			wantBody:  "Мария подал заявку на вступление в проект «Atlas».",
		},
		{
			name:      "announcement",
			key:       TypeProjectAnnouncement,
			payload:   map[string]any{"project_name": "Atlas", "message": "Релиз в пятницу"},
			wantTitle: "Объявление проекта",
			wantBody:  "Новое объявление в проекте «Atlas»: Релиз в пятницу",
		},
		{
			name:      "system alert",
			key:       TypeSystemAlert,
			payload:   map[string]any{"message": "Техработы с 02:00"},
			wantTitle: "Системное уведомление",
			wantBody:  "Техработы с 02:00",
		},
		{
			name:      "extra payload fields are ignored",
			key:       TypeJoinRequestApproved,
			payload:   map[string]any{"project_name": "Atlas", "unused": "x"},
			wantTitle: "Заявка одобрена",
			wantBody:  "Ваша заявка на вступление в проект «Atlas» одобрена.",
		},
		{
			name:      "non-string payload value",
			key:       TypeSystemAlert,
			payload:   map[string]any{"message": 42},
			wantTitle: "Системное уведомление",
			wantBody:  "42",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			title, body, err := RenderTemplate(tc.key, tc.payload)
			require.NoError(t, err)
			assert.Equal(t, tc.wantTitle, title)
			assert.Equal(t, tc.wantBody, body)
			assert.NotContains(t, body, "{", "unsubstituted placeholder")
		})
	}
}

func TestRenderTemplate_UnknownKey(t *testing.T) {
	_, _, err := RenderTemplate("password_reset", map[string]any{})

	var validation *common.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "unknown template key: password_reset", validation.Message)
}

func TestRenderTemplate_AggregatesAllMissingFields(t *testing.T) {
	_, _, err := RenderTemplate(TypeJoinRequest, map[string]any{})

	var validation *common.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t,
		"missing payload fields for template 'join_request': project_name, applicant_name",
		validation.Message)
}

func TestRenderTemplate_SingleMissingField(t *testing.T) {
	_, _, err := RenderTemplate(TypeProjectAnnouncement, map[string]any{"project_name": "Atlas"})

	var validation *common.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t,
		"missing payload fields for template 'project_announcement': message",
		validation.Message)
}

func TestRequiredFields(t *testing.T) {
	fields := RequiredFields()

	assert.Len(t, fields, 7)
	assert.Equal(t, []string{"project_name"}, fields[TypeProjectInvitation])
	assert.Equal(t, []string{"project_name", "applicant_name"}, fields[TypeJoinRequest])
	assert.Equal(t, []string{"message"}, fields[TypeSystemAlert])

	// returned map is a copy
	fields[TypeSystemAlert][0] = "mutated"
	assert.Equal(t, []string{"message"}, RequiredFields()[TypeSystemAlert])
}

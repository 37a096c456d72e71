package service

import (
	"fmt"
	"strings"
)

// Activation tokens are embedded into rendered controls and echoed back by
// the platform when a moderator activates one. Format: category|entityId|action.
// The format is stable on the wire; long-lived widgets carry it.

const (
	CategoryStrangers     = "strangers"
	CategoryQuestionnaire = "questionnaire"
)

const (
	ActionKick            = "kick"
	ActionBan             = "ban"
	ActionPromote         = "promote"
	ActionDisableAutoKick = "disable-auto-kick"

	ActionBegin  = "begin"
	ActionSubmit = "submit"
)

func ControlToken(category, entityID, action string) string {
	return fmt.Sprintf("%s|%s|%s", category, entityID, action)
}

// ParseControlToken splits an activation token into its three fields.
func ParseControlToken(token string) (category, entityID, action string, err error) {
	fields := strings.Split(token, "|")
	if len(fields) != 3 {
		return "", "", "", fmt.Errorf("%w: %q", ErrMalformedToken, token)
	}
	return fields[0], fields[1], fields[2], nil
}

// QuestionnaireAction packs a verb and the questionnaire key into the
// token's action field.
func QuestionnaireAction(verb, key string) string {
	return verb + ":" + key
}

func SplitQuestionnaireAction(action string) (verb, key string) {
	verb, key, _ = strings.Cut(action, ":")
	return verb, key
}

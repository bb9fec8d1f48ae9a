// Package errors provides structured error handling for the engine.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Validation errors
	CodeSessionMissing      Code = "SESSION_MISSING"
	CodeSessionEnded        Code = "SESSION_ENDED"
	CodeActionEmpty         Code = "ACTION_EMPTY"
	CodePlayerNameEmpty     Code = "PLAYER_NAME_EMPTY"
	CodeUserIDEmpty         Code = "USER_ID_EMPTY"
	CodeSkillUnknown        Code = "SKILL_UNKNOWN"
	CodeAttributeUnknown    Code = "ATTRIBUTE_UNKNOWN"
	CodeTemplateUnknown     Code = "TEMPLATE_UNKNOWN"
	CodeTemplateInvalid     Code = "TEMPLATE_INVALID"
	CodeCustomizationBad    Code = "CUSTOMIZATION_INVALID"
	CodeDiceInvalidValues   Code = "DICE_INVALID_VALUES"
	CodeFailurePredicateBad Code = "FAILURE_PREDICATE_INVALID"

	// Collaborator errors
	CodeNarratorUnavailable Code = "NARRATOR_UNAVAILABLE"

	// Storage errors
	CodeNotFound         Code = "NOT_FOUND"
	CodeStorageWriteFail Code = "STORAGE_WRITE_FAILED"
)

// Kind groups codes by how callers should treat them.
type Kind int

const (
	// KindUnknown covers unclassified failures.
	KindUnknown Kind = iota
	// KindValidation covers synchronous rejections: the turn is not
	// consumed and no state was mutated.
	KindValidation
	// KindCollaborator covers external collaborator failures after retry
	// exhaustion: the turn is not consumed.
	KindCollaborator
	// KindStorage covers persistence failures: computed state is
	// provisional, last persisted state remains authoritative.
	KindStorage
)

// Kind classifies a code.
func (c Code) Kind() Kind {
	switch c {
	case CodeSessionMissing,
		CodeSessionEnded,
		CodeActionEmpty,
		CodePlayerNameEmpty,
		CodeUserIDEmpty,
		CodeSkillUnknown,
		CodeAttributeUnknown,
		CodeTemplateUnknown,
		CodeTemplateInvalid,
		CodeCustomizationBad,
		CodeDiceInvalidValues,
		CodeFailurePredicateBad:
		return KindValidation
	case CodeNarratorUnavailable:
		return KindCollaborator
	case CodeNotFound, CodeStorageWriteFail:
		return KindStorage
	default:
		return KindUnknown
	}
}

package api

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	apperrors "github.com/CristianUrbainski/teammate-android/internal/errors"
)

// Error codes the backend puts in an error body's errorCode field.
const (
	CodeUnknown           = "unknown.error"
	CodeMaxStorage        = "maximum.storage.error"
	CodeIllegalTeamMember = "illegal.team.member.error"
	CodeUnauthenticated   = "unauthenticated.user.error"
	CodeInvalidObjectRef  = "invalid.object.reference.error"
	DefaultMessageText    = "Sorry, an error occurred"
)

// Message is the backend's error body.
type Message struct {
	Text string `json:"message"`
	Code string `json:"errorCode"`
}

// ParseMessage reads an error body. Bodies that are not JSON, or that lack
// either field, fall back to the default text and the unknown code.
func ParseMessage(body []byte) Message {
	m := Message{Text: DefaultMessageText, Code: CodeUnknown}
	if !gjson.ValidBytes(body) {
		return m
	}

	res := gjson.GetManyBytes(body, "message", "errorCode")
	if text := res[0].String(); text != "" {
		m.Text = text
	}

	if code := res[1].String(); code != "" {
		m.Code = code
	}

	return m
}

func (m Message) IsInvalidObject() bool     { return m.Code == CodeInvalidObjectRef }
func (m Message) IsIllegalTeamMember() bool { return m.Code == CodeIllegalTeamMember }
func (m Message) IsUnauthenticated() bool   { return m.Code == CodeUnauthenticated }
func (m Message) IsAtMaxStorage() bool      { return m.Code == CodeMaxStorage }

// IsValidModel is false when the error says the model or its parent key no
// longer exists for this user.
func (m Message) IsValidModel() bool {
	return !m.IsIllegalTeamMember() && !m.IsInvalidObject()
}

// Error is a non-2xx backend response.
type Error struct {
	Status   int
	Endpoint string
	Message  Message
	body     string
}

func (e *Error) Error() string {
	if e.Message.Text == DefaultMessageText && e.body != "" {
		return fmt.Sprintf("API %s returned status %d: %s", e.Endpoint, e.Status, e.body)
	}

	return fmt.Sprintf("API %s (%d): %s [%s]", e.Endpoint, e.Status, e.Message.Text, e.Message.Code)
}

// Is maps the error code onto the sentinel errors, so callers can use
// errors.Is(err, errors.ErrInvalidObject).
func (e *Error) Is(target error) bool {
	switch target {
	case apperrors.ErrAPIResponse:
		return true
	case apperrors.ErrInvalidObject:
		return e.Message.IsInvalidObject()
	case apperrors.ErrIllegalTeamMember:
		return e.Message.IsIllegalTeamMember()
	case apperrors.ErrUnauthenticated:
		return e.Message.IsUnauthenticated()
	case apperrors.ErrMaxStorage:
		return e.Message.IsAtMaxStorage()
	case apperrors.ErrUnknown:
		return e.Message.Code == CodeUnknown
	}

	return false
}

// MessageOf extracts the backend message from anywhere in err's chain.
func MessageOf(err error) (Message, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message, true
	}

	return Message{}, false
}

func IsInvalidObject(err error) bool     { return errors.Is(err, apperrors.ErrInvalidObject) }
func IsIllegalTeamMember(err error) bool { return errors.Is(err, apperrors.ErrIllegalTeamMember) }
func IsUnauthenticated(err error) bool   { return errors.Is(err, apperrors.ErrUnauthenticated) }
func IsAtMaxStorage(err error) bool      { return errors.Is(err, apperrors.ErrMaxStorage) }

// IsValidModel reports whether err leaves the model it concerns valid.
// Errors that did not come from the backend say nothing about the model.
func IsValidModel(err error) bool {
	m, ok := MessageOf(err)
	return !ok || m.IsValidModel()
}

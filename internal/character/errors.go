package character

const (
	CodeNotFound     = "CHARACTER_NOT_FOUND"
	CodeNotPublished = "CHARACTER_NOT_PUBLISHED"
	CodeNotPinned    = "CHARACTER_NOT_PINNED"
	CodeInvalid      = "CHARACTER_INVALID"
)

type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrNotFound     = &Error{Code: CodeNotFound, Message: "Character not found."}
	ErrNotPublished = &Error{Code: CodeNotPublished, Message: "Character is not published."}
	ErrNotPinned    = &Error{Code: CodeNotPinned, Message: "Character is not pinned."}
	ErrInvalid      = &Error{Code: CodeInvalid, Message: "Character name and prompt are required."}
)

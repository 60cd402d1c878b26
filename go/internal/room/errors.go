package room

import "errors"

// Rejections. The gateway reports these to the originating connection only;
// room state is unchanged when one is returned.
var (
	ErrRoomFull        = errors.New("room is full")
	ErrGameStarted     = errors.New("game already started")
	ErrNotHost         = errors.New("only the host can do that")
	ErrDuplicateAnswer = errors.New("answer already submitted for this question")
	ErrNotInProgress   = errors.New("no question in progress")
	ErrWrongQuestion   = errors.New("answer is for a different question")
	ErrUnknownPlayer   = errors.New("player is not in this room")
	ErrEliminated      = errors.New("player has been eliminated")
	ErrNoCharges       = errors.New("no power-up charges left")
	ErrUnknownPowerUp  = errors.New("unknown power-up")
	ErrInvalidNickname = errors.New("nickname must not be empty")
	ErrRoomClosed      = errors.New("room is closed")
)

// Creation errors. These abort room creation.
var (
	ErrNoQuestions     = errors.New("room needs at least one question")
	ErrInvalidQuestion = errors.New("invalid question")
)

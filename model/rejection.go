package model

type RejectionCode string

const (
	REJ_NOT_PARTICIPANT    RejectionCode = "NOT_PARTICIPANT"
	REJ_WRONG_PHASE        RejectionCode = "WRONG_PHASE"
	REJ_WRONG_ROLE         RejectionCode = "WRONG_ROLE"
	REJ_ALREADY_ELIMINATED RejectionCode = "ALREADY_ELIMINATED"
	REJ_ALREADY_SUBMITTED  RejectionCode = "ALREADY_SUBMITTED"
	REJ_MESSAGE_QUOTA      RejectionCode = "MESSAGE_QUOTA"
	REJ_INVALID_TARGET     RejectionCode = "INVALID_TARGET"
	REJ_PLAYER_NOT_FOUND   RejectionCode = "PLAYER_NOT_FOUND"
	REJ_MATCH_NOT_ACTIVE   RejectionCode = "MATCH_NOT_ACTIVE"
)

// Rejection はアクションハンドラ境界で呼び出し元へ同期的に返す構造化された拒否である
type Rejection struct {
	Code    RejectionCode  `json:"code"`
	Message string         `json:"message"`
	Status  int            `json:"-"`
	Retry   bool           `json:"retry"`
	Details map[string]any `json:"details,omitempty"`
}

func (r *Rejection) Error() string {
	return r.Message
}

func NewRejection(code RejectionCode, message string, status int) *Rejection {
	return &Rejection{
		Code:    code,
		Message: message,
		Status:  status,
		Details: map[string]any{},
	}
}

func (r *Rejection) WithRetry() *Rejection {
	r.Retry = true
	return r
}

func (r *Rejection) WithDetail(key string, value any) *Rejection {
	r.Details[key] = value
	return r
}

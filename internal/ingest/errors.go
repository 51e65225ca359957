package ingest

import (
	"errors"
	"fmt"
)

// ErrMalformedInput matches every InputError.
var ErrMalformedInput = errors.New("malformed input")

const (
	reasonEncoding   = "CSV 파일 인코딩 오류 (UTF-8 형식이어야 합니다)"
	reasonNoURLs     = "CSV 파일에 URL이 없습니다."
	reasonUnreadable = "CSV 파일을 읽을 수 없습니다."
	reasonTooMany    = "한 번에 처리할 수 있는 URL 수를 초과했습니다."
	reasonNoCSV      = "CSV 파일만 업로드 가능합니다."
)

// InputError rejects a batch before any row is processed. Reason is shown to
// the caller as is.
type InputError struct {
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrMalformedInput) match.
func (e *InputError) Is(target error) bool {
	return target == ErrMalformedInput
}

// NotCSVError reports an upload whose file name lacks the .csv extension.
func NotCSVError() error {
	return &InputError{Reason: reasonNoCSV}
}

// PersistenceError wraps an item store failure for one row.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("아이템 생성 실패: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

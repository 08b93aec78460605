package bufpatch

import "errors"

var (
	// ErrFormat 记录格式错误, 长度字段不可信, 整个流都不能继续读下去
	ErrFormat            = errors.New("malformed patch record")
	ErrUnsupportedOpCode = errors.New("unsupported patch operation code")
)

var (
	errPatchOutOfRange = errors.New("patch out of page range")
	errPatchOutOfOrder = errors.New("patch sequence out of order")
	errStoreClosed     = errors.New("page store is closed")
	errPageIdOverflow  = errors.New("page id overflow")
	errMoveNotLoggable = errors.New("move patch can not be logged with the legacy move tag")
)

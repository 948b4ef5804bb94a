package media

import "errors"

var (
	ErrMediaNotFound         = errors.New("media not found")
	ErrNotOwner              = errors.New("you do not own this media")
	ErrOwnerRequired         = errors.New("uploader id is required")
	ErrEmptyFile             = errors.New("file is empty")
	ErrInvalidFileType       = errors.New("file type is not allowed")
	ErrFileTooLarge          = errors.New("file exceeds maximum allowed size")
	ErrInvalidOptions        = errors.New("invalid upload options")
	ErrStorageWriteFailed    = errors.New("failed to write file to storage")
	ErrStorageDeleteFailed   = errors.New("failed to delete file from storage")
	ErrImageDecodeFailed     = errors.New("failed to decode image")
	ErrMetadataPersistFailed = errors.New("failed to persist media record")
	ErrMediaInUse            = errors.New("media is still referenced")
	ErrInvalidUpdate         = errors.New("invalid media update")
	ErrBatchAborted          = errors.New("batch aborted after an earlier failure")
)

package domain

// Error kinds. The transport layer maps each kind to a status code;
// components only ever return *Error values for expected failures.
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindNotFound
	KindConflict
	KindStorage
	KindExternal
)

const (
	ErrInvalidDeviceType    = "invalid_device_type"
	ErrInvalidDeviceID      = "invalid_device_id"
	ErrMissingField         = "missing_field"
	ErrInvalidJSON          = "invalid_json"
	ErrInvalidDateWindow    = "invalid_date_window"
	ErrInvalidBatteryLevel  = "invalid_battery_level"
	ErrInvalidStatus        = "invalid_status"
	ErrDeviceNotFound       = "device_not_found"
	ErrEventNotFound        = "event_not_found"
	ErrParticipantNotFound  = "participant_not_found"
	ErrNotificationNotFound = "notification_not_found"
	ErrDuplicateDevice      = "duplicate_device_id"
	ErrAlreadyCheckedIn     = "already_checked_in"
	ErrDeviceAssigned       = "device_already_assigned"
	ErrStorage              = "storage_error"
	ErrExternalService      = "external_service_error"
)

type Error struct {
	Kind ErrorKind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(code string) *Error {
	return &Error{Kind: KindValidation, Code: code}
}

func NotFound(code string) *Error {
	return &Error{Kind: KindNotFound, Code: code}
}

func Conflict(code string) *Error {
	return &Error{Kind: KindConflict, Code: code}
}

func Storage(err error) *Error {
	return &Error{Kind: KindStorage, Code: ErrStorage, Err: err}
}

func External(err error) *Error {
	return &Error{Kind: KindExternal, Code: ErrExternalService, Err: err}
}

package resputil

type ErrorCode int

const (
	OK ErrorCode = 0

	// General
	InvalidRequest ErrorCode = 40001

	// Token
	TokenExpired ErrorCode = 40101
	TokenInvalid ErrorCode = 40102

	// Login
	InvalidCredentials ErrorCode = 40106

	// User is not allowed to access the resource
	UserNotAllowed ErrorCode = 40301

	ResourceNotFound ErrorCode = 40401

	// Duplicate resource, already-used invitation, already-member
	ResourceConflict ErrorCode = 40901

	// Invitation past its expiry
	InvitationExpired ErrorCode = 41001

	// A dependency (e.g. the stage bucket) is not provisioned yet
	DependencyNotReady ErrorCode = 42401

	// Object store / external service failures
	StorageFailure  ErrorCode = 50001
	UpstreamFailure ErrorCode = 50002

	// Indicates laziness of the developer
	// Frontend will directly print the message without any translation
	NotSpecified ErrorCode = 99999
)

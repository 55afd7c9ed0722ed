package trakt

import "fmt"

// DeviceFlowCode is the closed set of error codes the Trakt device-token
// endpoint can return on a 400 response.
type DeviceFlowCode string

const (
	CodeAuthorizationPending DeviceFlowCode = "authorization_pending"
	CodeSlowDown             DeviceFlowCode = "slow_down"
	CodeExpiredToken         DeviceFlowCode = "expired_token"
	CodeInvalidGrant         DeviceFlowCode = "invalid_grant"
	CodeInvalidClient        DeviceFlowCode = "invalid_client"
	CodeUnsupportedGrantType DeviceFlowCode = "unsupported_grant_type"
	CodeServerError          DeviceFlowCode = "server_error"
)

// DeviceFlowError is a classified device-token failure. Callers switch on
// Code to drive the authorization state machine.
type DeviceFlowError struct {
	Code    DeviceFlowCode
	Message string
}

func (e *DeviceFlowError) Error() string {
	return fmt.Sprintf("trakt device flow: %s: %s", e.Code, e.Message)
}

// classifyDeviceFlowCode maps a raw error string from the token endpoint to
// a known code, defaulting to server_error for anything unrecognized.
func classifyDeviceFlowCode(raw string) DeviceFlowCode {
	switch DeviceFlowCode(raw) {
	case CodeAuthorizationPending, CodeSlowDown, CodeExpiredToken,
		CodeInvalidGrant, CodeInvalidClient, CodeUnsupportedGrantType:
		return DeviceFlowCode(raw)
	default:
		return CodeServerError
	}
}

// Package action defines the closed set of browser action types a
// governed EXECUTE may carry. The allow-list and deny-list are literal
// enumerations compiled into the binary: no profile, environment
// variable, or other configuration input can widen either one. An
// action_type that names neither list is rejected exactly like one
// that names the deny-list — the allow-list is the only door in.
package action

import "github.com/sentryline/guardcore/pkg/guarderr"

// Type is one ActionRequest.action_type value.
type Type string

const (
	Navigate     Type = "NAVIGATE"
	Click        Type = "CLICK"
	InputText    Type = "INPUT_TEXT"
	Scroll       Type = "SCROLL"
	Wait         Type = "WAIT"
	Screenshot   Type = "SCREENSHOT"
	GetText      Type = "GET_TEXT"
	GetAttribute Type = "GET_ATTRIBUTE"
	Hover        Type = "HOVER"
	SelectOption Type = "SELECT_OPTION"

	Login         Type = "LOGIN"
	Authenticate  Type = "AUTHENTICATE"
	CreateAccount Type = "CREATE_ACCOUNT"
	SubmitForm    Type = "SUBMIT_FORM"
	UploadFile    Type = "UPLOAD_FILE"
	DownloadFile  Type = "DOWNLOAD_FILE"
	ExecuteScript Type = "EXECUTE_SCRIPT"
	BypassCaptcha Type = "BYPASS_CAPTCHA"
	BypassAuth    Type = "BYPASS_AUTH"
	Payment       Type = "PAYMENT"
	Checkout      Type = "CHECKOUT"
)

// allowed is the closed set of action types a browser EXECUTE may ever
// carry out.
var allowed = map[Type]bool{
	Navigate:     true,
	Click:        true,
	InputText:    true,
	Scroll:       true,
	Wait:         true,
	Screenshot:   true,
	GetText:      true,
	GetAttribute: true,
	Hover:        true,
	SelectOption: true,
}

// denied names the action types this core will never perform on a
// human's behalf, regardless of how the request arrived. Listed
// separately from "not on the allow-list" purely so the rejection
// message can say which rule caught it.
var denied = map[Type]bool{
	Login:         true,
	Authenticate:  true,
	CreateAccount: true,
	SubmitForm:    true,
	UploadFile:    true,
	DownloadFile:  true,
	ExecuteScript: true,
	BypassCaptcha: true,
	BypassAuth:    true,
	Payment:       true,
	Checkout:      true,
}

// Validate rejects any type not on the allow-list. A type on the
// deny-list and a type on neither list are both ForbiddenAction — the
// deny-list exists to name the common cases in the error, not to widen
// what Validate would otherwise reject.
func Validate(t Type) error {
	if allowed[t] {
		return nil
	}
	if denied[t] {
		return guarderr.New(guarderr.KindForbiddenAction, string(t)+" is on the action deny-list")
	}
	return guarderr.New(guarderr.KindForbiddenAction, string(t)+" is not on the action allow-list")
}

// Request mirrors the wire shape of a governed browser action. It is
// the typed payload an EXECUTE dispatch must carry so the action_type
// gate and the parameter schema can both run before anything is
// consumed.
type Request struct {
	ActionType Type
	Target     string
	Parameters map[string]interface{}
}

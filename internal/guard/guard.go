// Package guard decides whether a view may render for the current authentication state,
// and owns that state.
package guard

type Status string

const (
	StatusUnknown   Status = "unknown"
	StatusAnonymous Status = "anonymous"
	StatusUser      Status = "user"
	StatusAdmin     Status = "admin"
)

func (s Status) Resolved() bool { return s != StatusUnknown && s != "" }

func (s Status) SignedIn() bool { return s == StatusUser || s == StatusAdmin }

type Requirement int

const (
	Public Requirement = iota
	RequiresAuth
	RequiresAdmin
)

func (r Requirement) String() string {
	switch r {
	case RequiresAuth:
		return "auth"
	case RequiresAdmin:
		return "admin"
	default:
		return "public"
	}
}

type Decision int

const (
	Allow Decision = iota
	// Suspend renders a neutral placeholder until the auth check resolves.
	Suspend
	RedirectSignIn
	RedirectNotAuthorized
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Suspend:
		return "suspend"
	case RedirectSignIn:
		return "redirect-sign-in"
	case RedirectNotAuthorized:
		return "redirect-not-authorized"
	}
	return "unknown"
}

// Evaluate never returns Allow for a protected requirement while the status is unknown.
func Evaluate(st Status, req Requirement) Decision {
	if req == Public {
		return Allow
	}
	if !st.Resolved() {
		return Suspend
	}
	switch req {
	case RequiresAuth:
		if st.SignedIn() {
			return Allow
		}
		return RedirectSignIn
	case RequiresAdmin:
		switch st {
		case StatusAdmin:
			return Allow
		case StatusUser:
			return RedirectNotAuthorized
		default:
			return RedirectSignIn
		}
	}
	return RedirectSignIn
}

package guard

import "strings"

// Route paths. These are view names, not URLs.
const (
	PathHome          = "home"
	PathLogin         = "login"
	PathRegister      = "register"
	PathNotAuthorized = "not-authorized"
	PathProfile       = "profile"
	PathUsers         = "admin/userslist"
	PathCategories    = "admin/categorylist"
	PathProducts      = "admin/productlist"
)

type Route struct {
	Path        string
	Title       string
	Requirement Requirement
}

type Table []Route

// Routes is the admin client's navigation tree.
var Routes = Table{
	{Path: PathHome, Title: "Home", Requirement: Public},
	{Path: PathLogin, Title: "Sign in", Requirement: Public},
	{Path: PathRegister, Title: "Register", Requirement: Public},
	{Path: PathNotAuthorized, Title: "Not authorized", Requirement: Public},
	{Path: PathProfile, Title: "Profile", Requirement: RequiresAuth},
	{Path: PathUsers, Title: "Users", Requirement: RequiresAdmin},
	{Path: PathCategories, Title: "Categories", Requirement: RequiresAdmin},
	{Path: PathProducts, Title: "Products", Requirement: RequiresAdmin},
}

func (t Table) Lookup(path string) (Route, bool) {
	path = strings.Trim(strings.TrimSpace(path), "/")
	for _, r := range t {
		if r.Path == path {
			return r, true
		}
	}
	return Route{}, false
}

// Decide evaluates path for st and returns the route to show instead when the decision
// is a redirect. Unknown paths are treated as requiring sign-in.
func (t Table) Decide(path string, st Status) (Decision, string) {
	req := RequiresAuth
	if r, ok := t.Lookup(path); ok {
		req = r.Requirement
	}
	d := Evaluate(st, req)
	switch d {
	case RedirectSignIn:
		return d, PathLogin
	case RedirectNotAuthorized:
		return d, PathNotAuthorized
	}
	return d, ""
}

// Visible lists the routes a navigation menu should offer for st.
func (t Table) Visible(st Status) []Route {
	var out []Route
	for _, r := range t {
		if r.Path == PathNotAuthorized {
			continue
		}
		if st.SignedIn() && (r.Path == PathLogin || r.Path == PathRegister) {
			continue
		}
		if Evaluate(st, r.Requirement) == Allow {
			out = append(out, r)
		}
	}
	return out
}

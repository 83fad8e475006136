package identity

// Identity is the resolved session passed explicitly into every data-scoped
// operation. A zero UserID means no session.
type Identity struct {
	UserID string
	Email  string
}

func (id Identity) Authenticated() bool {
	return id.UserID != ""
}

package model

// MessagingCredentials is the resolved secret bundle for one send.
// Destination always comes from the user's own settings, even when the
// platform default bundle is used.
type MessagingCredentials struct {
	AccountKey    string
	AuthSecret    string
	SenderAddress string
	Destination   string
}

// Ready reports whether the bundle can authenticate against the provider.
func (c MessagingCredentials) Ready() bool {
	return c.AccountKey != "" && c.AuthSecret != ""
}

// String masks every secret so the bundle is safe to print.
func (c MessagingCredentials) String() string {
	mask := func(s string) string {
		if s == "" {
			return "<empty>"
		}
		return "****"
	}
	return "MessagingCredentials{account=" + mask(c.AccountKey) +
		" secret=" + mask(c.AuthSecret) +
		" sender=" + MaskPhoneNumber(c.SenderAddress) + "}"
}

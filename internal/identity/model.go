package identity

import "strings"

// UserIdentity is the display name and wallet captured before a scan. It is
// immutable once accepted by a verification session.
type UserIdentity struct {
	DisplayName   string
	WalletAddress string
}

// FirstName returns the first word of the display name, used in greetings.
func (u UserIdentity) FirstName() string {
	fields := strings.Fields(u.DisplayName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// ShortWallet returns the wallet in 0x1234...abcd display form.
func (u UserIdentity) ShortWallet() string {
	return ShortAddress(u.WalletAddress)
}

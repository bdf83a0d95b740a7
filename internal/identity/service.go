package identity

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

const minNameLength = 3

var (
	// ErrInvalidName is returned when the display name is too short.
	ErrInvalidName = errors.New("display name must be longer than 2 characters")

	// ErrInvalidWallet is returned when the wallet is not 0x followed by 40 hex characters.
	ErrInvalidWallet = errors.New("wallet address must be 0x followed by 40 hex characters")
)

var walletPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// IsValidWallet reports whether addr is 0x followed by exactly 40 hex characters.
func IsValidWallet(addr string) bool {
	return walletPattern.MatchString(addr)
}

// Validate checks both identity fields and returns the first failure.
func Validate(u UserIdentity) error {
	if !validName(u.DisplayName) {
		return ErrInvalidName
	}
	if !IsValidWallet(u.WalletAddress) {
		return ErrInvalidWallet
	}
	return nil
}

// validName counts characters, not bytes, of the trimmed name.
func validName(name string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(name)) >= minNameLength
}

// CanSubmit mirrors the form gate: true only when both fields validate.
func CanSubmit(u UserIdentity) bool {
	return Validate(u) == nil
}

// FieldErrors reports per-field validation messages. Empty fields are not
// flagged so an untouched form stays neutral.
func FieldErrors(u UserIdentity) map[string]string {
	errs := map[string]string{}
	if u.DisplayName != "" && !validName(u.DisplayName) {
		errs["display_name"] = ErrInvalidName.Error()
	}
	if u.WalletAddress != "" && !IsValidWallet(u.WalletAddress) {
		errs["wallet_address"] = ErrInvalidWallet.Error()
	}
	return errs
}

// New validates and returns a normalised identity. The display name is
// trimmed; the wallet is kept exactly as entered.
func New(displayName, walletAddress string) (UserIdentity, error) {
	u := UserIdentity{
		DisplayName:   strings.TrimSpace(displayName),
		WalletAddress: strings.TrimSpace(walletAddress),
	}
	if err := Validate(u); err != nil {
		return UserIdentity{}, err
	}
	return u, nil
}

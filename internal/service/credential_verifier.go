package service

import (
	"errors"

	"github.com/mvanbree/palette/internal/domain"
	"github.com/mvanbree/palette/internal/repository"
	"github.com/mvanbree/palette/internal/security"
)

// ErrInvalidCredentials is the only failure a caller ever sees from Verify.
// Unknown username and wrong password are deliberately indistinguishable.
var ErrInvalidCredentials = errors.New("invalid credentials")

// dummyHash is a bcrypt hash of a throwaway value. Compared against when the
// username does not exist so both failure paths cost one bcrypt comparison.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

type CredentialVerifier struct {
	users repository.UserRepository
}

func NewCredentialVerifier(users repository.UserRepository) *CredentialVerifier {
	return &CredentialVerifier{users: users}
}

func (v *CredentialVerifier) Verify(username, password string) (*domain.User, error) {
	cred, user, err := v.users.FindByUsername(username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			security.VerifyPassword(dummyHash, password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !security.VerifyPassword(cred.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

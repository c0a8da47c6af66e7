package dashboard

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// MaxNameLength is the longest file or folder name the backend accepts.
const MaxNameLength = 255

const forbiddenNameChars = `<>:"/\|?*`

// ValidateName trims name and checks it can be used for a file or folder.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	err := validation.Validate(name,
		validation.Required.Error("name is required"),
		validation.RuneLength(1, MaxNameLength).Error(fmt.Sprintf("name must be at most %d characters", MaxNameLength)),
		validation.By(noForbiddenChars),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidName, err)
	}
	return name, nil
}

func noForbiddenChars(value any) error {
	s, _ := value.(string)
	if i := strings.IndexAny(s, forbiddenNameChars); i >= 0 {
		return fmt.Errorf("name must not contain %q", s[i])
	}
	return nil
}

// Credentials are a login email and password.
type Credentials struct {
	Email    string
	Password string
}

// Validate checks the credentials before they are sent.
func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, is.EmailFormat),
		validation.Field(&c.Password, validation.Required),
	)
}

// Permission of a share link.
type Permission string

const (
	PermView Permission = "view"
	PermEdit Permission = "edit"
)

// ShareOptions configure a new share link.
type ShareOptions struct {
	Permission Permission
	Password   string
	// ExpiresInDays defaults to 30.
	ExpiresInDays int
	// AllowDownload applies to files. nil means true.
	AllowDownload *bool
}

// ErrInvalidShare is returned for share options the backend would reject.
var ErrInvalidShare = errors.New("invalid share options")

// Validate checks the permission, the expiry range and the password length.
func (o ShareOptions) Validate() error {
	err := validation.ValidateStruct(&o,
		validation.Field(&o.Permission, validation.In(PermView, PermEdit)),
		validation.Field(&o.ExpiresInDays, validation.Min(0), validation.Max(365)),
		validation.Field(&o.Password, validation.RuneLength(0, 128)),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidShare, err)
	}
	return nil
}

package user

import (
	"context"
	"crypto/rand"
	"math/big"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/sathyagomani/academy/core"
)

var (
	// errors
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("a user with this email already exists")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		QueryAllUsers(ctx context.Context) ([]User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// GetStudentsByID fetches users with the student role among the given IDs;
		// unknown IDs and non-students are silently skipped.
		GetStudentsByID(ctx context.Context, ids ...string) ([]User, error)
		UpdateUser(ctx context.Context, usr User, isActive *bool) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		// SaveSubscriptions persists the user's subscription entries as a whole.
		SaveSubscriptions(ctx context.Context, usr User) (User, error)
		// ClearOneTimePassword permanently blanks the stored plaintext credential.
		ClearOneTimePassword(ctx context.Context, id string) error
		DeleteUsersByID(ctx context.Context, ids ...string) error
	}

	Service interface {
		CheckUniqueness(email string, exclUsers ...User) error
		CreateStudent(ctx context.Context, ns NewStudent) (User, error)
		QueryAll(ctx context.Context) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetStudents(ctx context.Context, ids ...string) ([]User, error)
		Update(ctx context.Context, id string, uu UpdateUser) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		Subscribe(ctx context.Context, userID, courseID string, days int) (User, Subscription, error)
		Unsubscribe(ctx context.Context, userID, courseID string) error
		ClearOneTimePassword(ctx context.Context, id string) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetUserPassword) error
		Delete(ctx context.Context, ids ...string) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	secretKey = conf.SecretKey
	passwordResetTimeoutDelta = conf.PasswordResetTimeoutDelta
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
	}
}

func (svc *service) CheckUniqueness(email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, exclUsers...); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// CreateStudent registers a new student with a generated password. The
// plaintext is kept as a one-time credential until the first invitation email
// discloses it.
func (svc *service) CreateStudent(ctx context.Context, ns NewStudent) (User, error) {
	now := time.Now().UTC()
	usr := User{
		ID:          uuid.New().String(),
		FirstName:   ns.FirstName,
		LastName:    ns.LastName,
		Email:       ns.Email,
		PhoneNumber: ns.PhoneNumber,
		Role:        RoleStudent,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	pwd, err := generatePassword(8)
	if err != nil {
		return User{}, errors.Wrap(err, "generating password")
	}
	if err = usr.SetPassword(pwd); err != nil {
		return User{}, err
	}
	usr.OneTimePassword = pwd
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.repo.QueryAllUsers(ctx)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) GetStudents(ctx context.Context, ids ...string) ([]User, error) {
	return svc.repo.GetStudentsByID(ctx, ids...)
}

func (svc *service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr := User{
		ID:          id,
		FirstName:   uu.FirstName,
		LastName:    uu.LastName,
		PhoneNumber: uu.PhoneNumber,
		UpdatedAt:   time.Now().UTC(),
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}
	return svc.repo.UpdateUser(ctx, usr, uu.IsActive)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.SetLastLogin(ctx, usr)
}

// Subscribe opens or renews the user's access window for a course and sends a
// confirmation email (best-effort).
func (svc *service) Subscribe(ctx context.Context, userID, courseID string, days int) (User, Subscription, error) {
	usr, err := svc.repo.GetUserByID(ctx, userID)
	if err != nil {
		return User{}, Subscription{}, err
	}
	sub := usr.Subscribe(courseID, days, time.Now().UTC())
	usr, err = svc.repo.SaveSubscriptions(ctx, usr)
	if err != nil {
		return User{}, Subscription{}, err
	}
	svc.sendSubscriptionMail(usr, sub)
	return usr, sub, nil
}

func (svc *service) Unsubscribe(ctx context.Context, userID, courseID string) error {
	usr, err := svc.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	usr.Unsubscribe(courseID)
	_, err = svc.repo.SaveSubscriptions(ctx, usr)
	return err
}

func (svc *service) ClearOneTimePassword(ctx context.Context, id string) error {
	return svc.repo.ClearOneTimePassword(ctx, id)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return core.NewValidationError(errInvalidToken)
		}
		return err
	}
	if err = verifyToken(usr, rp.Token); err != nil {
		return core.NewValidationError(err)
	}
	if err = usr.SetPassword(rp.Password); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr, nil)
	return err
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

func (svc *service) sendPasswordResetMail(usr User) {
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password-reset",
		TemplateData: struct {
			User  User
			UID   string
			Token string
		}{usr, EncodeUID(usr), makeToken(usr)},
	}
	svc.mailSvc.SendMessages(msg)
}

func (svc *service) sendSubscriptionMail(usr User, sub Subscription) {
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
		Subject:      "Enrollment Confirmed",
		TemplateName: "subscription-confirmed",
		TemplateData: struct {
			User         User
			Subscription Subscription
			Expires      string
		}{usr, sub, sub.ExpiresAt.Format("Jan 2, 2006")},
	}
	svc.mailSvc.SendMessages(msg)
}

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// generatePassword returns a random credential in the style of the admin
// portal's auto-generated student passwords.
func generatePassword(n int) (string, error) {
	buf := make([]byte, n)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", errors.Wrap(err, "reading random bytes")
		}
		buf[i] = passwordAlphabet[idx.Int64()]
	}
	return string(buf), nil
}

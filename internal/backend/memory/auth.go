package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"backplane/internal/backend/domain"
	"backplane/internal/core/query"
	"backplane/internal/core/record"
	"backplane/internal/platform/clock"
	perr "backplane/internal/platform/errors"
	"backplane/internal/platform/logger"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
)

// sessionTTL is how long issued access tokens stay valid
const sessionTTL = 24 * time.Hour

// Auth satisfies domain.AuthPort. Users live in the record store's "user"
// table so sign-ups are visible to queries and realtime like any other
// record; passwords are held separately and never enter a record
type Auth struct {
	store  *Store
	clk    clock.Clock
	secret []byte
	log    *logger.Logger

	mu        sync.Mutex
	passwords map[string]string // email -> password
	session   *domain.Session
	nextID    int
	subs      map[int]func(domain.AuthChange)

	validate *validator.Validate
}

// NewAuth wires the auth engine over store, signing tokens with secret
func NewAuth(store *Store, clk clock.Clock, secret []byte) *Auth {
	if clk == nil {
		clk = clock.Real()
	}
	return &Auth{
		store:     store,
		clk:       clk,
		secret:    secret,
		log:       logger.Named("auth"),
		passwords: map[string]string{},
		subs:      map[int]func(domain.AuthChange){},
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// SignUp validates credentials, rejects duplicate email/username with
// Conflict, creates the user record, and signs the caller in
func (a *Auth) SignUp(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	if err := a.validateCreds(creds); err != nil {
		return nil, err
	}

	users := a.store.Snapshot("user")
	for _, u := range users {
		if query.Matches(u, query.Filter{Field: "email", Op: query.OpEq, Value: creds.Email}) {
			return nil, perr.WithField(perr.Conflictf("email %s already registered", creds.Email), "email")
		}
		if query.Matches(u, query.Filter{Field: "username", Op: query.OpEq, Value: creds.Username}) {
			return nil, perr.WithField(perr.Conflictf("username %s already taken", creds.Username), "username")
		}
	}

	rec, err := a.store.Create("user", record.Record{
		"email":    creds.Email,
		"username": creds.Username,
	})
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.passwords[creds.Email] = creds.Password
	a.mu.Unlock()

	user := domain.User{
		ID:        rec.ID(),
		Email:     creds.Email,
		Username:  creds.Username,
		CreatedAt: rec.CreatedAt(),
	}
	return a.startSession(user)
}

// SignIn checks the password and starts a session; wrong email or password
// both surface as Unauthorized
func (a *Auth) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	a.mu.Lock()
	stored, ok := a.passwords[email]
	a.mu.Unlock()
	if !ok || stored != password {
		return nil, perr.Unauthorizedf("invalid email or password")
	}

	matches := query.Apply(a.store.Snapshot("user"), query.Options{
		Where: []query.Filter{{Field: "email", Op: query.OpEq, Value: email}},
	})
	if len(matches) == 0 {
		return nil, perr.Unauthorizedf("invalid email or password")
	}
	u := matches[0]
	username, _ := u["username"].(string)
	user := domain.User{ID: u.ID(), Email: email, Username: username, CreatedAt: u.CreatedAt()}
	return a.startSession(user)
}

// SignOut ends the current session; signing out while signed out is a no-op
func (a *Auth) SignOut(ctx context.Context) error {
	a.mu.Lock()
	wasSignedIn := a.session != nil
	a.session = nil
	subs := a.subscribers()
	a.mu.Unlock()

	if wasSignedIn {
		for _, h := range subs {
			h(domain.AuthChange{Event: domain.AuthSignedOut})
		}
	}
	return nil
}

// ResetPassword validates the email shape; unknown addresses are accepted
// silently so the call cannot enumerate accounts
func (a *Auth) ResetPassword(ctx context.Context, email string) error {
	if err := a.validate.Var(email, "required,email"); err != nil {
		return perr.WithField(perr.Validationf("invalid email address"), "email")
	}
	a.mu.Lock()
	_, known := a.passwords[email]
	a.mu.Unlock()
	if !known {
		a.log.Debug().Str("email", email).Msg("reset requested for unknown email")
	}
	return nil
}

// CurrentUser returns the signed-in user or nil
func (a *Auth) CurrentUser(ctx context.Context) (*domain.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return nil, nil
	}
	u := a.session.User
	return &u, nil
}

// Session returns a copy of the current session or nil
func (a *Auth) Session(ctx context.Context) (*domain.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return nil, nil
	}
	s := *a.session
	return &s, nil
}

// OnAuthStateChange registers h for sign-in/sign-out transitions
func (a *Auth) OnAuthStateChange(h func(domain.AuthChange)) domain.Unsubscribe {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.subs[id] = h
	a.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			delete(a.subs, id)
		})
	}
}

func (a *Auth) startSession(user domain.User) (*domain.Session, error) {
	now := a.clk.Now()
	exp := now.Add(sessionTTL)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	})
	signed, err := tok.SignedString(a.secret)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "token signing failed")
	}

	sess := domain.Session{AccessToken: signed, User: user, ExpiresAt: exp}

	a.mu.Lock()
	a.session = &sess
	subs := a.subscribers()
	a.mu.Unlock()

	out := sess
	for _, h := range subs {
		h(domain.AuthChange{Event: domain.AuthSignedIn, Session: &out})
	}
	return &sess, nil
}

// VerifyToken parses and validates an access token issued by this engine,
// returning the subject user id
func (a *Auth) VerifyToken(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, perr.Unauthorizedf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.clk.Now))
	if err != nil || !parsed.Valid {
		return "", perr.Unauthorizedf("invalid access token")
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil {
		return "", perr.Unauthorizedf("invalid access token")
	}
	return sub, nil
}

func (a *Auth) validateCreds(creds domain.Credentials) error {
	err := a.validate.Struct(creds)
	if err == nil {
		return nil
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		f := verrs[0]
		field := strings.ToLower(f.Field())
		switch f.Tag() {
		case "email":
			return perr.WithField(perr.Validationf("invalid email format"), field)
		case "min":
			return perr.WithField(perr.Validationf("%s must be at least %s characters", field, f.Param()), field)
		default:
			return perr.WithField(perr.Validationf("%s is required", field), field)
		}
	}
	return perr.Validationf("invalid credentials")
}

func (a *Auth) subscribers() []func(domain.AuthChange) {
	hs := make([]func(domain.AuthChange), 0, len(a.subs))
	for _, h := range a.subs {
		hs = append(hs, h)
	}
	return hs
}

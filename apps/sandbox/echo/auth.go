package echoapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/gachaupg/shuletrack/core"
	"github.com/gachaupg/shuletrack/core/document"
	"github.com/gachaupg/shuletrack/core/resource"
	"github.com/gachaupg/shuletrack/core/user"
)

// AccountsResource holds the login accounts. It is not served by the resource API.
const AccountsResource = "accounts"

var jwtContextKey = "userToken"

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
	School       int    `json:"school,omitempty"`
}

func (c Claims) IsAdmin() bool {
	return c.Role == user.RoleAdmin
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    jwtContextKey,
		Claims:        new(Claims),
	}
}

func GetUserClaims(conf *core.Config, usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID.String(),
			Audience:  "Shuletrack Admin",
			ExpiresAt: now.Add(conf.Sandbox.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Email:        usr.Email,
		Role:         usr.Role,
		School:       usr.School.Int,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(jwtContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

type (
	authApi struct {
		conf     *core.Config
		deps     *Deps
		envelope envelope
	}

	LoginResponse struct {
		Token string     `json:"token"`
		User  *user.User `json:"user,omitempty"`
	}
)

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, conf *core.Config, deps *Deps, env envelope) {
	api := authApi{conf: conf, deps: deps, envelope: env}

	ag := g.Group("/auth")
	ag.POST("/login", api.login)
	ag.GET("/me", api.me, jwt)
	ag.POST("/refresh", api.refresh, jwt)
}

func (api *authApi) login(ctx echo.Context) error {
	var creds user.Credentials
	if err := ctx.Bind(&creds); err != nil {
		return errors.Wrap(err, "binding to Credentials")
	}
	creds.Email = core.CleanString(creds.Email, true /* lower */)
	if err := api.deps.Validate.Struct(creds); err != nil {
		return err
	}

	acct, doc, err := findAccount(ctx.Request().Context(), api.deps.Docs, creds.Email)
	if err != nil {
		if errors.Cause(err) == document.ErrNotFound {
			return errAuthenticationFailed
		}
		return errors.Wrap(err, "finding account by email")
	}
	if err = acct.CheckPassword(creds.Password); err != nil {
		return errAuthenticationFailed
	}
	if !acct.IsActive {
		return errAccountDeactivated
	}

	acct.LastLogin = null.TimeFrom(time.Now().UTC())
	doc.Data["last_login"] = acct.LastLogin.Time.Format(time.RFC3339)
	if _, err = api.deps.Docs.Update(ctx.Request().Context(), doc); err != nil {
		return errors.Wrap(err, "setting last_login")
	}

	token, err := GenerateToken(api.conf, GetUserClaims(api.conf, acct.User))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.envelope.one(LoginResponse{Token: token, User: &acct.User}))
}

func (api *authApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.Docs)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.envelope.one(usr))
}

func (api *authApi) refresh(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.deps.Docs)
	if err != nil {
		return err
	}

	// check if user is still active
	if !usr.IsActive {
		return errAccountDeactivated
	}
	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(api.conf.Sandbox.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return errRefreshExpired
	}

	token, err := GenerateToken(api.conf, GetUserClaims(api.conf, usr, claims.OrigIssuedAt))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.envelope.one(LoginResponse{Token: token}))
}

func getContextUser(ctx echo.Context, docs document.Repository) (user.User, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return user.User{}, errUnauthorized
	}
	doc, err := docs.Get(ctx.Request().Context(), AccountsResource, id)
	if err != nil {
		if errors.Cause(err) == document.ErrNotFound {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding account by ID")
	}

	var acct user.Account
	if err = doc.Decode(&acct); err != nil {
		return user.User{}, err
	}
	return acct.User, nil
}

func findAccount(ctx context.Context, docs document.Repository, email string) (user.Account, document.Document, error) {
	found, err := docs.Query(ctx, document.QueryFilter{Resource: AccountsResource, Match: map[string]string{"email": email}})
	if err != nil {
		return user.Account{}, document.Document{}, err
	}
	if len(found) == 0 {
		return user.Account{}, document.Document{}, document.ErrNotFound
	}

	var acct user.Account
	if err = found[0].Decode(&acct); err != nil {
		return user.Account{}, document.Document{}, err
	}
	return acct, found[0], nil
}

// NewAccount stores a login account with a hashed password.
func NewAccount(ctx context.Context, docs document.Repository, usr user.User, password string) (user.User, error) {
	usr.Email = core.CleanString(usr.Email, true)
	if _, _, err := findAccount(ctx, docs, usr.Email); err == nil {
		return user.User{}, core.NewValidationError(nil, core.FieldError{Field: "email", Error: "an account with this email already exists"})
	} else if errors.Cause(err) != document.ErrNotFound {
		return user.User{}, err
	}

	acct := user.Account{User: usr}
	if err := acct.SetPassword(password); err != nil {
		return user.User{}, errors.Wrap(err, "hashing password")
	}
	payload, err := toPayload(acct)
	if err != nil {
		return user.User{}, err
	}
	doc, err := docs.Create(ctx, document.FromJSON(AccountsResource, usr.School.Int, payload))
	if err != nil {
		return user.User{}, errors.Wrap(err, "creating account")
	}
	usr.ID = resource.IntID(int(doc.ID))
	return usr, nil
}

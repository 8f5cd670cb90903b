// Package app wires the client together: session, REST client, account
// directory, real-time channel and notifications. It owns their lifecycle
// and the session rules that span them.
package app

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/eaglebank/webclient/internal/accounts"
	"github.com/eaglebank/webclient/internal/apiclient"
	"github.com/eaglebank/webclient/internal/channel"
	"github.com/eaglebank/webclient/internal/config"
	"github.com/eaglebank/webclient/internal/notify"
	"github.com/eaglebank/webclient/internal/profile"
	"github.com/eaglebank/webclient/internal/session"
	"github.com/eaglebank/webclient/internal/storage"
	"github.com/eaglebank/webclient/internal/transfer"
	"github.com/eaglebank/webclient/shared/cqrs"
	"github.com/eaglebank/webclient/shared/models"
	"github.com/eaglebank/webclient/shared/validation"
)

// LogoutReason tells the OnLogout hook why the session ended.
type LogoutReason string

const (
	LogoutRequested    LogoutReason = "logout"
	LogoutUnauthorized LogoutReason = "unauthorized"
	LogoutExpired      LogoutReason = "expired"
)

const (
	MsgSignupDone           = "Sign up successful. Please check your email to verify your account."
	MsgVerified             = "Account verified successfully. You can now log in."
	MsgMissingVerifyToken   = "Verification token is missing"
	MsgLoginMissingToken    = "Login failed: no token returned"
	defaultGreetingFallback = "there"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrMissingToken     = errors.New(MsgMissingVerifyToken)
)

type Options struct {
	Logger *zap.SugaredLogger
	// Store overrides the storage backend selected by the configuration.
	Store     storage.Store
	ToastSink notify.ToastSink
	Widget    notify.VideoWidget
	// Transports default to WebSocket with long polling as the fallback.
	Transports []channel.Transport
	// OnLogout is the redirect hook, run after every logout.
	OnLogout func(reason LogoutReason)
}

// App is the process-wide client service. Create it with New, call Init
// once and Shutdown when done.
type App struct {
	Store     storage.Store
	Session   *session.Store
	API       *apiclient.Client
	Accounts  *accounts.Directory
	Hub       *notify.Hub
	Toasts    *notify.ToastCenter
	Notifier  *notify.Notifier
	Channel   *channel.Channel
	Transfers *transfer.Service
	Profile   *profile.Service

	cfg      *config.Config
	log      *zap.SugaredLogger
	watchdog *watchdog
	onLogout func(reason LogoutReason)
	unwatch  func()

	mu      sync.Mutex
	started bool
	closed  bool
}

func New(cfg *config.Config, opts Options) (*App, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	store := opts.Store
	if store == nil {
		var err error
		store, err = storage.New(cfg, log.Named("storage"))
		if err != nil {
			return nil, err
		}
	}

	sink := opts.ToastSink
	if sink == nil {
		sink = notify.NewWriterSink(io.Discard)
	}
	transports := opts.Transports
	if len(transports) == 0 {
		transports = []channel.Transport{channel.NewWebSocket(), channel.NewLongPoll(0)}
	}

	a := &App{
		Store:    store,
		cfg:      cfg,
		log:      log,
		watchdog: newWatchdog(log.Named("watchdog")),
		onLogout: opts.OnLogout,
	}

	a.Session = session.New(store, log.Named("session"))
	a.API = apiclient.New(cfg.APIBaseURL, cfg.RequestTimeout, a.Session, log.Named("api"))
	a.Hub = notify.NewHub(log.Named("hub"))
	a.Toasts = notify.NewToastCenter(sink, cfg.ToastWindow)
	a.Notifier = notify.NewNotifier(a.Hub, a.Toasts, opts.Widget, log.Named("notifier"))
	a.Accounts = accounts.NewDirectory(a.API, store, a.Toasts, log.Named("accounts"))
	a.Channel = channel.New(channel.Options{
		URL:         cfg.SocketURL,
		Attempts:    cfg.ReconnectAttempts,
		Delay:       cfg.ReconnectDelay,
		DialTimeout: cfg.DialTimeout,
		Transports:  transports,
		Logger:      log.Named("channel"),
	}, a.Session, a.Hub)
	a.Transfers = transfer.NewService(a.API, a.Accounts, a.Session, a.Toasts, log.Named("transfer"))
	a.Profile = profile.NewService(a.API, a.Session)

	a.API.OnUnauthorized(func(ctx context.Context) {
		a.forceLogout(ctx, LogoutUnauthorized)
	})
	a.unwatch = a.Session.Watch(session.WatcherFuncs{
		OnSet: func(ctx context.Context, _ string) {
			a.Channel.Refresh(ctx)
		},
		OnCleared: func(ctx context.Context) {
			a.Channel.Disconnect()
			a.Accounts.Reset(ctx)
			a.Profile.Clear()
		},
	})
	return a, nil
}

// Init restores the stored session. An expired or undecodable token is
// cleared together with the remembered account; a valid one connects the
// channel and resolves the current account. It also starts the session
// watchdog. Later calls are no-ops.
func (a *App) Init(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return nil
	}
	a.started = true
	a.mu.Unlock()

	a.Notifier.Start()

	if tok, ok := a.Session.Token(ctx); ok {
		if !a.Session.IsValid(tok) {
			a.log.Infow("stored session is no longer valid")
			a.forceLogout(ctx, LogoutExpired)
		} else {
			a.Channel.Connect(ctx)
			a.resolveAccount(ctx)
		}
	}

	if err := a.watchdog.schedule(a.cfg.SessionCheckSchedule, func() {
		a.CheckSession(context.Background())
	}); err != nil {
		return err
	}
	a.watchdog.start()
	return nil
}

// Shutdown stops the watchdog and the channel. It waits for a running
// watchdog job until ctx is done.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	stopped := a.watchdog.stop()
	a.Channel.Disconnect()
	a.Notifier.Stop()
	a.unwatch()

	var err error
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		err = ctx.Err()
	}
	if c, ok := a.Store.(io.Closer); ok {
		err = errors.Join(err, c.Close())
	}
	return err
}

// Signup registers a new user. The form is validated before any request.
func (a *App) Signup(ctx context.Context, form models.SignupForm) (string, error) {
	if errs := validation.Struct(form); errs != nil {
		return "", errs
	}
	resp := a.API.Signup(ctx, cqrs.SignupCommand{SignupForm: form})
	if err := apiclient.Check(resp); err != nil {
		return "", err
	}
	return messageOr(resp.Message, MsgSignupDone), nil
}

func (a *App) VerifyEmail(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	resp := a.API.VerifyAccount(ctx, cqrs.VerifyAccountCommand{Token: token})
	if err := apiclient.Check(resp); err != nil {
		return "", err
	}
	return messageOr(resp.Message, MsgVerified), nil
}

// Login authenticates, stores the token (which connects the channel) and
// resolves the current account. Having no account yet is not an error.
func (a *App) Login(ctx context.Context, email, password string) error {
	cmd := cqrs.LoginCommand{Email: strings.TrimSpace(email), Password: password}
	if errs := validation.Struct(cmd); errs != nil {
		return errs
	}

	resp := a.API.Login(ctx, cmd)
	if err := apiclient.Check(resp); err != nil {
		return err
	}
	if resp.Data == nil || resp.Data.AuthToken == "" {
		return &apiclient.Error{Message: MsgLoginMissingToken}
	}
	if err := a.Session.SetToken(ctx, resp.Data.AuthToken); err != nil {
		return err
	}

	if acc, ok := a.resolveAccount(ctx); ok {
		if err := a.Accounts.SetCurrentAccount(ctx, &acc); err != nil {
			a.log.Warnw("failed to remember current account", "error", err)
		}
	}
	return nil
}

// Logout ends the session at the user's request.
func (a *App) Logout(ctx context.Context) {
	a.forceLogout(ctx, LogoutRequested)
}

// Guard is the check in front of every protected view. A stored token that
// has expired ends the session.
func (a *App) Guard(ctx context.Context) error {
	tok, ok := a.Session.Token(ctx)
	if !ok {
		return ErrNotAuthenticated
	}
	if !a.Session.IsValid(tok) {
		a.forceLogout(ctx, LogoutExpired)
		return ErrNotAuthenticated
	}
	return nil
}

// CheckSession is the watchdog job. It reports whether the session was
// ended because the token expired.
func (a *App) CheckSession(ctx context.Context) bool {
	tok, ok := a.Session.Token(ctx)
	if !ok || a.Session.IsValid(tok) {
		return false
	}
	a.log.Infow("session expired")
	a.forceLogout(ctx, LogoutExpired)
	return true
}

// Dashboard is what the home view shows.
type Dashboard struct {
	Greeting  string
	Current   *models.Account
	Accounts  []models.Account
	Connected bool
	// Message is the last account loading error, if any.
	Message string
}

func (a *App) Dashboard(ctx context.Context) (Dashboard, error) {
	if err := a.Guard(ctx); err != nil {
		return Dashboard{}, err
	}
	if !a.Accounts.Resolved() {
		a.resolveAccount(ctx)
	}

	name := a.Session.FirstName(ctx)
	if name == "" {
		name = defaultGreetingFallback
	}
	d := Dashboard{
		Greeting:  "Welcome, " + name,
		Accounts:  a.Accounts.Accounts(),
		Connected: a.Hub.Connected(),
		Message:   a.Accounts.Err(),
	}
	if cur, ok := a.Accounts.Current(); ok {
		d.Current = &cur
	}
	return d, nil
}

func (a *App) resolveAccount(ctx context.Context) (models.Account, bool) {
	acc, err := a.Accounts.ResolveDefaultAccount(ctx)
	switch {
	case err == nil:
		return acc, true
	case errors.Is(err, accounts.ErrNoAccount), errors.Is(err, accounts.ErrSessionReset):
	default:
		a.log.Warnw("failed to resolve current account", "error", err)
	}
	return models.Account{}, false
}

// forceLogout disconnects before clearing the token so the channel cannot
// reconnect with it, then drops every piece of session state.
func (a *App) forceLogout(ctx context.Context, reason LogoutReason) {
	a.Channel.Disconnect()
	if err := a.Session.ClearToken(ctx); err != nil {
		a.log.Warnw("failed to clear session token", "error", err)
	}
	a.Accounts.Reset(ctx)
	a.Profile.Clear()
	a.log.Infow("logged out", "reason", string(reason))
	if a.onLogout != nil {
		a.onLogout(reason)
	}
}

func messageOr(msg, fallback string) string {
	if strings.TrimSpace(msg) == "" {
		return fallback
	}
	return msg
}

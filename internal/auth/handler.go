package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/civitrack/civitrack/internal/shared"
	"github.com/civitrack/civitrack/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Get("/register", h.showRegister)
	r.Post("/register", h.handleRegister)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
	Next   string
}

type registerForm struct {
	Username string
	Email    string
}

type registerPageData struct {
	Form   registerForm
	Errors map[string]string
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       sess.PopFlash(),
		CurrentPath: r.URL.Path,
		Username:    sess.Username(),
		Data:        data,
	}
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render auth page", slog.Any("error", err), slog.String("template", template))
	}
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if shared.SessionFromContext(r.Context()).UserID() > 0 {
		http.Redirect(w, r, "/projects", http.StatusSeeOther)
		return
	}
	data := loginPageData{Errors: map[string]string{}, Next: safeNext(r.URL.Query().Get("next"))}
	h.render(w, r, "pages/login.html", "Login", data, http.StatusOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess.UserID() > 0 {
		http.Redirect(w, r, "/projects", http.StatusSeeOther)
		return
	}

	form := loginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	next := safeNext(r.PostFormValue("next"))
	errs := validationMessages(h.validator.Struct(form))

	if len(errs) == 0 {
		user, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
		switch {
		case err == nil:
			h.login(w, r, sess, user, next)
			return
		case errors.Is(err, ErrUserNotFound):
			errs["general"] = "User not found!"
		case errors.Is(err, shared.ErrInvalidCredentials):
			errs["general"] = shared.UserSafeMessage(err)
		default:
			h.logger.Error("authenticate", slog.Any("error", err))
			errs["general"] = shared.UserSafeMessage(err)
		}
	}

	form.Password = ""
	h.render(w, r, "pages/login.html", "Login", loginPageData{Form: form, Errors: errs, Next: next}, http.StatusBadRequest)
}

// login moves the visitor onto a fresh session id before attaching the user.
func (h *Handler) login(w http.ResponseWriter, r *http.Request, sess *shared.Session, user *User, next string) {
	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.sessionManager.Renew(sess)
	sess.Delete(shared.CSRFSessionKey)
	sess.SetUser(user.ID, user.Username)

	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}
	h.logger.Info("user logged in", slog.Int64("user_id", user.ID))
	if next == "" {
		next = "/welcome"
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (h *Handler) showRegister(w http.ResponseWriter, r *http.Request) {
	if shared.SessionFromContext(r.Context()).UserID() > 0 {
		http.Redirect(w, r, "/projects", http.StatusSeeOther)
		return
	}
	h.render(w, r, "pages/register.html", "Register", registerPageData{Errors: map[string]string{}}, http.StatusOK)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess.UserID() > 0 {
		http.Redirect(w, r, "/projects", http.StatusSeeOther)
		return
	}
	in := RegisterInput{
		Username:  r.PostFormValue("username"),
		Email:     r.PostFormValue("email"),
		Password1: r.PostFormValue("password1"),
		Password2: r.PostFormValue("password2"),
	}
	user, err := h.service.Register(r.Context(), in)
	if err == nil {
		h.logger.Info("user registered", slog.Int64("user_id", user.ID))
		if sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Account created successfully! You can now login."})
		}
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}

	errs := validationMessages(err)
	if len(errs) == 0 {
		if !errors.Is(err, shared.ErrDuplicate) {
			h.logger.Error("register user", slog.Any("error", err))
		}
		errs["general"] = shared.UserSafeMessage(err)
	}
	data := registerPageData{
		Form:   registerForm{Username: strings.TrimSpace(in.Username), Email: strings.TrimSpace(in.Email)},
		Errors: errs,
	}
	h.render(w, r, "pages/register.html", "Register", data, http.StatusBadRequest)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		sess.ClearUser()
		sess.Delete(shared.CSRFSessionKey)
		h.sessionManager.Renew(sess)
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Logged out successfully!"})
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

// ShowWelcome renders the landing page shown after login.
func (h *Handler) ShowWelcome(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/welcome.html", "Welcome", nil, http.StatusOK)
}

// validationMessages flattens validator failures into per-field messages.
func validationMessages(err error) map[string]string {
	out := map[string]string{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return out
	}
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			out[fe.Field()] = "This field is required."
		case "email":
			out[fe.Field()] = "Enter a valid email address."
		case "min":
			out[fe.Field()] = "This password is too short. It must contain at least " + fe.Param() + " characters."
		case "eqfield":
			out[fe.Field()] = "The two password fields didn't match."
		case "max":
			out[fe.Field()] = "Ensure this value has at most " + fe.Param() + " characters."
		default:
			out[fe.Field()] = "Enter a valid value."
		}
	}
	return out
}

// safeNext only accepts local absolute paths.
func safeNext(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return ""
	}
	return raw
}

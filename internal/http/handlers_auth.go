package http

import (
	"errors"
	"net/http"

	"wallet/internal/auth"
	"wallet/internal/log"
)

type loginPage struct {
	Form  auth.LoginForm
	Error string
}

type registerPage struct {
	Form  auth.RegisterForm
	Error string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, NewHTMXResponse(), "login.html", loginPage{})
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, NewHTMXResponse(), "register.html", registerPage{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.render(w, r, NewHTMXResponse().Status(http.StatusBadRequest), "login_form", loginPage{Error: "Invalid request"})
		return
	}
	form := auth.LoginForm{Username: p.Get("username"), Password: p.Get("password")}

	dest, err := s.navigator.Login(r.Context(), form)
	if err != nil {
		// Passwords are never echoed back into the form.
		form.Password = ""
		s.authFailed(w, r, "login", err, "login.html", "login_form", loginPage{Form: form})
		return
	}
	s.navigate(w, r, dest)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.render(w, r, NewHTMXResponse().Status(http.StatusBadRequest), "register_form", registerPage{Error: "Invalid request"})
		return
	}
	form := auth.RegisterForm{
		Username:        p.Get("username"),
		Email:           p.Get("email"),
		Password:        p.Get("password"),
		ConfirmPassword: p.Get("confirmPassword"),
	}

	dest, err := s.navigator.Register(r.Context(), form)
	if err != nil {
		form.Password, form.ConfirmPassword = "", ""
		s.authFailed(w, r, "register", err, "register.html", "register_form", registerPage{Form: form})
		return
	}
	s.navigate(w, r, dest)
}

// authFailed shows a validation message under the form. A cancelled wait
// means the client left; nothing is written for it.
func (s *Server) authFailed(w http.ResponseWriter, r *http.Request, flow string, err error, page, partial string, data any) {
	var verr *auth.ValidationError
	if !errors.As(err, &verr) {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Auth request abandoned",
			log.FieldOperation, flow, log.FieldError, err.Error())
		return
	}

	switch d := data.(type) {
	case loginPage:
		d.Error = verr.Message
		data = d
	case registerPage:
		d.Error = verr.Message
		data = d
	}

	if isHTMX(r) {
		s.render(w, r, NewHTMXResponse(), partial, data)
		return
	}
	s.render(w, r, NewHTMXResponse().Status(http.StatusUnprocessableEntity), page, data)
}

func (s *Server) navigate(w http.ResponseWriter, r *http.Request, dest string) {
	if isHTMX(r) {
		NewHTMXResponse().Redirect(dest).Write(w)
		return
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

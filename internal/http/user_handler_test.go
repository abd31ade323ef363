package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const (
	testPhone    = "09123456789"
	testEmail    = "user@example.com"
	testPassword = "s3cret-pass"
)

func refreshCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == refreshCookieName {
			return c
		}
	}
	t.Fatalf("expected %s cookie", refreshCookieName)
	return nil
}

func (a *testApp) register(t *testing.T) string {
	t.Helper()
	rec := a.do(http.MethodPost, "/accounts/register", map[string]string{
		"email":        testEmail,
		"phone_number": testPhone,
		"first_name":   "Sara",
		"password":     testPassword,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["phone_number"] != "+989123456789" {
		t.Fatalf("expected canonical phone, got %v", body["phone_number"])
	}
	id, _ := body["register_id"].(string)
	if id == "" {
		t.Fatalf("expected register_id")
	}
	return id
}

// activeSession registra, verifica y devuelve el access token y la cookie de refresh.
func (a *testApp) activeSession(t *testing.T) (string, *http.Cookie) {
	t.Helper()
	id := a.register(t)
	rec := a.do(http.MethodPost, "/accounts/otp/verify", map[string]string{
		"register_id": id,
		"otp_code":    a.sms.code(),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	access, _ := decodeBody(t, rec)["access_token"].(string)
	if access == "" {
		t.Fatalf("expected access token")
	}
	return access, refreshCookie(t, rec)
}

func TestRegisterVerifyLoginFlow(t *testing.T) {
	app := newTestApp(t)
	_, cookie := app.activeSession(t)
	if !cookie.HttpOnly || cookie.Value == "" {
		t.Fatalf("expected http-only refresh cookie, got %+v", cookie)
	}

	for _, username := range []string{testPhone, "+989123456789", "USER@example.com"} {
		rec := app.do(http.MethodPost, "/accounts/login", map[string]string{
			"username": username,
			"password": testPassword,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("login %q: expected 200, got %d: %s", username, rec.Code, rec.Body.String())
		}
		access, _ := decodeBody(t, rec)["access_token"].(string)

		profile := app.do(http.MethodGet, "/accounts/profile", nil, "Authorization", "Bearer "+access)
		if profile.Code != http.StatusOK {
			t.Fatalf("profile: expected 200, got %d", profile.Code)
		}
		body := decodeBody(t, profile)
		if body["email"] != testEmail || body["is_active"] != true || body["first_name"] != "Sara" {
			t.Fatalf("unexpected profile %v", body)
		}
	}
}

func TestRegisterRejectsBadInput(t *testing.T) {
	app := newTestApp(t)
	app.register(t)

	cases := []struct {
		name string
		body map[string]string
		want int
	}{
		{name: "missing password", body: map[string]string{"email": "a@example.com", "phone_number": "09351234567"}, want: http.StatusBadRequest},
		{name: "bad phone", body: map[string]string{"email": "a@example.com", "phone_number": "123", "password": testPassword}, want: http.StatusBadRequest},
		{name: "bad email", body: map[string]string{"email": "nope", "phone_number": "09351234567", "password": testPassword}, want: http.StatusBadRequest},
		{name: "short password", body: map[string]string{"email": "a@example.com", "phone_number": "09351234567", "password": "short"}, want: http.StatusBadRequest},
		{name: "duplicate", body: map[string]string{"email": testEmail, "phone_number": testPhone, "password": testPassword}, want: http.StatusConflict},
	}
	for _, tc := range cases {
		rec := app.do(http.MethodPost, "/accounts/register", tc.body)
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d: %s", tc.name, tc.want, rec.Code, rec.Body.String())
		}
	}
}

func TestLoginInactiveAccountSendsNewOTP(t *testing.T) {
	app := newTestApp(t)
	first := app.register(t)

	rec := app.do(http.MethodPost, "/accounts/login", map[string]string{
		"username": testPhone,
		"password": testPassword,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	id, _ := decodeBody(t, rec)["register_id"].(string)
	if id == "" || id == first {
		t.Fatalf("expected a fresh register_id, got %q", id)
	}

	verify := app.do(http.MethodPost, "/accounts/otp/verify", map[string]string{
		"register_id": id,
		"otp_code":    app.sms.code(),
	})
	if verify.Code != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d", verify.Code)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	app := newTestApp(t)
	app.activeSession(t)

	for _, req := range []map[string]string{
		{"username": testPhone, "password": "wrong-password"},
		{"username": "09351234567", "password": testPassword},
		{"username": "other@example.com", "password": testPassword},
	} {
		rec := app.do(http.MethodPost, "/accounts/login", req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%v: expected 401, got %d", req, rec.Code)
		}
	}
}

func TestVerifyOTPWrongCode(t *testing.T) {
	app := newTestApp(t)
	id := app.register(t)
	wrong := "000000"
	if app.sms.code() == wrong {
		wrong = "111111"
	}

	rec := app.do(http.MethodPost, "/accounts/otp/verify", map[string]string{
		"register_id": id,
		"otp_code":    wrong,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRefreshOTPTooEarly(t *testing.T) {
	app := newTestApp(t)
	id := app.register(t)

	rec := app.do(http.MethodPost, "/accounts/otp/refresh", map[string]string{"register_id": id})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	if retry, _ := decodeBody(t, rec)["retry_after"].(float64); retry <= 0 || retry > 120 {
		t.Fatalf("unexpected retry_after %v", retry)
	}
}

func TestRegisterReportsDeliveryFailure(t *testing.T) {
	app := newTestApp(t)
	app.sms.err = errors.New("gateway down")

	rec := app.do(http.MethodPost, "/accounts/register", map[string]string{
		"email":        testEmail,
		"phone_number": testPhone,
		"password":     testPassword,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if decodeBody(t, rec)["warning"] == nil {
		t.Fatalf("expected delivery warning")
	}
}

func TestTokenRefreshRotatesAndLogoutRevokes(t *testing.T) {
	app := newTestApp(t)
	access, cookie := app.activeSession(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/accounts/token/refresh", nil)
	req.AddCookie(cookie)
	app.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if token, _ := decodeBody(t, rec)["access_token"].(string); token == "" {
		t.Fatalf("expected new access token")
	}
	rotated := refreshCookie(t, rec)

	reused := app.do(http.MethodPost, "/accounts/token/refresh", map[string]string{"refresh": cookie.Value})
	if reused.Code != http.StatusUnauthorized {
		t.Fatalf("expected rotated token rejected, got %d", reused.Code)
	}

	logout := app.do(http.MethodPost, "/accounts/logout", map[string]string{"refresh": rotated.Value}, "Authorization", "Bearer "+access)
	if logout.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", logout.Code)
	}
	if cleared := refreshCookie(t, logout); cleared.MaxAge >= 0 {
		t.Fatalf("expected cleared cookie, got %+v", cleared)
	}

	after := app.do(http.MethodPost, "/accounts/token/refresh", map[string]string{"refresh": rotated.Value})
	if after.Code != http.StatusUnauthorized {
		t.Fatalf("expected revoked token rejected, got %d", after.Code)
	}
}

func TestVerifyToken(t *testing.T) {
	app := newTestApp(t)
	access, _ := app.activeSession(t)

	if rec := app.do(http.MethodPost, "/accounts/token/verify", map[string]string{"token": access}); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := app.do(http.MethodPost, "/accounts/token/verify", map[string]string{"token": "garbage"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	app := newTestApp(t)
	app.activeSession(t)

	unknown := app.do(http.MethodPost, "/accounts/password/reset/request", map[string]string{"phone_number": "09351234567"})
	if unknown.Code != http.StatusOK {
		t.Fatalf("unknown phone: expected 200, got %d", unknown.Code)
	}
	if id, _ := decodeBody(t, unknown)["register_id"].(string); id == "" {
		t.Fatalf("unknown phone: expected register_id in response")
	}

	rec := app.do(http.MethodPost, "/accounts/password/reset/request", map[string]string{"phone_number": testPhone})
	if rec.Code != http.StatusOK {
		t.Fatalf("request: expected 200, got %d", rec.Code)
	}
	id, _ := decodeBody(t, rec)["register_id"].(string)

	early := app.do(http.MethodPost, "/accounts/password/reset", map[string]string{"register_id": id, "new_password": "brand-new-pass"})
	if early.Code != http.StatusBadRequest {
		t.Fatalf("unverified reset: expected 400, got %d", early.Code)
	}

	verify := app.do(http.MethodPost, "/accounts/password/reset/verify", map[string]string{"register_id": id, "otp_code": app.sms.code()})
	if verify.Code != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d", verify.Code)
	}
	reset := app.do(http.MethodPost, "/accounts/password/reset", map[string]string{"register_id": id, "new_password": "brand-new-pass"})
	if reset.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d: %s", reset.Code, reset.Body.String())
	}

	login := app.do(http.MethodPost, "/accounts/login", map[string]string{"username": testPhone, "password": "brand-new-pass"})
	if login.Code != http.StatusOK {
		t.Fatalf("login with new password: expected 200, got %d", login.Code)
	}
}

func TestChangePasswordAndProfile(t *testing.T) {
	app := newTestApp(t)
	access, _ := app.activeSession(t)
	auth := []string{"Authorization", "Bearer " + access}

	if rec := app.do(http.MethodPost, "/accounts/password/change", map[string]string{"old_password": testPassword, "new_password": "changed-pass"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated: expected 401, got %d", rec.Code)
	}
	if rec := app.do(http.MethodPost, "/accounts/password/change", map[string]string{"old_password": "wrong-pass", "new_password": "changed-pass"}, auth...); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong old password: expected 401, got %d", rec.Code)
	}
	if rec := app.do(http.MethodPost, "/accounts/password/change", map[string]string{"old_password": testPassword, "new_password": "changed-pass"}, auth...); rec.Code != http.StatusOK {
		t.Fatalf("change: expected 200, got %d", rec.Code)
	}

	rec := app.do(http.MethodPost, "/accounts/profile", map[string]string{"first_name": " Neda ", "last_name": "Karimi"}, auth...)
	if rec.Code != http.StatusOK {
		t.Fatalf("update profile: expected 200, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["first_name"] != "Neda" || body["last_name"] != "Karimi" {
		t.Fatalf("unexpected profile %v", body)
	}
}

func TestChangeAndEditPhoneNumber(t *testing.T) {
	app := newTestApp(t)
	access, _ := app.activeSession(t)

	rec := app.do(http.MethodPost, "/accounts/number/change", map[string]string{"new_phone_number": "09351234567"}, "Authorization", "Bearer "+access)
	if rec.Code != http.StatusOK {
		t.Fatalf("change number: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// La cuenta queda inactiva hasta verificar, asi que se puede corregir el numero.
	edit := app.do(http.MethodPost, "/accounts/number/edit", map[string]string{
		"old_phone_number": "09351234567",
		"new_phone_number": "09121112233",
		"request_type":     "phone_verification",
	})
	if edit.Code != http.StatusOK {
		t.Fatalf("edit number: expected 200, got %d: %s", edit.Code, edit.Body.String())
	}
	body := decodeBody(t, edit)
	if body["phone_number"] != "+989121112233" {
		t.Fatalf("unexpected phone %v", body["phone_number"])
	}

	verify := app.do(http.MethodPost, "/accounts/otp/verify", map[string]string{
		"register_id": body["register_id"].(string),
		"otp_code":    app.sms.code(),
	})
	if verify.Code != http.StatusOK {
		t.Fatalf("verify new number: expected 200, got %d", verify.Code)
	}

	active := app.do(http.MethodPost, "/accounts/number/edit", map[string]string{
		"old_phone_number": "09121112233",
		"new_phone_number": "09351234567",
		"request_type":     "phone_verification",
	})
	if active.Code != http.StatusConflict {
		t.Fatalf("edit active account: expected 409, got %d", active.Code)
	}
}

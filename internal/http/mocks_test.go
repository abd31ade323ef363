package http

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/funlifew/Push-Notification-Server/internal/domain"
	"github.com/funlifew/Push-Notification-Server/internal/phone"
	"github.com/funlifew/Push-Notification-Server/internal/repository"
)

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]domain.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.PhoneNumber == user.PhoneNumber || u.Email == user.Email {
			return repository.ErrConflict
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.ID == id })
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Email == email })
}

func (m *mockUserRepo) GetByPhone(_ context.Context, phoneNumber string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.PhoneNumber.String() == phoneNumber })
}

func (m *mockUserRepo) SetActive(_ context.Context, id string, active bool) error {
	return m.update(id, func(u *domain.User) { u.IsActive = active })
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return m.update(id, func(u *domain.User) { u.PasswordHash = passwordHash })
}

func (m *mockUserRepo) UpdatePhone(_ context.Context, id, phoneNumber string) error {
	return m.update(id, func(u *domain.User) {
		u.PhoneNumber = phone.FromStored(phoneNumber)
		u.IsActive = false
	})
}

func (m *mockUserRepo) UpdateProfile(_ context.Context, id, firstName, lastName string) error {
	return m.update(id, func(u *domain.User) {
		u.FirstName = firstName
		u.LastName = lastName
	})
}

func (m *mockUserRepo) SetSuperuser(_ context.Context, id string, superuser bool) error {
	return m.update(id, func(u *domain.User) {
		u.IsSuperuser = superuser
		u.IsStaff = superuser
	})
}

func (m *mockUserRepo) find(match func(domain.User) bool) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *mockUserRepo) update(id string, fn func(*domain.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	fn(&user)
	m.users[id] = user
	return nil
}

type mockOTPRepo struct {
	mu   sync.Mutex
	otps map[string]domain.OTPRequest
}

func newMockOTPRepo() *mockOTPRepo {
	return &mockOTPRepo{otps: make(map[string]domain.OTPRequest)}
}

func (m *mockOTPRepo) Create(_ context.Context, otp domain.OTPRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.otps[otp.RegisterID] = otp
	return nil
}

func (m *mockOTPRepo) GetByRegisterID(_ context.Context, registerID string) (domain.OTPRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	otp, ok := m.otps[registerID]
	if !ok {
		return domain.OTPRequest{}, pgx.ErrNoRows
	}
	return otp, nil
}

func (m *mockOTPRepo) Update(_ context.Context, registerID string, fn func(*domain.OTPRequest) error) (domain.OTPRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	otp, ok := m.otps[registerID]
	if !ok {
		return domain.OTPRequest{}, pgx.ErrNoRows
	}
	if err := fn(&otp); err != nil {
		return domain.OTPRequest{}, err
	}
	m.otps[registerID] = otp
	return otp, nil
}

func (m *mockOTPRepo) ReplacePending(_ context.Context, otp domain.OTPRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, o := range m.otps {
		if o.PhoneNumber == otp.PhoneNumber && o.RequestType == otp.RequestType && !o.Verified {
			delete(m.otps, id)
		}
	}
	m.otps[otp.RegisterID] = otp
	return nil
}

func (m *mockOTPRepo) DeleteByPhone(_ context.Context, phoneNumber string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, otp := range m.otps {
		if otp.PhoneNumber.String() == phoneNumber {
			delete(m.otps, id)
		}
	}
	return nil
}

func (m *mockOTPRepo) Delete(_ context.Context, registerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.otps, registerID)
	return nil
}

type mockSMSSender struct {
	mu       sync.Mutex
	lastCode string
	err      error
}

func (m *mockSMSSender) SendOTP(_ context.Context, _ string, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCode = code
	return m.err
}

func (m *mockSMSSender) code() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCode
}

type mockAdminTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]domain.AdminToken
}

func newMockAdminTokenRepo() *mockAdminTokenRepo {
	return &mockAdminTokenRepo{tokens: make(map[string]domain.AdminToken)}
}

func (m *mockAdminTokenRepo) Create(_ context.Context, token domain.AdminToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.Token] = token
	return nil
}

func (m *mockAdminTokenRepo) Exists(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tokens[token]
	return ok, nil
}

type mockDispatcher struct {
	mu       sync.Mutex
	payloads map[string][]byte
	failing  map[string]bool
}

func newMockDispatcher(failing ...string) *mockDispatcher {
	d := &mockDispatcher{payloads: make(map[string][]byte), failing: make(map[string]bool)}
	for _, endpoint := range failing {
		d.failing[endpoint] = true
	}
	return d
}

func (m *mockDispatcher) Send(_ context.Context, sub domain.PushSubscription, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing[sub.Endpoint] {
		return errors.New("endpoint gone")
	}
	m.payloads[sub.Endpoint] = payload
	return nil
}

func (m *mockDispatcher) payload(endpoint string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.payloads[endpoint]
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error { return p.err }

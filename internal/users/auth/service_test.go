// Copyright (c) 2026 TOC Simulator. All rights reserved.
// Author: dev@tocsimulator.com

package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tocsimulator/tocsim/internal/platform/apperr"
	"github.com/tocsimulator/tocsim/internal/platform/sec"
	"github.com/tocsimulator/tocsim/internal/users/auth"
)

// # In-Memory Fakes

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*auth.Account
	codes    *fakeCodeRepo
}

func newFakeAccountRepo(codes *fakeCodeRepo) *fakeAccountRepo {
	return &fakeAccountRepo{accounts: make(map[string]*auth.Account), codes: codes}
}

func (repo *fakeAccountRepo) FindByID(_ context.Context, id string) (*auth.Account, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if account, ok := repo.accounts[id]; ok {
		copied := *account
		return &copied, nil
	}
	return nil, apperr.NotFound("Account")
}

func (repo *fakeAccountRepo) FindByEmail(_ context.Context, email string) (*auth.Account, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, account := range repo.accounts {
		if account.Email == email {
			copied := *account
			return &copied, nil
		}
	}
	return nil, apperr.NotFound("Account")
}

func (repo *fakeAccountRepo) Create(_ context.Context, account *auth.Account) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, existing := range repo.accounts {
		if existing.Email == account.Email {
			return apperr.Conflict("Email is already registered")
		}
	}
	copied := *account
	repo.accounts[account.ID] = &copied
	return nil
}

func (repo *fakeAccountRepo) Activate(_ context.Context, accountID string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	account, ok := repo.accounts[accountID]
	if !ok {
		return apperr.NotFound("Account")
	}
	account.IsActive = true
	account.IsEmailVerified = true
	return nil
}

func (repo *fakeAccountRepo) Delete(_ context.Context, accountID string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	delete(repo.accounts, accountID)
	repo.codes.deleteByAccount(accountID)
	return nil
}

type fakeCodeRepo struct {
	mu    sync.Mutex
	codes []*auth.VerificationCode
}

func (repo *fakeCodeRepo) Create(_ context.Context, code *auth.VerificationCode) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	copied := *code
	repo.codes = append(repo.codes, &copied)
	return nil
}

// Consume mirrors the production CAS: the newest matching unused, unexpired
// code wins, everything else is the same conflated rejection.
func (repo *fakeCodeRepo) Consume(_ context.Context, accountID, code string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	var newest *auth.VerificationCode
	for _, candidate := range repo.codes {
		if candidate.AccountID != accountID || candidate.Code != code {
			continue
		}
		if candidate.IsUsed || candidate.IsExpired(time.Now()) {
			continue
		}
		if newest == nil || candidate.CreatedAt.After(newest.CreatedAt) {
			newest = candidate
		}
	}

	if newest == nil {
		return apperr.BadRequest("INVALID_CODE", "Invalid or expired verification code")
	}

	newest.IsUsed = true
	return nil
}

func (repo *fakeCodeRepo) deleteByAccount(accountID string) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	kept := repo.codes[:0]
	for _, code := range repo.codes {
		if code.AccountID != accountID {
			kept = append(kept, code)
		}
	}
	repo.codes = kept
}

type fakeTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: make(map[string]string)}
}

func (repo *fakeTokenRepo) Set(_ context.Context, tokenHash, accountID string, _ time.Duration) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.tokens[tokenHash] = accountID
	return nil
}

func (repo *fakeTokenRepo) Get(_ context.Context, tokenHash string) (string, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if accountID, ok := repo.tokens[tokenHash]; ok {
		return accountID, nil
	}
	return "", apperr.Unauthorized("Refresh token is invalid or expired")
}

func (repo *fakeTokenRepo) Delete(_ context.Context, tokenHash string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	delete(repo.tokens, tokenHash)
	return nil
}

type stubTokenProvider struct{}

func (stubTokenProvider) GenerateAccessToken(userID, _, _ string, _ time.Duration) (string, error) {
	return "access-" + userID, nil
}

type stubNotifier struct {
	mu       sync.Mutex
	fail     bool
	sentTo   []string
	lastCode string
}

func (notifier *stubNotifier) SendVerification(_ context.Context, email, _, code string) bool {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if notifier.fail {
		return false
	}
	notifier.sentTo = append(notifier.sentTo, email)
	notifier.lastCode = code
	return true
}

// # Fixture

type fixture struct {
	service  *auth.Service
	accounts *fakeAccountRepo
	codes    *fakeCodeRepo
	tokens   *fakeTokenRepo
	notifier *stubNotifier
}

func newFixture() *fixture {
	codes := &fakeCodeRepo{}
	accounts := newFakeAccountRepo(codes)
	tokens := newFakeTokenRepo()
	notifier := &stubNotifier{}

	return &fixture{
		service:  auth.NewService(accounts, codes, tokens, stubTokenProvider{}, notifier),
		accounts: accounts,
		codes:    codes,
		tokens:   tokens,
		notifier: notifier,
	}
}

func registerInput() auth.RegisterInput {
	return auth.RegisterInput{
		Email:     "ada@university.edu",
		Username:  "ada",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Password:  "analytical-engine",
	}
}

// # Registration

/*
TestRegister_CreatesInactiveAccount verifies that registration never produces
an active account and that a code is delivered.
*/
func TestRegister_CreatesInactiveAccount(t *testing.T) {
	fx := newFixture()

	account, err := fx.service.Register(context.Background(), registerInput())
	require.NoError(t, err)

	assert.False(t, account.IsActive)
	assert.False(t, account.IsEmailVerified)
	assert.NotEqual(t, "analytical-engine", account.PasswordHash)

	require.Len(t, fx.notifier.sentTo, 1)
	assert.Equal(t, "ada@university.edu", fx.notifier.sentTo[0])
	assert.Len(t, fx.notifier.lastCode, auth.CodeLength)
}

/*
TestRegister_DuplicateEmail verifies the Conflict on re-registration of a
live account.
*/
func TestRegister_DuplicateEmail(t *testing.T) {
	fx := newFixture()

	_, err := fx.service.Register(context.Background(), registerInput())
	require.NoError(t, err)

	_, err = fx.service.Register(context.Background(), registerInput())
	require.Error(t, err)

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "CONFLICT", ae.Code)
}

/*
TestRegister_DeliveryFailureRollsBack verifies the compensating delete: a
failed email leaves no account behind, and the same email can immediately
register again.
*/
func TestRegister_DeliveryFailureRollsBack(t *testing.T) {
	fx := newFixture()
	fx.notifier.fail = true

	_, err := fx.service.Register(context.Background(), registerInput())
	require.Error(t, err)

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "DELIVERY_FAILED", ae.Code)

	// No orphaned account or codes.
	_, err = fx.accounts.FindByEmail(context.Background(), "ada@university.edu")
	assert.Error(t, err)
	assert.Empty(t, fx.codes.codes)

	// The same email works once delivery recovers.
	fx.notifier.fail = false
	_, err = fx.service.Register(context.Background(), registerInput())
	assert.NoError(t, err)
}

// # Verification

/*
TestVerifyEmail_ActivatesAndIssuesCredential covers the happy path: code
consumed, both flags flipped, token pair issued.
*/
func TestVerifyEmail_ActivatesAndIssuesCredential(t *testing.T) {
	fx := newFixture()

	_, err := fx.service.Register(context.Background(), registerInput())
	require.NoError(t, err)

	credential, err := fx.service.VerifyEmail(context.Background(), "ada@university.edu", fx.notifier.lastCode)
	require.NoError(t, err)

	assert.NotEmpty(t, credential.AccessToken)
	assert.NotEmpty(t, credential.RefreshToken)
	assert.True(t, credential.Account.IsActive)
	assert.True(t, credential.Account.IsEmailVerified)

	// The refresh token is stored hashed, never raw.
	_, err = fx.tokens.Get(context.Background(), sec.HashToken(credential.RefreshToken))
	assert.NoError(t, err)
	_, err = fx.tokens.Get(context.Background(), credential.RefreshToken)
	assert.Error(t, err)
}

/*
TestVerifyEmail_UnknownEmail verifies the 404 shape for a missing account:
the resource name is composed once, never doubled.
*/
func TestVerifyEmail_UnknownEmail(t *testing.T) {
	fx := newFixture()

	_, err := fx.service.VerifyEmail(context.Background(), "ghost@university.edu", "ABC234")
	require.Error(t, err)

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "NOT_FOUND", ae.Code)
	assert.Equal(t, "Account not found", ae.Message)
}

/*
TestVerifyEmail_WrongCode verifies rejection without revealing why.
*/
func TestVerifyEmail_WrongCode(t *testing.T) {
	fx := newFixture()

	_, err := fx.service.Register(context.Background(), registerInput())
	require.NoError(t, err)

	_, err = fx.service.VerifyEmail(context.Background(), "ada@university.edu", "WRONG9")
	require.Error(t, err)

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "INVALID_CODE", ae.Code)

	// Account stays inactive.
	account, err := fx.accounts.FindByEmail(context.Background(), "ada@university.edu")
	require.NoError(t, err)
	assert.False(t, account.IsActive)
}

/*
TestVerifyEmail_ExpiredCode verifies that an out-of-window code is rejected
with the same conflated error as a wrong one.
*/
func TestVerifyEmail_ExpiredCode(t *testing.T) {
	fx := newFixture()

	account := &auth.Account{ID: "account-1", Email: "ada@university.edu"}
	require.NoError(t, fx.accounts.Create(context.Background(), account))

	expired := &auth.VerificationCode{
		ID:        "code-1",
		AccountID: "account-1",
		Code:      "ABC234",
		ExpiresAt: time.Now().Add(-time.Minute),
		CreatedAt: time.Now().Add(-11 * time.Minute),
	}
	require.NoError(t, fx.codes.Create(context.Background(), expired))

	_, err := fx.service.VerifyEmail(context.Background(), "ada@university.edu", "ABC234")
	require.Error(t, err)

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "INVALID_CODE", ae.Code)
}

/*
TestVerifyEmail_CodeIsSingleUse verifies a consumed code cannot be replayed.
*/
func TestVerifyEmail_CodeIsSingleUse(t *testing.T) {
	fx := newFixture()

	_, err := fx.service.Register(context.Background(), registerInput())
	require.NoError(t, err)
	code := fx.notifier.lastCode

	_, err = fx.service.VerifyEmail(context.Background(), "ada@university.edu", code)
	require.NoError(t, err)

	_, err = fx.service.VerifyEmail(context.Background(), "ada@university.edu", code)
	require.Error(t, err)
	assert.Equal(t, "INVALID_CODE", apperr.As(err).Code)
}

/*
TestVerifyEmail_ConcurrentConsumeIsExactlyOnce races many goroutines at the
same code and requires that exactly one of them wins.
*/
func TestVerifyEmail_ConcurrentConsumeIsExactlyOnce(t *testing.T) {
	fx := newFixture()

	_, err := fx.service.Register(context.Background(), registerInput())
	require.NoError(t, err)
	code := fx.notifier.lastCode

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.service.VerifyEmail(context.Background(), "ada@university.edu", code)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
		}
	}
	assert.Equal(t, 1, successes)
}

// # Login & Token Lifecycle

/*
TestLogin_RejectsInactiveAccount verifies the core invariant: no credential
for an unverified account, even with the right password.
*/
func TestLogin_RejectsInactiveAccount(t *testing.T) {
	fx := newFixture()

	_, err := fx.service.Register(context.Background(), registerInput())
	require.NoError(t, err)

	_, err = fx.service.Login(context.Background(), auth.LoginInput{
		Email:    "ada@university.edu",
		Password: "analytical-engine",
	})
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", apperr.As(err).Code)
}

/*
TestLogin_AfterVerification covers the full happy path from registration to
password login.
*/
func TestLogin_AfterVerification(t *testing.T) {
	fx := newFixture()

	_, err := fx.service.Register(context.Background(), registerInput())
	require.NoError(t, err)

	_, err = fx.service.VerifyEmail(context.Background(), "ada@university.edu", fx.notifier.lastCode)
	require.NoError(t, err)

	credential, err := fx.service.Login(context.Background(), auth.LoginInput{
		Email:    "ada@university.edu",
		Password: "analytical-engine",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, credential.AccessToken)
}

/*
TestLogin_WrongPassword verifies the enumeration-safe Unauthorized.
*/
func TestLogin_WrongPassword(t *testing.T) {
	fx := newFixture()

	_, err := fx.service.Register(context.Background(), registerInput())
	require.NoError(t, err)
	_, err = fx.service.VerifyEmail(context.Background(), "ada@university.edu", fx.notifier.lastCode)
	require.NoError(t, err)

	_, err = fx.service.Login(context.Background(), auth.LoginInput{
		Email:    "ada@university.edu",
		Password: "difference-engine",
	})
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
}

/*
TestRefresh_RotatesToken verifies the old refresh token dies when a new pair
is issued.
*/
func TestRefresh_RotatesToken(t *testing.T) {
	fx := newFixture()

	_, err := fx.service.Register(context.Background(), registerInput())
	require.NoError(t, err)
	credential, err := fx.service.VerifyEmail(context.Background(), "ada@university.edu", fx.notifier.lastCode)
	require.NoError(t, err)

	rotated, err := fx.service.Refresh(context.Background(), credential.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, credential.RefreshToken, rotated.RefreshToken)

	// Replaying the old token must fail.
	_, err = fx.service.Refresh(context.Background(), credential.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
}

/*
TestLogout_IsIdempotent verifies logout succeeds for unknown tokens too.
*/
func TestLogout_IsIdempotent(t *testing.T) {
	fx := newFixture()

	assert.NoError(t, fx.service.Logout(context.Background(), "never-issued"))

	_, err := fx.service.Register(context.Background(), registerInput())
	require.NoError(t, err)
	credential, err := fx.service.VerifyEmail(context.Background(), "ada@university.edu", fx.notifier.lastCode)
	require.NoError(t, err)

	assert.NoError(t, fx.service.Logout(context.Background(), credential.RefreshToken))
	assert.NoError(t, fx.service.Logout(context.Background(), credential.RefreshToken))

	// The token is actually gone.
	_, err = fx.service.Refresh(context.Background(), credential.RefreshToken)
	assert.Error(t, err)
}

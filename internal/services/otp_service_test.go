package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zacode-app/zacode-auth/internal/database/testutil"
	"github.com/zacode-app/zacode-auth/internal/models"
)

func newTestOtpService(t *testing.T, opts ...OtpOption) *OtpService {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	svc, err := NewOtpService(db, opts...)
	require.NoError(t, err)
	return svc
}

func countOtps(t *testing.T, svc *OtpService, email, purpose string) int64 {
	t.Helper()

	var count int64
	require.NoError(t, svc.db.Model(&models.Otp{}).
		Where("email = ? AND purpose = ?", email, purpose).
		Count(&count).Error)
	return count
}

func TestGenerateProducesSixDigits(t *testing.T) {
	svc := newTestOtpService(t)

	for i := 0; i < 200; i++ {
		code, err := svc.Generate()
		require.NoError(t, err)
		require.Len(t, code, 6)
		require.GreaterOrEqual(t, code, "100000")
		require.LessOrEqual(t, code, "999999")
	}
}

func TestIssueScopeNoneKeepsPriorCodes(t *testing.T) {
	svc := newTestOtpService(t)
	ctx := context.Background()

	_, err := svc.Issue(ctx, "a@x.com", models.PurposeEmailVerification, "u1", ScopeNone)
	require.NoError(t, err)
	_, err = svc.Issue(ctx, "a@x.com", models.PurposeEmailVerification, "u1", ScopeNone)
	require.NoError(t, err)

	require.EqualValues(t, 2, countOtps(t, svc, "a@x.com", models.PurposeEmailVerification))
}

func TestIssueScopeAllReplacesEverything(t *testing.T) {
	svc := newTestOtpService(t)
	ctx := context.Background()

	first, err := svc.Issue(ctx, "a@x.com", models.PurposeEmailVerification, "u1", ScopeNone)
	require.NoError(t, err)
	require.NoError(t, svc.Consume(ctx, first))

	_, err = svc.Issue(ctx, "a@x.com", models.PurposeEmailVerification, "u1", ScopeNone)
	require.NoError(t, err)

	_, err = svc.Issue(ctx, "a@x.com", models.PurposeEmailVerification, "u1", ScopeAll)
	require.NoError(t, err)

	// Both the used and unused prior codes are gone.
	require.EqualValues(t, 1, countOtps(t, svc, "a@x.com", models.PurposeEmailVerification))
}

func TestIssueScopeUnusedKeepsConsumedCodes(t *testing.T) {
	svc := newTestOtpService(t)
	ctx := context.Background()

	used, err := svc.Issue(ctx, "a@x.com", models.PurposeEmailVerification, "u1", ScopeNone)
	require.NoError(t, err)
	require.NoError(t, svc.Consume(ctx, used))

	_, err = svc.Issue(ctx, "a@x.com", models.PurposeEmailVerification, "u1", ScopeNone)
	require.NoError(t, err)

	_, err = svc.Issue(ctx, "a@x.com", models.PurposeEmailVerification, "u1", ScopeUnused)
	require.NoError(t, err)

	// The consumed code survives, the unused one was replaced.
	require.EqualValues(t, 2, countOtps(t, svc, "a@x.com", models.PurposeEmailVerification))
}

func TestIssueScopesArePurposeIsolated(t *testing.T) {
	svc := newTestOtpService(t)
	ctx := context.Background()

	_, err := svc.Issue(ctx, "a@x.com", models.PurposeEmailVerification, "u1", ScopeNone)
	require.NoError(t, err)

	_, err = svc.Issue(ctx, "a@x.com", models.PurposePasswordReset, "u1", ScopeAll)
	require.NoError(t, err)

	require.EqualValues(t, 1, countOtps(t, svc, "a@x.com", models.PurposeEmailVerification))
	require.EqualValues(t, 1, countOtps(t, svc, "a@x.com", models.PurposePasswordReset))
}

func TestVerifyMatchesEmailCodeAndPurpose(t *testing.T) {
	svc := newTestOtpService(t)
	ctx := context.Background()

	otp, err := svc.Issue(ctx, "a@x.com", models.PurposeEmailVerification, "u1", ScopeNone)
	require.NoError(t, err)

	found, err := svc.Verify(ctx, "a@x.com", otp.OtpCode, models.PurposeEmailVerification)
	require.NoError(t, err)
	require.Equal(t, otp.ID, found.ID)

	_, err = svc.Verify(ctx, "b@x.com", otp.OtpCode, models.PurposeEmailVerification)
	require.ErrorIs(t, err, ErrOtpNotFound)

	_, err = svc.Verify(ctx, "a@x.com", otp.OtpCode, models.PurposePasswordReset)
	require.ErrorIs(t, err, ErrOtpNotFound)

	_, err = svc.Verify(ctx, "a@x.com", "000000", models.PurposeEmailVerification)
	require.ErrorIs(t, err, ErrOtpNotFound)
}

func TestConsumedCodeNeverVerifiesAgain(t *testing.T) {
	svc := newTestOtpService(t)
	ctx := context.Background()

	otp, err := svc.Issue(ctx, "a@x.com", models.PurposeEmailVerification, "u1", ScopeNone)
	require.NoError(t, err)
	require.NoError(t, svc.Consume(ctx, otp))

	_, err = svc.Verify(ctx, "a@x.com", otp.OtpCode, models.PurposeEmailVerification)
	require.ErrorIs(t, err, ErrOtpNotFound)
}

func TestVerifyExpiredCode(t *testing.T) {
	current := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestOtpService(t, WithOtpClock(func() time.Time { return current }))
	ctx := context.Background()

	otp, err := svc.Issue(ctx, "a@x.com", models.PurposeEmailVerification, "u1", ScopeNone)
	require.NoError(t, err)

	// Still valid exactly at the expiry instant.
	current = current.Add(models.OTPValidity)
	_, err = svc.Verify(ctx, "a@x.com", otp.OtpCode, models.PurposeEmailVerification)
	require.NoError(t, err)

	current = current.Add(time.Second)
	_, err = svc.Verify(ctx, "a@x.com", otp.OtpCode, models.PurposeEmailVerification)
	require.ErrorIs(t, err, ErrOtpExpired)
}

func TestFindLatestToleratesUsedCodes(t *testing.T) {
	svc := newTestOtpService(t)
	ctx := context.Background()

	otp, err := svc.Issue(ctx, "a@x.com", models.PurposePasswordReset, "u1", ScopeNone)
	require.NoError(t, err)
	require.NoError(t, svc.Consume(ctx, otp))

	found, err := svc.FindLatest(ctx, "a@x.com", otp.OtpCode, models.PurposePasswordReset)
	require.NoError(t, err)
	require.Equal(t, otp.ID, found.ID)
	require.True(t, found.Used)
}

func TestVerifyByCodeIgnoresEmail(t *testing.T) {
	svc := newTestOtpService(t)
	ctx := context.Background()

	otp, err := svc.Issue(ctx, "a@x.com", models.PurposeEmailVerification, "u1", ScopeNone)
	require.NoError(t, err)

	found, err := svc.VerifyByCode(ctx, otp.OtpCode, models.PurposeEmailVerification)
	require.NoError(t, err)
	require.Equal(t, otp.ID, found.ID)

	_, err = svc.VerifyByCode(ctx, otp.OtpCode, models.PurposePasswordReset)
	require.ErrorIs(t, err, ErrOtpNotFound)
}

func TestPurgeUsedRemovesOnlyConsumedCodes(t *testing.T) {
	svc := newTestOtpService(t)
	ctx := context.Background()

	used, err := svc.Issue(ctx, "a@x.com", models.PurposePasswordReset, "u1", ScopeNone)
	require.NoError(t, err)
	require.NoError(t, svc.Consume(ctx, used))

	fresh, err := svc.Issue(ctx, "a@x.com", models.PurposePasswordReset, "u1", ScopeNone)
	require.NoError(t, err)

	require.NoError(t, svc.PurgeUsed(ctx, "a@x.com", models.PurposePasswordReset))

	require.EqualValues(t, 1, countOtps(t, svc, "a@x.com", models.PurposePasswordReset))
	_, err = svc.Verify(ctx, "a@x.com", fresh.OtpCode, models.PurposePasswordReset)
	require.NoError(t, err)
}

package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Policies        *PasswordPolicyRepository
	PasswordHistory *PasswordHistoryRepository
	FailedAttempts  *FailedAttemptRepository
	Lockouts        *LockoutRepository
	LockoutTx       *LockoutUnitOfWork
	MfaDevices      *MfaDeviceRepository
	MfaAttempts     *MfaAttemptRepository
	Whitelist       *IPWhitelistRepository
	Quotas          *QuotaRepository
	QuotaTx         *QuotaUnitOfWork
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Policies:        NewPasswordPolicyRepository(pool),
		PasswordHistory: NewPasswordHistoryRepository(pool),
		FailedAttempts:  NewFailedAttemptRepository(pool),
		Lockouts:        NewLockoutRepository(pool),
		LockoutTx:       NewLockoutUnitOfWork(pool),
		MfaDevices:      NewMfaDeviceRepository(pool),
		MfaAttempts:     NewMfaAttemptRepository(pool),
		Whitelist:       NewIPWhitelistRepository(pool),
		Quotas:          NewQuotaRepository(pool),
		QuotaTx:         NewQuotaUnitOfWork(pool),
	}
}

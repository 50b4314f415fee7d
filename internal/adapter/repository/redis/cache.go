package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgerengine/internal/domain"
)

// setIfNewer stores the balance in a hash next to its version and only replaces
// an existing entry that carries a lower version.
var setIfNewer = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if current and tonumber(current) >= tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'data', ARGV[2])
if tonumber(ARGV[3]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

// BalanceCache implements usecase.BalanceCache using Redis.
type BalanceCache struct {
	client *redis.Client
	prefix string
}

// NewBalanceCache creates a new BalanceCache.
func NewBalanceCache(client *redis.Client) *BalanceCache {
	return &BalanceCache{
		client: client,
		prefix: "ledger:balance:",
	}
}

type cachedBalance struct {
	AccountID    string          `json:"account_id"`
	Currency     string          `json:"currency"`
	Balance      decimal.Decimal `json:"balance"`
	TotalDebits  decimal.Decimal `json:"total_debits"`
	TotalCredits decimal.Decimal `json:"total_credits"`
	Version      int64           `json:"version"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Get returns the cached balance of an account, or nil on a miss.
func (c *BalanceCache) Get(ctx context.Context, accountID string) (*domain.AccountBalance, error) {
	raw, err := c.client.HGet(ctx, c.prefix+accountID, "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var cb cachedBalance
	if err := json.Unmarshal(raw, &cb); err != nil {
		return nil, fmt.Errorf("decode cached balance %s: %w", accountID, err)
	}

	return &domain.AccountBalance{
		AccountID:    cb.AccountID,
		Currency:     cb.Currency,
		Balance:      cb.Balance,
		TotalDebits:  cb.TotalDebits,
		TotalCredits: cb.TotalCredits,
		Version:      cb.Version,
		UpdatedAt:    cb.UpdatedAt,
	}, nil
}

// Set stores a balance with TTL unless the cache already holds the same or a
// newer version of it.
func (c *BalanceCache) Set(ctx context.Context, balance *domain.AccountBalance, ttl time.Duration) error {
	raw, err := json.Marshal(cachedBalance{
		AccountID:    balance.AccountID,
		Currency:     balance.Currency,
		Balance:      balance.Balance,
		TotalDebits:  balance.TotalDebits,
		TotalCredits: balance.TotalCredits,
		Version:      balance.Version,
		UpdatedAt:    balance.UpdatedAt,
	})
	if err != nil {
		return err
	}

	keys := []string{c.prefix + balance.AccountID}
	return setIfNewer.Run(ctx, c.client, keys, balance.Version, raw, ttl.Milliseconds()).Err()
}

// Invalidate drops the cached balances of the given accounts.
func (c *BalanceCache) Invalidate(ctx context.Context, accountIDs ...string) error {
	if len(accountIDs) == 0 {
		return nil
	}

	keys := make([]string, len(accountIDs))
	for i, id := range accountIDs {
		keys[i] = c.prefix + id
	}

	return c.client.Del(ctx, keys...).Err()
}

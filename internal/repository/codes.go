package repository

import (
	"context"
	"time"

	"github.com/ayush/bugdex-forum/backend/internal/models"
	"github.com/ayush/bugdex-forum/backend/internal/store"
)

// CodeTTL is how long a registration code stays valid.
const CodeTTL = 5 * time.Minute

// EmailCodes stores one active registration code per email.
type EmailCodes struct {
	kv  store.KV
	now func() time.Time
}

// Put replaces any previous code for email. The entry also carries a
// store TTL so backends purge it on their own.
func (r *EmailCodes) Put(ctx context.Context, email, code string) (*models.EmailCode, error) {
	now := r.now()
	ec := &models.EmailCode{
		Code:      code,
		CreatedAt: now.UnixMilli(),
		ExpiresAt: now.Add(CodeTTL).UnixMilli(),
	}
	if err := putJSON(ctx, r.kv, emailCodePrefix+email, ec, CodeTTL); err != nil {
		return nil, err
	}
	return ec, nil
}

func (r *EmailCodes) Get(ctx context.Context, email string) (*models.EmailCode, error) {
	return getJSON[models.EmailCode](ctx, r.kv, emailCodePrefix+email)
}

func (r *EmailCodes) Delete(ctx context.Context, email string) error {
	return r.kv.Delete(ctx, emailCodePrefix+email)
}

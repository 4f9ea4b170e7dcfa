package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// PasswordResetStatusMessage asks whether a reset token can still be redeemed
type PasswordResetStatusMessage struct {
	Token      string `json:"token" example:"350399bc-c095-4bdc-a59c-3352d44848e4" doc:"Reset password token"`
	OnResponse func(resp *PasswordResetStatusResponse) `json:"-"`
}

func (e PasswordResetStatusMessage) Type() string { return "account.password_reset.status" }

type PasswordResetStatusResponse struct {
	Found   bool `json:"found" example:"true" doc:"Has the request been found?"`
	Expired bool `json:"expired" example:"true" doc:"Has the request expired or been used?"`
}

type PasswordResetStatusHandler struct {
	repo RepositoryManager
	ttl  time.Duration
}

func NewPasswordResetStatusHandler(repo RepositoryManager) *PasswordResetStatusHandler {
	return &PasswordResetStatusHandler{
		repo: repo,
		ttl:  DefaultResetTTL,
	}
}

func (h *PasswordResetStatusHandler) WithTTL(ttl time.Duration) *PasswordResetStatusHandler {
	if ttl > 0 {
		h.ttl = ttl
	}
	return h
}

func (h *PasswordResetStatusHandler) Execute(ctx context.Context, event PasswordResetStatusMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during password reset status check")
	default:
		return h.execute(ctx, event)
	}
}

func (h *PasswordResetStatusHandler) execute(ctx context.Context, event PasswordResetStatusMessage) error {
	resp := &PasswordResetStatusResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		reset, err := h.repo.PasswordResets().GetByTokenTx(ctx, tx, event.Token)
		if err != nil {
			// unknown tokens are an expected outcome, not an application error
			if repository.IsRecordNotFound(err) {
				resp.Found = false
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve password reset request")
		}

		resp.Found = true

		if reset.Status != ResetRequestedStatus {
			resp.Expired = true
			return nil
		}

		if reset.CreatedAt == nil {
			return goerrors.New("password reset record is missing creation date", goerrors.CategoryInternal)
		}

		if IsWithin(*reset.CreatedAt, h.ttl) {
			return nil
		}

		resp.Expired = true
		if err := h.repo.PasswordResets().MarkExpiredTx(ctx, tx, reset.ID); err != nil && !goerrors.Is(err, ErrResetAlreadyUsed) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to expire password reset request")
		}
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check password reset status")
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

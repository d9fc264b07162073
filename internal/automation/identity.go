package automation

import (
	"context"
	"fmt"

	"github.com/qs3c/apply_go_server/internal/model"
)

// waitForAny 的结果下标
const (
	signedIn = iota
	passwordRejected
	identityRejected
)

func (r *run) resolveIdentity(ctx context.Context) error {
	sel := r.variant.Selectors

	ok, err := r.exists(ctx, sel.Apply)
	if err != nil {
		return err
	}
	if ok {
		if err := r.do(ctx, "click apply", func(ctx context.Context) error {
			return r.d.Click(ctx, sel.Apply)
		}); err != nil {
			return err
		}
	}

	ok, err = r.exists(ctx, sel.Login.Form)
	if err != nil {
		return err
	}
	if !ok {
		r.rec.Log(ctx, model.LevelInfo, r.state, "no sign-in required", "")
		return nil
	}

	site := SiteFor(r.job.URL)
	cred, err := r.e.credentials.Current(ctx, site)
	if err != nil {
		return &StepError{State: r.state, Op: "load credential", Err: err}
	}

	username, password := r.profile.Email, r.profile.DefaultPassword
	if cred != nil {
		username, password = cred.Username, cred.Password
	}
	if username == "" {
		return halt(model.StatusFailedFinal, model.ReasonProfileMissing, "profile has no email to sign in with")
	}

	result := passwordRejected
	if password != "" {
		result, err = r.signIn(ctx, username, password)
		if err != nil {
			return err
		}
	}

	switch result {
	case signedIn:
		if cred != nil {
			if err := r.rec.SetCredential(ctx, cred.ID); err != nil {
				return &StepError{State: r.state, Op: "link credential", Err: err}
			}
		}
		r.rec.Log(ctx, model.LevelInfo, r.state, fmt.Sprintf("signed in to %s as %s", site, username), "")
		return nil
	case identityRejected:
		// 不尝试其他身份，交给人工
		return pendingReview(model.ReasonIdentityConflict,
			"%s rejected identity %s, account may exist under a different identity", site, username)
	default:
		return r.recoverPassword(ctx, site, username)
	}
}

// signIn 填写登录表单并等待页面反馈
func (r *run) signIn(ctx context.Context, username, password string) (int, error) {
	login := r.variant.Selectors.Login

	if err := r.do(ctx, "fill email", func(ctx context.Context) error {
		return r.d.Fill(ctx, login.Email, username)
	}); err != nil {
		return -1, err
	}
	if err := r.do(ctx, "fill password", func(ctx context.Context) error {
		return r.d.Fill(ctx, login.Password, password)
	}); err != nil {
		return -1, err
	}
	if err := r.do(ctx, "submit sign-in", func(ctx context.Context) error {
		return r.d.Click(ctx, login.Submit)
	}); err != nil {
		return -1, err
	}

	idx, err := r.waitForAny(ctx, login.SignedIn, login.PasswordRejected, login.IdentityRejected)
	if err != nil {
		return -1, err
	}
	if idx < 0 {
		return -1, &StepError{State: r.state, Op: "sign in", Err: fmt.Errorf("no sign-in result: %w", ErrTimeout)}
	}
	return idx, nil
}

// recoverPassword 密码被拒：按策略生成新密码，先保存再注册或重置
func (r *run) recoverPassword(ctx context.Context, site, username string) error {
	if r.profile.PasswordStrategy == model.PasswordStrategyAsk {
		return pendingReview(model.ReasonPasswordRequired, "password for %s rejected, waiting for user", site)
	}

	password, err := GeneratePassword(DefaultPasswordLength)
	if err != nil {
		return &StepError{State: r.state, Op: "generate password", Err: err}
	}

	saved, err := r.e.credentials.Save(ctx, r.job.ApplicationID, Credential{
		Site:     site,
		Username: username,
		Password: password,
		Source:   model.CredentialSourceGenerated,
	})
	if err != nil {
		return &StepError{State: r.state, Op: "save credential", Err: err}
	}
	if err := r.rec.SetCredential(ctx, saved.ID); err != nil {
		return &StepError{State: r.state, Op: "link credential", Err: err}
	}
	r.rec.Log(ctx, model.LevelWarning, r.state,
		fmt.Sprintf("generated new password for %s (credential #%d)", site, saved.ID), "")

	login := r.variant.Selectors.Login
	ok, err := r.exists(ctx, login.CreateAccount)
	if err != nil {
		return err
	}
	if ok {
		created, err := r.createAccount(ctx, username, password)
		if err != nil || created {
			return err
		}
	}

	return r.requestReset(ctx, site, username)
}

// createAccount 用新密码注册，账号已存在时返回 false
func (r *run) createAccount(ctx context.Context, username, password string) (bool, error) {
	login := r.variant.Selectors.Login

	steps := []struct {
		op string
		fn func(ctx context.Context) error
	}{
		{"open account creation", func(ctx context.Context) error { return r.d.Click(ctx, login.CreateAccount) }},
		{"fill account email", func(ctx context.Context) error { return r.d.Fill(ctx, login.Email, username) }},
		{"fill new password", func(ctx context.Context) error { return r.d.Fill(ctx, login.NewPassword, password) }},
		{"confirm new password", func(ctx context.Context) error { return r.d.Fill(ctx, login.ConfirmPassword, password) }},
		{"submit account creation", func(ctx context.Context) error { return r.d.Click(ctx, login.CreateSubmit) }},
	}
	for _, s := range steps {
		if s.op == "confirm new password" && login.ConfirmPassword == "" {
			continue
		}
		if err := r.do(ctx, s.op, s.fn); err != nil {
			return false, err
		}
	}

	idx, err := r.waitForAny(ctx, login.SignedIn, login.AccountExists)
	if err != nil {
		return false, err
	}
	switch idx {
	case 0:
		r.rec.Log(ctx, model.LevelInfo, r.state, "created account as "+username, "")
		return true, nil
	case 1:
		r.rec.Log(ctx, model.LevelWarning, r.state, "account already exists for "+username, "")
		return false, nil
	default:
		return false, &StepError{State: r.state, Op: "create account", Err: fmt.Errorf("no account creation result: %w", ErrTimeout)}
	}
}

// requestReset 申请重置密码，之后等待用户处理邮件
func (r *run) requestReset(ctx context.Context, site, username string) error {
	login := r.variant.Selectors.Login

	ok, err := r.exists(ctx, login.ForgotPassword)
	if err != nil {
		return err
	}
	if ok {
		steps := []struct {
			op string
			fn func(ctx context.Context) error
		}{
			{"open password reset", func(ctx context.Context) error { return r.d.Click(ctx, login.ForgotPassword) }},
			{"fill reset email", func(ctx context.Context) error { return r.d.Fill(ctx, login.Email, username) }},
			{"submit password reset", func(ctx context.Context) error { return r.d.Click(ctx, login.ResetSubmit) }},
		}
		for _, s := range steps {
			if err := r.do(ctx, s.op, s.fn); err != nil {
				return err
			}
		}
		return pendingReview(model.ReasonCredentialReset,
			"password reset requested for %s on %s, complete it with the stored generated password", username, site)
	}

	return pendingReview(model.ReasonCredentialReset,
		"password for %s on %s rejected and no reset option found, new password stored", username, site)
}

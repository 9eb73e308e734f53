package auth

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// UpdateProfile writes a self service update. Display name and photo are
// changed on the provider first; if the profile write then fails the
// provider change is reverted, and ErrConsistency is returned when the
// revert fails too.
func (c *Controller) UpdateProfile(ctx context.Context, update ProfileUpdate) (*Session, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	sess, err := c.requireSession()
	if err != nil {
		return nil, err
	}

	upd, err := ValidateProfileUpdate(update, c.phoneRegion)
	if err != nil {
		return nil, err
	}
	if upd.Empty() {
		return sess, nil
	}

	return c.applyProfileUpdate(ctx, sess, upd)
}

func (c *Controller) applyProfileUpdate(ctx context.Context, sess *Session, upd ProfileUpdate) (*Session, error) {
	uid := sess.UID()

	var revert *ProviderProfile
	if upd.touchesProvider() {
		prev := ProviderProfile{
			DisplayName: sess.Identity.DisplayName,
			PhotoURL:    sess.Identity.PhotoURL,
		}
		next := prev
		if upd.DisplayName != nil {
			next.DisplayName = *upd.DisplayName
		}
		if upd.PhotoURL != nil {
			next.PhotoURL = *upd.PhotoURL
		}
		if next != prev {
			if err := c.provider.UpdateProviderProfile(ctx, uid, next); err != nil {
				return nil, classifyProviderError(err, "provider profile update failed")
			}
			revert = &prev
		}
	}

	profile, err := c.profiles.Update(ctx, uid, upd)
	if err != nil {
		if revert != nil {
			if rerr := c.provider.UpdateProviderProfile(ctx, uid, *revert); rerr != nil {
				return nil, c.consistencyFailure(ctx, uid, "update_profile", err, rerr)
			}
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "profile update failed")
	}

	identity := sess.Identity
	if upd.DisplayName != nil {
		identity.DisplayName = *upd.DisplayName
	}
	if upd.PhotoURL != nil {
		identity.PhotoURL = *upd.PhotoURL
	}

	next := newSession(&identity, profile)
	if _, err := c.store.transition(ctx, StateAuthenticated, next, WithTransitionReason(ReasonProfileUpdated)); err != nil {
		return nil, err
	}

	c.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventProfileUpdated,
		Actor:     ActorRef{ID: uid, Type: ActorTypeUser},
		UserID:    uid,
		Metadata:  map[string]any{"fields": upd.Columns()},
	})

	return next.Clone(), nil
}

// ChangeEmail confirms the current password, then changes the address on
// the provider and the profile. The new address must be verified again.
func (c *Controller) ChangeEmail(ctx context.Context, newEmail, currentPassword string) (*Session, error) {
	req := ChangeEmailRequest{Email: strings.TrimSpace(newEmail), CurrentPassword: currentPassword}
	if err := req.Validate(); err != nil {
		return nil, invalidInput(err)
	}

	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	sess, err := c.requireSession()
	if err != nil {
		return nil, err
	}

	if err := c.reauthenticate(ctx, sess, req.CurrentPassword); err != nil {
		return nil, err
	}

	uid := sess.UID()
	previous := sess.Identity.Email
	if strings.EqualFold(previous, req.Email) {
		return sess, nil
	}

	if err := c.provider.UpdateEmail(ctx, uid, req.Email); err != nil {
		return nil, classifyProviderError(err, "provider email update failed")
	}

	profile, err := c.profiles.Update(ctx, uid, ProfileUpdate{Email: &req.Email})
	if err != nil {
		if rerr := c.provider.UpdateEmail(ctx, uid, previous); rerr != nil {
			return nil, c.consistencyFailure(ctx, uid, "change_email", err, rerr)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "profile email update failed")
	}

	if err := c.provider.SendVerificationEmail(ctx, uid); err != nil {
		c.logger.Warn("failed to send verification email to %s: %v", uid, err)
	}

	identity := sess.Identity
	identity.Email = req.Email
	identity.EmailVerified = false

	next := newSession(&identity, profile)
	if _, err := c.store.transition(ctx, StateAuthenticated, next, WithTransitionReason(ReasonProfileUpdated)); err != nil {
		return nil, err
	}

	c.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventEmailChanged,
		Actor:     ActorRef{ID: uid, Type: ActorTypeUser},
		UserID:    uid,
	})

	return next.Clone(), nil
}

// ChangePassword confirms the current password before setting the new one.
func (c *Controller) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	req := ChangePasswordRequest{CurrentPassword: currentPassword, NewPassword: newPassword}
	if err := req.Validate(); err != nil {
		return invalidInput(err)
	}

	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	sess, err := c.requireSession()
	if err != nil {
		return err
	}

	if err := c.reauthenticate(ctx, sess, req.CurrentPassword); err != nil {
		return err
	}

	uid := sess.UID()
	if err := c.provider.UpdatePassword(ctx, uid, req.NewPassword); err != nil {
		return classifyProviderError(err, "provider password update failed")
	}

	c.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		Actor:     ActorRef{ID: uid, Type: ActorTypeUser},
		UserID:    uid,
	})
	return nil
}

// Reauthenticate confirms the password of the signed in user.
func (c *Controller) Reauthenticate(ctx context.Context, password string) error {
	sess, err := c.requireSession()
	if err != nil {
		return err
	}
	return c.reauthenticate(ctx, sess, password)
}

func (c *Controller) reauthenticate(ctx context.Context, sess *Session, password string) error {
	if password == "" {
		return withMeta(ErrReauthenticationFailed, map[string]any{"reason": "password is required"})
	}
	err := c.provider.Reauthenticate(ctx, sess.Identity.Email, password)
	if err == nil {
		return nil
	}
	if HasTextCode(err, TextCodeTooManyRequests) {
		return err
	}
	if IsCredentialError(err) {
		return withSource(ErrReauthenticationFailed, err, map[string]any{"uid": sess.UID()})
	}
	return classifyProviderError(err, "reauthentication failed")
}

// ResetPassword asks the provider to send a reset link. Under the conceal
// policy the outcome never tells whether the account exists.
func (c *Controller) ResetPassword(ctx context.Context, email string) error {
	req := PasswordResetRequest{Email: strings.TrimSpace(email)}
	if err := req.Validate(); err != nil {
		return invalidInput(err)
	}

	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during password reset request")
	default:
	}

	err := c.provider.SendPasswordResetEmail(ctx, req.Email)
	if err == nil {
		c.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventPasswordResetSent,
			Actor:     ActorRef{Type: ActorTypeUser},
		})
		return nil
	}

	if c.disclosure == DisclosureReveal {
		return classifyProviderError(err, "password reset request failed")
	}

	if HasTextCode(err, TextCodeAccountNotFound) || goerrors.IsNotFound(err) || IsCredentialError(err) {
		c.logger.Debug("password reset requested for unavailable account")
		return nil
	}

	c.logger.Error("password reset request failed: %v", err)
	return withMeta(ErrPasswordResetRequest, nil)
}

// ProfileImageKey builds the blob key of a profile image.
func ProfileImageKey(uid string, unixMillis int64, filename string) string {
	return fmt.Sprintf("users/%s/profile/%d_%s", uid, unixMillis, sanitizeFilename(filename))
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r < 0x20 || r == '/' || r == '?' || r == '#' || r == '%':
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "image"
	}
	return name
}

// UploadProfileImage stores the image, resolves its URL and sets it as the
// profile photo.
func (c *Controller) UploadProfileImage(ctx context.Context, filename string, r io.Reader, contentType string) (*Session, error) {
	if c.blobs == nil {
		return nil, goerrors.New("blob store is not configured", goerrors.CategoryInternal)
	}
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return nil, withMeta(ErrInvalidInput, map[string]any{
			"fields": map[string]string{"content_type": "must be an image"},
		})
	}

	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	sess, err := c.requireSession()
	if err != nil {
		return nil, err
	}

	key := ProfileImageKey(sess.UID(), c.now().UnixMilli(), filename)
	if err := c.blobs.Upload(ctx, key, r, contentType); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "profile image upload failed")
	}

	url, err := c.blobs.URL(ctx, key)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to resolve profile image url")
	}

	return c.applyProfileUpdate(ctx, sess, ProfileUpdate{PhotoURL: &url})
}

// ListProfiles queries profiles. Administrators only.
func (c *Controller) ListProfiles(ctx context.Context, filter ProfileFilter) ([]*Profile, error) {
	snap := c.store.Snapshot()
	if !snap.IsAuthenticated() {
		return nil, ErrNotAuthenticated.Clone()
	}
	if !snap.IsAdmin() {
		return nil, withMeta(ErrForbidden, map[string]any{
			"operation": "list_profiles",
			"role":      snap.Session.Role(),
		})
	}
	if filter.Role != nil && !filter.Role.IsValid() {
		return nil, withMeta(ErrInvalidRole, map[string]any{"role": *filter.Role})
	}
	profiles, err := c.profiles.Query(ctx, filter)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "profile query failed")
	}
	return profiles, nil
}

func (c *Controller) consistencyFailure(ctx context.Context, uid, operation string, cause, revertErr error) error {
	c.logger.Error("%s left identity and profile out of sync for %s: %v (revert: %v)", operation, uid, cause, revertErr)
	c.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventConsistencyFailure,
		Actor:     ActorRef{ID: uid, Type: ActorTypeUser},
		UserID:    uid,
		Metadata: map[string]any{
			"operation":    operation,
			"error":        cause.Error(),
			"revert_error": revertErr.Error(),
		},
	})
	return withSource(ErrConsistency, cause, map[string]any{
		"uid":          uid,
		"operation":    operation,
		"revert_error": revertErr.Error(),
	})
}

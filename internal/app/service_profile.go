package app

import (
	"context"
	"fmt"

	"github.com/khony/adzb/internal/storage"
	"github.com/khony/adzb/internal/store"
	"github.com/khony/adzb/internal/validate"
	"github.com/khony/adzb/internal/views"
	"go.uber.org/zap"
)

func (s *Service) GetProfile(ctx context.Context, sess Session) (store.Profile, error) {
	if err := requireSession(sess); err != nil {
		return store.Profile{}, err
	}
	profile, err := s.store.GetProfileByID(ctx, sess.UserID)
	if err != nil {
		return store.Profile{}, notFoundOr(err, "Profile not found")
	}
	return profile, nil
}

// UpdateProfile changes the caller's own name or avatar. The email cannot
// be changed here.
func (s *Service) UpdateProfile(ctx context.Context, sess Session, patch validate.ProfilePatch) (store.Profile, error) {
	if err := requireSession(sess); err != nil {
		return store.Profile{}, err
	}
	patch, err := validate.Profile(patch)
	if err != nil {
		return store.Profile{}, invalid(err)
	}
	profile, err := s.store.UpdateProfile(ctx, sess.UserID, patch.FullName, patch.AvatarURL)
	if err != nil {
		return store.Profile{}, notFoundOr(err, "Profile not found")
	}
	s.profileChanged(ctx, sess.UserID)
	return profile, nil
}

func (s *Service) UploadAvatar(ctx context.Context, sess Session, file Upload) (store.Profile, error) {
	if err := requireSession(sess); err != nil {
		return store.Profile{}, err
	}
	if err := checkImage(file); err != nil {
		return store.Profile{}, err
	}
	objectPath := storage.AvatarPath(sess.UserID, file.FileName)
	if err := s.objects.Put(ctx, s.cfg.AvatarsBucket, objectPath, file.Body, file.Size, file.ContentType); err != nil {
		return store.Profile{}, fmt.Errorf("upload avatar: %w", err)
	}
	url := s.objects.PublicURL(s.cfg.AvatarsBucket, objectPath)
	profile, err := s.store.UpdateProfile(ctx, sess.UserID, nil, &url)
	if err != nil {
		return store.Profile{}, notFoundOr(err, "Profile not found")
	}
	s.profileChanged(ctx, sess.UserID)
	return profile, nil
}

// profileChanged drops the views that embed the user's name or avatar in
// every organization they belong to.
func (s *Service) profileChanged(ctx context.Context, userID string) {
	orgs, err := s.store.ListOrganizationsForUser(ctx, userID)
	if err != nil {
		s.logger.Warn("list organizations for profile change", zap.String("user_id", userID), zap.Error(err))
		return
	}
	for _, org := range orgs {
		s.invalidate(ctx, org.ID, views.Members, views.Negotiations)
	}
}

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/khony/adzb/internal/rbac"
	"github.com/khony/adzb/internal/storage"
	"github.com/khony/adzb/internal/store"
	"github.com/khony/adzb/internal/util"
	"github.com/khony/adzb/internal/validate"
	"github.com/khony/adzb/internal/views"
	"go.uber.org/zap"
)

const maxImageBytes = 5 << 20

func (s *Service) ListOrganizations(ctx context.Context, sess Session) ([]store.OrganizationWithRole, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	orgs, err := s.store.ListOrganizationsForUser(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if orgs == nil {
		orgs = []store.OrganizationWithRole{}
	}
	return orgs, nil
}

// CreateOrganization derives a slug from name and creates the organization
// with the caller as admin in one procedure call. A taken slug gets a
// random suffix, and a unique violation from a concurrent insert retries
// once with a fresh suffix.
func (s *Service) CreateOrganization(ctx context.Context, sess Session, name string) (store.OrganizationWithRole, error) {
	if err := requireSession(sess); err != nil {
		return store.OrganizationWithRole{}, err
	}
	name, err := validate.CreateOrganization(name)
	if err != nil {
		return store.OrganizationWithRole{}, invalid(err)
	}

	base := util.Slugify(name)
	if base == "" {
		base = "org"
	}
	slug := base
	exists, err := s.store.SlugExists(ctx, slug)
	if err != nil {
		return store.OrganizationWithRole{}, fmt.Errorf("check slug: %w", err)
	}
	if exists {
		slug = util.WithSuffix(base)
	}

	id, err := s.store.CreateOrganizationWithAdmin(ctx, name, slug, sess.UserID)
	if errors.Is(err, store.ErrDuplicate) {
		slug = util.WithSuffix(base)
		id, err = s.store.CreateOrganizationWithAdmin(ctx, name, slug, sess.UserID)
	}
	if errors.Is(err, store.ErrDuplicate) {
		return store.OrganizationWithRole{}, Duplicate("organization slug already taken, try again")
	}
	if err != nil {
		return store.OrganizationWithRole{}, fmt.Errorf("create organization: %w", err)
	}

	org, err := s.store.GetOrganizationByID(ctx, id)
	if err != nil {
		return store.OrganizationWithRole{}, err
	}
	s.logger.Info("organization created", zap.String("organization_id", org.ID), zap.String("slug", org.Slug), zap.String("user_id", sess.UserID))
	return store.OrganizationWithRole{Organization: org, Role: string(rbac.RoleAdmin)}, nil
}

func (s *Service) GetOrganization(ctx context.Context, sess Session, slug string) (store.OrganizationWithRole, error) {
	org, role, err := s.ResolveOrganization(ctx, sess, slug)
	if err != nil {
		return store.OrganizationWithRole{}, err
	}
	return store.OrganizationWithRole{Organization: org, Role: string(role)}, nil
}

func (s *Service) UpdateOrganization(ctx context.Context, sess Session, slug string, patch validate.OrganizationPatch) (store.Organization, error) {
	org, _, err := s.authorize(ctx, sess, slug, rbac.ActionManage)
	if err != nil {
		return store.Organization{}, err
	}
	patch, err = validate.UpdateOrganization(patch)
	if err != nil {
		return store.Organization{}, invalid(err)
	}
	updated, err := s.store.UpdateOrganization(ctx, org.ID, store.OrganizationUpdate{
		Name:        patch.Name,
		Description: patch.Description,
		AvatarURL:   patch.AvatarURL,
	})
	if err != nil {
		return store.Organization{}, notFoundOr(err, "Organization not found")
	}
	s.invalidate(ctx, org.ID, views.Organization)
	return updated, nil
}

func (s *Service) UploadOrganizationLogo(ctx context.Context, sess Session, slug string, file Upload) (store.Organization, error) {
	org, _, err := s.authorize(ctx, sess, slug, rbac.ActionManage)
	if err != nil {
		return store.Organization{}, err
	}
	if err := checkImage(file); err != nil {
		return store.Organization{}, err
	}
	objectPath := storage.LogoPath(org.ID, file.FileName)
	if err := s.objects.Put(ctx, s.cfg.AvatarsBucket, objectPath, file.Body, file.Size, file.ContentType); err != nil {
		return store.Organization{}, fmt.Errorf("upload logo: %w", err)
	}
	url := s.objects.PublicURL(s.cfg.AvatarsBucket, objectPath)
	updated, err := s.store.UpdateOrganization(ctx, org.ID, store.OrganizationUpdate{AvatarURL: &url})
	if err != nil {
		return store.Organization{}, err
	}
	s.invalidate(ctx, org.ID, views.Organization)
	return updated, nil
}

func checkImage(file Upload) error {
	if file.Size <= 0 {
		return ValidationError("file", "required", "file is required")
	}
	if file.Size > maxImageBytes {
		return ValidationError("file", "max", "file must be at most 5 MB")
	}
	if !strings.HasPrefix(file.ContentType, "image/") {
		return ValidationError("file", "image", "file must be an image")
	}
	return nil
}

func (s *Service) ListMembers(ctx context.Context, sess Session, slug string) ([]store.Member, error) {
	org, _, err := s.authorize(ctx, sess, slug, rbac.ActionRead)
	if err != nil {
		return nil, err
	}
	return views.Remember(ctx, s.views, org.ID, views.Members, func(ctx context.Context) ([]store.Member, error) {
		members, err := s.store.ListMembers(ctx, org.ID)
		if members == nil {
			members = []store.Member{}
		}
		return members, err
	})
}

// RemoveMember refuses self-removal before any role check, so an admin
// cannot leave an organization without an admin through this path.
func (s *Service) RemoveMember(ctx context.Context, sess Session, slug, userID string) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	if userID == sess.UserID {
		return Forbidden("You cannot remove yourself from the organization")
	}
	org, _, err := s.authorize(ctx, sess, slug, rbac.ActionManage)
	if err != nil {
		return err
	}
	if err := s.store.RemoveMember(ctx, org.ID, userID); err != nil {
		return notFoundOr(err, "Member not found")
	}
	s.invalidate(ctx, org.ID, views.Members, views.Dashboard)
	s.logger.Info("member removed", zap.String("organization_id", org.ID), zap.String("user_id", userID), zap.String("by", sess.UserID))
	return nil
}

func (s *Service) Dashboard(ctx context.Context, sess Session, slug string) (store.DashboardStats, error) {
	org, _, err := s.authorize(ctx, sess, slug, rbac.ActionRead)
	if err != nil {
		return store.DashboardStats{}, err
	}
	return views.Remember(ctx, s.views, org.ID, views.Dashboard, func(ctx context.Context) (store.DashboardStats, error) {
		return s.store.DashboardStats(ctx, org.ID, s.now())
	})
}

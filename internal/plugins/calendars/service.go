package calendars

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/ovenlight/mealboard/internal/apperror"
	"github.com/ovenlight/mealboard/internal/sanitize"
)

// colorPattern matches a hex color like #1a2b3c.
var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// defaultColor is applied when a calendar is created without a color.
const defaultColor = "#4a7c59"

// CalendarService defines the business logic for calendar management and
// sharing. The meals plugin also depends on RoleFor for permission checks.
type CalendarService interface {
	Create(ctx context.Context, ownerID string, input CreateCalendarRequest) (*Calendar, error)
	Get(ctx context.Context, userID, calendarID string) (*Calendar, error)
	List(ctx context.Context, userID string) ([]Calendar, error)
	Rename(ctx context.Context, userID, calendarID string, input RenameCalendarRequest) (*Calendar, error)
	Delete(ctx context.Context, userID, calendarID string) error

	// RoleFor resolves the effective role of a user on a calendar. The
	// owner always resolves to RoleOwner regardless of grants.
	RoleFor(ctx context.Context, userID, calendarID string) (Role, error)

	Grant(ctx context.Context, userID, calendarID string, input ShareRequest) error
	UpdateShare(ctx context.Context, userID, calendarID string, input ShareRequest) error
	Revoke(ctx context.Context, userID, calendarID, granteeID string) error
	// Leave removes the calling user's own grant on a shared calendar.
	Leave(ctx context.Context, userID, calendarID string) error
	ListShares(ctx context.Context, userID, calendarID string) ([]ShareGrant, error)
}

type calendarService struct {
	repo CalendarRepository
}

// NewCalendarService creates the calendar service.
func NewCalendarService(repo CalendarRepository) CalendarService {
	return &calendarService{repo: repo}
}

func generateUUID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

// Create makes a new calendar owned by ownerID. The user's first calendar
// becomes their default.
func (s *calendarService) Create(ctx context.Context, ownerID string, input CreateCalendarRequest) (*Calendar, error) {
	name := sanitize.Text(input.Name)
	if name == "" {
		return nil, apperror.NewValidation("calendar name is required")
	}
	if len(name) > 100 {
		return nil, apperror.NewValidation("calendar name must be at most 100 characters")
	}

	color := input.Color
	if color == "" {
		color = defaultColor
	}
	if !colorPattern.MatchString(color) {
		return nil, apperror.NewValidation("color must be a hex value like #4a7c59")
	}

	owned, err := s.repo.CountOwned(ctx, ownerID)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	cal := &Calendar{
		ID:        generateUUID(),
		OwnerID:   ownerID,
		Name:      name,
		Color:     color,
		IsDefault: owned == 0,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, cal); err != nil {
		return nil, apperror.NewInternal(err)
	}
	cal.Role = RoleOwner.String()

	slog.Info("calendar created",
		slog.String("calendar_id", cal.ID),
		slog.String("owner_id", ownerID),
	)
	return cal, nil
}

// Get returns a calendar if the user can at least view it.
func (s *calendarService) Get(ctx context.Context, userID, calendarID string) (*Calendar, error) {
	cal, role, err := s.loadWithRole(ctx, userID, calendarID)
	if err != nil {
		return nil, err
	}
	if role < RoleViewer {
		// Hide existence from users with no access.
		return nil, apperror.NewNotFound("calendar not found")
	}
	cal.Role = role.String()
	return cal, nil
}

// List returns all calendars the user owns or has been granted access to.
func (s *calendarService) List(ctx context.Context, userID string) ([]Calendar, error) {
	calendars, err := s.repo.ListAccessible(ctx, userID)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	if calendars == nil {
		calendars = []Calendar{}
	}
	return calendars, nil
}

// Rename updates a calendar's name and color. Owner only.
func (s *calendarService) Rename(ctx context.Context, userID, calendarID string, input RenameCalendarRequest) (*Calendar, error) {
	cal, role, err := s.loadWithRole(ctx, userID, calendarID)
	if err != nil {
		return nil, err
	}
	if !role.CanManage() {
		return nil, apperror.NewPermission("only the owner can modify a calendar")
	}

	name := sanitize.Text(input.Name)
	if name == "" {
		return nil, apperror.NewValidation("calendar name is required")
	}
	cal.Name = name
	if input.Color != "" {
		if !colorPattern.MatchString(input.Color) {
			return nil, apperror.NewValidation("color must be a hex value like #4a7c59")
		}
		cal.Color = input.Color
	}

	if err := s.repo.Update(ctx, cal); err != nil {
		return nil, apperror.NewInternal(err)
	}
	cal.Role = role.String()
	return cal, nil
}

// Delete removes a calendar and all of its entries and grants. Owner only.
func (s *calendarService) Delete(ctx context.Context, userID, calendarID string) error {
	_, role, err := s.loadWithRole(ctx, userID, calendarID)
	if err != nil {
		return err
	}
	if !role.CanManage() {
		return apperror.NewPermission("only the owner can delete a calendar")
	}
	if err := s.repo.Delete(ctx, calendarID); err != nil {
		return apperror.NewInternal(err)
	}
	slog.Info("calendar deleted", slog.String("calendar_id", calendarID))
	return nil
}

// RoleFor resolves the effective role. Owner beats any stored grant.
func (s *calendarService) RoleFor(ctx context.Context, userID, calendarID string) (Role, error) {
	cal, err := s.repo.FindByID(ctx, calendarID)
	if err != nil {
		return RoleNone, apperror.NewInternal(err)
	}
	if cal == nil {
		return RoleNone, apperror.NewNotFound("calendar not found")
	}
	if cal.OwnerID == userID {
		return RoleOwner, nil
	}
	role, err := s.repo.GetGrant(ctx, calendarID, userID)
	if err != nil {
		return RoleNone, apperror.NewInternal(err)
	}
	return role, nil
}

// Grant gives a user access to a calendar. The owner or an editor may
// invite. Granting to the owner or duplicating an existing grant is
// rejected.
func (s *calendarService) Grant(ctx context.Context, userID, calendarID string, input ShareRequest) error {
	cal, role, err := s.loadWithRole(ctx, userID, calendarID)
	if err != nil {
		return err
	}
	if !role.CanEdit() {
		return apperror.NewPermission("you need editor access to share this calendar")
	}
	if input.UserID == cal.OwnerID {
		return apperror.NewValidation("the owner already has full access")
	}
	grantRole, ok := RoleFromString(input.Role)
	if !ok {
		return apperror.NewValidation("role must be viewer or editor")
	}

	existing, err := s.repo.GetGrant(ctx, calendarID, input.UserID)
	if err != nil {
		return apperror.NewInternal(err)
	}
	if existing != RoleNone {
		return apperror.NewConflict("this user already has access")
	}

	if err := s.repo.UpsertGrant(ctx, calendarID, input.UserID, grantRole); err != nil {
		return apperror.NewInternal(err)
	}
	slog.Info("calendar shared",
		slog.String("calendar_id", calendarID),
		slog.String("grantee_id", input.UserID),
		slog.String("role", grantRole.String()),
	)
	return nil
}

// UpdateShare changes the role on an existing grant. Owner or editor.
func (s *calendarService) UpdateShare(ctx context.Context, userID, calendarID string, input ShareRequest) error {
	_, role, err := s.loadWithRole(ctx, userID, calendarID)
	if err != nil {
		return err
	}
	if !role.CanEdit() {
		return apperror.NewPermission("you need editor access to change shares")
	}
	newRole, ok := RoleFromString(input.Role)
	if !ok {
		return apperror.NewValidation("role must be viewer or editor")
	}

	existing, err := s.repo.GetGrant(ctx, calendarID, input.UserID)
	if err != nil {
		return apperror.NewInternal(err)
	}
	if existing == RoleNone {
		return apperror.NewNotFound("no share exists for this user")
	}

	if err := s.repo.UpsertGrant(ctx, calendarID, input.UserID, newRole); err != nil {
		return apperror.NewInternal(err)
	}
	return nil
}

// Revoke removes a user's grant. Owner or editor.
func (s *calendarService) Revoke(ctx context.Context, userID, calendarID, granteeID string) error {
	_, role, err := s.loadWithRole(ctx, userID, calendarID)
	if err != nil {
		return err
	}
	if !role.CanEdit() {
		return apperror.NewPermission("you need editor access to revoke shares")
	}

	existing, err := s.repo.GetGrant(ctx, calendarID, granteeID)
	if err != nil {
		return apperror.NewInternal(err)
	}
	if existing == RoleNone {
		return apperror.NewNotFound("no share exists for this user")
	}
	if err := s.repo.DeleteGrant(ctx, calendarID, granteeID); err != nil {
		return apperror.NewInternal(err)
	}
	return nil
}

// Leave removes the caller's own grant. The owner cannot leave their own
// calendar; they delete it instead.
func (s *calendarService) Leave(ctx context.Context, userID, calendarID string) error {
	cal, err := s.repo.FindByID(ctx, calendarID)
	if err != nil {
		return apperror.NewInternal(err)
	}
	if cal == nil {
		return apperror.NewNotFound("calendar not found")
	}
	if cal.OwnerID == userID {
		return apperror.NewValidation("the owner cannot leave their own calendar")
	}

	existing, err := s.repo.GetGrant(ctx, calendarID, userID)
	if err != nil {
		return apperror.NewInternal(err)
	}
	if existing == RoleNone {
		return apperror.NewNotFound("calendar not found")
	}
	return s.repo.DeleteGrant(ctx, calendarID, userID)
}

// ListShares returns the grants on a calendar. Owner or editor, since
// inviting needs the current grantee list and the list exposes emails.
func (s *calendarService) ListShares(ctx context.Context, userID, calendarID string) ([]ShareGrant, error) {
	_, role, err := s.loadWithRole(ctx, userID, calendarID)
	if err != nil {
		return nil, err
	}
	if !role.CanEdit() {
		return nil, apperror.NewPermission("you need editor access to view shares")
	}
	grants, err := s.repo.ListGrants(ctx, calendarID)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	if grants == nil {
		grants = []ShareGrant{}
	}
	return grants, nil
}

// loadWithRole fetches a calendar and resolves the user's role on it.
func (s *calendarService) loadWithRole(ctx context.Context, userID, calendarID string) (*Calendar, Role, error) {
	cal, err := s.repo.FindByID(ctx, calendarID)
	if err != nil {
		return nil, RoleNone, apperror.NewInternal(err)
	}
	if cal == nil {
		return nil, RoleNone, apperror.NewNotFound("calendar not found")
	}
	if cal.OwnerID == userID {
		return cal, RoleOwner, nil
	}
	role, err := s.repo.GetGrant(ctx, calendarID, userID)
	if err != nil {
		return nil, RoleNone, apperror.NewInternal(err)
	}
	return cal, role, nil
}

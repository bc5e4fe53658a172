package services

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/testflowhq/testflow/backend/internal/models"
	"github.com/testflowhq/testflow/backend/pkg/response"
)

// MembershipService decides whether a requester may list, remove, or re-role
// project members, and performs the mutation while keeping the invariant that
// every project retains at least one OWNER membership.
type MembershipService struct {
	db *gorm.DB
	// ownerLocks serializes the count-then-mutate sequence of the last-owner
	// check per project id. Single-process deployment, same as the scheduler
	// locking assumptions elsewhere in this codebase.
	ownerLocks sync.Map
}

func NewMembershipService(db *gorm.DB) *MembershipService {
	return &MembershipService{db: db}
}

// Member is a row in a member listing. The project owner appears here even
// without an explicit membership row; Implicit marks that synthesized entry.
type Member struct {
	ProjectID uint   `json:"project_id"`
	UserID    uint   `json:"user_id"`
	Role      string `json:"role"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Implicit  bool   `json:"implicit,omitempty"`
}

type ListMembersRequest struct {
	ProjectID   uint
	RequesterID uint
	Roles       []string
	Query       string
	Page        int
	PageSize    int
	SortBy      string // name, email, role
	SortDir     string // asc, desc
}

type MemberPage struct {
	Items       []Member `json:"items"`
	Total       int      `json:"total"`
	Page        int      `json:"page"`
	PageSize    int      `json:"page_size"`
	HasNextPage bool     `json:"has_next_page"`
}

type RemoveMemberRequest struct {
	ProjectID    uint
	RequesterID  uint
	TargetUserID uint
}

type UpdateMemberRoleRequest struct {
	ProjectID    uint
	RequesterID  uint
	TargetUserID uint
	NewRole      string
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// getProject resolves the project or fails with NotFound.
func (s *MembershipService) getProject(projectID uint) (*models.Project, error) {
	var project models.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("project not found")
		}
		return nil, err
	}
	return &project, nil
}

// authorize applies the shared access predicate: the requester must be the
// project owner or hold an explicit membership row. Returns the requester's
// membership (nil for an owner without a row).
func (s *MembershipService) authorize(project *models.Project, requesterID uint) (*models.Membership, error) {
	var m models.Membership
	err := s.db.Where("project_id = ? AND user_id = ?", project.ID, requesterID).First(&m).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if project.OwnerID != requesterID {
			return nil, response.NewForbidden("access denied to project")
		}
		return nil, nil
	}
	return &m, nil
}

// ListMembers returns a filtered, sorted, paginated view of a project's
// members. Read-only.
func (s *MembershipService) ListMembers(req *ListMembersRequest) (*MemberPage, error) {
	if req.ProjectID == 0 || req.RequesterID == 0 {
		return nil, response.NewBadRequest("project id and requester id must be positive")
	}
	for _, r := range req.Roles {
		if !models.ValidRole(r) {
			return nil, response.NewBadRequest("invalid role filter: " + r)
		}
	}

	project, err := s.getProject(req.ProjectID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(project, req.RequesterID); err != nil {
		return nil, err
	}

	query := s.db.Where("project_id = ?", req.ProjectID).Preload("User")
	if len(req.Roles) > 0 {
		query = query.Where("role IN ?", req.Roles)
	}
	var rows []models.Membership
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	members := make([]Member, 0, len(rows)+1)
	ownerHasRow := false
	for _, row := range rows {
		if row.UserID == project.OwnerID {
			ownerHasRow = true
		}
		members = append(members, memberFromRow(&row))
	}

	// The owner is always a member conceptually. When no explicit row exists
	// and no role filter was requested, synthesize an OWNER entry before the
	// query filter so it searches, sorts, and paginates like any other row. An
	// explicit role filter excludes implicit rows.
	if len(req.Roles) == 0 && !ownerHasRow {
		var owner models.User
		if err := s.db.First(&owner, project.OwnerID).Error; err == nil {
			members = append([]Member{{
				ProjectID: project.ID,
				UserID:    owner.ID,
				Role:      models.RoleOwner,
				Name:      owner.DisplayName(),
				Email:     owner.Email,
				Implicit:  true,
			}}, members...)
		}
	}

	if q := strings.TrimSpace(req.Query); q != "" {
		q = strings.ToLower(q)
		filtered := members[:0]
		for _, m := range members {
			if strings.Contains(strings.ToLower(m.Name), q) ||
				strings.Contains(strings.ToLower(m.Email), q) {
				filtered = append(filtered, m)
			}
		}
		members = filtered
	}

	sortMembers(members, req.SortBy, req.SortDir)

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = defaultPageSize
	} else if pageSize < 1 {
		pageSize = 1
	} else if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	total := len(members)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	items := members[start:end]

	return &MemberPage{
		Items:       items,
		Total:       total,
		Page:        page,
		PageSize:    pageSize,
		HasNextPage: (page-1)*pageSize+len(items) < total,
	}, nil
}

func memberFromRow(row *models.Membership) Member {
	m := Member{
		ProjectID: row.ProjectID,
		UserID:    row.UserID,
		Role:      row.Role,
	}
	if row.User != nil {
		m.Name = row.User.DisplayName()
		m.Email = row.User.Email
	}
	return m
}

// sortMembers orders the listing. Name and email use a case-insensitive
// collator; role uses the fixed enum order from models.RoleSortOrder.
func sortMembers(members []Member, sortBy, sortDir string) {
	col := collate.New(language.Und, collate.Loose)

	var less func(a, b *Member) bool
	switch sortBy {
	case "email":
		less = func(a, b *Member) bool { return col.CompareString(a.Email, b.Email) < 0 }
	case "role":
		less = func(a, b *Member) bool {
			return models.RoleSortOrder[a.Role] < models.RoleSortOrder[b.Role]
		}
	default: // name
		less = func(a, b *Member) bool { return col.CompareString(a.Name, b.Name) < 0 }
	}

	desc := sortDir == "desc"
	sort.SliceStable(members, func(i, j int) bool {
		if desc {
			return less(&members[j], &members[i])
		}
		return less(&members[i], &members[j])
	})
}

// RemoveMember deletes the target's membership row, enforcing the role rules
// and last-OWNER protection. Returns the deleted record.
func (s *MembershipService) RemoveMember(req *RemoveMemberRequest) (*models.Membership, error) {
	if req.ProjectID == 0 || req.RequesterID == 0 || req.TargetUserID == 0 {
		return nil, response.NewBadRequest("project id, requester id, and target user id must be positive")
	}

	project, err := s.getProject(req.ProjectID)
	if err != nil {
		return nil, err
	}
	requester, err := s.authorize(project, req.RequesterID)
	if err != nil {
		return nil, err
	}

	// Mutations only operate on explicit rows; the implicit owner entry from
	// listings is never a removal target.
	target, err := s.findTarget(req.ProjectID, req.TargetUserID)
	if err != nil {
		return nil, err
	}

	switch {
	case project.OwnerID == req.RequesterID:
		// The project owner may remove anyone, including themself.
	case requester != nil && requester.Role == models.RoleManager:
		if target.Role == models.RoleOwner || target.Role == models.RoleManager {
			return nil, response.NewForbidden("manager may not remove an owner or manager")
		}
	default:
		return nil, response.NewForbidden("only owner or manager may remove members")
	}

	if target.Role == models.RoleOwner {
		unlock := s.lockProject(req.ProjectID)
		defer unlock()
		err = s.db.Transaction(func(tx *gorm.DB) error {
			var owners int64
			if err := tx.Model(&models.Membership{}).
				Where("project_id = ? AND role = ?", req.ProjectID, models.RoleOwner).
				Count(&owners).Error; err != nil {
				return err
			}
			if owners <= 1 {
				return response.NewConflict("transfer ownership before removing the last owner")
			}
			return tx.Delete(target).Error
		})
		if err != nil {
			return nil, err
		}
		return target, nil
	}

	if err := s.db.Delete(target).Error; err != nil {
		return nil, err
	}
	return target, nil
}

// UpdateMemberRole changes the target's role, enforcing the role rules,
// last-OWNER protection, and write-free idempotence.
func (s *MembershipService) UpdateMemberRole(req *UpdateMemberRoleRequest) (*models.Membership, error) {
	if req.ProjectID == 0 || req.RequesterID == 0 || req.TargetUserID == 0 {
		return nil, response.NewBadRequest("project id, requester id, and target user id must be positive")
	}
	if !models.ValidRole(req.NewRole) {
		return nil, response.NewBadRequest("invalid role: " + req.NewRole)
	}

	project, err := s.getProject(req.ProjectID)
	if err != nil {
		return nil, err
	}
	requester, err := s.authorize(project, req.RequesterID)
	if err != nil {
		return nil, err
	}

	target, err := s.findTarget(req.ProjectID, req.TargetUserID)
	if err != nil {
		return nil, err
	}

	switch {
	case project.OwnerID == req.RequesterID:
		// The project owner may assign any role, including demoting themself,
		// subject to last-OWNER protection below.
	case requester != nil && requester.Role == models.RoleManager:
		if target.Role == models.RoleOwner || target.Role == models.RoleManager {
			return nil, response.NewForbidden("manager may not modify an owner or manager")
		}
		if req.NewRole == models.RoleOwner || req.NewRole == models.RoleManager {
			return nil, response.NewForbidden("manager may not grant owner or manager role")
		}
	default:
		return nil, response.NewForbidden("only owner or manager may change member roles")
	}

	if target.Role == models.RoleOwner && req.NewRole != models.RoleOwner {
		unlock := s.lockProject(req.ProjectID)
		defer unlock()
		err = s.db.Transaction(func(tx *gorm.DB) error {
			var owners int64
			if err := tx.Model(&models.Membership{}).
				Where("project_id = ? AND role = ?", req.ProjectID, models.RoleOwner).
				Count(&owners).Error; err != nil {
				return err
			}
			if owners <= 1 {
				return response.NewConflict("transfer ownership before demoting the last owner")
			}
			return tx.Model(target).Update("role", req.NewRole).Error
		})
		if err != nil {
			return nil, err
		}
		target.Role = req.NewRole
		return target, nil
	}

	// Idempotent no-op: the requested role already holds. Answer from the row
	// read during validation without touching the store.
	if req.NewRole == target.Role {
		return target, nil
	}

	if err := s.db.Model(target).Update("role", req.NewRole).Error; err != nil {
		return nil, err
	}
	target.Role = req.NewRole
	return target, nil
}

// findTarget fetches the target's explicit membership row or fails NotFound.
func (s *MembershipService) findTarget(projectID, userID uint) (*models.Membership, error) {
	var target models.Membership
	err := s.db.Where("project_id = ? AND user_id = ?", projectID, userID).First(&target).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("member not found")
		}
		return nil, err
	}
	return &target, nil
}

// lockProject takes the per-project mutex guarding last-owner checks and
// returns the unlock function.
func (s *MembershipService) lockProject(projectID uint) func() {
	v, _ := s.ownerLocks.LoadOrStore(projectID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

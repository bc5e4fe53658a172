package services

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/testflowhq/testflow/backend/internal/models"
	"github.com/testflowhq/testflow/backend/pkg/response"
)

func setupMembershipDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Project{}, &models.Membership{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createUser(t *testing.T, db *gorm.DB, name, email string) *models.User {
	t.Helper()
	u := &models.User{Username: name, Nickname: name, Email: email}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func createProject(t *testing.T, db *gorm.DB, ownerID uint) *models.Project {
	t.Helper()
	p := &models.Project{Name: "Checkout", OwnerID: ownerID}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

func addMember(t *testing.T, db *gorm.DB, projectID, userID uint, role string) *models.Membership {
	t.Helper()
	m := &models.Membership{ProjectID: projectID, UserID: userID, Role: role}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("add member %d: %v", userID, err)
	}
	return m
}

func countOwners(t *testing.T, db *gorm.DB, projectID uint) int64 {
	t.Helper()
	var n int64
	db.Model(&models.Membership{}).
		Where("project_id = ? AND role = ?", projectID, models.RoleOwner).
		Count(&n)
	return n
}

func expectKind(t *testing.T, err error, kind response.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if !response.IsKind(err, kind) {
		t.Fatalf("expected %s error, got %v (kind %s)", kind, err, response.KindOf(err))
	}
}

func TestListMembers_SynthesizedOwner(t *testing.T) {
	db := setupMembershipDB(t)
	svc := NewMembershipService(db)

	owner := createUser(t, db, "alice", "alice@example.com")
	tester := createUser(t, db, "bob", "bob@example.com")
	p := createProject(t, db, owner.ID)
	// Owner has no explicit membership row (legacy data shape).
	addMember(t, db, p.ID, tester.ID, models.RoleTester)

	page, err := svc.ListMembers(&ListMembersRequest{ProjectID: p.ID, RequesterID: tester.ID})
	if err != nil {
		t.Fatalf("ListMembers() error = %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("Total = %d, expected 2 (explicit tester + synthesized owner)", page.Total)
	}

	var foundOwner *Member
	for i := range page.Items {
		if page.Items[i].UserID == owner.ID {
			foundOwner = &page.Items[i]
		}
	}
	if foundOwner == nil {
		t.Fatal("synthesized owner missing from listing")
	}
	if foundOwner.Role != models.RoleOwner || !foundOwner.Implicit {
		t.Errorf("synthesized owner = %+v, expected implicit OWNER", foundOwner)
	}
}

func TestListMembers_RoleFilterExcludesSynthesizedOwner(t *testing.T) {
	db := setupMembershipDB(t)
	svc := NewMembershipService(db)

	owner := createUser(t, db, "alice", "alice@example.com")
	tester := createUser(t, db, "bob", "bob@example.com")
	p := createProject(t, db, owner.ID)
	addMember(t, db, p.ID, tester.ID, models.RoleTester)

	page, err := svc.ListMembers(&ListMembersRequest{
		ProjectID:   p.ID,
		RequesterID: tester.ID,
		Roles:       []string{models.RoleTester},
	})
	if err != nil {
		t.Fatalf("ListMembers() error = %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("Total = %d, expected 1", page.Total)
	}
	if page.Items[0].UserID != tester.ID {
		t.Errorf("Items[0].UserID = %d, expected tester %d", page.Items[0].UserID, tester.ID)
	}

	// Even filtering for OWNER must not synthesize the implicit row.
	page, err = svc.ListMembers(&ListMembersRequest{
		ProjectID:   p.ID,
		RequesterID: tester.ID,
		Roles:       []string{models.RoleOwner},
	})
	if err != nil {
		t.Fatalf("ListMembers() error = %v", err)
	}
	if page.Total != 0 {
		t.Errorf("Total = %d, expected 0 with OWNER filter and no explicit owner row", page.Total)
	}
}

func TestListMembers_QueryFilter(t *testing.T) {
	db := setupMembershipDB(t)
	svc := NewMembershipService(db)

	owner := createUser(t, db, "alice", "alice@example.com")
	p := createProject(t, db, owner.ID)
	addMember(t, db, p.ID, owner.ID, models.RoleOwner)
	for i, name := range []string{"Carol", "carlos", "Dave"} {
		u := createUser(t, db, name, fmt.Sprintf("u%d@example.com", i))
		addMember(t, db, p.ID, u.ID, models.RoleTester)
	}

	page, err := svc.ListMembers(&ListMembersRequest{
		ProjectID:   p.ID,
		RequesterID: owner.ID,
		Query:       "CAR",
	})
	if err != nil {
		t.Fatalf("ListMembers() error = %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("Total = %d, expected 2 case-insensitive matches", page.Total)
	}

	// Whitespace-only query filters nothing.
	page, _ = svc.ListMembers(&ListMembersRequest{
		ProjectID:   p.ID,
		RequesterID: owner.ID,
		Query:       "   ",
	})
	if page.Total != 4 {
		t.Errorf("Total = %d, expected 4 with blank query", page.Total)
	}
}

func TestListMembers_SortByRole(t *testing.T) {
	db := setupMembershipDB(t)
	svc := NewMembershipService(db)

	owner := createUser(t, db, "alice", "alice@example.com")
	p := createProject(t, db, owner.ID)
	addMember(t, db, p.ID, owner.ID, models.RoleOwner)
	for _, m := range []struct{ name, role string }{
		{"bob", models.RoleTester},
		{"carol", models.RoleManager},
		{"dave", models.RoleApprover},
	} {
		u := createUser(t, db, m.name, m.name+"@example.com")
		addMember(t, db, p.ID, u.ID, m.role)
	}

	page, err := svc.ListMembers(&ListMembersRequest{
		ProjectID:   p.ID,
		RequesterID: owner.ID,
		SortBy:      "role",
	})
	if err != nil {
		t.Fatalf("ListMembers() error = %v", err)
	}

	got := make([]string, len(page.Items))
	for i, m := range page.Items {
		got[i] = m.Role
	}
	want := []string{models.RoleApprover, models.RoleManager, models.RoleOwner, models.RoleTester}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("role order = %v, expected %v", got, want)
		}
	}

	// Descending reverses the fixed order.
	page, _ = svc.ListMembers(&ListMembersRequest{
		ProjectID:   p.ID,
		RequesterID: owner.ID,
		SortBy:      "role",
		SortDir:     "desc",
	})
	if page.Items[0].Role != models.RoleTester {
		t.Errorf("desc first role = %s, expected TESTER", page.Items[0].Role)
	}
}

func TestListMembers_PaginationReconstructsSequence(t *testing.T) {
	db := setupMembershipDB(t)
	svc := NewMembershipService(db)

	owner := createUser(t, db, "alice", "alice@example.com")
	p := createProject(t, db, owner.ID)
	addMember(t, db, p.ID, owner.ID, models.RoleOwner)
	for i := 0; i < 4; i++ {
		u := createUser(t, db, fmt.Sprintf("user%02d", i), fmt.Sprintf("user%02d@example.com", i))
		addMember(t, db, p.ID, u.ID, models.RoleTester)
	}

	full, err := svc.ListMembers(&ListMembersRequest{ProjectID: p.ID, RequesterID: owner.ID, PageSize: 100})
	if err != nil {
		t.Fatalf("ListMembers() error = %v", err)
	}
	if full.Total != 5 {
		t.Fatalf("Total = %d, expected 5", full.Total)
	}

	var concat []uint
	for pageNo := 1; ; pageNo++ {
		page, err := svc.ListMembers(&ListMembersRequest{
			ProjectID:   p.ID,
			RequesterID: owner.ID,
			Page:        pageNo,
			PageSize:    2,
		})
		if err != nil {
			t.Fatalf("page %d error = %v", pageNo, err)
		}
		for _, m := range page.Items {
			concat = append(concat, m.UserID)
		}
		wantNext := pageNo*2 < page.Total
		if page.HasNextPage != wantNext {
			t.Errorf("page %d HasNextPage = %v, expected %v", pageNo, page.HasNextPage, wantNext)
		}
		if !page.HasNextPage {
			break
		}
	}

	if len(concat) != len(full.Items) {
		t.Fatalf("concatenated pages have %d items, expected %d", len(concat), len(full.Items))
	}
	seen := map[uint]bool{}
	for i, id := range concat {
		if seen[id] {
			t.Fatalf("duplicate user %d across pages", id)
		}
		seen[id] = true
		if id != full.Items[i].UserID {
			t.Fatalf("page concatenation order diverges at %d: %d vs %d", i, id, full.Items[i].UserID)
		}
	}
}

func TestListMembers_PageSizeClamped(t *testing.T) {
	db := setupMembershipDB(t)
	svc := NewMembershipService(db)

	owner := createUser(t, db, "alice", "alice@example.com")
	p := createProject(t, db, owner.ID)
	addMember(t, db, p.ID, owner.ID, models.RoleOwner)

	page, err := svc.ListMembers(&ListMembersRequest{ProjectID: p.ID, RequesterID: owner.ID, PageSize: 1000})
	if err != nil {
		t.Fatalf("ListMembers() error = %v", err)
	}
	if page.PageSize != 100 {
		t.Errorf("PageSize = %d, expected clamp to 100", page.PageSize)
	}

	page, _ = svc.ListMembers(&ListMembersRequest{ProjectID: p.ID, RequesterID: owner.ID, PageSize: -3, Page: -1})
	if page.PageSize != 1 {
		t.Errorf("PageSize = %d, expected clamp to 1", page.PageSize)
	}
	if page.Page != 1 {
		t.Errorf("Page = %d, expected clamp to 1", page.Page)
	}
}

func TestMembership_NonMemberForbiddenEverywhere(t *testing.T) {
	db := setupMembershipDB(t)
	svc := NewMembershipService(db)

	owner := createUser(t, db, "alice", "alice@example.com")
	tester := createUser(t, db, "bob", "bob@example.com")
	stranger := createUser(t, db, "mallory", "mallory@example.com")
	p := createProject(t, db, owner.ID)
	addMember(t, db, p.ID, owner.ID, models.RoleOwner)
	addMember(t, db, p.ID, tester.ID, models.RoleTester)

	_, err := svc.ListMembers(&ListMembersRequest{ProjectID: p.ID, RequesterID: stranger.ID})
	expectKind(t, err, response.KindForbidden)

	_, err = svc.RemoveMember(&RemoveMemberRequest{ProjectID: p.ID, RequesterID: stranger.ID, TargetUserID: tester.ID})
	expectKind(t, err, response.KindForbidden)

	_, err = svc.UpdateMemberRole(&UpdateMemberRoleRequest{
		ProjectID: p.ID, RequesterID: stranger.ID, TargetUserID: tester.ID, NewRole: models.RoleApprover,
	})
	expectKind(t, err, response.KindForbidden)

	// Nothing changed.
	var members int64
	db.Model(&models.Membership{}).Where("project_id = ?", p.ID).Count(&members)
	if members != 2 {
		t.Errorf("membership count = %d, expected 2 untouched rows", members)
	}
}

func TestMembership_ProjectNotFound(t *testing.T) {
	db := setupMembershipDB(t)
	svc := NewMembershipService(db)
	u := createUser(t, db, "alice", "alice@example.com")

	_, err := svc.ListMembers(&ListMembersRequest{ProjectID: 999, RequesterID: u.ID})
	expectKind(t, err, response.KindNotFound)
}

func TestMembership_BadRequestIDs(t *testing.T) {
	db := setupMembershipDB(t)
	svc := NewMembershipService(db)

	_, err := svc.ListMembers(&ListMembersRequest{ProjectID: 0, RequesterID: 1})
	expectKind(t, err, response.KindBadRequest)

	_, err = svc.RemoveMember(&RemoveMemberRequest{ProjectID: 1, RequesterID: 0, TargetUserID: 1})
	expectKind(t, err, response.KindBadRequest)

	_, err = svc.UpdateMemberRole(&UpdateMemberRoleRequest{
		ProjectID: 1, RequesterID: 1, TargetUserID: 1, NewRole: "SUPERVISOR",
	})
	expectKind(t, err, response.KindBadRequest)
}

func TestRemoveMember_LastOwnerBlocked(t *testing.T) {
	db := setupMembershipDB(t)
	svc := NewMembershipService(db)

	owner := createUser(t, db, "alice", "alice@example.com")
	p := createProject(t, db, owner.ID)
	addMember(t, db, p.ID, owner.ID, models.RoleOwner)

	_, err := svc.RemoveMember(&RemoveMemberRequest{
		ProjectID: p.ID, RequesterID: owner.ID, TargetUserID: owner.ID,
	})
	expectKind(t, err, response.KindConflict)

	if n := countOwners(t, db, p.ID); n != 1 {
		t.Errorf("owner count = %d, expected invariant count >= 1 preserved", n)
	}
}

func TestRemoveMember_CoOwnerRemovableWhenTwoOwners(t *testing.T) {
	db := setupMembershipDB(t)
	svc := NewMembershipService(db)

	a := createUser(t, db, "alice", "alice@example.com")
	b := createUser(t, db, "bree", "bree@example.com")
	p := createProject(t, db, a.ID)
	addMember(t, db, p.ID, a.ID, models.RoleOwner)
	addMember(t, db, p.ID, b.ID, models.RoleOwner)

	removed, err := svc.RemoveMember(&RemoveMemberRequest{
		ProjectID: p.ID, RequesterID: a.ID, TargetUserID: b.ID,
	})
	if err != nil {
		t.Fatalf("RemoveMember() error = %v", err)
	}
	if removed.UserID != b.ID || removed.Role != models.RoleOwner {
		t.Errorf("removed = %+v, expected owner row for user %d", removed, b.ID)
	}
	if n := countOwners(t, db, p.ID); n != 1 {
		t.Errorf("owner count = %d, expected 1", n)
	}
}

func TestRemoveMember_ManagerRules(t *testing.T) {
	db := setupMembershipDB(t)
	svc := NewMembershipService(db)

	owner := createUser(t, db, "alice", "alice@example.com")
	manager := createUser(t, db, "bob", "bob@example.com")
	manager2 := createUser(t, db, "carol", "carol@example.com")
	tester := createUser(t, db, "dave", "dave@example.com")
	approver := createUser(t, db, "erin", "erin@example.com")
	p := createProject(t, db, owner.ID)
	addMember(t, db, p.ID, owner.ID, models.RoleOwner)
	addMember(t, db, p.ID, manager.ID, models.RoleManager)
	addMember(t, db, p.ID, manager2.ID, models.RoleManager)
	addMember(t, db, p.ID, tester.ID, models.RoleTester)
	addMember(t, db, p.ID, approver.ID, models.RoleApprover)

	// Manager may remove testers and approvers.
	if _, err := svc.RemoveMember(&RemoveMemberRequest{
		ProjectID: p.ID, RequesterID: manager.ID, TargetUserID: approver.ID,
	}); err != nil {
		t.Fatalf("manager removing approver: %v", err)
	}

	// Manager may not remove a fellow manager or the owner.
	_, err := svc.RemoveMember(&RemoveMemberRequest{
		ProjectID: p.ID, RequesterID: manager.ID, TargetUserID: manager2.ID,
	})
	expectKind(t, err, response.KindForbidden)

	_, err = svc.RemoveMember(&RemoveMemberRequest{
		ProjectID: p.ID, RequesterID: manager.ID, TargetUserID: owner.ID,
	})
	expectKind(t, err, response.KindForbidden)

	// Testers may remove nobody, not even each other.
	_, err = svc.RemoveMember(&RemoveMemberRequest{
		ProjectID: p.ID, RequesterID: tester.ID, TargetUserID: manager2.ID,
	})
	expectKind(t, err, response.KindForbidden)

	_, err = svc.RemoveMember(&RemoveMemberRequest{
		ProjectID: p.ID, RequesterID: tester.ID, TargetUserID: tester.ID,
	})
	expectKind(t, err, response.KindForbidden)
}

func TestRemoveMember_ImplicitOwnerNotATarget(t *testing.T) {
	db := setupMembershipDB(t)
	svc := NewMembershipService(db)

	owner := createUser(t, db, "alice", "alice@example.com")
	tester := createUser(t, db, "bob", "bob@example.com")
	p := createProject(t, db, owner.ID)
	// Owner has no explicit row; listing synthesizes it, removal must not.
	addMember(t, db, p.ID, tester.ID, models.RoleTester)

	_, err := svc.RemoveMember(&RemoveMemberRequest{
		ProjectID: p.ID, RequesterID: owner.ID, TargetUserID: owner.ID,
	})
	expectKind(t, err, response.KindNotFound)
}

func TestUpdateMemberRole_ManagerCannotDemoteManager(t *testing.T) {
	db := setupMembershipDB(t)
	svc := NewMembershipService(db)

	a := createUser(t, db, "alice", "alice@example.com")
	b := createUser(t, db, "bob", "bob@example.com")
	c := createUser(t, db, "carol", "carol@example.com")
	p := createProject(t, db, a.ID)
	addMember(t, db, p.ID, a.ID, models.RoleOwner)
	addMember(t, db, p.ID, b.ID, models.RoleManager)
	addMember(t, db, p.ID, c.ID, models.RoleManager)

	_, err := svc.UpdateMemberRole(&UpdateMemberRoleRequest{
		ProjectID: p.ID, RequesterID: b.ID, TargetUserID: c.ID, NewRole: models.RoleTester,
	})
	expectKind(t, err, response.KindForbidden)
}

func TestUpdateMemberRole_ManagerCannotGrantPrivilegedRole(t *testing.T) {
	db := setupMembershipDB(t)
	svc := NewMembershipService(db)

	owner := createUser(t, db, "alice", "alice@example.com")
	manager := createUser(t, db, "bob", "bob@example.com")
	tester := createUser(t, db, "carol", "carol@example.com")
	p := createProject(t, db, owner.ID)
	addMember(t, db, p.ID, owner.ID, models.RoleOwner)
	addMember(t, db, p.ID, manager.ID, models.RoleManager)
	addMember(t, db, p.ID, tester.ID, models.RoleTester)

	for _, role := range []string{models.RoleOwner, models.RoleManager} {
		_, err := svc.UpdateMemberRole(&UpdateMemberRoleRequest{
			ProjectID: p.ID, RequesterID: manager.ID, TargetUserID: tester.ID, NewRole: role,
		})
		expectKind(t, err, response.KindForbidden)
	}

	// But manager may move a tester to approver.
	updated, err := svc.UpdateMemberRole(&UpdateMemberRoleRequest{
		ProjectID: p.ID, RequesterID: manager.ID, TargetUserID: tester.ID, NewRole: models.RoleApprover,
	})
	if err != nil {
		t.Fatalf("manager reassigning tester: %v", err)
	}
	if updated.Role != models.RoleApprover {
		t.Errorf("Role = %s, expected APPROVER", updated.Role)
	}
}

func TestUpdateMemberRole_OwnerDemotesCoOwner(t *testing.T) {
	db := setupMembershipDB(t)
	svc := NewMembershipService(db)

	a := createUser(t, db, "alice", "alice@example.com")
	b := createUser(t, db, "bree", "bree@example.com")
	p := createProject(t, db, a.ID)
	addMember(t, db, p.ID, a.ID, models.RoleOwner)
	addMember(t, db, p.ID, b.ID, models.RoleOwner)

	updated, err := svc.UpdateMemberRole(&UpdateMemberRoleRequest{
		ProjectID: p.ID, RequesterID: a.ID, TargetUserID: b.ID, NewRole: models.RoleManager,
	})
	if err != nil {
		t.Fatalf("UpdateMemberRole() error = %v", err)
	}
	if updated.Role != models.RoleManager {
		t.Errorf("Role = %s, expected MANAGER", updated.Role)
	}
	if n := countOwners(t, db, p.ID); n != 1 {
		t.Errorf("owner count = %d, expected 1", n)
	}
}

func TestUpdateMemberRole_LastOwnerDemotionBlocked(t *testing.T) {
	db := setupMembershipDB(t)
	svc := NewMembershipService(db)

	owner := createUser(t, db, "alice", "alice@example.com")
	p := createProject(t, db, owner.ID)
	addMember(t, db, p.ID, owner.ID, models.RoleOwner)

	// Self-demotion of the sole owner is blocked too.
	_, err := svc.UpdateMemberRole(&UpdateMemberRoleRequest{
		ProjectID: p.ID, RequesterID: owner.ID, TargetUserID: owner.ID, NewRole: models.RoleTester,
	})
	expectKind(t, err, response.KindConflict)

	if n := countOwners(t, db, p.ID); n != 1 {
		t.Errorf("owner count = %d, expected 1", n)
	}
}

func TestUpdateMemberRole_IdempotentNoWrite(t *testing.T) {
	db := setupMembershipDB(t)
	svc := NewMembershipService(db)

	owner := createUser(t, db, "alice", "alice@example.com")
	tester := createUser(t, db, "bob", "bob@example.com")
	p := createProject(t, db, owner.ID)
	addMember(t, db, p.ID, owner.ID, models.RoleOwner)
	row := addMember(t, db, p.ID, tester.ID, models.RoleTester)

	var before models.Membership
	db.First(&before, row.ID)

	got, err := svc.UpdateMemberRole(&UpdateMemberRoleRequest{
		ProjectID: p.ID, RequesterID: owner.ID, TargetUserID: tester.ID, NewRole: models.RoleTester,
	})
	if err != nil {
		t.Fatalf("UpdateMemberRole() error = %v", err)
	}
	if got.Role != models.RoleTester {
		t.Errorf("Role = %s, expected TESTER", got.Role)
	}

	var after models.Membership
	db.First(&after, row.ID)
	if !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Errorf("UpdatedAt changed on idempotent update: %v → %v", before.UpdatedAt, after.UpdatedAt)
	}

	// Assigning the sole owner their current role is a no-op as well, not a
	// last-owner conflict.
	if _, err := svc.UpdateMemberRole(&UpdateMemberRoleRequest{
		ProjectID: p.ID, RequesterID: owner.ID, TargetUserID: owner.ID, NewRole: models.RoleOwner,
	}); err != nil {
		t.Errorf("idempotent owner reassignment: %v", err)
	}
}

func TestMembership_OwnerInvariantAcrossSequence(t *testing.T) {
	db := setupMembershipDB(t)
	svc := NewMembershipService(db)

	a := createUser(t, db, "alice", "alice@example.com")
	b := createUser(t, db, "bob", "bob@example.com")
	c := createUser(t, db, "carol", "carol@example.com")
	p := createProject(t, db, a.ID)
	addMember(t, db, p.ID, a.ID, models.RoleOwner)
	addMember(t, db, p.ID, b.ID, models.RoleOwner)
	addMember(t, db, p.ID, c.ID, models.RoleTester)

	ops := []func() error{
		func() error {
			_, err := svc.UpdateMemberRole(&UpdateMemberRoleRequest{
				ProjectID: p.ID, RequesterID: a.ID, TargetUserID: b.ID, NewRole: models.RoleManager})
			return err
		},
		func() error {
			_, err := svc.RemoveMember(&RemoveMemberRequest{
				ProjectID: p.ID, RequesterID: a.ID, TargetUserID: a.ID})
			return err
		},
		func() error {
			_, err := svc.UpdateMemberRole(&UpdateMemberRoleRequest{
				ProjectID: p.ID, RequesterID: a.ID, TargetUserID: a.ID, NewRole: models.RoleApprover})
			return err
		},
	}

	for i, op := range ops {
		err := op()
		// Accepted or rejected, the invariant must hold afterwards.
		if err != nil && !response.IsKind(err, response.KindConflict) {
			t.Fatalf("op %d unexpected error: %v", i, err)
		}
		if n := countOwners(t, db, p.ID); n < 1 {
			t.Fatalf("op %d violated owner invariant: count = %d", i, n)
		}
	}
}

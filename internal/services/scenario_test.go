package services

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/testflowhq/testflow/backend/internal/models"
	"github.com/testflowhq/testflow/backend/pkg/response"
)

func setupContentDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{}, &models.Project{}, &models.Membership{},
		&models.TestPackage{}, &models.TestScenario{},
		&models.Execution{}, &models.Bug{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createPackage(t *testing.T, db *gorm.DB, projectID, createdBy uint, name string) *models.TestPackage {
	t.Helper()
	pkg := &models.TestPackage{ProjectID: projectID, Name: name, CreatedBy: createdBy}
	if err := db.Create(pkg).Error; err != nil {
		t.Fatalf("create package: %v", err)
	}
	return pkg
}

func createScenario(t *testing.T, db *gorm.DB, projectID, packageID, createdBy uint, title string) *models.TestScenario {
	t.Helper()
	sc := &models.TestScenario{
		ProjectID: projectID,
		PackageID: packageID,
		Title:     title,
		Priority:  models.PriorityMedium,
		Status:    models.ScenarioReady,
		CreatedBy: createdBy,
	}
	if err := db.Create(sc).Error; err != nil {
		t.Fatalf("create scenario: %v", err)
	}
	return sc
}

func TestCreatePackage_Authorization(t *testing.T) {
	db := setupContentDB(t)
	svc := NewScenarioService(db)

	owner := createUser(t, db, "alice", "alice@example.com")
	tester := createUser(t, db, "bob", "bob@example.com")
	approver := createUser(t, db, "carol", "carol@example.com")
	stranger := createUser(t, db, "eve", "eve@example.com")
	p := createProject(t, db, owner.ID)
	addMember(t, db, p.ID, tester.ID, models.RoleTester)
	addMember(t, db, p.ID, approver.ID, models.RoleApprover)

	if _, err := svc.CreatePackage(tester.ID, p.ID, &CreatePackageRequest{Name: "Smoke"}); err != nil {
		t.Errorf("tester creating package: unexpected error %v", err)
	}
	if _, err := svc.CreatePackage(owner.ID, p.ID, &CreatePackageRequest{Name: "Regression"}); err != nil {
		t.Errorf("owner creating package: unexpected error %v", err)
	}

	_, err := svc.CreatePackage(approver.ID, p.ID, &CreatePackageRequest{Name: "Nope"})
	expectKind(t, err, response.KindForbidden)
	_, err = svc.CreatePackage(stranger.ID, p.ID, &CreatePackageRequest{Name: "Nope"})
	expectKind(t, err, response.KindForbidden)
	_, err = svc.CreatePackage(owner.ID, p.ID, &CreatePackageRequest{Name: "   "})
	expectKind(t, err, response.KindBadRequest)
}

func TestListPackages_OrderedByPosition(t *testing.T) {
	db := setupContentDB(t)
	svc := NewScenarioService(db)

	owner := createUser(t, db, "alice", "alice@example.com")
	p := createProject(t, db, owner.ID)

	for i, name := range []string{"Third", "First", "Second"} {
		pos := []int{3, 1, 2}[i]
		if _, err := svc.CreatePackage(owner.ID, p.ID, &CreatePackageRequest{Name: name, Position: pos}); err != nil {
			t.Fatalf("CreatePackage(%s) error = %v", name, err)
		}
	}

	packages, err := svc.ListPackages(owner.ID, p.ID)
	if err != nil {
		t.Fatalf("ListPackages() error = %v", err)
	}
	got := make([]string, len(packages))
	for i, pkg := range packages {
		got[i] = pkg.Name
	}
	want := []string{"First", "Second", "Third"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("package order = %v, expected %v", got, want)
		}
	}
}

func TestDeletePackage_CascadesAndRequiresManager(t *testing.T) {
	db := setupContentDB(t)
	svc := NewScenarioService(db)

	owner := createUser(t, db, "alice", "alice@example.com")
	tester := createUser(t, db, "bob", "bob@example.com")
	p := createProject(t, db, owner.ID)
	addMember(t, db, p.ID, tester.ID, models.RoleTester)

	pkg := createPackage(t, db, p.ID, owner.ID, "Smoke")
	createScenario(t, db, p.ID, pkg.ID, owner.ID, "Login works")
	createScenario(t, db, p.ID, pkg.ID, owner.ID, "Logout works")

	err := svc.DeletePackage(tester.ID, p.ID, pkg.ID)
	expectKind(t, err, response.KindForbidden)

	if err := svc.DeletePackage(owner.ID, p.ID, pkg.ID); err != nil {
		t.Fatalf("DeletePackage() error = %v", err)
	}

	var scenarios int64
	db.Model(&models.TestScenario{}).Where("package_id = ?", pkg.ID).Count(&scenarios)
	if scenarios != 0 {
		t.Errorf("%d scenarios survived package deletion, expected 0", scenarios)
	}

	err = svc.DeletePackage(owner.ID, p.ID, pkg.ID)
	expectKind(t, err, response.KindNotFound)
}

func TestCreateScenario_DefaultsAndValidation(t *testing.T) {
	db := setupContentDB(t)
	svc := NewScenarioService(db)

	owner := createUser(t, db, "alice", "alice@example.com")
	p := createProject(t, db, owner.ID)
	pkg := createPackage(t, db, p.ID, owner.ID, "Smoke")

	sc, err := svc.CreateScenario(owner.ID, p.ID, &CreateScenarioRequest{
		PackageID: pkg.ID,
		Title:     "Login works",
	})
	if err != nil {
		t.Fatalf("CreateScenario() error = %v", err)
	}
	if sc.Priority != models.PriorityMedium || sc.Status != models.ScenarioDraft {
		t.Errorf("defaults = %s/%s, expected MEDIUM/DRAFT", sc.Priority, sc.Status)
	}

	_, err = svc.CreateScenario(owner.ID, p.ID, &CreateScenarioRequest{
		PackageID: pkg.ID, Title: "X", Priority: "URGENT",
	})
	expectKind(t, err, response.KindBadRequest)

	_, err = svc.CreateScenario(owner.ID, p.ID, &CreateScenarioRequest{
		PackageID: pkg.ID, Title: "X", Status: "SHIPPED",
	})
	expectKind(t, err, response.KindBadRequest)

	_, err = svc.CreateScenario(owner.ID, p.ID, &CreateScenarioRequest{
		PackageID: 9999, Title: "X",
	})
	expectKind(t, err, response.KindNotFound)
}

func TestListScenarios_Filters(t *testing.T) {
	db := setupContentDB(t)
	svc := NewScenarioService(db)

	owner := createUser(t, db, "alice", "alice@example.com")
	p := createProject(t, db, owner.ID)
	pkg1 := createPackage(t, db, p.ID, owner.ID, "Smoke")
	pkg2 := createPackage(t, db, p.ID, owner.ID, "Regression")

	mk := func(pkgID uint, title, priority, status string) {
		sc := &models.TestScenario{
			ProjectID: p.ID, PackageID: pkgID, Title: title,
			Priority: priority, Status: status, CreatedBy: owner.ID,
		}
		if err := db.Create(sc).Error; err != nil {
			t.Fatalf("seed scenario: %v", err)
		}
	}
	mk(pkg1.ID, "Login works", models.PriorityHigh, models.ScenarioReady)
	mk(pkg1.ID, "Logout works", models.PriorityLow, models.ScenarioDraft)
	mk(pkg2.ID, "Checkout login flow", models.PriorityHigh, models.ScenarioReady)

	resp, err := svc.ListScenarios(owner.ID, p.ID, &ScenarioListRequest{PackageID: pkg1.ID})
	if err != nil {
		t.Fatalf("ListScenarios(package) error = %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("package filter Total = %d, expected 2", resp.Total)
	}

	resp, err = svc.ListScenarios(owner.ID, p.ID, &ScenarioListRequest{Priority: "high"})
	if err != nil {
		t.Fatalf("ListScenarios(priority) error = %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("priority filter Total = %d, expected 2", resp.Total)
	}

	resp, err = svc.ListScenarios(owner.ID, p.ID, &ScenarioListRequest{Query: "login"})
	if err != nil {
		t.Fatalf("ListScenarios(query) error = %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("query filter Total = %d, expected 2", resp.Total)
	}

	_, err = svc.ListScenarios(owner.ID, p.ID, &ScenarioListRequest{Priority: "URGENT"})
	expectKind(t, err, response.KindBadRequest)
}

func TestUpdateScenario_PartialEdit(t *testing.T) {
	db := setupContentDB(t)
	svc := NewScenarioService(db)

	owner := createUser(t, db, "alice", "alice@example.com")
	approver := createUser(t, db, "carol", "carol@example.com")
	p := createProject(t, db, owner.ID)
	addMember(t, db, p.ID, approver.ID, models.RoleApprover)
	pkg := createPackage(t, db, p.ID, owner.ID, "Smoke")
	sc := createScenario(t, db, p.ID, pkg.ID, owner.ID, "Login works")

	steps := "1. open page\n2. submit credentials"
	updated, err := svc.UpdateScenario(owner.ID, p.ID, sc.ID, &UpdateScenarioRequest{
		Steps:  &steps,
		Status: "deprecated",
	})
	if err != nil {
		t.Fatalf("UpdateScenario() error = %v", err)
	}

	var stored models.TestScenario
	db.First(&stored, updated.ID)
	if stored.Steps != steps || stored.Status != models.ScenarioDeprecated {
		t.Errorf("stored = %s/%q, expected DEPRECATED with new steps", stored.Status, stored.Steps)
	}
	if stored.Title != "Login works" {
		t.Errorf("title changed to %q on partial edit", stored.Title)
	}

	_, err = svc.UpdateScenario(approver.ID, p.ID, sc.ID, &UpdateScenarioRequest{Title: "Renamed"})
	expectKind(t, err, response.KindForbidden)
}

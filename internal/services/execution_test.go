package services

import (
	"testing"

	"github.com/testflowhq/testflow/backend/internal/models"
	"github.com/testflowhq/testflow/backend/pkg/response"
)

func TestCreateExecution(t *testing.T) {
	db := setupContentDB(t)
	svc := NewExecutionService(db)

	owner := createUser(t, db, "alice", "alice@example.com")
	tester := createUser(t, db, "bob", "bob@example.com")
	approver := createUser(t, db, "carol", "carol@example.com")
	p := createProject(t, db, owner.ID)
	addMember(t, db, p.ID, tester.ID, models.RoleTester)
	addMember(t, db, p.ID, approver.ID, models.RoleApprover)
	pkg := createPackage(t, db, p.ID, owner.ID, "Smoke")
	sc := createScenario(t, db, p.ID, pkg.ID, owner.ID, "Login works")

	exec, err := svc.Create(tester.ID, p.ID, &CreateExecutionRequest{
		ScenarioID:      sc.ID,
		Status:          "passed",
		DurationSeconds: 42,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if exec.Status != models.ExecutionPassed || exec.ExecutorID != tester.ID {
		t.Errorf("execution = %+v, expected PASSED by tester", exec)
	}
	if exec.ExecutedAt.IsZero() {
		t.Error("ExecutedAt not stamped")
	}

	_, err = svc.Create(approver.ID, p.ID, &CreateExecutionRequest{ScenarioID: sc.ID, Status: "PASSED"})
	expectKind(t, err, response.KindForbidden)

	_, err = svc.Create(tester.ID, p.ID, &CreateExecutionRequest{ScenarioID: sc.ID, Status: "GREEN"})
	expectKind(t, err, response.KindBadRequest)

	_, err = svc.Create(tester.ID, p.ID, &CreateExecutionRequest{ScenarioID: sc.ID, Status: "PASSED", DurationSeconds: -5})
	expectKind(t, err, response.KindBadRequest)

	_, err = svc.Create(tester.ID, p.ID, &CreateExecutionRequest{ScenarioID: 9999, Status: "PASSED"})
	expectKind(t, err, response.KindNotFound)
}

func TestCreateExecution_DeprecatedScenario(t *testing.T) {
	db := setupContentDB(t)
	svc := NewExecutionService(db)

	owner := createUser(t, db, "alice", "alice@example.com")
	p := createProject(t, db, owner.ID)
	pkg := createPackage(t, db, p.ID, owner.ID, "Smoke")
	sc := createScenario(t, db, p.ID, pkg.ID, owner.ID, "Old flow")
	db.Model(sc).Update("status", models.ScenarioDeprecated)

	_, err := svc.Create(owner.ID, p.ID, &CreateExecutionRequest{ScenarioID: sc.ID, Status: "PASSED"})
	expectKind(t, err, response.KindConflict)
}

func TestListExecutions_Filters(t *testing.T) {
	db := setupContentDB(t)
	svc := NewExecutionService(db)

	owner := createUser(t, db, "alice", "alice@example.com")
	tester := createUser(t, db, "bob", "bob@example.com")
	p := createProject(t, db, owner.ID)
	addMember(t, db, p.ID, tester.ID, models.RoleTester)
	pkg := createPackage(t, db, p.ID, owner.ID, "Smoke")
	sc := createScenario(t, db, p.ID, pkg.ID, owner.ID, "Login works")

	for _, status := range []string{"PASSED", "PASSED", "FAILED"} {
		if _, err := svc.Create(tester.ID, p.ID, &CreateExecutionRequest{ScenarioID: sc.ID, Status: status}); err != nil {
			t.Fatalf("seed execution: %v", err)
		}
	}
	if _, err := svc.Create(owner.ID, p.ID, &CreateExecutionRequest{ScenarioID: sc.ID, Status: "BLOCKED"}); err != nil {
		t.Fatalf("seed execution: %v", err)
	}

	resp, err := svc.List(tester.ID, p.ID, &ExecutionListRequest{Status: "passed"})
	if err != nil {
		t.Fatalf("List(status) error = %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("status filter Total = %d, expected 2", resp.Total)
	}

	resp, err = svc.List(tester.ID, p.ID, &ExecutionListRequest{ExecutorID: owner.ID})
	if err != nil {
		t.Fatalf("List(executor) error = %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("executor filter Total = %d, expected 1", resp.Total)
	}

	approved := false
	resp, err = svc.List(tester.ID, p.ID, &ExecutionListRequest{Approved: &approved})
	if err != nil {
		t.Fatalf("List(approved) error = %v", err)
	}
	if resp.Total != 4 {
		t.Errorf("approved=false Total = %d, expected 4", resp.Total)
	}
}

func TestApproveExecution(t *testing.T) {
	db := setupContentDB(t)
	svc := NewExecutionService(db)

	owner := createUser(t, db, "alice", "alice@example.com")
	tester := createUser(t, db, "bob", "bob@example.com")
	approver := createUser(t, db, "carol", "carol@example.com")
	p := createProject(t, db, owner.ID)
	addMember(t, db, p.ID, tester.ID, models.RoleTester)
	addMember(t, db, p.ID, approver.ID, models.RoleApprover)
	pkg := createPackage(t, db, p.ID, owner.ID, "Smoke")
	sc := createScenario(t, db, p.ID, pkg.ID, owner.ID, "Login works")

	exec, err := svc.Create(tester.ID, p.ID, &CreateExecutionRequest{ScenarioID: sc.ID, Status: "PASSED"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Tester has no approval rights.
	_, err = svc.Approve(tester.ID, p.ID, exec.ID)
	expectKind(t, err, response.KindForbidden)

	approved, err := svc.Approve(approver.ID, p.ID, exec.ID)
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if !approved.Approved || approved.ApprovedBy == nil || *approved.ApprovedBy != approver.ID {
		t.Errorf("approval = %+v, expected signed off by approver", approved)
	}

	_, err = svc.Approve(owner.ID, p.ID, exec.ID)
	expectKind(t, err, response.KindConflict)
}

func TestApproveExecution_OwnRunRejected(t *testing.T) {
	db := setupContentDB(t)
	svc := NewExecutionService(db)

	owner := createUser(t, db, "alice", "alice@example.com")
	p := createProject(t, db, owner.ID)
	pkg := createPackage(t, db, p.ID, owner.ID, "Smoke")
	sc := createScenario(t, db, p.ID, pkg.ID, owner.ID, "Login works")

	exec, err := svc.Create(owner.ID, p.ID, &CreateExecutionRequest{ScenarioID: sc.ID, Status: "FAILED"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err = svc.Approve(owner.ID, p.ID, exec.ID)
	expectKind(t, err, response.KindForbidden)
}

package services

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/testflowhq/testflow/backend/internal/config"
	"github.com/testflowhq/testflow/backend/internal/models"
	"github.com/testflowhq/testflow/backend/internal/utils"
)

func setupAuthService(t *testing.T) (*AuthService, *gorm.DB) {
	t.Helper()
	utils.SetJWTSecret("test-secret-for-auth-service")
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.RefreshToken{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	svc := NewAuthService(db,
		&config.JWTConfig{Secret: "test-secret-for-auth-service", ExpireHour: 1, RefreshExpireHour: 24},
		&config.LDAPConfig{})
	return svc, db
}

func seedLocalUser(t *testing.T, db *gorm.DB, username, password string) *models.User {
	t.Helper()
	hashed, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &models.User{
		Username: username,
		Password: hashed,
		Role:     "user",
		AuthType: "local",
		IsActive: true,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestLogin_Local(t *testing.T) {
	svc, db := setupAuthService(t)
	seedLocalUser(t, db, "alice", "s3cret-pass")

	result, err := svc.Login(&LoginRequest{Username: "alice", Password: "s3cret-pass"}, "127.0.0.1", "go-test")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Error("expected both access and refresh tokens")
	}
	if result.User == nil || result.User.Username != "alice" {
		t.Errorf("User = %+v, expected alice", result.User)
	}

	var stored models.User
	db.Where("username = ?", "alice").First(&stored)
	if stored.LastLogin == nil {
		t.Error("LastLogin not stamped")
	}

	if _, err := svc.Login(&LoginRequest{Username: "alice", Password: "wrong"}, "", ""); err == nil {
		t.Error("expected error for wrong password")
	}
	if _, err := svc.Login(&LoginRequest{Username: "nobody", Password: "x"}, "", ""); err == nil {
		t.Error("expected error for unknown user")
	}
}

func TestLogin_DisabledUser(t *testing.T) {
	svc, db := setupAuthService(t)
	u := seedLocalUser(t, db, "alice", "s3cret-pass")
	db.Model(u).Update("is_active", false)

	if _, err := svc.Login(&LoginRequest{Username: "alice", Password: "s3cret-pass"}, "", ""); err == nil {
		t.Error("expected error for disabled user")
	}
}

func TestRefresh_RotatesToken(t *testing.T) {
	svc, db := setupAuthService(t)
	seedLocalUser(t, db, "alice", "s3cret-pass")

	login, err := svc.Login(&LoginRequest{Username: "alice", Password: "s3cret-pass"}, "", "")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	refreshed, err := svc.Refresh(login.RefreshToken, "", "")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if refreshed.RefreshToken == login.RefreshToken {
		t.Error("refresh token was not rotated")
	}

	// The consumed token is revoked and cannot be replayed.
	if _, err := svc.Refresh(login.RefreshToken, "", ""); err == nil {
		t.Error("expected error replaying a rotated refresh token")
	}

	// The new token still works.
	if _, err := svc.Refresh(refreshed.RefreshToken, "", ""); err != nil {
		t.Errorf("Refresh() with rotated token error = %v", err)
	}
}

func TestRevokeRefreshToken(t *testing.T) {
	svc, db := setupAuthService(t)
	seedLocalUser(t, db, "alice", "s3cret-pass")

	login, err := svc.Login(&LoginRequest{Username: "alice", Password: "s3cret-pass"}, "", "")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if err := svc.RevokeRefreshToken(login.RefreshToken); err != nil {
		t.Fatalf("RevokeRefreshToken() error = %v", err)
	}
	if _, err := svc.Refresh(login.RefreshToken, "", ""); err == nil {
		t.Error("expected error refreshing with a revoked token")
	}
}

func TestChangePassword(t *testing.T) {
	svc, db := setupAuthService(t)
	u := seedLocalUser(t, db, "alice", "s3cret-pass")

	if err := svc.ChangePassword(u.ID, &ChangePasswordRequest{OldPassword: "wrong", NewPassword: "new-pass-1"}); err == nil {
		t.Error("expected error for wrong old password")
	}
	if err := svc.ChangePassword(u.ID, &ChangePasswordRequest{OldPassword: "s3cret-pass", NewPassword: "new-pass-1"}); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}
	if _, err := svc.Login(&LoginRequest{Username: "alice", Password: "new-pass-1"}, "", ""); err != nil {
		t.Errorf("login with new password: %v", err)
	}
}

func TestCreateAdminIfNotExists(t *testing.T) {
	svc, db := setupAuthService(t)

	if err := svc.CreateAdminIfNotExists(); err != nil {
		t.Fatalf("CreateAdminIfNotExists() error = %v", err)
	}
	// Second call is a no-op.
	if err := svc.CreateAdminIfNotExists(); err != nil {
		t.Fatalf("CreateAdminIfNotExists() second call error = %v", err)
	}

	var admins int64
	db.Model(&models.User{}).Where("role = ?", "admin").Count(&admins)
	if admins != 1 {
		t.Errorf("%d admin users, expected 1", admins)
	}
}

func TestLoginRequest_Structure(t *testing.T) {
	req := LoginRequest{
		Username: "testuser",
		Password: "password123",
		AuthType: "local",
	}

	if req.Username != "testuser" {
		t.Errorf("Username = %q, expected %q", req.Username, "testuser")
	}
	if req.Password != "password123" {
		t.Errorf("Password = %q, expected %q", req.Password, "password123")
	}
	if req.AuthType != "local" {
		t.Errorf("AuthType = %q, expected %q", req.AuthType, "local")
	}
}

func TestLoginRequest_DefaultAuthType(t *testing.T) {
	req := LoginRequest{
		Username: "user",
		Password: "pass",
	}

	if req.AuthType != "" {
		t.Errorf("AuthType should be empty by default, got %q", req.AuthType)
	}
	if req.Username != "user" {
		t.Errorf("Username = %q, expected %q", req.Username, "user")
	}
	if req.Password != "pass" {
		t.Errorf("Password = %q, expected %q", req.Password, "pass")
	}
}

func TestLoginRequest_LDAPAuthType(t *testing.T) {
	req := LoginRequest{
		Username: "ldapuser",
		Password: "ldappass",
		AuthType: "ldap",
	}

	if req.AuthType != "ldap" {
		t.Errorf("AuthType = %q, expected %q", req.AuthType, "ldap")
	}
	if req.Username != "ldapuser" {
		t.Errorf("Username = %q, expected %q", req.Username, "ldapuser")
	}
	if req.Password != "ldappass" {
		t.Errorf("Password = %q, expected %q", req.Password, "ldappass")
	}
}

func TestLoginResponse_Structure(t *testing.T) {
	resp := LoginResponse{
		Token: "jwt.token.here",
		User:  nil,
	}

	if resp.Token != "jwt.token.here" {
		t.Errorf("Token = %q, expected %q", resp.Token, "jwt.token.here")
	}
	if resp.User != nil {
		t.Error("User should be nil")
	}
}

func TestChangePasswordRequest_Structure(t *testing.T) {
	req := ChangePasswordRequest{
		OldPassword: "oldpass",
		NewPassword: "newpass123",
	}

	if req.OldPassword != "oldpass" {
		t.Errorf("OldPassword = %q, expected %q", req.OldPassword, "oldpass")
	}
	if req.NewPassword != "newpass123" {
		t.Errorf("NewPassword = %q, expected %q", req.NewPassword, "newpass123")
	}
}

func TestChangePasswordRequest_MinLength(t *testing.T) {
	req := ChangePasswordRequest{
		OldPassword: "old",
		NewPassword: "123456",
	}

	if len(req.NewPassword) < 6 {
		t.Errorf("NewPassword length should be at least 6, got %d", len(req.NewPassword))
	}
	if req.OldPassword != "old" {
		t.Errorf("OldPassword = %q, expected %q", req.OldPassword, "old")
	}
}
